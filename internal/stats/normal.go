// Package stats computes experiment results: conversion rates, Wald
// confidence intervals, uplift against control and an approximate
// two-proportion z-test. The normal-distribution pieces live in this file
// so an exact implementation (e.g. incomplete beta) can replace them
// without touching anything else.
//
// Everything here is a normal approximation, good enough for decision
// support and not for regulatory-grade statistics. The Wald interval in
// particular is known to be poor at small samples or extreme proportions.
package stats

import "math"

// NormalCDF approximates the cumulative distribution function of the
// standard normal distribution using Abramowitz and Stegun formula 7.1.26.
func NormalCDF(x float64) float64 {
	a1 := 0.254829592
	a2 := -0.284496736
	a3 := 1.421413741
	a4 := -1.453152027
	a5 := 1.061405429
	p := 0.3275911

	sign := 1.0
	if x < 0 {
		sign = -1.0
	}
	x = math.Abs(x) / math.Sqrt(2)

	t := 1.0 / (1.0 + p*x)
	y := 1.0 - (((((a5*t+a4)*t)+a3)*t+a2)*t+a1)*t*math.Exp(-x*x)

	return 0.5 * (1.0 + sign*y)
}

// ZScore returns the two-sided z-score for a confidence level.
// Common values:
//   - 0.90 -> 1.645
//   - 0.95 -> 1.96
//   - 0.99 -> 2.576
func ZScore(confidence float64) float64 {
	switch {
	case confidence >= 0.99:
		return 2.576
	case confidence >= 0.95:
		return 1.96
	case confidence >= 0.90:
		return 1.645
	case confidence >= 0.85:
		return 1.44
	default:
		return 1.28
	}
}
