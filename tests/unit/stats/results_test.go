package stats_test

import (
	"math"
	"reflect"
	"testing"

	"github.com/splitkit/splitkit/internal/stats"
	"github.com/splitkit/splitkit/internal/store"
)

func counts(control, variant store.VariantCounts) []store.VariantCounts {
	control.VariantID = "control"
	control.IsControl = true
	variant.VariantID = "treatment"
	return []store.VariantCounts{control, variant}
}

func TestCompute_ClearWinner(t *testing.T) {
	// Control 10% (100/1000), treatment 15% (150/1000): 50% uplift and a
	// comfortably significant z-test.
	result := stats.Compute(counts(
		store.VariantCounts{Visitors: 1000, Conversions: 100},
		store.VariantCounts{Visitors: 1000, Conversions: 150},
	))
	if result == nil {
		t.Fatal("expected results")
	}

	treatment := result.Variants[1]
	if math.Abs(treatment.Uplift-50) > 0.01 {
		t.Errorf("expected 50%% uplift, got %f", treatment.Uplift)
	}
	if treatment.PValue >= 0.05 {
		t.Errorf("expected p < 0.05, got %f", treatment.PValue)
	}
	if result.Winner == nil || *result.Winner != "treatment" {
		t.Errorf("expected treatment to win, got %v", result.Winner)
	}
	if !result.Significant {
		t.Error("expected statistical significance")
	}
	if result.Confidence < 95 {
		t.Errorf("expected confidence >= 95%%, got %f", result.Confidence)
	}
	if math.Abs(result.Improvement-50) > 0.01 {
		t.Errorf("expected 50%% improvement, got %f", result.Improvement)
	}
}

func TestCompute_NoSignificance(t *testing.T) {
	// 10% vs 11% on 100 visitors each: nowhere near significant.
	result := stats.Compute(counts(
		store.VariantCounts{Visitors: 100, Conversions: 10},
		store.VariantCounts{Visitors: 100, Conversions: 11},
	))
	if result == nil {
		t.Fatal("expected results")
	}

	treatment := result.Variants[1]
	if math.Abs(treatment.Uplift-10) > 0.01 {
		t.Errorf("expected 10%% uplift, got %f", treatment.Uplift)
	}
	if treatment.PValue < 0.5 {
		t.Errorf("expected a large p-value, got %f", treatment.PValue)
	}
	if result.Winner != nil {
		t.Errorf("expected no winner, got %v", *result.Winner)
	}
	if result.Significant {
		t.Error("expected no statistical significance")
	}
}

func TestCompute_NegativeUpliftNeverWins(t *testing.T) {
	// Treatment is significantly worse; significance alone must not crown it.
	result := stats.Compute(counts(
		store.VariantCounts{Visitors: 1000, Conversions: 150},
		store.VariantCounts{Visitors: 1000, Conversions: 100},
	))
	if result == nil {
		t.Fatal("expected results")
	}
	if result.Winner != nil {
		t.Errorf("expected no winner for a losing variant, got %v", *result.Winner)
	}
}

func TestCompute_NoControl(t *testing.T) {
	input := []store.VariantCounts{
		{VariantID: "a", Visitors: 100, Conversions: 10},
		{VariantID: "b", Visitors: 100, Conversions: 12},
	}
	if result := stats.Compute(input); result != nil {
		t.Errorf("expected nil without a control variant, got %+v", result)
	}
}

func TestCompute_TwoControls(t *testing.T) {
	input := []store.VariantCounts{
		{VariantID: "a", IsControl: true, Visitors: 100, Conversions: 10},
		{VariantID: "b", IsControl: true, Visitors: 100, Conversions: 12},
	}
	if result := stats.Compute(input); result != nil {
		t.Errorf("expected nil with two controls, got %+v", result)
	}
}

func TestCompute_ZeroVisitorsGuarded(t *testing.T) {
	result := stats.Compute(counts(
		store.VariantCounts{Visitors: 0, Conversions: 0},
		store.VariantCounts{Visitors: 0, Conversions: 0},
	))
	if result == nil {
		t.Fatal("expected results for zero traffic")
	}

	for _, v := range result.Variants {
		for name, value := range map[string]float64{
			"rate": v.ConversionRate, "ci_lower": v.CILower, "ci_upper": v.CIUpper,
			"uplift": v.Uplift, "p": v.PValue,
		} {
			if math.IsNaN(value) || math.IsInf(value, 0) {
				t.Errorf("%s is %f for zero visitors", name, value)
			}
		}
	}
	if result.Winner != nil {
		t.Error("expected no winner with zero traffic")
	}
}

func TestCompute_ZeroControlRateUplift(t *testing.T) {
	result := stats.Compute(counts(
		store.VariantCounts{Visitors: 100, Conversions: 0},
		store.VariantCounts{Visitors: 100, Conversions: 5},
	))
	if result == nil {
		t.Fatal("expected results")
	}
	if u := result.Variants[1].Uplift; u != 0 {
		t.Errorf("uplift against a 0%% control is undefined, expected 0, got %f", u)
	}
}

func TestCompute_ControlFields(t *testing.T) {
	result := stats.Compute(counts(
		store.VariantCounts{Visitors: 1000, Conversions: 100},
		store.VariantCounts{Visitors: 1000, Conversions: 150},
	))
	control := result.Variants[0]
	if control.Uplift != 0 {
		t.Errorf("control uplift must be 0, got %f", control.Uplift)
	}
	if control.PValue != 1 {
		t.Errorf("control p-value must be 1, got %f", control.PValue)
	}
	if math.Abs(control.ConversionRate-10) > 0.001 {
		t.Errorf("expected 10%% control rate, got %f", control.ConversionRate)
	}
	if control.CILower < 0 {
		t.Errorf("interval must be clipped at 0, got %f", control.CILower)
	}
}

func TestCompute_WaldInterval(t *testing.T) {
	// 10% of 1000: margin = 1.96 * sqrt(0.1*0.9/1000) = ~1.86 points.
	result := stats.Compute(counts(
		store.VariantCounts{Visitors: 1000, Conversions: 100},
		store.VariantCounts{Visitors: 1000, Conversions: 100},
	))
	control := result.Variants[0]
	margin := 1.96 * math.Sqrt(0.1*0.9/1000) * 100
	if math.Abs(control.CILower-(10-margin)) > 0.01 {
		t.Errorf("lower bound: expected %f, got %f", 10-margin, control.CILower)
	}
	if math.Abs(control.CIUpper-(10+margin)) > 0.01 {
		t.Errorf("upper bound: expected %f, got %f", 10+margin, control.CIUpper)
	}
}

func TestCompute_Idempotent(t *testing.T) {
	input := counts(
		store.VariantCounts{Visitors: 1000, Conversions: 100},
		store.VariantCounts{Visitors: 1000, Conversions: 150},
	)
	first := stats.Compute(input)
	second := stats.Compute(input)
	if !reflect.DeepEqual(first, second) {
		t.Error("identical input did not produce identical output")
	}
}

func TestTwoProportionPValue_NoData(t *testing.T) {
	if p := stats.TwoProportionPValue(0, 0, 0, 0); p != 1 {
		t.Errorf("expected p=1 with no data, got %f", p)
	}
	if p := stats.TwoProportionPValue(10, 100, 0, 0); p != 1 {
		t.Errorf("expected p=1 with one empty side, got %f", p)
	}
}

func TestTwoProportionPValue_IdenticalRates(t *testing.T) {
	p := stats.TwoProportionPValue(50, 1000, 50, 1000)
	if p < 0.99 {
		t.Errorf("identical rates should give p ~= 1, got %f", p)
	}
}
