// Package engine decides which experiment variant a visitor sees and is
// deliberately free of I/O: the caller supplies the experiment catalog and
// any prior assignments, and persists whatever comes out. Every function
// here is a pure computation over its inputs and safe to call from any
// number of goroutines.
//
// Evaluation returns the first experiment (in the caller-supplied order,
// typically newest first) that yields an assignment. One evaluation, one
// experiment: multi-experiment composition is a product decision this
// engine does not take.
package engine

import (
	"time"

	"github.com/splitkit/splitkit/internal/store"
)

// PriorSource looks up an existing assignment for a visitor and
// experiment. Implementations are external (cookie store, database);
// *store.SQLiteStore satisfies the shape via an adapter. A nil result
// means no prior assignment.
type PriorSource interface {
	Prior(visitorID, experimentName string) *store.Assignment
}

// PriorFunc adapts a plain function to a PriorSource.
type PriorFunc func(visitorID, experimentName string) *store.Assignment

func (f PriorFunc) Prior(visitorID, experimentName string) *store.Assignment {
	return f(visitorID, experimentName)
}

// Assignment is the outcome of evaluating a visitor. New is false when an
// existing assignment was returned; callers persist and report only new
// assignments.
type Assignment struct {
	ExperimentName string         `json:"experiment"`
	VariantID      string         `json:"variant_id"`
	VariantName    string         `json:"variant_name"`
	Payload        map[string]any `json:"payload,omitempty"`
	AssignedAt     time.Time      `json:"assigned_at"`
	New            bool           `json:"-"`
}

// Evaluate walks the candidate experiments in order and returns the first
// assignment that applies, or nil when no experiment does. For each
// experiment:
//
//	prior assignment exists     -> return it unchanged, never reassign
//	audience does not match     -> skip
//	outside the traffic gate    -> skip
//	bucket lands on a variant   -> new assignment
//	bucket in the remainder     -> skip
//
// A nil result is the healthy "nothing to show" case, not an error.
func Evaluate(visitorID string, vc VisitorContext, experiments []*store.Experiment, priors PriorSource) *Assignment {
	for _, exp := range experiments {
		if a := evaluateOne(visitorID, vc, exp, priors); a != nil {
			return a
		}
	}
	return nil
}

func evaluateOne(visitorID string, vc VisitorContext, exp *store.Experiment, priors PriorSource) *Assignment {
	if priors != nil {
		if prior := priors.Prior(visitorID, exp.Name); prior != nil {
			// A prior whose variant was removed from the experiment is
			// unusable; skip rather than reassign.
			v := exp.Variant(prior.VariantID)
			if v == nil {
				return nil
			}
			return &Assignment{
				ExperimentName: exp.Name,
				VariantID:      v.ID,
				VariantName:    v.Name,
				Payload:        v.Payload,
				AssignedAt:     prior.AssignedAt,
			}
		}
	}

	if !MatchesAudience(exp.Audience, vc) {
		return nil
	}

	if !inTrafficGate(visitorID, exp) {
		return nil
	}

	v := AllocateVariant(exp.Variants, BucketFor(variantKey(visitorID, exp.Name)))
	if v == nil {
		return nil
	}

	return &Assignment{
		ExperimentName: exp.Name,
		VariantID:      v.ID,
		VariantName:    v.Name,
		Payload:        v.Payload,
		AssignedAt:     time.Now(),
		New:            true,
	}
}

// inTrafficGate decides whether the visitor is in the experiment at all,
// independently of the variant split. 0 and 100 skip the hash entirely.
func inTrafficGate(visitorID string, exp *store.Experiment) bool {
	switch {
	case exp.TrafficPercentage <= 0:
		return false
	case exp.TrafficPercentage >= 100:
		return true
	default:
		return BucketFor(gateKey(visitorID, exp.Name)) < exp.TrafficPercentage
	}
}
