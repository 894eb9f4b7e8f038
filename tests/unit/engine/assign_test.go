package engine_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/splitkit/splitkit/internal/engine"
	"github.com/splitkit/splitkit/internal/store"
)

func activeExperiment(name string, traffic int) *store.Experiment {
	return &store.Experiment{
		Name:              name,
		Status:            store.StatusActive,
		TrafficPercentage: traffic,
		Variants: []store.Variant{
			{ID: "control", Name: "Control", IsControl: true, TrafficPercentage: 50},
			{ID: "treatment", Name: "Treatment", TrafficPercentage: 50,
				Payload: map[string]any{"cta": "big"}},
		},
	}
}

// visitorWithGateBucket searches for a visitor ID whose gate bucket for
// the experiment satisfies the predicate. Deterministic: the hash is
// stable, so the same ID is found every run.
func visitorWithGateBucket(t *testing.T, experiment string, ok func(int) bool) string {
	t.Helper()
	for i := 0; i < 10000; i++ {
		id := fmt.Sprintf("visitor-%d", i)
		if ok(engine.BucketFor(id + "-" + experiment)) {
			return id
		}
	}
	t.Fatal("no visitor with the wanted gate bucket in 10000 candidates")
	return ""
}

func TestEvaluate_NewAssignment(t *testing.T) {
	exp := activeExperiment("hero", 100)

	a := engine.Evaluate("visitor-1", engine.VisitorContext{}, []*store.Experiment{exp}, nil)
	if a == nil {
		t.Fatal("expected an assignment with 100% traffic and full variant coverage")
	}
	if !a.New {
		t.Error("expected a new assignment")
	}
	if a.ExperimentName != "hero" {
		t.Errorf("expected experiment hero, got %s", a.ExperimentName)
	}
	if a.VariantID != "control" && a.VariantID != "treatment" {
		t.Errorf("unexpected variant %s", a.VariantID)
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	exp := activeExperiment("hero", 100)

	first := engine.Evaluate("visitor-7", engine.VisitorContext{}, []*store.Experiment{exp}, nil)
	for i := 0; i < 50; i++ {
		again := engine.Evaluate("visitor-7", engine.VisitorContext{}, []*store.Experiment{exp}, nil)
		if again == nil || again.VariantID != first.VariantID {
			t.Fatal("same visitor bucketed into a different variant")
		}
	}
}

func TestEvaluate_PriorAssignmentWins(t *testing.T) {
	exp := activeExperiment("hero", 0) // gate closed: only the prior can apply
	assignedAt := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	priors := engine.PriorFunc(func(visitorID, experimentName string) *store.Assignment {
		return &store.Assignment{
			VisitorID:      visitorID,
			ExperimentName: experimentName,
			VariantID:      "treatment",
			AssignedAt:     assignedAt,
		}
	})

	a := engine.Evaluate("visitor-1", engine.VisitorContext{}, []*store.Experiment{exp}, priors)
	if a == nil {
		t.Fatal("expected the prior assignment to be returned")
	}
	if a.New {
		t.Error("prior assignment must not be flagged as new")
	}
	if a.VariantID != "treatment" {
		t.Errorf("expected treatment, got %s", a.VariantID)
	}
	if !a.AssignedAt.Equal(assignedAt) {
		t.Errorf("expected original assignment time, got %v", a.AssignedAt)
	}
	if a.Payload["cta"] != "big" {
		t.Errorf("expected variant payload to be carried, got %v", a.Payload)
	}
}

func TestEvaluate_PriorWithRemovedVariantSkips(t *testing.T) {
	exp := activeExperiment("hero", 100)

	priors := engine.PriorFunc(func(visitorID, experimentName string) *store.Assignment {
		return &store.Assignment{VariantID: "deleted-variant"}
	})

	if a := engine.Evaluate("visitor-1", engine.VisitorContext{}, []*store.Experiment{exp}, priors); a != nil {
		t.Errorf("expected skip for prior with unknown variant, got %+v", a)
	}
}

func TestEvaluate_TargetingSkips(t *testing.T) {
	exp := activeExperiment("hero", 100)
	exp.Audience = &store.TargetAudience{Countries: []string{"US"}}

	a := engine.Evaluate("visitor-1", engine.VisitorContext{Country: "DE"}, []*store.Experiment{exp}, nil)
	if a != nil {
		t.Errorf("expected no assignment for non-matching visitor, got %+v", a)
	}

	a = engine.Evaluate("visitor-1", engine.VisitorContext{Country: "US"}, []*store.Experiment{exp}, nil)
	if a == nil {
		t.Error("expected assignment for matching visitor")
	}
}

func TestEvaluate_TrafficGate(t *testing.T) {
	exp := activeExperiment("hero", 50)

	in := visitorWithGateBucket(t, "hero", func(b int) bool { return b < 50 })
	out := visitorWithGateBucket(t, "hero", func(b int) bool { return b >= 50 })

	if a := engine.Evaluate(in, engine.VisitorContext{}, []*store.Experiment{exp}, nil); a == nil {
		t.Error("expected in-gate visitor to be assigned")
	}
	if a := engine.Evaluate(out, engine.VisitorContext{}, []*store.Experiment{exp}, nil); a != nil {
		t.Errorf("expected out-of-gate visitor to be skipped, got %+v", a)
	}
}

func TestEvaluate_ZeroTrafficAssignsNobody(t *testing.T) {
	exp := activeExperiment("hero", 0)

	for i := 0; i < 100; i++ {
		id := fmt.Sprintf("visitor-%d", i)
		if a := engine.Evaluate(id, engine.VisitorContext{}, []*store.Experiment{exp}, nil); a != nil {
			t.Fatalf("0%% traffic assigned %s", id)
		}
	}
}

func TestEvaluate_UnallocatedRemainderSkips(t *testing.T) {
	exp := activeExperiment("hero", 100)
	exp.Variants[0].TrafficPercentage = 0
	exp.Variants[1].TrafficPercentage = 0

	if a := engine.Evaluate("visitor-1", engine.VisitorContext{}, []*store.Experiment{exp}, nil); a != nil {
		t.Errorf("expected no assignment when all buckets are unallocated, got %+v", a)
	}
}

func TestEvaluate_FirstMatchWins(t *testing.T) {
	newest := activeExperiment("newest", 100)
	older := activeExperiment("older", 100)

	a := engine.Evaluate("visitor-1", engine.VisitorContext{}, []*store.Experiment{newest, older}, nil)
	if a == nil || a.ExperimentName != "newest" {
		t.Errorf("expected the first experiment in order to win, got %+v", a)
	}
}

func TestEvaluate_NoExperiments(t *testing.T) {
	if a := engine.Evaluate("visitor-1", engine.VisitorContext{}, nil, nil); a != nil {
		t.Errorf("expected nil for empty catalog, got %+v", a)
	}
}
