package engine_test

import (
	"testing"

	"github.com/splitkit/splitkit/internal/engine"
	"github.com/splitkit/splitkit/internal/store"
)

func TestAllocateVariant_FullCoverage(t *testing.T) {
	variants := []store.Variant{
		{ID: "a", TrafficPercentage: 50},
		{ID: "b", TrafficPercentage: 30},
		{ID: "c", TrafficPercentage: 20},
	}

	// Every bucket 0-99 must map to exactly one variant, no gaps.
	counts := map[string]int{}
	for bucket := 0; bucket < 100; bucket++ {
		v := engine.AllocateVariant(variants, bucket)
		if v == nil {
			t.Fatalf("bucket %d unallocated with weights summing to 100", bucket)
		}
		counts[v.ID]++
	}

	if counts["a"] != 50 || counts["b"] != 30 || counts["c"] != 20 {
		t.Errorf("allocation does not track weights: %v", counts)
	}
}

func TestAllocateVariant_Boundaries(t *testing.T) {
	variants := []store.Variant{
		{ID: "a", TrafficPercentage: 50},
		{ID: "b", TrafficPercentage: 50},
	}

	cases := []struct {
		bucket int
		want   string
	}{
		{0, "a"},
		{49, "a"},
		{50, "b"},
		{99, "b"},
	}
	for _, tc := range cases {
		v := engine.AllocateVariant(variants, tc.bucket)
		if v == nil || v.ID != tc.want {
			t.Errorf("bucket %d: expected %s, got %v", tc.bucket, tc.want, v)
		}
	}
}

func TestAllocateVariant_UnallocatedRemainder(t *testing.T) {
	variants := []store.Variant{
		{ID: "a", TrafficPercentage: 40},
		{ID: "b", TrafficPercentage: 40},
	}

	if v := engine.AllocateVariant(variants, 79); v == nil || v.ID != "b" {
		t.Errorf("bucket 79: expected b, got %v", v)
	}
	for bucket := 80; bucket < 100; bucket++ {
		if v := engine.AllocateVariant(variants, bucket); v != nil {
			t.Errorf("bucket %d: expected unallocated, got %s", bucket, v.ID)
		}
	}
}

func TestAllocateVariant_NoVariants(t *testing.T) {
	if v := engine.AllocateVariant(nil, 0); v != nil {
		t.Errorf("expected nil for empty variant list, got %v", v)
	}
}
