package engine_test

import (
	"fmt"
	"testing"

	"github.com/splitkit/splitkit/internal/engine"
)

func TestBucketFor_Deterministic(t *testing.T) {
	key := "visitor-123-hero"
	first := engine.BucketFor(key)

	for i := 0; i < 100; i++ {
		if got := engine.BucketFor(key); got != first {
			t.Fatalf("bucket changed between calls: %d vs %d", first, got)
		}
	}
}

func TestBucketFor_Range(t *testing.T) {
	for i := 0; i < 10000; i++ {
		b := engine.BucketFor(fmt.Sprintf("visitor-%d-exp", i))
		if b < 0 || b >= 100 {
			t.Fatalf("bucket %d out of [0, 100)", b)
		}
	}
}

func TestBucketFor_Uniformity(t *testing.T) {
	// 100k visitors against one experiment; each bucket expects ~1000.
	// The tolerance band is wide enough that a healthy hash never trips it.
	const visitors = 100000
	counts := make([]int, 100)
	for i := 0; i < visitors; i++ {
		counts[engine.BucketFor(fmt.Sprintf("visitor-%d-hero", i))]++
	}

	expected := visitors / 100
	for bucket, n := range counts {
		if n < expected*7/10 || n > expected*13/10 {
			t.Errorf("bucket %d has %d visitors, expected ~%d", bucket, n, expected)
		}
	}
}

func TestBucketFor_DistinctKeysUncorrelated(t *testing.T) {
	// The gate key and the variant key must not always land in the same
	// bucket, otherwise variant selection is correlated with the gate.
	same := 0
	const n = 1000
	for i := 0; i < n; i++ {
		visitor := fmt.Sprintf("visitor-%d", i)
		gate := engine.BucketFor(visitor + "-hero")
		variant := engine.BucketFor(visitor + "-hero-variant")
		if gate == variant {
			same++
		}
	}
	// Independent hashes coincide ~1% of the time.
	if same > n/10 {
		t.Errorf("gate and variant buckets coincide for %d/%d visitors", same, n)
	}
}
