package engine

import "github.com/splitkit/splitkit/internal/store"

// AllocateVariant resolves a bucket to a variant by walking the variants
// in their defined order and accumulating traffic percentages: the first
// variant whose cumulative upper bound exceeds the bucket wins. A bucket
// beyond the sum of all shares falls into the unallocated remainder and
// returns nil — the experiment simply does not apply to that visitor.
func AllocateVariant(variants []store.Variant, bucket int) *store.Variant {
	cumulative := 0
	for i := range variants {
		cumulative += variants[i].TrafficPercentage
		if bucket < cumulative {
			return &variants[i]
		}
	}
	return nil
}
