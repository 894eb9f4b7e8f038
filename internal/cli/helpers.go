package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/splitkit/splitkit/internal/store"
)

// withStore opens the database, executes the function, and handles cleanup.
func withStore(fn func(*store.SQLiteStore) error) error {
	s, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer s.Close()

	return fn(s)
}

// parseVariants parses a comma-separated "id:weight" list, e.g.
// "control:50,treatment:50". The variant named by control gets the
// control flag; variant names default to the id.
func parseVariants(spec, control string) ([]store.Variant, error) {
	parts := strings.Split(spec, ",")
	variants := make([]store.Variant, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		id, weightStr, found := strings.Cut(part, ":")
		if !found || id == "" {
			return nil, fmt.Errorf("invalid variant %q, expected id:weight", part)
		}
		weight, err := strconv.Atoi(weightStr)
		if err != nil {
			return nil, fmt.Errorf("invalid weight in %q: %w", part, err)
		}
		variants = append(variants, store.Variant{
			ID:                id,
			Name:              id,
			IsControl:         id == control,
			TrafficPercentage: weight,
		})
	}
	return variants, nil
}

func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%d,%03d", n/1000, n%1000)
	}
	return fmt.Sprintf("%d,%03d,%03d", n/1000000, (n/1000)%1000, n%1000)
}
