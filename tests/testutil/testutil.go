package testutil

import (
	"context"
	"testing"

	"github.com/splitkit/splitkit/internal/store"
)

// SetupTestStore creates a test database and returns the store with a cleanup function.
// Uses t.TempDir() for automatic cleanup on test completion.
func SetupTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := tmpDir + "/test.db"

	s, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})

	return s
}

// CreateExperiment inserts a simple two-variant experiment and fails the
// test on error.
func CreateExperiment(t *testing.T, s *store.SQLiteStore, name string, controlWeight, treatmentWeight int) *store.Experiment {
	t.Helper()

	exp, err := s.CreateExperiment(context.Background(), &store.Experiment{
		Name:              name,
		Status:            store.StatusActive,
		TrafficPercentage: 100,
		Variants: []store.Variant{
			{ID: "control", Name: "Control", IsControl: true, TrafficPercentage: controlWeight},
			{ID: "treatment", Name: "Treatment", TrafficPercentage: treatmentWeight},
		},
	})
	if err != nil {
		t.Fatalf("failed to create experiment %s: %v", name, err)
	}
	return exp
}
