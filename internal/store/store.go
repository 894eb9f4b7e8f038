package store

import (
	"context"
	"time"
)

// Store defines the interface for experiment storage operations
type Store interface {
	// Experiment operations
	CreateExperiment(ctx context.Context, exp *Experiment) (*Experiment, error)
	GetExperiment(ctx context.Context, name string) (*Experiment, error)
	ListExperiments(ctx context.Context) ([]*Experiment, error)
	ActiveExperiments(ctx context.Context, now time.Time) ([]*Experiment, error)
	SetStatus(ctx context.Context, name string, status ExperimentStatus) error
	DeclareWinner(ctx context.Context, name string, variantID string) error
	DeleteExperiment(ctx context.Context, name string) error

	// Assignment operations
	GetAssignment(ctx context.Context, visitorID, experimentName string) (*Assignment, error)
	SaveAssignment(ctx context.Context, a *Assignment) error

	// Event operations
	RecordEvent(ctx context.Context, e *Event) error
	GetEvents(ctx context.Context, experimentName string) ([]*Event, error)
	GetVariantCounts(ctx context.Context, experimentName string) ([]VariantCounts, error)

	// Lifecycle
	Close() error
}
