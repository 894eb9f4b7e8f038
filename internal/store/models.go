package store

import "time"

type ExperimentStatus string

const (
	StatusDraft     ExperimentStatus = "draft"
	StatusActive    ExperimentStatus = "active"
	StatusPaused    ExperimentStatus = "paused"
	StatusCompleted ExperimentStatus = "completed"
	StatusArchived  ExperimentStatus = "archived"
)

// Experiment is a single A/B experiment. Name is the stable external
// identifier used in hash keys, URLs and event rows.
type Experiment struct {
	ID                int64
	Name              string
	Status            ExperimentStatus
	TrafficPercentage int        // 0-100, share of all visitors eligible
	StartAt           *time.Time // optional window
	EndAt             *time.Time
	Audience          *TargetAudience // Decoded from JSON, nil = everyone
	Variants          []Variant       // Decoded from JSON
	WinnerVariant     *string         // variant ID, set on completion
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Variant is one arm of an experiment. TrafficPercentage is its share of
// the experiment's allocated traffic; shares may sum to less than 100,
// the remainder is unallocated.
type Variant struct {
	ID                string         `json:"id" yaml:"id"`
	Name              string         `json:"name" yaml:"name"`
	IsControl         bool           `json:"is_control" yaml:"is_control"`
	TrafficPercentage int            `json:"traffic_percentage" yaml:"traffic_percentage"`
	Payload           map[string]any `json:"payload,omitempty" yaml:"payload,omitempty"`
}

// TargetAudience restricts which visitors an experiment applies to.
// An empty axis means no restriction on that axis.
type TargetAudience struct {
	Countries        []string `json:"countries,omitempty" yaml:"countries,omitempty"`
	Devices          []string `json:"devices,omitempty" yaml:"devices,omitempty"`
	Languages        []string `json:"languages,omitempty" yaml:"languages,omitempty"`
	ReferrerContains []string `json:"referrer_contains,omitempty" yaml:"referrer_contains,omitempty"`
	UTMSources       []string `json:"utm_sources,omitempty" yaml:"utm_sources,omitempty"`
}

// Empty reports whether no axis is populated, i.e. the audience matches
// every visitor.
func (a *TargetAudience) Empty() bool {
	if a == nil {
		return true
	}
	return len(a.Countries) == 0 && len(a.Devices) == 0 && len(a.Languages) == 0 &&
		len(a.ReferrerContains) == 0 && len(a.UTMSources) == 0
}

// Variant returns the variant with the given ID, or nil.
func (e *Experiment) Variant(id string) *Variant {
	for i := range e.Variants {
		if e.Variants[i].ID == id {
			return &e.Variants[i]
		}
	}
	return nil
}

// Control returns the control variant, or nil if none is flagged.
func (e *Experiment) Control() *Variant {
	for i := range e.Variants {
		if e.Variants[i].IsControl {
			return &e.Variants[i]
		}
	}
	return nil
}

// Assignment records which variant a visitor was bucketed into. Once
// written it is authoritative: the visitor keeps the variant for the
// assignment's lifetime regardless of later traffic changes.
type Assignment struct {
	VisitorID      string
	ExperimentName string
	VariantID      string
	AssignedAt     time.Time
}

const (
	EventAssignment = "assignment"
	EventConversion = "conversion"
	EventClick      = "click"
)

type Event struct {
	ID             int64
	ExperimentName string
	VariantID      string
	EventType      string // "assignment", "conversion" or "click"
	VisitorID      string
	Element        string // click target, empty otherwise
	Data           string // optional JSON payload
	CreatedAt      time.Time
}

// VariantCounts aggregates a variant's recorded events for analysis.
type VariantCounts struct {
	VariantID   string
	IsControl   bool
	Visitors    int
	Conversions int
	Daily       []DailyCount
}

type DailyCount struct {
	Date        time.Time // midnight UTC
	Visitors    int
	Conversions int
}
