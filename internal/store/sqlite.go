package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS experiments (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT UNIQUE NOT NULL,
    status TEXT NOT NULL DEFAULT 'draft',
    traffic_percentage INTEGER NOT NULL DEFAULT 100,
    start_at INTEGER,
    end_at INTEGER,
    audience TEXT,
    variants TEXT NOT NULL,
    winner_variant TEXT,
    created_at INTEGER NOT NULL DEFAULT (unixepoch()),
    updated_at INTEGER NOT NULL DEFAULT (unixepoch())
);

CREATE INDEX IF NOT EXISTS idx_experiments_name ON experiments(name);
CREATE INDEX IF NOT EXISTS idx_experiments_status ON experiments(status);

CREATE TABLE IF NOT EXISTS assignments (
    visitor_id TEXT NOT NULL,
    experiment_name TEXT NOT NULL,
    variant_id TEXT NOT NULL,
    assigned_at INTEGER NOT NULL DEFAULT (unixepoch()),
    PRIMARY KEY (visitor_id, experiment_name),
    FOREIGN KEY (experiment_name) REFERENCES experiments(name)
);

CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    experiment_name TEXT NOT NULL,
    variant_id TEXT NOT NULL,
    event_type TEXT NOT NULL,
    visitor_id TEXT NOT NULL,
    element TEXT NOT NULL DEFAULT '',
    data TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL DEFAULT (unixepoch()),
    FOREIGN KEY (experiment_name) REFERENCES experiments(name)
);

CREATE INDEX IF NOT EXISTS idx_events_experiment ON events(experiment_name);
CREATE INDEX IF NOT EXISTS idx_events_experiment_type ON events(experiment_name, event_type);
CREATE UNIQUE INDEX IF NOT EXISTS idx_events_assignment_dedup
    ON events(experiment_name, visitor_id) WHERE event_type = 'assignment';

CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Apply schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// validateExperiment enforces catalog invariants before anything is written:
// exactly one control variant, weights in range, variant shares summing to
// at most 100 (the remainder stays unallocated).
func validateExperiment(exp *Experiment) error {
	if exp.Name == "" {
		return fmt.Errorf("experiment name is required")
	}
	if exp.TrafficPercentage < 0 || exp.TrafficPercentage > 100 {
		return fmt.Errorf("traffic percentage must be between 0 and 100")
	}
	if len(exp.Variants) < 2 {
		return fmt.Errorf("need at least 2 variants")
	}

	controls := 0
	totalWeight := 0
	seen := make(map[string]bool)
	for _, v := range exp.Variants {
		if v.ID == "" {
			return fmt.Errorf("variant id cannot be empty")
		}
		if seen[v.ID] {
			return fmt.Errorf("duplicate variant id: %s", v.ID)
		}
		seen[v.ID] = true
		if v.TrafficPercentage < 0 || v.TrafficPercentage > 100 {
			return fmt.Errorf("variant %s: traffic percentage must be between 0 and 100", v.ID)
		}
		totalWeight += v.TrafficPercentage
		if v.IsControl {
			controls++
		}
	}
	if controls != 1 {
		return fmt.Errorf("exactly one control variant required, got %d", controls)
	}
	if totalWeight > 100 {
		return fmt.Errorf("variant traffic percentages sum to %d, must be at most 100", totalWeight)
	}
	return nil
}

func (s *SQLiteStore) CreateExperiment(ctx context.Context, exp *Experiment) (*Experiment, error) {
	if err := validateExperiment(exp); err != nil {
		return nil, err
	}

	variantsJSON, err := json.Marshal(exp.Variants)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal variants: %w", err)
	}

	var audienceJSON []byte
	if !exp.Audience.Empty() {
		audienceJSON, err = json.Marshal(exp.Audience)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal audience: %w", err)
		}
	}

	status := exp.Status
	if status == "" {
		status = StatusActive
	}

	now := time.Now().Unix()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO experiments (name, status, traffic_percentage, start_at, end_at, audience, variants, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		exp.Name, string(status), exp.TrafficPercentage,
		nullableUnix(exp.StartAt), nullableUnix(exp.EndAt),
		nullableString(audienceJSON), string(variantsJSON), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert experiment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	created := *exp
	created.ID = id
	created.Status = status
	created.CreatedAt = time.Unix(now, 0)
	created.UpdatedAt = time.Unix(now, 0)
	return &created, nil
}

const experimentColumns = `id, name, status, traffic_percentage, start_at, end_at, audience, variants, winner_variant, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExperiment(row rowScanner) (*Experiment, error) {
	var exp Experiment
	var startAt, endAt sql.NullInt64
	var audienceJSON, winnerVariant sql.NullString
	var variantsJSON string
	var createdAt, updatedAt int64

	err := row.Scan(&exp.ID, &exp.Name, &exp.Status, &exp.TrafficPercentage,
		&startAt, &endAt, &audienceJSON, &variantsJSON, &winnerVariant, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(variantsJSON), &exp.Variants); err != nil {
		return nil, fmt.Errorf("failed to unmarshal variants: %w", err)
	}
	if audienceJSON.Valid && audienceJSON.String != "" {
		exp.Audience = &TargetAudience{}
		if err := json.Unmarshal([]byte(audienceJSON.String), exp.Audience); err != nil {
			return nil, fmt.Errorf("failed to unmarshal audience: %w", err)
		}
	}
	if startAt.Valid {
		t := time.Unix(startAt.Int64, 0)
		exp.StartAt = &t
	}
	if endAt.Valid {
		t := time.Unix(endAt.Int64, 0)
		exp.EndAt = &t
	}
	if winnerVariant.Valid && winnerVariant.String != "" {
		w := winnerVariant.String
		exp.WinnerVariant = &w
	}
	exp.CreatedAt = time.Unix(createdAt, 0)
	exp.UpdatedAt = time.Unix(updatedAt, 0)
	return &exp, nil
}

func (s *SQLiteStore) GetExperiment(ctx context.Context, name string) (*Experiment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+experimentColumns+` FROM experiments WHERE name = ?`, name)

	exp, err := scanExperiment(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get experiment: %w", err)
	}
	return exp, nil
}

func (s *SQLiteStore) ListExperiments(ctx context.Context) ([]*Experiment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+experimentColumns+` FROM experiments ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list experiments: %w", err)
	}
	defer rows.Close()

	var experiments []*Experiment
	for rows.Next() {
		exp, err := scanExperiment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan experiment: %w", err)
		}
		experiments = append(experiments, exp)
	}
	return experiments, rows.Err()
}

// ActiveExperiments returns experiments that are active and currently
// inside their start/end window, newest first. This is the catalog
// snapshot the assignment engine evaluates.
func (s *SQLiteStore) ActiveExperiments(ctx context.Context, now time.Time) ([]*Experiment, error) {
	ts := now.Unix()
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+experimentColumns+` FROM experiments
		 WHERE status = 'active'
		   AND (start_at IS NULL OR start_at <= ?)
		   AND (end_at IS NULL OR end_at >= ?)
		 ORDER BY created_at DESC, id DESC`, ts, ts)
	if err != nil {
		return nil, fmt.Errorf("failed to query active experiments: %w", err)
	}
	defer rows.Close()

	var experiments []*Experiment
	for rows.Next() {
		exp, err := scanExperiment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan experiment: %w", err)
		}
		experiments = append(experiments, exp)
	}
	return experiments, rows.Err()
}

func (s *SQLiteStore) SetStatus(ctx context.Context, name string, status ExperimentStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE experiments SET status = ?, updated_at = ? WHERE name = ?`,
		string(status), time.Now().Unix(), name)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	return checkAffected(result)
}

// DeclareWinner records the winning variant and completes the experiment.
func (s *SQLiteStore) DeclareWinner(ctx context.Context, name string, variantID string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE experiments SET status = 'completed', winner_variant = ?, updated_at = ? WHERE name = ?`,
		variantID, time.Now().Unix(), name)
	if err != nil {
		return fmt.Errorf("failed to declare winner: %w", err)
	}
	return checkAffected(result)
}

func (s *SQLiteStore) DeleteExperiment(ctx context.Context, name string) error {
	// First delete related events and assignments
	if _, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE experiment_name = ?`, name); err != nil {
		return fmt.Errorf("failed to delete events: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM assignments WHERE experiment_name = ?`, name); err != nil {
		return fmt.Errorf("failed to delete assignments: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM experiments WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete experiment: %w", err)
	}
	return checkAffected(result)
}

func (s *SQLiteStore) GetAssignment(ctx context.Context, visitorID, experimentName string) (*Assignment, error) {
	var a Assignment
	var assignedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT visitor_id, experiment_name, variant_id, assigned_at
		 FROM assignments WHERE visitor_id = ? AND experiment_name = ?`,
		visitorID, experimentName,
	).Scan(&a.VisitorID, &a.ExperimentName, &a.VariantID, &assignedAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	a.AssignedAt = time.Unix(assignedAt, 0)
	return &a, nil
}

// SaveAssignment persists a new assignment. An existing assignment for the
// same visitor and experiment is kept untouched: the first write wins.
func (s *SQLiteStore) SaveAssignment(ctx context.Context, a *Assignment) error {
	assignedAt := a.AssignedAt
	if assignedAt.IsZero() {
		assignedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO assignments (visitor_id, experiment_name, variant_id, assigned_at)
		 VALUES (?, ?, ?, ?)`,
		a.VisitorID, a.ExperimentName, a.VariantID, assignedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save assignment: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RecordEvent(ctx context.Context, e *Event) error {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	// INSERT OR IGNORE deduplicates assignment events via the partial
	// unique index; conversions and clicks may repeat.
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO events (experiment_name, variant_id, event_type, visitor_id, element, data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ExperimentName, e.VariantID, e.EventType, e.VisitorID, e.Element, e.Data, createdAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetEvents(ctx context.Context, experimentName string) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, experiment_name, variant_id, event_type, visitor_id, element, data, created_at
		 FROM events WHERE experiment_name = ? ORDER BY created_at DESC, id DESC`,
		experimentName)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var e Event
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.ExperimentName, &e.VariantID, &e.EventType, &e.VisitorID, &e.Element, &e.Data, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.CreatedAt = time.Unix(createdAt, 0)
		events = append(events, &e)
	}
	return events, rows.Err()
}

// GetVariantCounts aggregates distinct visitors and converters per variant,
// with a per-day breakdown for timelines. Every variant defined on the
// experiment is present in the result, zero-valued when it has no events,
// in the experiment's defined order.
func (s *SQLiteStore) GetVariantCounts(ctx context.Context, experimentName string) ([]VariantCounts, error) {
	exp, err := s.GetExperiment(ctx, experimentName)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			variant_id,
			COUNT(DISTINCT CASE WHEN event_type = 'assignment' THEN visitor_id END) AS visitors,
			COUNT(DISTINCT CASE WHEN event_type = 'conversion' THEN visitor_id END) AS conversions
		FROM events
		WHERE experiment_name = ?
		GROUP BY variant_id
	`, experimentName)
	if err != nil {
		return nil, fmt.Errorf("failed to get variant counts: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]VariantCounts)
	for rows.Next() {
		var c VariantCounts
		if err := rows.Scan(&c.VariantID, &c.Visitors, &c.Conversions); err != nil {
			return nil, fmt.Errorf("failed to scan counts: %w", err)
		}
		totals[c.VariantID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	daily, err := s.dailyCounts(ctx, experimentName)
	if err != nil {
		return nil, err
	}

	counts := make([]VariantCounts, len(exp.Variants))
	for i, v := range exp.Variants {
		c := totals[v.ID]
		c.VariantID = v.ID
		c.IsControl = v.IsControl
		c.Daily = daily[v.ID]
		counts[i] = c
	}
	return counts, nil
}

func (s *SQLiteStore) dailyCounts(ctx context.Context, experimentName string) (map[string][]DailyCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			variant_id,
			date(created_at, 'unixepoch') AS day,
			COUNT(DISTINCT CASE WHEN event_type = 'assignment' THEN visitor_id END) AS visitors,
			COUNT(DISTINCT CASE WHEN event_type = 'conversion' THEN visitor_id END) AS conversions
		FROM events
		WHERE experiment_name = ?
		GROUP BY variant_id, day
		ORDER BY day
	`, experimentName)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily counts: %w", err)
	}
	defer rows.Close()

	daily := make(map[string][]DailyCount)
	for rows.Next() {
		var variantID, day string
		var c DailyCount
		if err := rows.Scan(&variantID, &day, &c.Visitors, &c.Conversions); err != nil {
			return nil, fmt.Errorf("failed to scan daily counts: %w", err)
		}
		date, err := time.ParseInLocation("2006-01-02", day, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("failed to parse day %q: %w", day, err)
		}
		c.Date = date
		daily[variantID] = append(daily[variantID], c)
	}
	return daily, rows.Err()
}

func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting: %w", err)
	}
	return value, nil
}

func (s *SQLiteStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set setting: %w", err)
	}
	return nil
}

// DB returns the underlying database connection for health checks
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func checkAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func nullableString(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

func nullableUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}
