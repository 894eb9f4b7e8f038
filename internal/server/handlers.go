package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/splitkit/splitkit/internal/engine"
	"github.com/splitkit/splitkit/internal/stats"
	"github.com/splitkit/splitkit/internal/store"
)

type HealthResponse struct {
	Status           string `json:"status"`
	ExperimentsCount int    `json:"experiments_count"`
	DBSizeBytes      int64  `json:"db_size_bytes"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	experiments, err := s.store.ListExperiments(ctx)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Get database size
	var dbSize int64
	db := s.store.DB()
	row := db.QueryRow("SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()")
	if err := row.Scan(&dbSize); err != nil {
		if info, statErr := os.Stat("./splitkit.db"); statErr == nil {
			dbSize = info.Size()
		}
	}

	response := HealthResponse{
		Status:           "ok",
		ExperimentsCount: len(experiments),
		DBSizeBytes:      dbSize,
		UptimeSeconds:    int64(time.Since(s.startTime).Seconds()),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// EvaluateRequest carries a visitor and its context bag. VisitorID may be
// empty, in which case the server mints one and echoes it back so the
// client can persist it.
type EvaluateRequest struct {
	VisitorID string                `json:"visitor_id"`
	Context   engine.VisitorContext `json:"context"`
}

type EvaluateResponse struct {
	VisitorID  string             `json:"visitor_id"`
	Assignment *engine.Assignment `json:"assignment"`
}

// handleEvaluate runs the assignment engine over the active catalog. On a
// new assignment it persists it and records the assignment event exactly
// once; a returned prior assignment records nothing. No matching
// experiment is a healthy 200 with a null assignment, never an error.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	setCORS(w, "POST, OPTIONS")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if req.VisitorID == "" {
		req.VisitorID = uuid.NewString()
	}

	ctx := r.Context()

	experiments, err := s.store.ActiveExperiments(ctx, time.Now())
	if err != nil {
		http.Error(w, "Failed to load experiments", http.StatusInternalServerError)
		return
	}

	assignment := engine.Evaluate(req.VisitorID, req.Context, experiments, s.priorSource(ctx))

	if assignment != nil && assignment.New {
		if err := s.persistAssignment(ctx, req, assignment); err != nil {
			http.Error(w, "Failed to save assignment", http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(EvaluateResponse{
		VisitorID:  req.VisitorID,
		Assignment: assignment,
	})
}

// priorSource adapts the assignment table to the engine's lookup shape.
func (s *Server) priorSource(ctx context.Context) engine.PriorSource {
	return engine.PriorFunc(func(visitorID, experimentName string) *store.Assignment {
		a, err := s.store.GetAssignment(ctx, visitorID, experimentName)
		if err != nil {
			return nil
		}
		return a
	})
}

func (s *Server) persistAssignment(ctx context.Context, req EvaluateRequest, a *engine.Assignment) error {
	err := s.store.SaveAssignment(ctx, &store.Assignment{
		VisitorID:      req.VisitorID,
		ExperimentName: a.ExperimentName,
		VariantID:      a.VariantID,
		AssignedAt:     a.AssignedAt,
	})
	if err != nil {
		return err
	}

	data, _ := json.Marshal(req.Context)
	return s.store.RecordEvent(ctx, &store.Event{
		ExperimentName: a.ExperimentName,
		VariantID:      a.VariantID,
		EventType:      store.EventAssignment,
		VisitorID:      req.VisitorID,
		Data:           string(data),
	})
}

// BeaconRequest represents an incoming conversion or click beacon
type BeaconRequest struct {
	Experiment string          `json:"exp"`
	VariantID  string          `json:"v"`
	EventType  string          `json:"e"`
	VisitorID  string          `json:"vid"`
	Element    string          `json:"el,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

func (s *Server) handleBeacon(w http.ResponseWriter, r *http.Request) {
	setCORS(w, "POST, OPTIONS")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req BeaconRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if req.Experiment == "" || req.VisitorID == "" {
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}
	if req.EventType != store.EventConversion && req.EventType != store.EventClick {
		http.Error(w, "Invalid event type", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	exp, err := s.store.GetExperiment(ctx, req.Experiment)
	if err != nil {
		http.Error(w, "Experiment not found", http.StatusBadRequest)
		return
	}
	if exp.Variant(req.VariantID) == nil {
		http.Error(w, "Invalid variant", http.StatusBadRequest)
		return
	}

	event := &store.Event{
		ExperimentName: req.Experiment,
		VariantID:      req.VariantID,
		EventType:      req.EventType,
		VisitorID:      req.VisitorID,
		Element:        req.Element,
		Data:           string(req.Data),
	}
	if err := s.store.RecordEvent(ctx, event); err != nil {
		http.Error(w, "Failed to record event", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type experimentListItem struct {
	Name              string                 `json:"name"`
	Status            store.ExperimentStatus `json:"status"`
	TrafficPercentage int                    `json:"traffic_percentage"`
	Variants          int                    `json:"variants"`
	TotalVisitors     int                    `json:"total_visitors"`
	TotalConversions  int                    `json:"total_conversions"`
	CreatedAt         string                 `json:"created_at"`
}

func (s *Server) handleExperimentList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	experiments, err := s.store.ListExperiments(ctx)
	if err != nil {
		http.Error(w, "Failed to list experiments", http.StatusInternalServerError)
		return
	}

	items := make([]experimentListItem, 0, len(experiments))
	for _, exp := range experiments {
		counts, err := s.store.GetVariantCounts(ctx, exp.Name)
		if err != nil {
			http.Error(w, "Failed to load counts", http.StatusInternalServerError)
			return
		}
		item := experimentListItem{
			Name:              exp.Name,
			Status:            exp.Status,
			TrafficPercentage: exp.TrafficPercentage,
			Variants:          len(exp.Variants),
			CreatedAt:         exp.CreatedAt.Format("2006-01-02"),
		}
		for _, c := range counts {
			item.TotalVisitors += c.Visitors
			item.TotalConversions += c.Conversions
		}
		items = append(items, item)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(items)
}

// handleExperimentAPI routes /api/experiments/<name>/{results|timeline}.
func (s *Server) handleExperimentAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/experiments/")
	name, action, _ := strings.Cut(rest, "/")
	if name == "" {
		http.Error(w, "Experiment name required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	counts, err := s.store.GetVariantCounts(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Experiment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to load counts", http.StatusInternalServerError)
		return
	}

	switch action {
	case "results":
		// A nil result means no usable control configuration; report it
		// as "nothing to show" rather than an error.
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(struct {
			Experiment string                   `json:"experiment"`
			Results    *stats.ExperimentResults `json:"results"`
		}{name, stats.Compute(counts)})

	case "timeline":
		days := 30
		if d := r.URL.Query().Get("days"); d != "" {
			parsed, err := strconv.Atoi(d)
			if err != nil || parsed < 0 {
				http.Error(w, "Invalid days parameter", http.StatusBadRequest)
				return
			}
			days = parsed
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats.Timeline(counts, days))

	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

func setCORS(w http.ResponseWriter, methods string) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", methods)
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}
