package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"task-run-history/internal/eventlog"
	"task-run-history/internal/report"
	"task-run-history/internal/storage"
)

// runStore is the archive surface the handlers read from.
type runStore interface {
	GetRun(ctx context.Context, id string) (*storage.ArchivedRun, error)
	ListRuns(ctx context.Context, filter storage.RunFilter) ([]storage.ArchivedRun, error)
}

type Handlers struct {
	svc          *report.Service
	store        runStore
	maxRunsLimit int
}

// NewHandlers wires the handlers. store may be nil when no database is configured.
func NewHandlers(svc *report.Service, store runStore, maxRunsLimit int) *Handlers {
	return &Handlers{
		svc:          svc,
		store:        store,
		maxRunsLimit: maxRunsLimit,
	}
}

// HandleCorrelate reconstructs runs from a posted event batch.
func (h *Handlers) HandleCorrelate(w http.ResponseWriter, r *http.Request) {
	taskName := r.PathValue("name")
	if strings.TrimSpace(taskName) == "" {
		writeError(w, "task name required", "INVALID_REQUEST", http.StatusBadRequest, r)
		return
	}

	var req CorrelateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid JSON: "+err.Error(), "INVALID_REQUEST", http.StatusBadRequest, r)
		return
	}
	if err := req.Validate(h.maxRunsLimit); err != nil {
		writeError(w, err.Error(), "VALIDATION_ERROR", http.StatusBadRequest, r)
		return
	}

	rep, err := h.svc.Correlate(r.Context(), taskName, req.Events, req.MaxRuns, req.Strict)
	if err != nil {
		log.Warn().Err(err).Str("task", taskName).Str("request_id", RequestIDFromContext(r.Context())).Msg("correlation abandoned")
		writeError(w, "request canceled", "CANCELED", http.StatusServiceUnavailable, r)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// HandleTaskRuns reconstructs runs from the configured event source.
func (h *Handlers) HandleTaskRuns(w http.ResponseWriter, r *http.Request) {
	taskName := r.PathValue("name")
	if strings.TrimSpace(taskName) == "" {
		writeError(w, "task name required", "INVALID_REQUEST", http.StatusBadRequest, r)
		return
	}

	maxRuns, err := h.parseMaxRuns(r)
	if err != nil {
		writeError(w, err.Error(), "VALIDATION_ERROR", http.StatusBadRequest, r)
		return
	}

	rep, err := h.svc.TaskRuns(r.Context(), taskName, maxRuns)
	switch {
	case errors.Is(err, report.ErrNoSource):
		writeError(w, "event source not configured", "SOURCE_UNAVAILABLE", http.StatusServiceUnavailable, r)
		return
	case errors.Is(err, eventlog.ErrTaskNotFound):
		writeError(w, "no events for task", "NOT_FOUND", http.StatusNotFound, r)
		return
	case err != nil:
		log.Error().Err(err).Str("task", taskName).Str("request_id", RequestIDFromContext(r.Context())).Msg("task history query failed")
		writeError(w, "history query failed", "INTERNAL", http.StatusInternalServerError, r)
		return
	}

	writeJSON(w, http.StatusOK, rep)
}

// HandleTranslate decodes a status value given as decimal or 0x-hex text.
// Unrecognised values are still answered with an Unknown translation.
func (h *Handlers) HandleTranslate(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if code == "" {
		writeError(w, "result code required", "INVALID_REQUEST", http.StatusBadRequest, r)
		return
	}

	writeJSON(w, http.StatusOK, h.svc.Translate(r.Context(), code))
}

func (h *Handlers) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, "run ID must be a UUID", "INVALID_REQUEST", http.StatusBadRequest, r)
		return
	}

	if h.store == nil {
		writeError(w, "database not configured", "DB_UNAVAILABLE", http.StatusServiceUnavailable, r)
		return
	}

	run, err := h.store.GetRun(r.Context(), id)
	if errors.Is(err, storage.ErrRunNotFound) {
		writeError(w, "run not found", "NOT_FOUND", http.StatusNotFound, r)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("run_id", id).Msg("archive lookup failed")
		writeError(w, "query failed", "INTERNAL", http.StatusInternalServerError, r)
		return
	}

	writeJSON(w, http.StatusOK, run)
}

func (h *Handlers) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, "database not configured", "DB_UNAVAILABLE", http.StatusServiceUnavailable, r)
		return
	}

	filter, err := parseRunFilter(r)
	if err != nil {
		writeError(w, err.Error(), "VALIDATION_ERROR", http.StatusBadRequest, r)
		return
	}

	runs, err := h.store.ListRuns(r.Context(), filter)
	if err != nil {
		log.Error().Err(err).Msg("archive query failed")
		writeError(w, "query failed", "INTERNAL", http.StatusInternalServerError, r)
		return
	}
	if runs == nil {
		runs = []storage.ArchivedRun{}
	}

	writeJSON(w, http.StatusOK, ListRunsResponse{Runs: runs, Count: len(runs)})
}

func (h *Handlers) parseMaxRuns(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("max_runs")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New("max_runs must be a non-negative integer")
	}
	if h.maxRunsLimit > 0 && n > h.maxRunsLimit {
		return 0, errors.New("max_runs must be <= " + strconv.Itoa(h.maxRunsLimit))
	}
	return n, nil
}

func parseRunFilter(r *http.Request) (storage.RunFilter, error) {
	q := r.URL.Query()
	filter := storage.RunFilter{
		TaskName: q.Get("task"),
		Outcome:  q.Get("outcome"),
		Limit:    100,
	}

	switch filter.Outcome {
	case "", storage.OutcomeSuccess, storage.OutcomeFailure, storage.OutcomeNoResult:
	default:
		return filter, errors.New("outcome must be success, failure or no_result")
	}

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"since", &filter.Since}, {"until", &filter.Until}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, errors.New(p.name + " must be an RFC 3339 timestamp")
		}
		*p.dst = &t
	}

	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &filter.Limit}, {"offset", &filter.Offset}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return filter, errors.New(p.name + " must be a non-negative integer")
		}
		*p.dst = n
	}

	return filter, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, msg, code string, status int, r *http.Request) {
	resp := ErrorResponse{
		Error:     msg,
		Code:      code,
		RequestID: RequestIDFromContext(r.Context()),
	}
	writeJSON(w, status, resp)
}
