package api

import (
	"bytes"
	"encoding/json"
	"fmt"

	"task-run-history/internal/eventlog"
	"task-run-history/internal/history"
	"task-run-history/internal/storage"
)

// CorrelateRequest is a caller-supplied event batch for one task.
type CorrelateRequest struct {
	Events  EventBatch `json:"events"`
	MaxRuns int        `json:"max_runs,omitempty"` // 0 uses the server default
	Strict  bool       `json:"strict,omitempty"`   // disable absorption of uncorrelated events
}

// EventBatch decodes each posted record on its own. A record with unreadable
// values is kept in a degraded form and skipped during correlation, so it
// never fails the rest of the batch.
type EventBatch []history.EventRecord

func (b *EventBatch) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return fmt.Errorf("events must be a list: %w", err)
	}
	if raws == nil {
		*b = nil
		return nil
	}

	out := make(EventBatch, 0, len(raws))
	var buf bytes.Buffer
	for _, raw := range raws {
		buf.Reset()
		if err := json.Compact(&buf, raw); err != nil {
			return err
		}
		out = append(out, eventlog.DecodeRecord(buf.Bytes()))
	}
	*b = out
	return nil
}

// Validate checks the request against the server's run limit.
func (r CorrelateRequest) Validate(maxRunsLimit int) error {
	if r.Events == nil {
		return fmt.Errorf("events is required")
	}
	if r.MaxRuns < 0 {
		return fmt.Errorf("max_runs must be >= 0, got %d", r.MaxRuns)
	}
	if maxRunsLimit > 0 && r.MaxRuns > maxRunsLimit {
		return fmt.Errorf("max_runs must be <= %d, got %d", maxRunsLimit, r.MaxRuns)
	}
	return nil
}

// ListRunsResponse wraps archive query results.
type ListRunsResponse struct {
	Runs  []storage.ArchivedRun `json:"runs"`
	Count int                   `json:"count"`
}

// ErrorResponse is returned for API errors.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id"`
}

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status      string `json:"status"`
	Database    bool   `json:"database"`
	EventSource bool   `json:"event_source"`
	Uptime      string `json:"uptime"`
}
