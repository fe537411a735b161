package history

import (
	"time"

	"task-run-history/internal/resultcode"
)

// TaskRun is one reconstructed execution attempt of a scheduled task.
type TaskRun struct {
	TaskName             string                  `json:"task_name"`
	CorrelationID        string                  `json:"correlation_id"`
	StartTime            time.Time               `json:"start_time"`
	EndTime              time.Time               `json:"end_time"`
	Duration             time.Duration           `json:"duration"`
	ResultCode           []string                `json:"result_code,omitempty"`
	ResultTranslation    *resultcode.Translation `json:"result_translation,omitempty"`
	LaunchRequestIgnored bool                    `json:"launch_request_ignored"`
	AbsorbedEvents       int                     `json:"absorbed_events"`
	Events               []EventRecord           `json:"events"` // newest first
}

// Ambiguous reports whether the run's events disagree on the result code.
func (r TaskRun) Ambiguous() bool {
	return len(r.ResultCode) > 1
}

// Succeeded reports whether the primary result code decodes as success.
// A run without a result code has not reported success.
func (r TaskRun) Succeeded() bool {
	return r.ResultTranslation != nil && r.ResultTranslation.IsSuccess
}
