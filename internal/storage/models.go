package storage

import (
	"time"

	"task-run-history/internal/history"
)

// Run outcomes stored with each archived run.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeNoResult = "no_result"
)

// ArchivedRun represents a stored task run.
type ArchivedRun struct {
	ID                   string                `json:"id" db:"id"`
	TaskName             string                `json:"task_name" db:"task_name"`
	CorrelationID        string                `json:"correlation_id" db:"correlation_id"`
	StartTime            time.Time             `json:"start_time" db:"start_time"`
	EndTime              time.Time             `json:"end_time" db:"end_time"`
	DurationMS           int64                 `json:"duration_ms" db:"duration_ms"`
	ResultCodes          []string              `json:"result_codes" db:"result_codes"`
	HexCode              string                `json:"hex_code,omitempty" db:"hex_code"`
	ResultSource         string                `json:"result_source,omitempty" db:"result_source"`
	ResultMessage        string                `json:"result_message,omitempty" db:"result_message"`
	Outcome              string                `json:"outcome" db:"outcome"` // success, failure, no_result
	LaunchRequestIgnored bool                  `json:"launch_request_ignored" db:"launch_request_ignored"`
	EventCount           int                   `json:"event_count" db:"event_count"`
	Events               []history.EventRecord `json:"events,omitempty" db:"events"`
	ArchivedAt           time.Time             `json:"archived_at" db:"archived_at"`
}

// NewArchivedRun flattens a reconstructed run for storage.
func NewArchivedRun(run history.TaskRun) *ArchivedRun {
	a := &ArchivedRun{
		TaskName:             run.TaskName,
		CorrelationID:        run.CorrelationID,
		StartTime:            run.StartTime,
		EndTime:              run.EndTime,
		DurationMS:           run.Duration.Milliseconds(),
		ResultCodes:          run.ResultCode,
		Outcome:              OutcomeNoResult,
		LaunchRequestIgnored: run.LaunchRequestIgnored,
		EventCount:           len(run.Events),
		Events:               run.Events,
	}
	if a.ResultCodes == nil {
		a.ResultCodes = []string{}
	}
	if tr := run.ResultTranslation; tr != nil {
		a.HexCode = tr.HexCode
		a.ResultSource = string(tr.Source)
		a.ResultMessage = tr.Message
		if tr.IsSuccess {
			a.Outcome = OutcomeSuccess
		} else {
			a.Outcome = OutcomeFailure
		}
	}
	return a
}

// RunFilter provides criteria for querying archived runs.
type RunFilter struct {
	TaskName string
	Outcome  string
	Since    *time.Time
	Until    *time.Time
	Limit    int
	Offset   int
}
