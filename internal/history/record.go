package history

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventRecord is a single task-scheduler event log entry as delivered by the
// log-reading collaborator. An empty CorrelationID is the null token.
type EventRecord struct {
	RecordID      int64        `json:"record_id" yaml:"record_id"`
	TimeCreated   time.Time    `json:"time_created" yaml:"time_created"`
	CorrelationID string       `json:"correlation_id,omitempty" yaml:"correlation_id,omitempty"`
	DisplayName   string       `json:"display_name" yaml:"display_name"`
	NamedFields   []NamedField `json:"named_fields,omitempty" yaml:"named_fields,omitempty"`
}

// NamedField is one name/value pair of an event's structured payload.
// A field without a name could not be parsed from the payload.
type NamedField struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Field returns the first value stored under name.
func (e EventRecord) Field(name string) (string, bool) {
	for _, f := range e.NamedFields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// validate reports why a record cannot take part in correlation.
func (e EventRecord) validate() error {
	if e.RecordID <= 0 {
		return &RecordError{RecordID: e.RecordID, Reason: ReasonMissingRecordID, Err: ErrMalformedRecord}
	}
	if e.TimeCreated.IsZero() {
		return &RecordError{RecordID: e.RecordID, Reason: ReasonMissingTime, Err: ErrMalformedRecord}
	}
	for _, f := range e.NamedFields {
		if f.Name == "" {
			return &RecordError{RecordID: e.RecordID, Reason: ReasonBadFields, Err: ErrMalformedRecord}
		}
	}
	return nil
}

// CanonicalCorrelationID folds GUID-shaped tokens to one spelling so that
// "{ABC...}" and "abc..." group together. Other tokens are only trimmed.
func CanonicalCorrelationID(token string) string {
	token = strings.TrimSpace(token)
	if token == "" {
		return ""
	}
	if id, err := uuid.Parse(token); err == nil {
		return id.String()
	}
	return token
}
