package history

import (
	"errors"
	"fmt"
)

// ErrMalformedRecord marks an event record that was skipped during correlation.
var ErrMalformedRecord = errors.New("malformed event record")

// Skip reasons reported through notices and metrics.
const (
	ReasonMissingRecordID = "missing_record_id"
	ReasonMissingTime     = "missing_time_created"
	ReasonBadFields       = "unparseable_named_fields"
)

// RecordError wraps a per-record failure with the offending record id.
type RecordError struct {
	RecordID int64
	Reason   string
	Err      error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d: %s: %s", e.RecordID, e.Reason, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// IsMalformed returns true if the error reports a skipped record.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedRecord)
}
