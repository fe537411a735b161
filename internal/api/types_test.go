package api

import (
	"encoding/json"
	"testing"

	"task-run-history/internal/history"
)

func TestCorrelateRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     CorrelateRequest
		wantErr bool
	}{
		{"empty batch", CorrelateRequest{Events: []history.EventRecord{}}, false},
		{"missing events", CorrelateRequest{}, true},
		{"negative max runs", CorrelateRequest{Events: []history.EventRecord{}, MaxRuns: -1}, true},
		{"at limit", CorrelateRequest{Events: []history.EventRecord{}, MaxRuns: 100}, false},
		{"over limit", CorrelateRequest{Events: []history.EventRecord{}, MaxRuns: 101}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate(100)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCorrelateRequest_DecodesEventExport(t *testing.T) {
	body := `{
  "max_runs": 2,
  "events": [
    {"record_id": 10, "time_created": "2024-03-01T02:00:00Z", "correlation_id": "A",
     "display_name": "Action completed", "named_fields": [{"name": "ResultCode", "value": "0"}]}
  ]
}`
	var req CorrelateRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatal(err)
	}
	if req.MaxRuns != 2 || len(req.Events) != 1 {
		t.Fatalf("decoded %+v", req)
	}
	if v, ok := req.Events[0].Field("ResultCode"); !ok || v != "0" {
		t.Errorf("Field(ResultCode) = %q, %v", v, ok)
	}
}
