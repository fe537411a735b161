package monitor

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"task-run-history/internal/history"
	"task-run-history/internal/resultcode"
)

func TestMetricsObserveCorrelation(t *testing.T) {
	m := NewMetrics()
	c := history.NewCorrelator(history.Options{}, nil, m)

	events := runWith("Task started", "Action completed").Events
	events[0].CorrelationID, events[1].CorrelationID = "a", "a"
	events[0].NamedFields = []history.NamedField{{Name: "ResultCode", Value: "0x1"}}
	events[1].NamedFields = []history.NamedField{{Name: "ResultCode", Value: "0"}}
	events = append(events, history.EventRecord{RecordID: 0})

	runs := c.Collect(`\Backup`, events, 0)
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}

	if got := testutil.ToFloat64(m.RunsCorrelated.WithLabelValues("failure")); got != 1 {
		t.Errorf("runs_correlated_total{failure} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.AmbiguousRuns); got != 1 {
		t.Errorf("ambiguous_result_codes_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.EventsSkipped.WithLabelValues(history.ReasonMissingRecordID)); got != 1 {
		t.Errorf("events_skipped_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Translations.WithLabelValues(string(resultcode.SourceTaskScheduler))); got != 1 {
		t.Errorf("translations_total{TaskScheduler} = %v, want 1", got)
	}
}

func TestMetricsRegistry(t *testing.T) {
	m := NewMetrics()
	m.RecordAbsorbed(3)
	m.RecordFinding(Finding{Pattern: "terminated", Severity: "medium"})
	m.ObserveCorrelation(12, 0.02)
	m.RequestsInFlight.Inc()

	if got := testutil.ToFloat64(m.EventsAbsorbed); got != 3 {
		t.Errorf("events_absorbed_total = %v, want 3", got)
	}
	if n := testutil.CollectAndCount(m.CorrelationDuration); n != 1 {
		t.Errorf("correlation_duration_seconds series = %d, want 1", n)
	}

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"task_history_events_absorbed_total",
		"task_history_run_findings_total",
		"task_history_correlation_duration_seconds",
		"task_history_api_requests_in_flight",
	} {
		if !names[want] {
			t.Errorf("metric %s not registered", want)
		}
	}
}
