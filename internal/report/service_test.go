package report

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"task-run-history/internal/eventlog"
	"task-run-history/internal/history"
	"task-run-history/internal/monitor"
	"task-run-history/internal/resultcode"
	"task-run-history/internal/storage"
)

var t0 = time.Date(2024, 3, 1, 2, 0, 0, 0, time.UTC)

type mapSource map[string][]history.EventRecord

func (m mapSource) Events(_ context.Context, taskName string) ([]history.EventRecord, error) {
	if taskName == "broken" {
		return nil, errors.New("event log unavailable")
	}
	events, ok := m[taskName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", eventlog.ErrTaskNotFound, taskName)
	}
	return events, nil
}

type recordingArchive struct {
	mu   sync.Mutex
	runs []*storage.ArchivedRun
}

func (a *recordingArchive) Log(run *storage.ArchivedRun) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runs = append(a.runs, run)
}

func backupEvents() []history.EventRecord {
	return []history.EventRecord{
		{RecordID: 10, TimeCreated: t0, CorrelationID: "A", DisplayName: "Task started"},
		{RecordID: 11, TimeCreated: t0.Add(5 * time.Second), CorrelationID: "B", DisplayName: history.DefaultLaunchIgnoredMarker},
		{RecordID: 12, TimeCreated: t0.Add(30 * time.Second), CorrelationID: "A", DisplayName: "Action completed",
			NamedFields: []history.NamedField{{Name: "ResultCode", Value: "0"}}},
		{RecordID: 0, TimeCreated: t0, CorrelationID: "A"},
	}
}

func TestTaskRuns(t *testing.T) {
	archive := &recordingArchive{}
	metrics := monitor.NewMetrics()
	svc := NewService(mapSource{`\Backup`: backupEvents()}, nil, metrics, archive, Options{})

	rep, err := svc.TaskRuns(context.Background(), `\Backup`, 0)
	if err != nil {
		t.Fatalf("TaskRuns() error = %v", err)
	}

	var ids []string
	for _, r := range rep.Runs {
		ids = append(ids, r.CorrelationID)
	}
	if diff := cmp.Diff([]string{"A", "B"}, ids); diff != "" {
		t.Errorf("run order mismatch (-want +got):\n%s", diff)
	}

	want := Summary{
		Runs:          2,
		Succeeded:     1,
		NoResult:      1,
		LaunchIgnored: 1,
		Skipped:       map[string]int{history.ReasonMissingRecordID: 1},
	}
	if diff := cmp.Diff(want, rep.Summary); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
	if rep.Events != 4 {
		t.Errorf("Events = %d, want 4", rep.Events)
	}
	if rep.Runs[0].Duration != 30*time.Second {
		t.Errorf("run A Duration = %s, want 30s", rep.Runs[0].Duration)
	}
	if len(archive.runs) != 2 || archive.runs[0].Outcome != storage.OutcomeSuccess {
		t.Errorf("archived %+v, want two runs with A successful", archive.runs)
	}

	var launchIgnored bool
	for _, f := range rep.Runs[1].Findings {
		if f.Pattern == "launch_ignored" {
			launchIgnored = true
		}
	}
	if !launchIgnored {
		t.Errorf("run B findings = %v, want launch_ignored", rep.Runs[1].Findings)
	}
}

func TestTaskRunsDefaultMaxRuns(t *testing.T) {
	svc := NewService(mapSource{`\Backup`: backupEvents()}, nil, nil, nil, Options{DefaultMaxRuns: 1})

	rep, err := svc.TaskRuns(context.Background(), `\Backup`, 0)
	if err != nil {
		t.Fatalf("TaskRuns() error = %v", err)
	}
	if len(rep.Runs) != 1 || !rep.Truncated {
		t.Errorf("got %d runs, truncated=%v, want default limit of 1 and truncated", len(rep.Runs), rep.Truncated)
	}

	rep, err = svc.TaskRuns(context.Background(), `\Backup`, 5)
	if err != nil {
		t.Fatalf("TaskRuns() error = %v", err)
	}
	if len(rep.Runs) != 2 || rep.Truncated {
		t.Errorf("got %d runs, truncated=%v with explicit limit, want 2 and not truncated", len(rep.Runs), rep.Truncated)
	}
}

func TestCorrelateWithoutLimitReturnsAllRuns(t *testing.T) {
	events := make([]history.EventRecord, 0, 120)
	for i := range 120 {
		events = append(events, history.EventRecord{
			RecordID:      int64(i + 1),
			TimeCreated:   t0.Add(time.Duration(i) * time.Minute),
			CorrelationID: fmt.Sprintf("run-%03d", i),
		})
	}
	svc := NewService(nil, nil, nil, nil, Options{})

	rep, err := svc.Correlate(context.Background(), "t", events, 0, false)
	if err != nil {
		t.Fatalf("Correlate() error = %v", err)
	}
	if len(rep.Runs) != 120 || rep.Truncated {
		t.Errorf("got %d runs, truncated=%v, want all 120", len(rep.Runs), rep.Truncated)
	}

	rep, err = svc.Correlate(context.Background(), "t", events, 120, false)
	if err != nil {
		t.Fatalf("Correlate() error = %v", err)
	}
	if rep.Truncated {
		t.Error("limit equal to the run count reported truncated")
	}
}

func TestCorrelateCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := NewService(mapSource{`\Backup`: backupEvents()}, nil, nil, nil, Options{})
	if _, err := svc.Correlate(ctx, "t", backupEvents(), 0, false); !errors.Is(err, context.Canceled) {
		t.Errorf("Correlate() error = %v, want context.Canceled", err)
	}
	if _, err := svc.TaskRuns(ctx, `\Backup`, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("TaskRuns() error = %v, want context.Canceled", err)
	}
}

func TestTaskRunsErrors(t *testing.T) {
	tests := []struct {
		name   string
		svc    *Service
		task   string
		target error
	}{
		{"no source", NewService(nil, nil, nil, nil, Options{}), "x", ErrNoSource},
		{"unknown task", NewService(mapSource{}, nil, nil, nil, Options{}), "x", eventlog.ErrTaskNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.svc.TaskRuns(context.Background(), tt.task, 0)
			if !errors.Is(err, tt.target) {
				t.Errorf("TaskRuns() error = %v, want %v", err, tt.target)
			}
		})
	}
}

func TestCorrelateStrictOverride(t *testing.T) {
	events := []history.EventRecord{
		{RecordID: 1, TimeCreated: t0, CorrelationID: "A"},
		{RecordID: 2, TimeCreated: t0.Add(time.Second), NamedFields: []history.NamedField{{Name: "ResultCode", Value: "0"}}},
		{RecordID: 3, TimeCreated: t0.Add(2 * time.Second), CorrelationID: "A"},
	}
	svc := NewService(nil, nil, nil, nil, Options{})

	loose, err := svc.Correlate(context.Background(), "t", events, 0, false)
	if err != nil {
		t.Fatalf("Correlate() error = %v", err)
	}
	if len(loose.Runs[0].Events) != 3 || !loose.Runs[0].Succeeded() {
		t.Errorf("default correlation = %+v, want absorbed success", loose.Runs[0].TaskRun)
	}

	strict, err := svc.Correlate(context.Background(), "t", events, 0, true)
	if err != nil {
		t.Fatalf("Correlate(strict) error = %v", err)
	}
	if len(strict.Runs[0].Events) != 2 || strict.Runs[0].ResultTranslation != nil {
		t.Errorf("strict correlation = %+v, want no absorption", strict.Runs[0].TaskRun)
	}
}

func TestCorrelateEmptyBatch(t *testing.T) {
	rep, err := NewService(nil, nil, nil, nil, Options{}).Correlate(context.Background(), "t", nil, 0, false)
	if err != nil {
		t.Fatalf("Correlate() error = %v", err)
	}
	if rep.Runs == nil || len(rep.Runs) != 0 {
		t.Errorf("Runs = %#v, want empty non-nil slice", rep.Runs)
	}
}

func TestTaskRunsForTasks(t *testing.T) {
	src := mapSource{
		`\Backup`:  backupEvents(),
		`\Cleanup`: {{RecordID: 5, TimeCreated: t0, CorrelationID: "C"}},
	}
	svc := NewService(src, nil, nil, nil, Options{Workers: 2})

	reports, err := svc.TaskRunsForTasks(context.Background(), []string{`\Backup`, `\Cleanup`, `\Missing`}, 0)
	if err != nil {
		t.Fatalf("TaskRunsForTasks() error = %v", err)
	}

	got := map[string]int{}
	for name, rep := range reports {
		got[name] = len(rep.Runs)
	}
	want := map[string]int{`\Backup`: 2, `\Cleanup`: 1, `\Missing`: 0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("runs per task mismatch (-want +got):\n%s", diff)
	}

	if _, err := svc.TaskRunsForTasks(context.Background(), []string{`\Backup`, "broken"}, 0); err == nil {
		t.Error("TaskRunsForTasks() with failing source: expected error")
	}
}

func TestTranslate(t *testing.T) {
	svc := NewService(nil, resultcode.New(resultcode.WithMemo()), monitor.NewMetrics(), nil, Options{})

	tr := svc.Translate(context.Background(), "0x80070005")
	if tr.Source != resultcode.SourceWin32 || tr.ConstantName != "ERROR_ACCESS_DENIED" {
		t.Errorf("Translate() = %s, want Win32 ERROR_ACCESS_DENIED", tr)
	}
}
