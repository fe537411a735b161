// Package report answers run-history and result-code queries by combining
// the event source, the correlator, the run inspector and the archive.
package report

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"task-run-history/internal/eventlog"
	"task-run-history/internal/history"
	"task-run-history/internal/monitor"
	"task-run-history/internal/resultcode"
	"task-run-history/internal/storage"
)

// ErrNoSource is returned by source-backed queries when no event source is configured.
var ErrNoSource = errors.New("no event source configured")

// Archiver receives runs for background archiving. *storage.RunWriter satisfies it.
type Archiver interface {
	Log(run *storage.ArchivedRun)
}

// Options tunes the service.
type Options struct {
	Correlation    history.Options
	DefaultMaxRuns int // limit used when a query passes maxRuns <= 0; 0 returns every run
	Workers        int // concurrent tasks in TaskRunsForTasks
}

// RunReport is one run plus what the inspector found in it.
type RunReport struct {
	history.TaskRun
	Findings []monitor.Finding `json:"findings,omitempty"`
}

// Summary aggregates the runs of one report.
type Summary struct {
	Runs          int            `json:"runs"`
	Succeeded     int            `json:"succeeded"`
	Failed        int            `json:"failed"`
	NoResult      int            `json:"no_result"`
	LaunchIgnored int            `json:"launch_ignored"`
	Ambiguous     int            `json:"ambiguous"`
	Skipped       map[string]int `json:"skipped_records,omitempty"`
}

// TaskReport is the reconstructed history of one task, newest run first.
type TaskReport struct {
	TaskName string      `json:"task_name"`
	Events   int         `json:"events"`
	Runs     []RunReport `json:"runs"`
	Summary  Summary     `json:"summary"`

	// Truncated is set when a run limit left older runs out of Runs.
	Truncated bool `json:"truncated,omitempty"`
}

// Service is safe for concurrent use.
type Service struct {
	source     eventlog.Source
	translator *resultcode.Translator
	inspector  *monitor.RunInspector
	metrics    *monitor.Metrics
	tracer     *monitor.Tracer
	archive    Archiver
	opts       Options
}

// NewService wires a Service. source, metrics and archive may be nil.
func NewService(source eventlog.Source, translator *resultcode.Translator, metrics *monitor.Metrics, archive Archiver, opts Options) *Service {
	if translator == nil {
		translator = resultcode.New()
	}
	if opts.Workers < 1 {
		opts.Workers = 4
	}
	return &Service{
		source:     source,
		translator: translator,
		inspector:  monitor.NewRunInspector(),
		metrics:    metrics,
		tracer:     monitor.NewTracer(),
		archive:    archive,
		opts:       opts,
	}
}

// HasSource reports whether source-backed queries can be answered.
func (s *Service) HasSource() bool {
	return s.source != nil
}

// TaskRuns fetches the task's events from the configured source and
// reconstructs its most recent runs.
func (s *Service) TaskRuns(ctx context.Context, taskName string, maxRuns int) (*TaskReport, error) {
	if s.source == nil {
		return nil, ErrNoSource
	}

	ctx, span := s.tracer.StartSpan(ctx, "task_runs",
		monitor.AttrTask.String(taskName),
		monitor.AttrMaxRuns.Int(maxRuns),
	)
	defer span.End()

	events, err := s.source.Events(ctx, taskName)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetching events")
		return nil, fmt.Errorf("fetching events for %s: %w", taskName, err)
	}

	return s.correlate(ctx, taskName, events, maxRuns, s.opts.Correlation)
}

// Correlate reconstructs runs from a caller-supplied batch. strict overrides
// the configured absorption mode for this call only. The only error is the
// context's.
func (s *Service) Correlate(ctx context.Context, taskName string, events []history.EventRecord, maxRuns int, strict bool) (*TaskReport, error) {
	ctx, span := s.tracer.StartSpan(ctx, "correlate",
		monitor.AttrTask.String(taskName),
		monitor.AttrEventCount.Int(len(events)),
	)
	defer span.End()

	opts := s.opts.Correlation
	opts.Strict = opts.Strict || strict
	return s.correlate(ctx, taskName, events, maxRuns, opts)
}

// TaskRunsForTasks runs TaskRuns for every task concurrently. A task without
// events yields an empty report; any other failure cancels the whole query.
func (s *Service) TaskRunsForTasks(ctx context.Context, taskNames []string, maxRuns int) (map[string]*TaskReport, error) {
	if s.source == nil {
		return nil, ErrNoSource
	}

	var mu sync.Mutex
	reports := make(map[string]*TaskReport, len(taskNames))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for _, name := range taskNames {
		g.Go(func() error {
			rep, err := s.TaskRuns(gctx, name, maxRuns)
			if errors.Is(err, eventlog.ErrTaskNotFound) {
				log.Warn().Str("task", name).Msg("no events found for task")
				rep, err = &TaskReport{TaskName: name, Runs: []RunReport{}}, nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			reports[name] = rep
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// Translate decodes one status value.
func (s *Service) Translate(ctx context.Context, code string) resultcode.Translation {
	_, span := s.tracer.StartSpan(ctx, "translate", monitor.AttrResultCode.String(code))
	defer span.End()

	tr := s.translator.TranslateString(code)
	span.SetAttributes(monitor.AttrResultSource.String(string(tr.Source)))
	if s.metrics != nil {
		s.metrics.RecordTranslation(tr)
	}
	return tr
}

func (s *Service) correlate(ctx context.Context, taskName string, events []history.EventRecord, maxRuns int, opts history.Options) (*TaskReport, error) {
	start := time.Now()
	if maxRuns <= 0 {
		maxRuns = s.opts.DefaultMaxRuns
	}

	obs := &queryObserver{skipped: make(map[string]int)}
	if s.metrics != nil {
		obs.next = s.metrics
	}
	correlator := history.NewCorrelator(opts, s.translator, obs)

	rep := &TaskReport{TaskName: taskName, Events: len(events), Runs: []RunReport{}}
	for run := range correlator.Runs(taskName, events, maxRuns) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("correlating %s: %w", taskName, err)
		}
		rr := RunReport{TaskRun: run, Findings: s.inspector.Inspect(run)}
		if s.metrics != nil {
			for _, f := range rr.Findings {
				s.metrics.RecordFinding(f)
			}
		}
		if s.archive != nil {
			s.archive.Log(storage.NewArchivedRun(run))
		}
		rep.Runs = append(rep.Runs, rr)
	}
	rep.Summary = summarize(rep.Runs, obs.snapshot())
	if maxRuns > 0 && len(rep.Runs) == maxRuns {
		rep.Truncated = history.CountRuns(events) > maxRuns
	}

	if s.metrics != nil {
		s.metrics.ObserveCorrelation(len(events), time.Since(start).Seconds())
	}
	monitor.SpanFromContext(ctx).SetAttributes(monitor.AttrRunCount.Int(len(rep.Runs)))

	log.Debug().
		Str("task", taskName).
		Int("events", len(events)).
		Int("runs", len(rep.Runs)).
		Dur("took", time.Since(start)).
		Msg("task history reconstructed")

	return rep, nil
}

func summarize(runs []RunReport, skipped map[string]int) Summary {
	sum := Summary{Runs: len(runs)}
	if len(skipped) > 0 {
		sum.Skipped = skipped
	}
	for _, r := range runs {
		switch {
		case r.ResultTranslation == nil:
			sum.NoResult++
		case r.ResultTranslation.IsSuccess:
			sum.Succeeded++
		default:
			sum.Failed++
		}
		if r.LaunchRequestIgnored {
			sum.LaunchIgnored++
		}
		if r.Ambiguous() {
			sum.Ambiguous++
		}
	}
	return sum
}

// queryObserver tallies skipped records for one query and forwards
// everything to the shared metrics.
type queryObserver struct {
	next    history.Observer
	mu      sync.Mutex
	skipped map[string]int
}

func (o *queryObserver) RecordSkipped(reason string) {
	o.mu.Lock()
	o.skipped[reason]++
	o.mu.Unlock()
	if o.next != nil {
		o.next.RecordSkipped(reason)
	}
}

func (o *queryObserver) RecordAbsorbed(n int) {
	if o.next != nil {
		o.next.RecordAbsorbed(n)
	}
}

func (o *queryObserver) RecordRun(run history.TaskRun) {
	if o.next != nil {
		o.next.RecordRun(run)
	}
}

func (o *queryObserver) snapshot() map[string]int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return maps.Clone(o.skipped)
}
