package monitor

import (
	"github.com/prometheus/client_golang/prometheus"

	"task-run-history/internal/history"
	"task-run-history/internal/resultcode"
)

// Metrics holds all Prometheus metrics for run-history reconstruction.
type Metrics struct {
	Registry *prometheus.Registry

	RunsCorrelated      *prometheus.CounterVec
	EventsSkipped       *prometheus.CounterVec
	EventsAbsorbed      prometheus.Counter
	AmbiguousRuns       prometheus.Counter
	LaunchIgnored       prometheus.Counter
	Translations        *prometheus.CounterVec
	Findings            *prometheus.CounterVec
	CorrelationDuration prometheus.Histogram
	EventsPerRequest    prometheus.Histogram
	RequestsInFlight    prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics using a dedicated registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		RunsCorrelated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "task_history",
				Name:      "runs_correlated_total",
				Help:      "Total number of task runs reconstructed, by outcome.",
			},
			[]string{"outcome"},
		),

		EventsSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "task_history",
				Name:      "events_skipped_total",
				Help:      "Event records rejected as malformed, by reason.",
			},
			[]string{"reason"},
		),

		EventsAbsorbed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "task_history",
				Name:      "events_absorbed_total",
				Help:      "Uncorrelated event records attributed to a run by record range.",
			},
		),

		AmbiguousRuns: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "task_history",
				Name:      "ambiguous_result_codes_total",
				Help:      "Runs whose events reported more than one result code.",
			},
		),

		LaunchIgnored: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "task_history",
				Name:      "launch_ignored_total",
				Help:      "Runs where a launch request was ignored because an instance was already running.",
			},
		),

		Translations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "task_history",
				Name:      "translations_total",
				Help:      "Result code translations by winning source.",
			},
			[]string{"source"},
		),

		Findings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "task_history",
				Name:      "run_findings_total",
				Help:      "Run inspection findings by pattern and severity.",
			},
			[]string{"pattern", "severity"},
		),

		CorrelationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "task_history",
				Name:      "correlation_duration_seconds",
				Help:      "Time spent fetching and correlating one task's history.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
		),

		EventsPerRequest: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "task_history",
				Name:      "events_per_request",
				Help:      "Number of event records in one correlation batch.",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
		),

		RequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "task_history",
				Subsystem: "api",
				Name:      "requests_in_flight",
				Help:      "Number of HTTP requests currently being processed.",
			},
		),
	}

	reg.MustRegister(
		m.RunsCorrelated,
		m.EventsSkipped,
		m.EventsAbsorbed,
		m.AmbiguousRuns,
		m.LaunchIgnored,
		m.Translations,
		m.Findings,
		m.CorrelationDuration,
		m.EventsPerRequest,
		m.RequestsInFlight,
	)

	return m
}

// RecordSkipped implements history.Observer.
func (m *Metrics) RecordSkipped(reason string) {
	m.EventsSkipped.WithLabelValues(reason).Inc()
}

// RecordAbsorbed implements history.Observer.
func (m *Metrics) RecordAbsorbed(n int) {
	m.EventsAbsorbed.Add(float64(n))
}

// RecordRun implements history.Observer.
func (m *Metrics) RecordRun(run history.TaskRun) {
	m.RunsCorrelated.WithLabelValues(runOutcome(run)).Inc()
	if run.Ambiguous() {
		m.AmbiguousRuns.Inc()
	}
	if run.LaunchRequestIgnored {
		m.LaunchIgnored.Inc()
	}
	if run.ResultTranslation != nil {
		m.RecordTranslation(*run.ResultTranslation)
	}
}

// RecordTranslation counts a translation by the source of its headline meaning.
func (m *Metrics) RecordTranslation(tr resultcode.Translation) {
	m.Translations.WithLabelValues(string(tr.Source)).Inc()
}

// RecordFinding counts one inspection finding.
func (m *Metrics) RecordFinding(f Finding) {
	m.Findings.WithLabelValues(f.Pattern, f.Severity).Inc()
}

// ObserveCorrelation records the size and latency of one correlation.
func (m *Metrics) ObserveCorrelation(events int, durationSec float64) {
	m.EventsPerRequest.Observe(float64(events))
	m.CorrelationDuration.Observe(durationSec)
}

func runOutcome(run history.TaskRun) string {
	switch {
	case run.ResultTranslation == nil:
		return "no_result"
	case run.ResultTranslation.IsSuccess:
		return "success"
	default:
		return "failure"
	}
}

var _ history.Observer = (*Metrics)(nil)
