package monitor

import (
	"regexp"

	"github.com/rs/zerolog/log"

	"task-run-history/internal/history"
)

// RunInspector flags reconstructed runs that need an operator's attention.
// It looks at event display names and at the run's own result.
type RunInspector struct {
	patterns []FindingPattern
}

// FindingPattern matches a notable event display name.
type FindingPattern struct {
	Name        string
	Description string
	Regex       *regexp.Regexp
	Severity    Severity
}

// Severity levels for findings.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Finding is one notable condition found in a run.
type Finding struct {
	Pattern  string `json:"pattern"`
	Severity string `json:"severity"`
	Detail   string `json:"detail"`
	RecordID int64  `json:"record_id,omitempty"`
}

// NewRunInspector creates an inspector with the default patterns.
func NewRunInspector() *RunInspector {
	return &RunInspector{
		patterns: defaultPatterns(),
	}
}

// Inspect returns the findings for one run. Each pattern is reported at most
// once, against the newest event that matched it.
func (d *RunInspector) Inspect(run history.TaskRun) []Finding {
	var findings []Finding

	for _, p := range d.patterns {
		for _, ev := range run.Events {
			if !p.Regex.MatchString(ev.DisplayName) {
				continue
			}
			findings = append(findings, Finding{
				Pattern:  p.Name,
				Severity: p.Severity.String(),
				Detail:   p.Description,
				RecordID: ev.RecordID,
			})
			break
		}
	}

	findings = append(findings, inspectResult(run)...)

	for _, f := range findings {
		log.Debug().
			Str("task", run.TaskName).
			Str("correlation_id", run.CorrelationID).
			Str("pattern", f.Pattern).
			Str("severity", f.Severity).
			Msg("run finding")
	}

	return findings
}

// inspectResult checks the run's result codes rather than its events.
func inspectResult(run history.TaskRun) []Finding {
	var findings []Finding

	switch {
	case run.ResultTranslation == nil && !run.LaunchRequestIgnored:
		findings = append(findings, Finding{
			Pattern:  "no_result",
			Severity: SeverityLow.String(),
			Detail:   "run reported no result code",
		})
	case run.ResultTranslation != nil && !run.ResultTranslation.IsSuccess:
		findings = append(findings, Finding{
			Pattern:  "failed_result",
			Severity: SeverityHigh.String(),
			Detail:   run.ResultTranslation.String(),
		})
	}

	if run.Ambiguous() {
		findings = append(findings, Finding{
			Pattern:  "ambiguous_result",
			Severity: SeverityMedium.String(),
			Detail:   "events disagree on the result code",
		})
	}

	return findings
}

func defaultPatterns() []FindingPattern {
	return []FindingPattern{
		{
			Name:        "launch_failure",
			Description: "Task or action could not be started",
			Regex:       regexp.MustCompile(`(?i)(launch|start)\s+failure|failed to (start|launch)`),
			Severity:    SeverityHigh,
		},
		{
			Name:        "action_failed",
			Description: "An action of the task failed",
			Regex:       regexp.MustCompile(`(?i)action\s+(\S+\s+)?failed`),
			Severity:    SeverityHigh,
		},
		{
			Name:        "timeout_stop",
			Description: "Task was stopped by its execution time limit",
			Regex:       regexp.MustCompile(`(?i)(time ?out|time limit|stopped due to)`),
			Severity:    SeverityMedium,
		},
		{
			Name:        "terminated",
			Description: "Task instance was terminated",
			Regex:       regexp.MustCompile(`(?i)(terminat|stopping task|task stopping)`),
			Severity:    SeverityMedium,
		},
		{
			Name:        "engine_failure",
			Description: "Task engine or scheduler service failure",
			Regex:       regexp.MustCompile(`(?i)(task engine|scheduler service).*(fail|error|crash)`),
			Severity:    SeverityCritical,
		},
		{
			Name:        "launch_ignored",
			Description: "Launch request ignored because an instance was already running",
			Regex:       regexp.MustCompile(`(?i)launch request ignored|instance already running`),
			Severity:    SeverityLow,
		},
		{
			Name:        "missed_start",
			Description: "Trigger fired late or a start was missed",
			Regex:       regexp.MustCompile(`(?i)(missed|delayed)\s+(start|trigger|task)`),
			Severity:    SeverityMedium,
		},
	}
}
