// Package history reconstructs scheduled-task runs from raw event log records.
package history

import (
	"cmp"
	"errors"
	"iter"
	"slices"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"task-run-history/internal/resultcode"
)

const (
	// DefaultLaunchIgnoredMarker is the display name of the event logged when
	// a trigger fires while a previous instance is still running.
	DefaultLaunchIgnoredMarker = "Launch request ignored, instance already running"

	// DefaultResultCodeField is the payload field carrying an action's result.
	DefaultResultCodeField = "ResultCode"
)

// Options tunes correlation.
type Options struct {
	// Strict disables absorbing null-correlation events into runs. Absorption
	// assumes two runs never interleave their uncorrelated events.
	Strict              bool
	LaunchIgnoredMarker string
	ResultCodeField     string
}

// Observer receives correlation diagnostics. Implementations must be safe
// for concurrent use.
type Observer interface {
	RecordSkipped(reason string)
	RecordAbsorbed(n int)
	RecordRun(run TaskRun)
}

type nopObserver struct{}

func (nopObserver) RecordSkipped(string) {}
func (nopObserver) RecordAbsorbed(int)   {}
func (nopObserver) RecordRun(TaskRun)    {}

// Correlator groups event records into task runs. It holds no mutable state
// and may be shared between goroutines.
type Correlator struct {
	opts       Options
	translator *resultcode.Translator
	observer   Observer
	logger     zerolog.Logger
}

// NewCorrelator creates a Correlator. A nil translator or observer falls back
// to a plain translator and a no-op observer.
func NewCorrelator(opts Options, translator *resultcode.Translator, observer Observer) *Correlator {
	if opts.LaunchIgnoredMarker == "" {
		opts.LaunchIgnoredMarker = DefaultLaunchIgnoredMarker
	}
	if opts.ResultCodeField == "" {
		opts.ResultCodeField = DefaultResultCodeField
	}
	if translator == nil {
		translator = resultcode.New()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Correlator{
		opts:       opts,
		translator: translator,
		observer:   observer,
		logger:     log.With().Str("component", "correlator").Logger(),
	}
}

// Runs yields the runs found in events, newest first. maxRuns <= 0 means no
// limit. Each run is assembled only when the consumer asks for it.
func (c *Correlator) Runs(taskName string, events []EventRecord, maxRuns int) iter.Seq[TaskRun] {
	return func(yield func(TaskRun) bool) {
		if len(events) == 0 {
			return
		}

		logger := c.logger.With().Str("task", taskName).Logger()

		valid := make([]EventRecord, 0, len(events))
		for _, ev := range events {
			if err := ev.validate(); err != nil {
				reason := "invalid"
				var recErr *RecordError
				if errors.As(err, &recErr) {
					reason = recErr.Reason
				}
				logger.Warn().Err(err).Int64("record_id", ev.RecordID).Msg("skipping malformed event record")
				c.observer.RecordSkipped(reason)
				continue
			}
			ev.CorrelationID = CanonicalCorrelationID(ev.CorrelationID)
			valid = append(valid, ev)
		}

		slices.SortStableFunc(valid, byRecordIDDesc)

		groups := make(map[string][]EventRecord)
		var order []string
		var orphans []EventRecord
		for _, ev := range valid {
			if ev.CorrelationID == "" {
				orphans = append(orphans, ev)
				continue
			}
			if _, seen := groups[ev.CorrelationID]; !seen {
				order = append(order, ev.CorrelationID)
			}
			groups[ev.CorrelationID] = append(groups[ev.CorrelationID], ev)
		}

		if maxRuns > 0 && len(order) > maxRuns {
			order = order[:maxRuns]
		}

		logger.Debug().
			Int("events", len(events)).
			Int("valid", len(valid)).
			Int("uncorrelated", len(orphans)).
			Int("runs", len(order)).
			Msg("correlating task history")

		for _, id := range order {
			run := c.buildRun(logger, taskName, id, groups[id], orphans)
			c.observer.RecordRun(run)
			if !yield(run) {
				return
			}
		}
	}
}

// Collect is Runs materialized into a slice.
func (c *Correlator) Collect(taskName string, events []EventRecord, maxRuns int) []TaskRun {
	return slices.Collect(c.Runs(taskName, events, maxRuns))
}

// CountRuns returns how many runs Runs would yield for events with no limit.
// It only groups tokens and builds nothing.
func CountRuns(events []EventRecord) int {
	seen := make(map[string]struct{})
	for _, ev := range events {
		if ev.validate() != nil {
			continue
		}
		if id := CanonicalCorrelationID(ev.CorrelationID); id != "" {
			seen[id] = struct{}{}
		}
	}
	return len(seen)
}

// buildRun assembles one run. members share the run's token and are ordered
// by RecordID descending; orphans carry no token, same order.
func (c *Correlator) buildRun(logger zerolog.Logger, taskName, id string, members, orphans []EventRecord) TaskRun {
	newest, oldest := members[0], members[len(members)-1]

	start, end := oldest.TimeCreated, newest.TimeCreated
	if end.Before(start) {
		logger.Warn().
			Str("correlation_id", id).
			Int64("first_record", oldest.RecordID).
			Int64("last_record", newest.RecordID).
			Msg("run timestamps disagree with record order, assuming clock skew")
		start, end = end, start
	}

	all := slices.Clone(members)
	absorbed := 0
	if !c.opts.Strict {
		for _, o := range orphans {
			if o.RecordID > oldest.RecordID && o.RecordID < newest.RecordID {
				all = append(all, o)
				absorbed++
			}
		}
		if absorbed > 0 {
			c.observer.RecordAbsorbed(absorbed)
		}
	}

	slices.SortStableFunc(all, func(a, b EventRecord) int {
		if n := b.TimeCreated.Compare(a.TimeCreated); n != 0 {
			return n
		}
		return byRecordIDDesc(a, b)
	})

	run := TaskRun{
		TaskName:       taskName,
		CorrelationID:  id,
		StartTime:      start,
		EndTime:        end,
		Duration:       end.Sub(start),
		AbsorbedEvents: absorbed,
		Events:         all,
	}

	run.ResultCode = c.resultCodes(all)
	if len(run.ResultCode) > 0 {
		tr := c.translator.TranslateString(run.ResultCode[0])
		run.ResultTranslation = &tr
	}
	if len(run.ResultCode) > 1 {
		logger.Info().
			Str("correlation_id", id).
			Strs("result_codes", run.ResultCode).
			Msg("run reports conflicting result codes")
	}

	for _, ev := range all {
		if ev.DisplayName == c.opts.LaunchIgnoredMarker {
			run.LaunchRequestIgnored = true
			break
		}
	}

	return run
}

// resultCodes returns the distinct non-empty result values in event order.
func (c *Correlator) resultCodes(events []EventRecord) []string {
	var codes []string
	for _, ev := range events {
		for _, f := range ev.NamedFields {
			if f.Name != c.opts.ResultCodeField {
				continue
			}
			v := strings.TrimSpace(f.Value)
			if v != "" && !slices.Contains(codes, v) {
				codes = append(codes, v)
			}
		}
	}
	return codes
}

func byRecordIDDesc(a, b EventRecord) int {
	return cmp.Compare(b.RecordID, a.RecordID)
}
