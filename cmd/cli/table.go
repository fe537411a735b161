package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"task-run-history/internal/report"
	"task-run-history/internal/resultcode"
)

const messageWidth = 48

// table lays out cells by display width so wide runes in task names and
// messages keep the columns aligned.
type table struct {
	header []string
	rows   [][]string
}

func (t *table) add(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *table) render(w io.Writer) error {
	widths := make([]int, len(t.header))
	for _, row := range append([][]string{t.header}, t.rows...) {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	var sb strings.Builder
	for _, row := range append([][]string{t.header}, t.rows...) {
		for i, cell := range row {
			if i == len(row)-1 {
				sb.WriteString(cell)
				break
			}
			sb.WriteString(runewidth.FillRight(cell, widths[i]))
			sb.WriteString("  ")
		}
		sb.WriteByte('\n')
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func truncate(s string) string {
	return runewidth.Truncate(s, messageWidth, "...")
}

func printRunsTable(w io.Writer, reports []*report.TaskReport) error {
	for i, rep := range reports {
		if i > 0 {
			fmt.Fprintln(w)
		}
		s := rep.Summary
		fmt.Fprintf(w, "%s: %d events, %d runs (%d succeeded, %d failed, %d without result)\n",
			rep.TaskName, rep.Events, s.Runs, s.Succeeded, s.Failed, s.NoResult)
		if rep.Truncated {
			fmt.Fprintln(w, "older runs omitted, raise --max-runs to see them")
		}
		if len(rep.Runs) == 0 {
			continue
		}

		t := &table{header: []string{"CORRELATION", "START", "DURATION", "RESULT", "FLAGS", "MESSAGE"}}
		for _, run := range rep.Runs {
			result, message := "-", ""
			if tr := run.ResultTranslation; tr != nil {
				result = tr.HexCode
				message = tr.Message
			}
			t.add(
				orDash(run.CorrelationID),
				formatTime(run.StartTime),
				run.Duration.Round(time.Millisecond).String(),
				result,
				runFlags(run),
				truncate(message),
			)
		}
		if err := t.render(w); err != nil {
			return err
		}
	}
	return nil
}

func printTranslationsTable(w io.Writer, inputs []string, translations []resultcode.Translation) error {
	t := &table{header: []string{"INPUT", "HEX", "SOURCE", "CONSTANT", "SUCCESS", "MESSAGE"}}
	for i, tr := range translations {
		hex := tr.HexCode
		if !tr.Parsed {
			hex = "-"
		}
		t.add(
			inputs[i],
			hex,
			string(tr.Source),
			orDash(tr.ConstantName),
			fmt.Sprint(tr.IsSuccess),
			truncate(tr.Message),
		)
	}
	return t.render(w)
}

func runFlags(run report.RunReport) string {
	var flags []string
	if run.LaunchRequestIgnored {
		flags = append(flags, "launch-ignored")
	}
	if run.Ambiguous() {
		flags = append(flags, "ambiguous")
	}
	if run.AbsorbedEvents > 0 {
		flags = append(flags, fmt.Sprintf("absorbed=%d", run.AbsorbedEvents))
	}
	if len(flags) == 0 {
		return "-"
	}
	return strings.Join(flags, ",")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
