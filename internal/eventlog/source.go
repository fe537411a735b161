// Package eventlog loads task-scheduler event records for correlation.
package eventlog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"task-run-history/internal/history"
)

// ErrTaskNotFound is returned when no record in the source belongs to the task.
var ErrTaskNotFound = errors.New("no events for task")

// Source supplies the raw event records of one scheduled task.
type Source interface {
	Events(ctx context.Context, taskName string) ([]history.EventRecord, error)
}

// timeLayouts are tried in order when reading time_created.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.9999999",
	"2006-01-02 15:04:05",
}

// FileSource reads exported event batches from a YAML or JSON file, or from
// every such file in a directory.
type FileSource struct {
	path string
}

// NewFileSource returns a FileSource rooted at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: filepath.Clean(path)}
}

// Path returns the file or directory the source reads.
func (s *FileSource) Path() string {
	return s.path
}

// Events returns every record in the source that belongs to taskName.
// Records are returned in file order; correlation does its own ordering.
func (s *FileSource) Events(ctx context.Context, taskName string) ([]history.EventRecord, error) {
	files, err := s.files()
	if err != nil {
		return nil, err
	}

	want := normalizeTask(taskName)
	var out []history.EventRecord
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := os.ReadFile(f) // #nosec G304 -- path comes from config or CLI flag
		if err != nil {
			return nil, fmt.Errorf("reading event file %s: %w", f, err)
		}
		raws, err := decodeBatch(data)
		if err != nil {
			return nil, fmt.Errorf("parsing event file %s: %w", f, err)
		}

		matched := 0
		for _, r := range raws {
			if r.Task != "" && normalizeTask(r.Task) != want {
				continue
			}
			out = append(out, r.record())
			matched++
		}
		log.Debug().Str("file", f).Str("task", taskName).Int("records", matched).Msg("loaded event file")
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskName)
	}
	return out, nil
}

func (s *FileSource) files() ([]string, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, fmt.Errorf("opening event source: %w", err)
	}
	if !info.IsDir() {
		return []string{s.path}, nil
	}

	entries, err := os.ReadDir(s.path)
	if err != nil {
		return nil, fmt.Errorf("listing event directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml", ".json":
			files = append(files, filepath.Join(s.path, e.Name()))
		}
	}
	return files, nil
}

// rawEvent mirrors one exported record before validation. Scalars are kept
// as text so that a bad value degrades a single record instead of the file.
type rawEvent struct {
	Task          string    `yaml:"task"`
	RecordID      string    `yaml:"record_id"`
	TimeCreated   string    `yaml:"time_created"`
	CorrelationID string    `yaml:"correlation_id"`
	DisplayName   string    `yaml:"display_name"`
	NamedFields   yaml.Node `yaml:"named_fields"`
}

// decodeBatch accepts either a bare list of records or a mapping with an
// events list and an optional batch-wide task name.
func decodeBatch(data []byte) ([]rawEvent, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	root := doc.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		return decodeEvents(root.Content), nil
	case yaml.MappingNode:
		var task string
		var events []rawEvent
		for i := 0; i+1 < len(root.Content); i += 2 {
			k, v := root.Content[i], root.Content[i+1]
			switch k.Value {
			case "task":
				task = scalarValue(v)
			case "events":
				if v.Kind != yaml.SequenceNode {
					return nil, fmt.Errorf("events must be a list, got %s", kindName(v.Kind))
				}
				events = decodeEvents(v.Content)
			}
		}
		for i := range events {
			if events[i].Task == "" {
				events[i].Task = task
			}
		}
		return events, nil
	default:
		return nil, fmt.Errorf("expected a list of events or an events mapping, got %s", kindName(root.Kind))
	}
}

// decodeEvents decodes items one by one. An item that is not a record
// mapping becomes an empty record, which correlation skips as malformed.
func decodeEvents(items []*yaml.Node) []rawEvent {
	events := make([]rawEvent, 0, len(items))
	for _, item := range items {
		var r rawEvent
		if item.Kind != yaml.MappingNode || item.Decode(&r) != nil {
			r = rawEvent{}
		}
		events = append(events, r)
	}
	return events
}

// DecodeRecord converts one record given as a JSON or YAML mapping. It never
// fails: unreadable values come back as zero times, zero ids or nameless
// fields so that correlation reports the record as malformed.
func DecodeRecord(data []byte) history.EventRecord {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil || len(doc.Content) == 0 {
		return history.EventRecord{}
	}
	return decodeEvents(doc.Content[:1])[0].record()
}

func (r rawEvent) record() history.EventRecord {
	id, _ := strconv.ParseInt(strings.TrimSpace(r.RecordID), 10, 64)
	return history.EventRecord{
		RecordID:      id,
		TimeCreated:   parseTime(r.TimeCreated),
		CorrelationID: r.CorrelationID,
		DisplayName:   r.DisplayName,
		NamedFields:   namedFields(&r.NamedFields),
	}
}

// namedFields keeps document order. Entries that are not plain scalars, list
// items that are not name/value pairs and payloads that are neither a list nor
// a mapping come back nameless.
func namedFields(n *yaml.Node) []history.NamedField {
	switch n.Kind {
	case yaml.MappingNode:
		fields := make([]history.NamedField, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if k.Kind != yaml.ScalarNode || v.Kind != yaml.ScalarNode {
				fields = append(fields, history.NamedField{})
				continue
			}
			fields = append(fields, history.NamedField{Name: k.Value, Value: scalarValue(v)})
		}
		return fields
	case yaml.SequenceNode:
		fields := make([]history.NamedField, 0, len(n.Content))
		for _, item := range n.Content {
			var f history.NamedField
			if item.Kind != yaml.MappingNode || item.Decode(&f) != nil {
				f = history.NamedField{}
			}
			fields = append(fields, f)
		}
		return fields
	case 0:
		return nil
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return nil
		}
		return []history.NamedField{{}}
	default:
		return []history.NamedField{{}}
	}
}

func scalarValue(n *yaml.Node) string {
	if n.Tag == "!!null" {
		return ""
	}
	return n.Value
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// normalizeTask folds `\Folder\Task`, `Folder\Task` and case differences.
func normalizeTask(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, `\`)
	return strings.ToLower(name)
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	case yaml.DocumentNode:
		return "document"
	default:
		return "unknown node"
	}
}
