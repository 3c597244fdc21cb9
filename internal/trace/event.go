package trace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Event types emitted by instrumented workflow runs.
const (
	EventRunStart  = "run_start"
	EventRunEnd    = "run_end"
	EventStepStart = "step_start"
	EventStepEnd   = "step_end"
	EventCaseStart = "case_start"
	EventCaseEnd   = "case_end"
	EventArtifact  = "artifact"
)

// CaseSentinel marks events that belong to the run as a whole rather than
// to an individual case. Pairing checks skip it.
const CaseSentinel = "__run__"

// Event is one decoded trace line.
//
// All fields are optional at the type level; presence is tracked separately
// so the schema validator can distinguish "absent" from "zero". Keys that
// are not part of the known schema are retained in Extra for forward
// compatibility.
type Event struct {
	SchemaVersion  string            `json:"schema_version"`
	TimestampUTC   string            `json:"timestamp_utc"`
	RunID          string            `json:"run_id"`
	CorrelationID  string            `json:"correlation_id"`
	CaseID         string            `json:"case_id"`
	StepID         string            `json:"step_id"`
	EventType      string            `json:"event_type"`
	Command        string            `json:"command"`
	EnvHash        string            `json:"env_hash"`
	DurationMS     int64             `json:"duration_ms"`
	ExitCode       int64             `json:"exit_code"`
	StdoutSHA256   string            `json:"stdout_sha256"`
	StderrSHA256   string            `json:"stderr_sha256"`
	ArtifactHashes map[string]string `json:"artifact_hashes"`
	Expected       map[string]any    `json:"expected"`
	Actual         map[string]any    `json:"actual"`
	Extra          map[string]any    `json:"extra,omitempty"`

	raw map[string]any
}

// Has reports whether the given field key was present on the source line,
// regardless of its value.
func (e *Event) Has(field string) bool {
	_, ok := e.raw[field]
	return ok
}

// Raw returns the decoded source object for the event. Callers must not
// mutate the result; it backs Has and the structural schema check.
func (e *Event) Raw() map[string]any {
	return e.raw
}

// knownFields are the keys extracted into typed Event fields. Everything
// else lands in Extra.
var knownFields = map[string]bool{
	"schema_version": true, "timestamp_utc": true, "run_id": true,
	"correlation_id": true, "case_id": true, "step_id": true,
	"event_type": true, "command": true, "env_hash": true,
	"duration_ms": true, "exit_code": true,
	"stdout_sha256": true, "stderr_sha256": true,
	"artifact_hashes": true, "expected": true, "actual": true,
}

// Trace is the ordered event log for one workflow run.
type Trace struct {
	Path   string
	Events []Event
}

// RunID returns the run identity read from the first event, or "" for an
// empty trace.
func (t *Trace) RunID() string {
	if len(t.Events) == 0 {
		return ""
	}
	return t.Events[0].RunID
}

// ParseFile reads a line-delimited JSON trace from disk.
func ParseFile(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tr, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	tr.Path = path
	return tr, nil
}

// Parse decodes a trace from r, one JSON object per line.
//
// Any line that fails to decode as a JSON object invalidates the whole
// trace: the caller gets an error and no events. A half-readable trace is
// worse than no trace, because partial results would silently compare
// unequal to complete ones. Blank lines are not events and are skipped.
func Parse(r io.Reader) (*Trace, error) {
	tr := &Trace{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		ev, err := decodeEvent([]byte(line))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		tr.Events = append(tr.Events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading trace: %w", err)
	}
	return tr, nil
}

func decodeEvent(line []byte) (Event, error) {
	var raw map[string]any
	if err := json.Unmarshal(line, &raw); err != nil {
		return Event{}, fmt.Errorf("invalid trace line: %w", err)
	}
	if raw == nil {
		return Event{}, fmt.Errorf("invalid trace line: null is not an event")
	}

	ev := Event{raw: raw}
	ev.SchemaVersion = stringField(raw, "schema_version")
	ev.TimestampUTC = stringField(raw, "timestamp_utc")
	ev.RunID = stringField(raw, "run_id")
	ev.CorrelationID = stringField(raw, "correlation_id")
	ev.CaseID = stringField(raw, "case_id")
	ev.StepID = stringField(raw, "step_id")
	ev.EventType = stringField(raw, "event_type")
	ev.Command = stringField(raw, "command")
	ev.EnvHash = stringField(raw, "env_hash")
	ev.DurationMS = intField(raw, "duration_ms")
	ev.ExitCode = intField(raw, "exit_code")
	ev.StdoutSHA256 = stringField(raw, "stdout_sha256")
	ev.StderrSHA256 = stringField(raw, "stderr_sha256")
	ev.ArtifactHashes = hashField(raw, "artifact_hashes")
	ev.Expected = mapField(raw, "expected")
	ev.Actual = mapField(raw, "actual")

	for k, v := range raw {
		if knownFields[k] {
			continue
		}
		if ev.Extra == nil {
			ev.Extra = make(map[string]any)
		}
		ev.Extra[k] = v
	}
	return ev, nil
}

// Typed extraction is lenient: a field of the wrong JSON type yields the
// zero value here and a precise diagnostic from the structural schema
// check, which sees the raw object.

func stringField(raw map[string]any, key string) string {
	s, _ := raw[key].(string)
	return s
}

func intField(raw map[string]any, key string) int64 {
	f, _ := raw[key].(float64)
	return int64(f)
}

func mapField(raw map[string]any, key string) map[string]any {
	m, _ := raw[key].(map[string]any)
	return m
}

func hashField(raw map[string]any, key string) map[string]string {
	m, ok := raw[key].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(m))
	for path, v := range m {
		digest, _ := v.(string)
		out[path] = digest
	}
	return out
}
