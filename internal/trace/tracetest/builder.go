// Package tracetest builds deterministic trace fixtures for tests.
//
// The builder fills every required field with stable defaults and keeps
// the correlation sequence correct automatically, so tests only state what
// they want to be different.
package tracetest

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/roach88/detrace/internal/trace"
)

// Builder accumulates trace lines for one run.
type Builder struct {
	runID string
	seq   int
	lines []string
}

// NewBuilder creates a builder for the given run id.
func NewBuilder(runID string) *Builder {
	return &Builder{runID: runID}
}

// Add appends one event of the given type. Overrides replace or add raw
// fields; an override with a nil value deletes the field entirely, which
// is how tests produce missing-field traces.
func (b *Builder) Add(eventType string, overrides map[string]any) *Builder {
	b.seq++
	fields := map[string]any{
		"schema_version": "1",
		"timestamp_utc":  fmt.Sprintf("2026-01-01T00:00:%02dZ", b.seq%60),
		"run_id":         b.runID,
		"correlation_id": fmt.Sprintf("%s-corr-%04d", b.runID, b.seq),
		"event_type":     eventType,
		"command":        "",
		"env_hash":       "envhash",
		"duration_ms":    0,
		"exit_code":      0,
	}
	for k, v := range overrides {
		if v == nil {
			delete(fields, k)
			continue
		}
		fields[k] = v
	}

	data, err := json.Marshal(fields)
	if err != nil {
		panic(err) // fixture construction only; inputs are test literals
	}
	b.lines = append(b.lines, string(data))
	return b
}

// RawLine appends a verbatim line, bypassing all defaults.
func (b *Builder) RawLine(line string) *Builder {
	b.lines = append(b.lines, line)
	return b
}

// NDJSON returns the accumulated trace as a line-delimited document.
func (b *Builder) NDJSON() string {
	return strings.Join(b.lines, "\n") + "\n"
}

// Events parses the accumulated trace.
func (b *Builder) Events(t testing.TB) []trace.Event {
	t.Helper()
	tr, err := trace.Parse(strings.NewReader(b.NDJSON()))
	if err != nil {
		t.Fatalf("parse fixture trace: %v", err)
	}
	return tr.Events
}

// WriteFile writes the trace to path.
func (b *Builder) WriteFile(t testing.TB, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(b.NDJSON()), 0o644); err != nil {
		t.Fatalf("write fixture trace: %v", err)
	}
}

// Happy builds a well-formed happy-workflow trace with the given steps.
func Happy(runID string, steps ...string) *Builder {
	b := NewBuilder(runID)
	b.Add(trace.EventRunStart, nil)
	for _, step := range steps {
		b.Add(trace.EventStepStart, map[string]any{"step_id": step})
		b.Add(trace.EventStepEnd, map[string]any{"step_id": step})
	}
	b.Add(trace.EventRunEnd, nil)
	return b
}

// Failure builds a well-formed failure-workflow trace with the given cases.
func Failure(runID string, cases ...string) *Builder {
	b := NewBuilder(runID)
	b.Add(trace.EventRunStart, map[string]any{"case_id": trace.CaseSentinel})
	for _, caseID := range cases {
		b.Add(trace.EventCaseStart, map[string]any{"case_id": caseID})
		b.Add(trace.EventCaseEnd, map[string]any{"case_id": caseID})
	}
	b.Add(trace.EventRunEnd, map[string]any{"case_id": trace.CaseSentinel})
	return b
}
