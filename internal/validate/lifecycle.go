package validate

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/roach88/detrace/internal/trace"
)

// Workflow selects which pairing rules apply to a trace.
type Workflow string

const (
	// WorkflowHappy traces pair step_start/step_end per step_id.
	WorkflowHappy Workflow = "happy"
	// WorkflowFailure traces pair case_start/case_end per case_id.
	WorkflowFailure Workflow = "failure"
)

// Valid reports whether w names a known workflow.
func (w Workflow) Valid() bool {
	return w == WorkflowHappy || w == WorkflowFailure
}

// correlationPattern matches "{prefix}-corr-{seq}". The prefix is greedy so
// run ids containing "-corr-" still bind the final occurrence.
var correlationPattern = regexp.MustCompile(`^(.+)-corr-(\d+)$`)

// ValidateEventOrder checks the lifecycle state machine for one trace:
// run_start/run_end boundaries, a strictly monotonic correlation sequence
// scoped to the whole trace, and workflow-specific start/end pairing.
//
// Every violation is recorded; nothing aborts the scan. After a sequence
// violation the expected counter resynchronizes to observed+1 so one gap
// does not cascade into an error per remaining event.
func ValidateEventOrder(workflow Workflow, events []trace.Event) []string {
	if len(events) == 0 {
		return []string{"events log is empty"}
	}

	var errs []string

	if events[0].EventType != trace.EventRunStart {
		errs = append(errs, "first event_type must be run_start")
	}
	if events[len(events)-1].EventType != trace.EventRunEnd {
		errs = append(errs, "last event_type must be run_end")
	}

	runID := events[0].RunID
	if runID == "" {
		errs = append(errs, "event 1: missing run_id")
	}

	errs = append(errs, correlationErrors(runID, events)...)
	errs = append(errs, pairingErrors(workflow, events)...)
	return errs
}

func correlationErrors(runID string, events []trace.Event) []string {
	var errs []string
	seen := make(map[string]bool, len(events))
	expected := int64(1)

	for i, ev := range events {
		n := i + 1
		corr := ev.CorrelationID
		if corr == "" {
			errs = append(errs, fmt.Sprintf("event %d: missing correlation_id", n))
			continue
		}
		if seen[corr] {
			errs = append(errs, fmt.Sprintf("event %d: duplicate correlation_id %q", n, corr))
			continue
		}
		seen[corr] = true

		m := correlationPattern.FindStringSubmatch(corr)
		if m == nil {
			errs = append(errs, fmt.Sprintf("event %d: malformed correlation_id %q", n, corr))
			continue
		}

		prefix := m[1]
		if runID != "" && prefix != runID {
			errs = append(errs, fmt.Sprintf("event %d: correlation_id prefix %q does not match run_id %q", n, prefix, runID))
		}

		observed, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			// Digits beyond int64; the format check passed, so report it
			// as a sequence violation rather than a malformed id.
			errs = append(errs, fmt.Sprintf("event %d: correlation sequence %q out of range", n, m[2]))
			continue
		}
		if observed != expected {
			errs = append(errs, fmt.Sprintf("event %d: correlation sequence expected %d got %d", n, expected, observed))
		}
		// Resynchronize so one gap yields one error, not a cascade.
		expected = observed + 1
	}
	return errs
}

// pairingErrors checks that every step (happy) or case (failure) opened in
// the trace is also closed, and vice versa. The __run__ sentinel marks
// run-scoped events and is exempt from case pairing.
func pairingErrors(workflow Workflow, events []trace.Event) []string {
	var groupKey func(trace.Event) string
	var startType, endType, label string

	switch workflow {
	case WorkflowHappy:
		groupKey = func(ev trace.Event) string { return ev.StepID }
		startType, endType, label = trace.EventStepStart, trace.EventStepEnd, "step"
	case WorkflowFailure:
		groupKey = func(ev trace.Event) string {
			if ev.CaseID == trace.CaseSentinel {
				return ""
			}
			return ev.CaseID
		}
		startType, endType, label = trace.EventCaseStart, trace.EventCaseEnd, "case"
	default:
		return nil
	}

	typesByGroup := make(map[string]map[string]bool)
	for _, ev := range events {
		key := groupKey(ev)
		if key == "" {
			continue
		}
		if typesByGroup[key] == nil {
			typesByGroup[key] = make(map[string]bool)
		}
		typesByGroup[key][ev.EventType] = true
	}

	keys := make([]string, 0, len(typesByGroup))
	for key := range typesByGroup {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var errs []string
	for _, key := range keys {
		types := typesByGroup[key]
		if !types[startType] {
			errs = append(errs, fmt.Sprintf("%s %q missing %s", label, key, startType))
		}
		if !types[endType] {
			errs = append(errs, fmt.Sprintf("%s %q missing %s", label, key, endType))
		}
	}
	return errs
}
