package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/detrace/internal/trace"
	"github.com/roach88/detrace/internal/trace/tracetest"
)

func TestValidateEventOrderHappyPath(t *testing.T) {
	events := tracetest.Happy("run-x", "build").Events(t)
	assert.Empty(t, ValidateEventOrder(WorkflowHappy, events))
}

func TestValidateEventOrderFailureWorkflow(t *testing.T) {
	events := tracetest.Failure("run-x", "case-1", "case-2").Events(t)
	assert.Empty(t, ValidateEventOrder(WorkflowFailure, events))
}

func TestValidateEventOrderEmptyTrace(t *testing.T) {
	errs := ValidateEventOrder(WorkflowHappy, nil)
	assert.Equal(t, []string{"events log is empty"}, errs)
}

func TestValidateEventOrderBoundaries(t *testing.T) {
	t.Run("missing run_start", func(t *testing.T) {
		b := tracetest.NewBuilder("run-x")
		b.Add(trace.EventStepStart, map[string]any{"step_id": "build"})
		b.Add(trace.EventStepEnd, map[string]any{"step_id": "build"})
		b.Add(trace.EventRunEnd, nil)

		errs := ValidateEventOrder(WorkflowHappy, b.Events(t))
		assert.Contains(t, errs, "first event_type must be run_start")
	})

	t.Run("missing run_end", func(t *testing.T) {
		b := tracetest.NewBuilder("run-x")
		b.Add(trace.EventRunStart, nil)
		b.Add(trace.EventStepStart, map[string]any{"step_id": "build"})
		b.Add(trace.EventStepEnd, map[string]any{"step_id": "build"})

		errs := ValidateEventOrder(WorkflowHappy, b.Events(t))
		assert.Contains(t, errs, "last event_type must be run_end")
	})
}

func TestValidateEventOrderMissingRunID(t *testing.T) {
	b := tracetest.NewBuilder("run-x")
	b.Add(trace.EventRunStart, map[string]any{"run_id": nil, "correlation_id": "run-x-corr-0001"})
	b.Add(trace.EventRunEnd, nil)

	errs := ValidateEventOrder(WorkflowHappy, b.Events(t))
	assert.Contains(t, errs, "event 1: missing run_id")
	// run_id unknown: prefix checks are skipped, sequencing still applies.
	assert.NotContains(t, errs, `event 1: correlation_id prefix "run-x" does not match run_id ""`)
}

func TestValidateEventOrderCorrelationSequenceGap(t *testing.T) {
	b := tracetest.NewBuilder("run-x")
	b.Add(trace.EventRunStart, map[string]any{"correlation_id": "run-x-corr-0001"})
	b.Add(trace.EventRunEnd, map[string]any{"correlation_id": "run-x-corr-0003"})

	errs := ValidateEventOrder(WorkflowHappy, b.Events(t))
	assert.Equal(t, []string{"event 2: correlation sequence expected 2 got 3"}, errs)
}

func TestValidateEventOrderSequenceResynchronizes(t *testing.T) {
	// One gap must produce one error, not an error per remaining event.
	b := tracetest.NewBuilder("run-x")
	b.Add(trace.EventRunStart, map[string]any{"correlation_id": "run-x-corr-0001"})
	b.Add(trace.EventStepStart, map[string]any{"step_id": "s", "correlation_id": "run-x-corr-0005"})
	b.Add(trace.EventStepEnd, map[string]any{"step_id": "s", "correlation_id": "run-x-corr-0006"})
	b.Add(trace.EventRunEnd, map[string]any{"correlation_id": "run-x-corr-0007"})

	errs := ValidateEventOrder(WorkflowHappy, b.Events(t))
	assert.Equal(t, []string{"event 2: correlation sequence expected 2 got 5"}, errs)
}

func TestValidateEventOrderCorrelationDefects(t *testing.T) {
	tests := []struct {
		name     string
		override map[string]any
		want     string
	}{
		{
			"missing correlation_id",
			map[string]any{"correlation_id": nil},
			"event 2: missing correlation_id",
		},
		{
			"empty correlation_id",
			map[string]any{"correlation_id": ""},
			"event 2: missing correlation_id",
		},
		{
			"malformed correlation_id",
			map[string]any{"correlation_id": "run-x-0002"},
			`event 2: malformed correlation_id "run-x-0002"`,
		},
		{
			"prefix mismatch",
			map[string]any{"correlation_id": "other-corr-0002"},
			`event 2: correlation_id prefix "other" does not match run_id "run-x"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := tracetest.NewBuilder("run-x")
			b.Add(trace.EventRunStart, nil)
			b.Add(trace.EventStepStart, merge(map[string]any{"step_id": "s"}, tt.override))
			b.Add(trace.EventStepEnd, map[string]any{"step_id": "s", "correlation_id": "run-x-corr-0003"})
			b.Add(trace.EventRunEnd, map[string]any{"correlation_id": "run-x-corr-0004"})

			errs := ValidateEventOrder(WorkflowHappy, b.Events(t))
			assert.Contains(t, errs, tt.want)
		})
	}
}

func TestValidateEventOrderDuplicateCorrelation(t *testing.T) {
	b := tracetest.NewBuilder("run-x")
	b.Add(trace.EventRunStart, nil)
	b.Add(trace.EventRunEnd, map[string]any{"correlation_id": "run-x-corr-0001"})

	errs := ValidateEventOrder(WorkflowHappy, b.Events(t))
	assert.Contains(t, errs, `event 2: duplicate correlation_id "run-x-corr-0001"`)
}

func TestValidateEventOrderRunIDWithCorrInfix(t *testing.T) {
	// A run id containing "-corr-" must still parse: the prefix binds
	// greedily to the last "-corr-" occurrence.
	events := tracetest.Happy("run-corr-a", "build").Events(t)
	assert.Empty(t, ValidateEventOrder(WorkflowHappy, events))
}

func TestValidateEventOrderStepPairing(t *testing.T) {
	b := tracetest.NewBuilder("run-x")
	b.Add(trace.EventRunStart, nil)
	b.Add(trace.EventStepStart, map[string]any{"step_id": "build"})
	b.Add(trace.EventStepEnd, map[string]any{"step_id": "build"})
	b.Add(trace.EventStepStart, map[string]any{"step_id": "capture"})
	b.Add(trace.EventRunEnd, nil)

	errs := ValidateEventOrder(WorkflowHappy, b.Events(t))
	assert.Contains(t, errs, `step "capture" missing step_end`)
	assert.NotContains(t, errs, `step "build" missing step_end`)
}

func TestValidateEventOrderCasePairingSkipsSentinel(t *testing.T) {
	b := tracetest.NewBuilder("run-x")
	b.Add(trace.EventRunStart, map[string]any{"case_id": trace.CaseSentinel})
	b.Add(trace.EventCaseStart, map[string]any{"case_id": "seed"})
	b.Add(trace.EventRunEnd, map[string]any{"case_id": trace.CaseSentinel})

	errs := ValidateEventOrder(WorkflowFailure, b.Events(t))
	assert.Contains(t, errs, `case "seed" missing case_end`)
	for _, e := range errs {
		assert.NotContains(t, e, trace.CaseSentinel)
	}
}

func TestValidateEventOrderAccumulatesAllErrors(t *testing.T) {
	b := tracetest.NewBuilder("run-x")
	b.Add(trace.EventStepStart, map[string]any{"step_id": "build", "correlation_id": nil})
	b.Add(trace.EventStepEnd, map[string]any{"step_id": "deploy", "correlation_id": "run-x-corr-0009"})

	errs := ValidateEventOrder(WorkflowHappy, b.Events(t))
	require.GreaterOrEqual(t, len(errs), 4)
	assert.Contains(t, errs, "first event_type must be run_start")
	assert.Contains(t, errs, "last event_type must be run_end")
	assert.Contains(t, errs, "event 1: missing correlation_id")
	assert.Contains(t, errs, `step "build" missing step_end`)
	assert.Contains(t, errs, `step "deploy" missing step_start`)
}

func merge(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}
