package soak

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/roach88/detrace/internal/config"
	"github.com/roach88/detrace/internal/diff"
	"github.com/roach88/detrace/internal/normalize"
	"github.com/roach88/detrace/internal/trace"
	"github.com/roach88/detrace/internal/validate"
)

// Aggregator runs the soak aggregation loop.
type Aggregator struct {
	Runner WorkflowRunner
	Config config.Config
	Logger *slog.Logger

	// SessionID overrides the generated session identity. Tests use it to
	// keep reports byte-stable.
	SessionID string
}

// Run aggregates the given workflows over N iterations.
//
// The returned error covers caller mistakes only (bad iteration counts);
// everything observed in the artifacts, however broken, lands in the
// report so a single pass is maximally informative.
func (a *Aggregator) Run(ctx context.Context, runRoot string, workflows []string, iterations int) (Report, error) {
	if iterations < 1 {
		return Report{}, fmt.Errorf("iterations must be at least 1, got %d", iterations)
	}
	if max := a.Config.MaxIterations; max > 0 && iterations > max {
		return Report{}, fmt.Errorf("iterations %d exceeds cap %d", iterations, max)
	}
	if len(workflows) == 0 {
		return Report{}, fmt.Errorf("no workflows given")
	}

	logger := a.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	sessionID := a.SessionID
	if sessionID == "" {
		sessionID = uuid.Must(uuid.NewV7()).String()
	}

	report := Report{
		SessionID:           sessionID,
		IterationsRequested: iterations,
		RunRoot:             runRoot,
	}

	for _, workflow := range workflows {
		if !validate.Workflow(workflow).Valid() {
			report.GlobalErrors = append(report.GlobalErrors,
				fmt.Sprintf("unknown workflow %q", workflow))
			continue
		}

		logger.Info("aggregating workflow", "workflow", workflow, "iterations", iterations)
		wr := a.runWorkflow(ctx, logger, runRoot, workflow, iterations)
		report.WorkflowReports = append(report.WorkflowReports, wr)
		report.Divergences = append(report.Divergences, wr.Divergences...)
	}

	if len(report.Divergences) > 0 {
		report.FirstDivergence = &report.Divergences[0]
	}
	report.Status = overallStatus(&report)
	return report, nil
}

func (a *Aggregator) runWorkflow(ctx context.Context, logger *slog.Logger, runRoot, workflow string, iterations int) WorkflowReport {
	wr := WorkflowReport{Workflow: workflow}

	var baselineEvents []normalize.Event
	var baselineTrace string
	skipped, nonSkipped := 0, 0

	for i := 1; i <= iterations; i++ {
		ir := IterationReport{Iteration: i}

		artifacts, err := a.Runner.Run(ctx, workflow, i)
		if err != nil {
			ir.Errors = append(ir.Errors, fmt.Sprintf("resolve artifacts: %v", err))
			wr.Iterations = append(wr.Iterations, ir)
			nonSkipped++
			continue
		}
		ir.TracePath = artifacts.TracePath

		summary, err := ReadSummary(artifacts.SummaryPath)
		if err != nil {
			ir.Errors = append(ir.Errors, err.Error())
			wr.Iterations = append(wr.Iterations, ir)
			nonSkipped++
			continue
		}

		if summary.Status == StatusSkipped {
			ir.Skipped = true
			ir.SkipReason = summary.Reason
			wr.Iterations = append(wr.Iterations, ir)
			skipped++
			logger.Debug("iteration skipped", "workflow", workflow, "iteration", i, "reason", summary.Reason)
			continue
		}
		nonSkipped++

		tr, err := trace.ParseFile(artifacts.TracePath)
		if err != nil {
			// Unparsable trace is fatal for the iteration, not partial.
			ir.Errors = append(ir.Errors, fmt.Sprintf("parse trace: %v", err))
			wr.Iterations = append(wr.Iterations, ir)
			continue
		}

		ir.Errors = append(ir.Errors, validate.RequiredFieldErrors(tr.Events, a.Config.RequiredFieldsFor(workflow))...)
		ir.Errors = append(ir.Errors, validate.StructuralErrors(tr.Events)...)
		ir.Errors = append(ir.Errors, validate.ValidateEventOrder(validate.Workflow(workflow), tr.Events)...)

		events := normalize.NormalizeTrace(tr, normalize.Options{
			Roots:            normalize.Roots{SoakRoot: runRoot, RunDir: artifacts.Dir},
			VolatileSuffixes: a.Config.Suffixes(),
		})
		ir.Errors = append(ir.Errors, normalize.ShapeErrors(events)...)

		fingerprint, err := normalize.Fingerprint(events)
		if err != nil {
			ir.Errors = append(ir.Errors, fmt.Sprintf("fingerprint: %v", err))
		} else {
			ir.Fingerprint = fingerprint
		}

		if baselineEvents == nil {
			baselineEvents = events
			baselineTrace = artifacts.TracePath
			wr.BaselineIteration = i
		} else if d := diff.Compare(baselineEvents, events); d != nil {
			wr.Divergences = append(wr.Divergences, DivergenceRecord{
				Workflow:          workflow,
				BaselineIteration: wr.BaselineIteration,
				CurrentIteration:  i,
				BaselineTrace:     baselineTrace,
				CurrentTrace:      artifacts.TracePath,
				Divergence:        *d,
			})
			logger.Warn("divergence detected",
				"workflow", workflow,
				"baseline", wr.BaselineIteration,
				"current", i,
				"event", d.FirstDivergenceEventIndex,
				"reason", d.Reason)
		}

		wr.Iterations = append(wr.Iterations, ir)
	}

	// A mix of skipped and non-skipped iterations means the environment
	// itself is non-deterministic. Promote to a hard failure rather than
	// silently averaging it away.
	if skipped > 0 && nonSkipped > 0 {
		wr.Errors = append(wr.Errors,
			fmt.Sprintf("workflow %s: %d skipped and %d non-skipped iterations; environment state is ambiguous", workflow, skipped, nonSkipped))
	}

	wr.Status = workflowStatus(&wr, skipped, nonSkipped)
	return wr
}

func workflowStatus(wr *WorkflowReport, skipped, nonSkipped int) string {
	if skipped > 0 && nonSkipped == 0 {
		return StatusSkipped
	}
	if len(wr.Errors) > 0 || len(wr.Divergences) > 0 {
		return StatusFailed
	}
	for _, ir := range wr.Iterations {
		if len(ir.Errors) > 0 {
			return StatusFailed
		}
	}
	return StatusPassed
}

func overallStatus(r *Report) string {
	if len(r.GlobalErrors) > 0 || len(r.Divergences) > 0 {
		return StatusFailed
	}

	allSkipped := len(r.WorkflowReports) > 0
	for _, wr := range r.WorkflowReports {
		switch wr.Status {
		case StatusFailed:
			return StatusFailed
		case StatusSkipped:
		default:
			allSkipped = false
		}
	}
	if allSkipped {
		return StatusSkipped
	}
	return StatusPassed
}
