package soak

import (
	"github.com/roach88/detrace/internal/diff"
)

// IterationReport records one iteration's validation outcome.
type IterationReport struct {
	Iteration   int      `json:"iteration"`
	Skipped     bool     `json:"skipped"`
	SkipReason  string   `json:"skip_reason,omitempty"`
	Errors      []string `json:"errors,omitempty"`
	Fingerprint string   `json:"fingerprint,omitempty"`
	TracePath   string   `json:"trace_path,omitempty"`
}

// DivergenceRecord is a located divergence plus everything needed to
// reproduce it: both iterations' numbers and trace paths.
type DivergenceRecord struct {
	Workflow          string          `json:"workflow"`
	BaselineIteration int             `json:"baseline_iteration"`
	CurrentIteration  int             `json:"current_iteration"`
	BaselineTrace     string          `json:"baseline_trace"`
	CurrentTrace      string          `json:"current_trace"`
	Divergence        diff.Divergence `json:"divergence"`
}

// WorkflowReport aggregates one workflow's iterations.
type WorkflowReport struct {
	Workflow          string             `json:"workflow"`
	Status            string             `json:"status"`
	BaselineIteration int                `json:"baseline_iteration,omitempty"`
	Iterations        []IterationReport  `json:"iterations"`
	Errors            []string           `json:"errors,omitempty"`
	Divergences       []DivergenceRecord `json:"divergences,omitempty"`
}

// Report is the soak session verdict across all workflows.
//
// Status is skipped only when every workflow's iterations were uniformly
// skipped; failed when any global error, divergence, or per-workflow
// failure exists; passed otherwise.
type Report struct {
	Status              string             `json:"status"`
	SessionID           string             `json:"session_id"`
	IterationsRequested int                `json:"iterations_requested"`
	RunRoot             string             `json:"run_root"`
	WorkflowReports     []WorkflowReport   `json:"workflow_reports"`
	GlobalErrors        []string           `json:"global_errors,omitempty"`
	Divergences         []DivergenceRecord `json:"divergences,omitempty"`
	FirstDivergence     *DivergenceRecord  `json:"first_divergence,omitempty"`
}
