package soak

import (
	"fmt"
	"io"
	"strings"
)

// WriteText renders the human-readable soak report. The rendering always
// names the first divergence with both trace paths so a failure can be
// reproduced straight from the report.
func WriteText(w io.Writer, r Report) error {
	var b strings.Builder

	fmt.Fprintf(&b, "detrace soak report\n")
	fmt.Fprintf(&b, "session: %s\n", r.SessionID)
	fmt.Fprintf(&b, "run root: %s\n", r.RunRoot)
	fmt.Fprintf(&b, "iterations requested: %d\n", r.IterationsRequested)
	fmt.Fprintf(&b, "status: %s\n", r.Status)

	for _, wr := range r.WorkflowReports {
		fmt.Fprintf(&b, "\nworkflow %s: %s", wr.Workflow, wr.Status)
		if wr.BaselineIteration > 0 {
			fmt.Fprintf(&b, " (baseline iteration %d)", wr.BaselineIteration)
		}
		b.WriteByte('\n')

		for _, err := range wr.Errors {
			fmt.Fprintf(&b, "  error: %s\n", err)
		}
		for _, ir := range wr.Iterations {
			if ir.Skipped {
				fmt.Fprintf(&b, "  iteration %d: skipped (%s)\n", ir.Iteration, ir.SkipReason)
				continue
			}
			for _, err := range ir.Errors {
				fmt.Fprintf(&b, "  iteration %d: %s\n", ir.Iteration, err)
			}
		}
		for _, d := range wr.Divergences {
			fmt.Fprintf(&b, "  divergence: iteration %d vs baseline %d at event %d (%s)\n",
				d.CurrentIteration, d.BaselineIteration,
				d.Divergence.FirstDivergenceEventIndex, d.Divergence.Reason)
			fmt.Fprintf(&b, "    baseline trace: %s\n", d.BaselineTrace)
			fmt.Fprintf(&b, "    current trace:  %s\n", d.CurrentTrace)
		}
	}

	for _, err := range r.GlobalErrors {
		fmt.Fprintf(&b, "\nerror: %s\n", err)
	}

	if d := r.FirstDivergence; d != nil {
		fmt.Fprintf(&b, "\nfirst divergence: workflow %s, baseline %d, current %d, event %d, %s\n",
			d.Workflow, d.BaselineIteration, d.CurrentIteration,
			d.Divergence.FirstDivergenceEventIndex, d.Divergence.Reason)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
