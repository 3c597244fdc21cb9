package history

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/detrace/internal/soak"
)

// RecordReport writes a full soak report: the session row plus one row per
// (workflow, iteration). The whole write is one transaction; either the
// complete session is recorded or nothing is.
func (s *Store) RecordReport(ctx context.Context, report soak.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO sessions (id, run_root, status, created_at) VALUES (?, ?, ?, ?)`,
		report.SessionID, report.RunRoot, report.Status, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	divergenceByIteration := make(map[string]string)
	for _, d := range report.Divergences {
		key := iterationKey(d.Workflow, d.CurrentIteration)
		divergenceByIteration[key] = d.Divergence.Reason
	}

	for _, wr := range report.WorkflowReports {
		for _, ir := range wr.Iterations {
			status := soak.StatusPassed
			switch {
			case ir.Skipped:
				status = soak.StatusSkipped
			case len(ir.Errors) > 0:
				status = soak.StatusFailed
			}

			_, err = tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO iterations
				 (session_id, workflow, iteration, status, fingerprint, divergence_reason, trace_path)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				report.SessionID, wr.Workflow, ir.Iteration, status,
				ir.Fingerprint, divergenceByIteration[iterationKey(wr.Workflow, ir.Iteration)], ir.TracePath)
			if err != nil {
				return fmt.Errorf("insert iteration %s/%d: %w", wr.Workflow, ir.Iteration, err)
			}
		}
	}

	return tx.Commit()
}

func iterationKey(workflow string, iteration int) string {
	return fmt.Sprintf("%s/%d", workflow, iteration)
}
