package history

import (
	"context"
	"fmt"
)

// Session is one recorded soak session.
type Session struct {
	ID        string `json:"id"`
	RunRoot   string `json:"run_root"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// IterationRow is one recorded workflow iteration.
type IterationRow struct {
	SessionID        string `json:"session_id"`
	Workflow         string `json:"workflow"`
	Iteration        int    `json:"iteration"`
	Status           string `json:"status"`
	Fingerprint      string `json:"fingerprint,omitempty"`
	DivergenceReason string `json:"divergence_reason,omitempty"`
	TracePath        string `json:"trace_path,omitempty"`
}

// ListSessions returns all sessions, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_root, status, created_at FROM sessions ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.RunRoot, &sess.Status, &sess.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// SessionIterations returns one session's iteration rows in deterministic
// order (workflow, then iteration).
func (s *Store) SessionIterations(ctx context.Context, sessionID string) ([]IterationRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, workflow, iteration, status, fingerprint, divergence_reason, trace_path
		 FROM iterations
		 WHERE session_id = ?
		 ORDER BY workflow ASC, iteration ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query iterations: %w", err)
	}
	defer rows.Close()

	var out []IterationRow
	for rows.Next() {
		var row IterationRow
		if err := rows.Scan(&row.SessionID, &row.Workflow, &row.Iteration, &row.Status,
			&row.Fingerprint, &row.DivergenceReason, &row.TracePath); err != nil {
			return nil, fmt.Errorf("scan iteration: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
