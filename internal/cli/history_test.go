package cli

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/detrace/internal/diff"
	"github.com/roach88/detrace/internal/history"
	"github.com/roach88/detrace/internal/soak"
)

const recordedFingerprint = "a3f1c0de9b8e7d6c5b4a3f2e1d0c9b8a7f6e5d4c3b2a1f0e9d8c7b6a5f4e3d2c"

func recordedDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "soak.db")

	st, err := history.Open(path)
	require.NoError(t, err)
	defer st.Close()

	report := soak.Report{
		Status:    soak.StatusFailed,
		SessionID: "sess-1",
		RunRoot:   "/soak",
		WorkflowReports: []soak.WorkflowReport{
			{
				Workflow: "happy",
				Status:   soak.StatusFailed,
				Iterations: []soak.IterationReport{
					{Iteration: 1, Fingerprint: recordedFingerprint},
					{Iteration: 2, Fingerprint: recordedFingerprint},
				},
			},
		},
		Divergences: []soak.DivergenceRecord{
			{
				Workflow:         "happy",
				CurrentIteration: 2,
				Divergence:       diff.Divergence{Reason: diff.ReasonNormalizedEventMismatch},
			},
		},
	}
	require.NoError(t, st.RecordReport(context.Background(), report))
	return path
}

func TestHistoryCommandListSessions(t *testing.T) {
	db := recordedDB(t)

	out, _, err := runCommand(t, "history", "--db", db, "--format", "json")
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)

	data := resp.Data.(map[string]any)
	sessions := data["sessions"].([]any)
	require.Len(t, sessions, 1)
	sess := sessions[0].(map[string]any)
	assert.Equal(t, "sess-1", sess["id"])
	assert.Equal(t, "failed", sess["status"])
	assert.Equal(t, "/soak", sess["run_root"])
}

func TestHistoryCommandSessionIterations(t *testing.T) {
	db := recordedDB(t)

	out, _, err := runCommand(t, "history", "--db", db, "--session", "sess-1", "--format", "json")
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	data := resp.Data.(map[string]any)
	iterations := data["iterations"].([]any)
	require.Len(t, iterations, 2)

	second := iterations[1].(map[string]any)
	assert.Equal(t, float64(2), second["iteration"])
	assert.Equal(t, recordedFingerprint, second["fingerprint"])
	assert.Equal(t, "normalized_event_mismatch", second["divergence_reason"])
}

func TestHistoryCommandTextOutput(t *testing.T) {
	db := recordedDB(t)

	out, _, err := runCommand(t, "history", "--db", db, "--session", "sess-1")
	require.NoError(t, err)

	assert.Contains(t, out, "happy")
	assert.Contains(t, out, recordedFingerprint[:12])
	assert.Contains(t, out, "normalized_event_mismatch")
}

func TestHistoryCommandEmptyDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "empty.db")

	out, _, err := runCommand(t, "history", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "No sessions recorded.", strings.TrimSpace(out))
}

func TestHistoryCommandUnknownSession(t *testing.T) {
	db := recordedDB(t)

	out, _, err := runCommand(t, "history", "--db", db, "--session", "absent")
	require.NoError(t, err)
	assert.Contains(t, out, "No iterations found for session: absent")
}
