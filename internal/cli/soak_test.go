package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/detrace/internal/history"
	"github.com/roach88/detrace/internal/soak"
	"github.com/roach88/detrace/internal/trace"
	"github.com/roach88/detrace/internal/trace/tracetest"
)

func writeSoakIteration(t *testing.T, root string, iteration int, workflow string, b *tracetest.Builder, status, reason string) {
	t.Helper()
	dir := filepath.Join(root, fmt.Sprintf("iter-%04d", iteration), workflow)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	if b != nil {
		b.WriteFile(t, filepath.Join(dir, soak.TraceFileName))
	}

	summary, err := json.Marshal(soak.RunSummary{Status: status, Reason: reason})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, soak.SummaryFileName), summary, 0o644))
}

func stableSoakRoot(t *testing.T, iterations int) string {
	t.Helper()
	root := t.TempDir()
	for i := 1; i <= iterations; i++ {
		runID := fmt.Sprintf("run-%04d", i)
		writeSoakIteration(t, root, i, "happy", tracetest.Happy(runID, "build"), soak.StatusPassed, "")
		writeSoakIteration(t, root, i, "failure", tracetest.Failure(runID+"f", "seed"), soak.StatusPassed, "")
	}
	return root
}

func TestSoakCommandPasses(t *testing.T) {
	root := stableSoakRoot(t, 3)

	out, _, err := runCommand(t, "soak", "--run-root", root, "--iterations", "3", "--format", "json")
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)

	data := resp.Data.(map[string]any)
	assert.Equal(t, "passed", data["status"])
	assert.Equal(t, float64(3), data["iterations_requested"])
	assert.Len(t, data["workflow_reports"], 2, "defaults to the happy and failure workflows")
}

func TestSoakCommandDetectsDivergence(t *testing.T) {
	root := t.TempDir()
	writeSoakIteration(t, root, 1, "happy", tracetest.Happy("run-0001", "build"), soak.StatusPassed, "")

	diverged := tracetest.NewBuilder("run-0002")
	diverged.Add(trace.EventRunStart, nil)
	diverged.Add(trace.EventStepStart, map[string]any{"step_id": "build"})
	diverged.Add(trace.EventStepEnd, map[string]any{"step_id": "build", "exit_code": 1})
	diverged.Add(trace.EventRunEnd, nil)
	writeSoakIteration(t, root, 2, "happy", diverged, soak.StatusPassed, "")

	out, _, err := runCommand(t, "soak", "--run-root", root, "--workflows", "happy",
		"--iterations", "2", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E003", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "1 divergence(s)")

	data := resp.Data.(map[string]any)
	first := data["first_divergence"].(map[string]any)
	assert.Equal(t, "happy", first["workflow"])
	assert.Equal(t, float64(1), first["baseline_iteration"])
	assert.Equal(t, float64(2), first["current_iteration"])
}

func TestSoakCommandUniformSkipExitsZero(t *testing.T) {
	root := t.TempDir()
	for i := 1; i <= 2; i++ {
		writeSoakIteration(t, root, i, "happy", nil, soak.StatusSkipped, "environment unavailable")
	}

	out, _, err := runCommand(t, "soak", "--run-root", root, "--workflows", "happy",
		"--iterations", "2", "--format", "json")
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "skipped", data["status"])
}

func TestSoakCommandMixedSkipFails(t *testing.T) {
	root := t.TempDir()
	writeSoakIteration(t, root, 1, "happy", tracetest.Happy("run-0001", "build"), soak.StatusPassed, "")
	writeSoakIteration(t, root, 2, "happy", nil, soak.StatusSkipped, "flaky env")

	_, _, err := runCommand(t, "soak", "--run-root", root, "--workflows", "happy", "--iterations", "2")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestSoakCommandMissingRunRoot(t *testing.T) {
	_, _, err := runCommand(t, "soak",
		"--run-root", filepath.Join(t.TempDir(), "absent"), "--iterations", "1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSoakCommandIterationCap(t *testing.T) {
	root := stableSoakRoot(t, 1)

	_, _, err := runCommand(t, "soak", "--run-root", root, "--workflows", "happy", "--iterations", "9999")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "exceeds cap")
}

func TestSoakCommandWritesReports(t *testing.T) {
	root := stableSoakRoot(t, 2)
	jsonPath := filepath.Join(t.TempDir(), "report.json")
	textPath := filepath.Join(t.TempDir(), "report.txt")

	_, _, err := runCommand(t, "soak", "--run-root", root, "--workflows", "happy",
		"--iterations", "2", "--out", jsonPath, "--text", textPath)
	require.NoError(t, err)

	var report soak.Report
	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, soak.StatusPassed, report.Status)

	text, err := os.ReadFile(textPath)
	require.NoError(t, err)
	assert.Contains(t, string(text), "detrace soak report")
	assert.Contains(t, string(text), "status: passed")
}

func TestSoakCommandRecordsHistory(t *testing.T) {
	root := stableSoakRoot(t, 2)
	dbPath := filepath.Join(t.TempDir(), "soak.db")

	_, _, err := runCommand(t, "soak", "--run-root", root, "--workflows", "happy",
		"--iterations", "2", "--history", dbPath)
	require.NoError(t, err)

	st, err := history.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	sessions, err := st.ListSessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, soak.StatusPassed, sessions[0].Status)
	assert.Equal(t, root, sessions[0].RunRoot)

	rows, err := st.SessionIterations(context.Background(), sessions[0].ID)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
