package cli

import (
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/detrace/internal/trace"
	"github.com/roach88/detrace/internal/trace/tracetest"
)

var hexDigestPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestFingerprintCommandTextOutput(t *testing.T) {
	path := writeTrace(t, tracetest.Happy("run-x", "build"))

	out, _, err := runCommand(t, "fingerprint", "--trace", path)
	require.NoError(t, err)
	assert.Regexp(t, hexDigestPattern, strings.TrimSpace(out))
}

func TestFingerprintCommandJSONOutput(t *testing.T) {
	path := writeTrace(t, tracetest.Happy("run-x", "build"))

	out, _, err := runCommand(t, "fingerprint", "--trace", path, "--format", "json")
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)

	data := resp.Data.(map[string]any)
	assert.Equal(t, path, data["trace"])
	assert.Equal(t, float64(4), data["total_events"])
	assert.Regexp(t, hexDigestPattern, data["fingerprint"])
}

func TestFingerprintCommandStableAcrossRunIdentity(t *testing.T) {
	a := writeTrace(t, tracetest.Happy("run-a", "build"))
	b := writeTrace(t, tracetest.Happy("run-b", "build"))

	outA, _, err := runCommand(t, "fingerprint", "--trace", a)
	require.NoError(t, err)
	outB, _, err := runCommand(t, "fingerprint", "--trace", b)
	require.NoError(t, err)

	assert.Equal(t, outA, outB)
}

func TestFingerprintCommandSensitiveToBehavior(t *testing.T) {
	a := writeTrace(t, tracetest.Happy("run-a", "build"))

	changed := tracetest.NewBuilder("run-a")
	changed.Add(trace.EventRunStart, nil)
	changed.Add(trace.EventStepStart, map[string]any{"step_id": "build"})
	changed.Add(trace.EventStepEnd, map[string]any{"step_id": "build", "exit_code": 1})
	changed.Add(trace.EventRunEnd, nil)
	b := writeTrace(t, changed)

	outA, _, err := runCommand(t, "fingerprint", "--trace", a)
	require.NoError(t, err)
	outB, _, err := runCommand(t, "fingerprint", "--trace", b)
	require.NoError(t, err)

	assert.NotEqual(t, outA, outB)
}

func TestFingerprintCommandUnparsableTrace(t *testing.T) {
	b := tracetest.NewBuilder("run-x")
	b.RawLine("garbage")
	path := writeTrace(t, b)

	_, _, err := runCommand(t, "fingerprint", "--trace", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestFingerprintCommandMissingFile(t *testing.T) {
	_, _, err := runCommand(t, "fingerprint",
		"--trace", filepath.Join(t.TempDir(), "absent.ndjson"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
