package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))

	wrapped := fmt.Errorf("outer: %w", NewExitError(ExitCommandError, "inner"))
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
}

func TestExitErrorMessage(t *testing.T) {
	assert.Equal(t, "boom", NewExitError(1, "boom").Error())

	wrapped := WrapExitError(2, "load config", errors.New("no such file"))
	assert.Equal(t, "load config: no such file", wrapped.Error())
	assert.EqualError(t, errors.Unwrap(wrapped), "no such file")
}

func TestOutputFormatterSuccessJSON(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &buf}

	require.NoError(t, f.Success(map[string]string{"k": "v"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Error)
	assert.Equal(t, map[string]any{"k": "v"}, resp.Data)
}

func TestOutputFormatterFailureJSON(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &buf}

	require.NoError(t, f.Failure("E001", "validation failed", map[string]string{"k": "v"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E001", resp.Error.Code)
	assert.Equal(t, "validation failed", resp.Error.Message)
	assert.NotNil(t, resp.Data, "the failure envelope still carries the report")
}

func TestOutputFormatterFailureText(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "text", Writer: &buf}

	require.NoError(t, f.Failure("E002", "traces diverge", nil))
	assert.Equal(t, "Error [E002]: traces diverge\n", buf.String())
}

func TestOutputFormatterVerboseLog(t *testing.T) {
	var out, errBuf bytes.Buffer

	quiet := &OutputFormatter{Format: "json", Writer: &out, ErrWriter: &errBuf}
	quiet.VerboseLog("hidden %d", 1)
	assert.Empty(t, errBuf.String())

	verbose := &OutputFormatter{Format: "json", Writer: &out, ErrWriter: &errBuf, Verbose: true}
	verbose.VerboseLog("parsed %d event(s)", 4)
	assert.Equal(t, "parsed 4 event(s)\n", errBuf.String())
	assert.Empty(t, out.String(), "diagnostics must not pollute JSON output")
}
