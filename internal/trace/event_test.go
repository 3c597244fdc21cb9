package trace

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWellFormedTrace(t *testing.T) {
	input := `{"schema_version":"1","timestamp_utc":"2026-01-01T00:00:01Z","run_id":"run-x","correlation_id":"run-x-corr-0001","event_type":"run_start","command":"","env_hash":"e","duration_ms":12,"exit_code":0}
{"schema_version":"1","timestamp_utc":"2026-01-01T00:00:02Z","run_id":"run-x","correlation_id":"run-x-corr-0002","event_type":"run_end","command":"","env_hash":"e","duration_ms":3,"exit_code":0,"artifact_hashes":{"out.bin":"aa"}}
`

	tr, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, tr.Events, 2)

	first := tr.Events[0]
	assert.Equal(t, "run-x", first.RunID)
	assert.Equal(t, "run-x-corr-0001", first.CorrelationID)
	assert.Equal(t, EventRunStart, first.EventType)
	assert.Equal(t, int64(12), first.DurationMS)
	assert.Equal(t, "run-x", tr.RunID())

	last := tr.Events[1]
	assert.Equal(t, map[string]string{"out.bin": "aa"}, last.ArtifactHashes)
}

func TestParseBlankLinesAreNotEvents(t *testing.T) {
	input := "{\"event_type\":\"run_start\"}\n\n   \n{\"event_type\":\"run_end\"}\n"

	tr, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	assert.Len(t, tr.Events, 2)
}

func TestParseInvalidLineFailsWholeTrace(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"garbage", "{\"event_type\":\"run_start\"}\nnot json\n"},
		{"truncated object", "{\"event_type\":\"run_start\"\n"},
		{"array line", "[1,2,3]\n"},
		{"scalar line", "42\n"},
		{"null line", "null\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := Parse(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Nil(t, tr, "a bad line must invalidate the whole trace")
		})
	}
}

func TestParseErrorNamesLine(t *testing.T) {
	input := "{\"event_type\":\"run_start\"}\n{\"event_type\":\"run_end\"}\nboom\n"

	_, err := Parse(strings.NewReader(input))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
}

func TestParseRetainsUnknownKeys(t *testing.T) {
	input := `{"event_type":"run_start","run_id":"r","browser":"chromium","frame_hash":"ff"}` + "\n"

	tr, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, tr.Events, 1)

	ev := tr.Events[0]
	assert.Equal(t, "chromium", ev.Extra["browser"])
	assert.Equal(t, "ff", ev.Extra["frame_hash"])
	assert.True(t, ev.Has("frame_hash"))
	assert.False(t, ev.Has("command"))
}

func TestParseFieldPresenceVsZero(t *testing.T) {
	input := `{"event_type":"run_start","command":"","exit_code":0}` + "\n"

	tr, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	ev := tr.Events[0]
	assert.True(t, ev.Has("command"))
	assert.True(t, ev.Has("exit_code"))
	assert.False(t, ev.Has("run_id"))
}

func TestParseWrongTypeYieldsZeroValue(t *testing.T) {
	// Type-level defects are the structural schema check's job; the typed
	// extraction must not fail on them.
	input := `{"event_type":"run_start","run_id":12,"duration_ms":"fast"}` + "\n"

	tr, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	ev := tr.Events[0]
	assert.Equal(t, "", ev.RunID)
	assert.Equal(t, int64(0), ev.DurationMS)
	assert.True(t, ev.Has("run_id"))
}
