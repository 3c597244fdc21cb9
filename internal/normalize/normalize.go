package normalize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/detrace/internal/trace"
)

// Placeholder tokens substituted for run-specific filesystem roots.
const (
	TokenSoakRoot = "<SOAK_ROOT>"
	TokenRunDir   = "<RUN_DIR>"
)

// DefaultVolatileSuffixes lists artifact paths whose content is expected to
// differ between otherwise-identical runs (embedded timestamps, run ids).
// Matching is against the normalized path suffix.
var DefaultVolatileSuffixes = []string{
	"/run_meta.json",
	"/run_summary.txt",
	"/suite_summary.txt",
	"/report.json",
	"/index.html",
	"/custom_report.json",
	"/custom_report.html",
	"/case_results.json",
	"/summary.json",
	"/summary.txt",
}

// Roots identifies the run-specific directories to substitute away.
// Either field may be empty, in which case that substitution is skipped.
type Roots struct {
	SoakRoot string
	RunDir   string
}

// VolatileSuffixes can be narrowed or extended via configuration; nil
// means DefaultVolatileSuffixes.
type Options struct {
	Roots            Roots
	VolatileSuffixes []string
}

// Event is the comparison-safe projection of a trace event.
//
// Deliberately excluded: timestamp_utc, duration_ms, run_id,
// correlation_id, and stdout/stderr digests, so that two runs differing
// only in wall-clock time or process identity compare equal.
type Event struct {
	SchemaVersion             string            `json:"schema_version"`
	CaseID                    string            `json:"case_id"`
	StepID                    string            `json:"step_id"`
	EventType                 string            `json:"event_type"`
	Command                   string            `json:"command"`
	EnvHash                   string            `json:"env_hash"`
	ExitCode                  int64             `json:"exit_code"`
	Expected                  map[string]any    `json:"expected,omitempty"`
	Actual                    map[string]any    `json:"actual,omitempty"`
	StableArtifactHashes      map[string]string `json:"stable_artifact_hashes"`
	ArtifactHashCount         int               `json:"artifact_hash_count"`
	VolatileArtifactHashCount int               `json:"volatile_artifact_hash_count"`
	ArtifactHashShapeErrors   []string          `json:"artifact_hash_shape_errors"`
}

// NormalizeTrace normalizes every event of a trace in order.
func NormalizeTrace(tr *trace.Trace, opts Options) []Event {
	out := make([]Event, len(tr.Events))
	for i := range tr.Events {
		out[i] = NormalizeEvent(tr.Events[i], opts)
	}
	return out
}

// NormalizeEvent projects one raw event. The input is never mutated.
func NormalizeEvent(ev trace.Event, opts Options) Event {
	sub := newSubstituter(opts.Roots)
	suffixes := opts.VolatileSuffixes
	if suffixes == nil {
		suffixes = DefaultVolatileSuffixes
	}

	out := Event{
		SchemaVersion:           ev.SchemaVersion,
		CaseID:                  sub.apply(ev.CaseID),
		StepID:                  sub.apply(ev.StepID),
		EventType:               ev.EventType,
		Command:                 sub.apply(ev.Command),
		EnvHash:                 ev.EnvHash,
		ExitCode:                ev.ExitCode,
		Expected:                sub.applyMap(ev.Expected),
		Actual:                  sub.applyMap(ev.Actual),
		StableArtifactHashes:    map[string]string{},
		ArtifactHashShapeErrors: []string{},
	}

	// Path-sorted iteration keeps the shape-error list deterministic.
	paths := make([]string, 0, len(ev.ArtifactHashes))
	for path := range ev.ArtifactHashes {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		digest := ev.ArtifactHashes[path]
		normPath := sub.apply(path)
		out.ArtifactHashCount++

		if !isHexDigest(digest) {
			out.ArtifactHashShapeErrors = append(out.ArtifactHashShapeErrors, normPath)
			continue
		}
		if hasVolatileSuffix(normPath, suffixes) {
			out.VolatileArtifactHashCount++
			continue
		}
		out.StableArtifactHashes[normPath] = digest
	}
	return out
}

// HasShapeErrors reports whether any event in the list carries a malformed
// artifact digest. A shape error forces the containing run to failed
// regardless of other checks.
func HasShapeErrors(events []Event) bool {
	for i := range events {
		if len(events[i].ArtifactHashShapeErrors) > 0 {
			return true
		}
	}
	return false
}

// ShapeErrors collects all shape-error paths across a normalized trace,
// prefixed with their one-based event index.
func ShapeErrors(events []Event) []string {
	var errs []string
	for i := range events {
		for _, path := range events[i].ArtifactHashShapeErrors {
			errs = append(errs, fmt.Sprintf("event %d: malformed artifact digest for %s", i+1, path))
		}
	}
	return errs
}

// isHexDigest reports whether s is exactly 64 lowercase hex characters.
func isHexDigest(s string) bool {
	if len(s) != 64 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func hasVolatileSuffix(path string, suffixes []string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

// substituter replaces run-specific directory roots with stable tokens.
// RunDir is applied before SoakRoot because the run directory normally
// nests under the soak root; the more specific path must win.
type substituter struct {
	pairs [][2]string
}

func newSubstituter(roots Roots) substituter {
	var s substituter
	if roots.RunDir != "" {
		s.pairs = append(s.pairs, [2]string{roots.RunDir, TokenRunDir})
	}
	if roots.SoakRoot != "" {
		s.pairs = append(s.pairs, [2]string{roots.SoakRoot, TokenSoakRoot})
	}
	return s
}

func (s substituter) apply(in string) string {
	for _, p := range s.pairs {
		in = strings.ReplaceAll(in, p[0], p[1])
	}
	return in
}

// applyMap substitutes through nested mappings and sequences, rebuilding
// fresh containers so the source event stays untouched. Keys are iterated
// in sorted order for determinism, and keys themselves are substituted.
func (s substituter) applyMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(in))
	for _, k := range keys {
		out[s.apply(k)] = s.applyValue(in[k])
	}
	return out
}

func (s substituter) applyValue(v any) any {
	switch val := v.(type) {
	case string:
		return s.apply(val)
	case map[string]any:
		return s.applyMap(val)
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = s.applyValue(elem)
		}
		return out
	default:
		return v
	}
}
