package normalize

import (
	"bytes"
	"fmt"

	"github.com/roach88/detrace/internal/trace"
)

// canonicalMap renders the event for canonical serialization. Expected and
// actual are included only when present so that their absence and an empty
// mapping stay distinguishable.
func (e Event) canonicalMap() map[string]any {
	m := map[string]any{
		"schema_version":               e.SchemaVersion,
		"case_id":                      e.CaseID,
		"step_id":                      e.StepID,
		"event_type":                   e.EventType,
		"command":                      e.Command,
		"env_hash":                     e.EnvHash,
		"exit_code":                    e.ExitCode,
		"stable_artifact_hashes":       e.StableArtifactHashes,
		"artifact_hash_count":          int64(e.ArtifactHashCount),
		"volatile_artifact_hash_count": int64(e.VolatileArtifactHashCount),
		"artifact_hash_shape_errors":   e.ArtifactHashShapeErrors,
	}
	if e.Expected != nil {
		m["expected"] = e.Expected
	}
	if e.Actual != nil {
		m["actual"] = e.Actual
	}
	return m
}

// CanonicalJSON returns the canonical serialization of one normalized
// event.
func (e Event) CanonicalJSON() ([]byte, error) {
	return trace.MarshalCanonical(e.canonicalMap())
}

// Equal reports structural equality over the full normalized event.
// Equality is defined as equal canonical serializations, the same relation
// the fingerprint hashes. A serialization failure (possible only for
// values canonical JSON cannot express) compares unequal.
func (e Event) Equal(other Event) bool {
	a, err := e.CanonicalJSON()
	if err != nil {
		return false
	}
	b, err := other.CanonicalJSON()
	if err != nil {
		return false
	}
	return bytes.Equal(a, b)
}

// Fingerprint computes the canonical hash of an ordered normalized trace.
// Equal fingerprints guarantee behavioral equality under this model;
// unequal fingerprints require the divergence detector to localize the
// difference.
func Fingerprint(events []Event) (string, error) {
	list := make([]any, len(events))
	for i := range events {
		list[i] = events[i].canonicalMap()
	}
	digest, err := trace.HashCanonical(trace.DomainTrace, list)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return digest, nil
}
