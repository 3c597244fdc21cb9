// Package trace defines the event model for line-delimited JSON workflow
// traces and the canonical serialization used for content-addressed
// fingerprinting.
//
// A trace file contains one JSON object per line, each describing a single
// lifecycle event (run_start, step_start, artifact, ...) emitted by an
// instrumented workflow run. Traces are read-only inputs: everything this
// module derives from them (normalized events, fingerprints, divergence
// reports) is recomputed per validation pass and never written back.
//
// Canonical serialization follows RFC 8785: object keys sorted by UTF-16
// code units, NFC-normalized strings, no HTML escaping, no incidental
// whitespace. Two traces that serialize to the same canonical bytes are
// guaranteed to hash to the same fingerprint.
package trace
