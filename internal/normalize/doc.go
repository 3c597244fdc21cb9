// Package normalize projects raw trace events into a comparison-safe form.
//
// Normalization removes everything that legitimately varies between
// otherwise-identical runs: wall-clock timestamps, durations, run and
// correlation identities, raw output digests, filesystem roots, and the
// contents of known-volatile artifacts. Two runs that did the same thing
// normalize to deep-equal event lists and therefore to equal fingerprints.
//
// The projection is pure: it never mutates its input and computes the same
// output for the same input.
package normalize
