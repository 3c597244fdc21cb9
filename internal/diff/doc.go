// Package diff locates the first behavioral difference between normalized
// traces.
//
// Compare is the two-trace primitive: an index-wise structural walk that
// either returns nil (behaviorally identical) or a Divergence naming the
// first mismatching event with enough context to reproduce it. ComparePairwise
// extends it to N named traces with a known-divergence allowlist.
package diff
