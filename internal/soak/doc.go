// Package soak aggregates repeated workflow runs into a determinism
// verdict.
//
// A soak session validates each iteration's trace, fingerprints its
// normalized form, and compares every non-skipped iteration against the
// first non-skipped one (the baseline). The aggregation loop is inherently
// sequential: nothing can be compared until the baseline has been fully
// processed.
//
// The package never spawns workflow processes. A WorkflowRunner hands it
// artifacts an external runner left behind.
package soak
