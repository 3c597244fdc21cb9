// Package validate checks traces against the event schema and the run
// lifecycle state machine.
//
// All checks accumulate: a single pass over the trace reports every
// violation found, never just the first. Validators return string lists
// rather than errors because a violation is a property of the trace under
// inspection, not a failure of the validator.
package validate
