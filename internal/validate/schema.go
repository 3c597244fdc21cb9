package validate

import (
	_ "embed"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/roach88/detrace/internal/trace"
)

//go:embed event.schema.json
var eventSchemaJSON string

// eventSchema is compiled once at package load. The schema is embedded, so
// a compile failure is a programming error, not an input error.
var eventSchema = jsonschema.MustCompileString("event.schema.json", eventSchemaJSON)

// DefaultRequiredFields is the field set every event must carry unless a
// workflow overrides it in configuration.
var DefaultRequiredFields = []string{
	"schema_version",
	"timestamp_utc",
	"run_id",
	"correlation_id",
	"event_type",
	"command",
	"env_hash",
	"duration_ms",
	"exit_code",
}

// RequiredFieldErrors reports every event missing any of the required
// field keys. The scan never short-circuits: all events are checked and
// all absences reported, so one pass yields maximal diagnostics.
//
// Event indices in messages are one-based, consistent with lifecycle and
// divergence locators.
func RequiredFieldErrors(events []trace.Event, required []string) []string {
	var errs []string
	for i := range events {
		for _, field := range required {
			if !events[i].Has(field) {
				errs = append(errs, fmt.Sprintf("event %d: missing required field '%s'", i+1, field))
			}
		}
	}
	return errs
}

// StructuralErrors validates each event's raw object against the embedded
// event schema. This catches type-level defects the required-field scan
// cannot see: string fields carrying numbers, unknown event_type values,
// non-object artifact_hashes.
//
// Field presence is deliberately NOT part of the schema; RequiredFieldErrors
// owns it, so each absence is reported exactly once.
func StructuralErrors(events []trace.Event) []string {
	var errs []string
	for i := range events {
		if err := eventSchema.Validate(events[i].Raw()); err != nil {
			errs = append(errs, fmt.Sprintf("event %d: %s", i+1, flattenSchemaError(err)))
		}
	}
	return errs
}

// flattenSchemaError collapses jsonschema's hierarchical error into the
// most specific leaf cause, which is the one worth showing per event.
func flattenSchemaError(err error) string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	if ve.InstanceLocation != "" {
		return fmt.Sprintf("%s: %s", ve.InstanceLocation, ve.Message)
	}
	return ve.Message
}
