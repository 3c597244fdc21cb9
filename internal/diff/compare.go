package diff

import (
	"github.com/roach88/detrace/internal/normalize"
)

// Divergence reasons.
const (
	ReasonEventCountMismatch      = "event_count_mismatch"
	ReasonNormalizedEventMismatch = "normalized_event_mismatch"
)

// Divergence localizes the first point where two normalized traces
// disagree. Indices are one-based.
type Divergence struct {
	Reason                    string `json:"reason"`
	FirstDivergenceEventIndex int    `json:"first_divergence_event_index"`
	BaselineEventCount        int    `json:"baseline_event_count,omitempty"`
	CurrentEventCount         int    `json:"current_event_count,omitempty"`
	BaselineEventType         string `json:"baseline_event_type,omitempty"`
	CurrentEventType          string `json:"current_event_type,omitempty"`
	BaselineStepID            string `json:"baseline_step_id,omitempty"`
	CurrentStepID             string `json:"current_step_id,omitempty"`
	BaselineCaseID            string `json:"baseline_case_id,omitempty"`
	CurrentCaseID             string `json:"current_case_id,omitempty"`
}

// Compare walks two normalized traces index by index and returns the first
// divergence, or nil when the traces are behaviorally identical.
//
// The function is pure and total: it never fails on well-formed normalized
// events, and equal inputs always return nil.
func Compare(baseline, candidate []normalize.Event) *Divergence {
	if len(baseline) != len(candidate) {
		return &Divergence{
			Reason:                    ReasonEventCountMismatch,
			FirstDivergenceEventIndex: 1,
			BaselineEventCount:        len(baseline),
			CurrentEventCount:         len(candidate),
		}
	}

	for i := range baseline {
		if baseline[i].Equal(candidate[i]) {
			continue
		}
		return &Divergence{
			Reason:                    ReasonNormalizedEventMismatch,
			FirstDivergenceEventIndex: i + 1,
			BaselineEventType:         baseline[i].EventType,
			CurrentEventType:          candidate[i].EventType,
			BaselineStepID:            baseline[i].StepID,
			CurrentStepID:             candidate[i].StepID,
			BaselineCaseID:            baseline[i].CaseID,
			CurrentCaseID:             candidate[i].CaseID,
		}
	}
	return nil
}
