package soak

import (
	"encoding/json"
	"fmt"
	"os"
)

// Run statuses shared by summaries, workflow reports, and the overall
// report.
const (
	StatusPassed  = "passed"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// RunSummary is the external run's own verdict, produced by the workflow
// runner. The engine consumes only the skip classification; it never
// produces a summary itself.
type RunSummary struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// ReadSummary decodes a run summary document.
func ReadSummary(path string) (RunSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunSummary{}, fmt.Errorf("read summary: %w", err)
	}

	var summary RunSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return RunSummary{}, fmt.Errorf("parse summary %s: %w", path, err)
	}

	switch summary.Status {
	case StatusPassed, StatusFailed, StatusSkipped:
		return summary, nil
	default:
		return RunSummary{}, fmt.Errorf("summary %s: unknown status %q", path, summary.Status)
	}
}
