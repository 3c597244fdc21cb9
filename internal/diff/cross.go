package diff

import (
	"sort"

	"github.com/roach88/detrace/internal/allowlist"
	"github.com/roach88/detrace/internal/normalize"
)

// Mode controls how unexpected cross-trace differences are treated.
type Mode string

const (
	// ModeStrict fails the comparison on any unexpected difference.
	ModeStrict Mode = "strict"
	// ModeWarn records unexpected differences without failing.
	ModeWarn Mode = "warn"
)

// Valid reports whether m names a known mode.
func (m Mode) Valid() bool {
	return m == ModeStrict || m == ModeWarn
}

// NamedTrace is one participant in a cross-trace comparison, e.g. the
// normalized trace of one browser.
type NamedTrace struct {
	Name   string
	Path   string
	Events []normalize.Event
}

// PairResult is the outcome of comparing one trace pair.
type PairResult struct {
	Pair          string      `json:"pair"`
	BaselinePath  string      `json:"baseline_path,omitempty"`
	CurrentPath   string      `json:"current_path,omitempty"`
	Divergence    *Divergence `json:"divergence,omitempty"`
	Expected      bool        `json:"expected"`
	Rule          string      `json:"rule,omitempty"`
	Justification string      `json:"justification,omitempty"`
}

// CrossReport aggregates all pairwise comparisons of a trace set.
type CrossReport struct {
	Status          string       `json:"status"` // "passed" | "failed"
	Mode            Mode         `json:"mode"`
	Pairs           []PairResult `json:"pairs"`
	UnexpectedCount int          `json:"unexpected_count"`
	UsedRules       []string     `json:"used_rules"`
	UnusedRules     []string     `json:"unused_rules"`
}

// ComparePairwise compares every pair of N named traces and classifies
// each detected difference against the known-divergence allowlist.
//
// Pair order follows input order, so rules address pairs as
// "first-name|second-name". Unmatched differences are unexpected: in
// strict mode any unexpected difference fails the report, in warn mode it
// is recorded but the report still passes. Used and unused rules are both
// reported so stale allowlist entries stay visible.
func ComparePairwise(traces []NamedTrace, rules []allowlist.Rule, mode Mode) CrossReport {
	report := CrossReport{Status: "passed", Mode: mode}
	used := make(map[string]bool)

	for i := 0; i < len(traces); i++ {
		for j := i + 1; j < len(traces); j++ {
			pair := allowlist.PairLabel(traces[i].Name, traces[j].Name)
			result := PairResult{
				Pair:         pair,
				BaselinePath: traces[i].Path,
				CurrentPath:  traces[j].Path,
			}

			if d := Compare(traces[i].Events, traces[j].Events); d != nil {
				result.Divergence = d
				if rule, ok := matchRule(rules, pair, d); ok {
					result.Expected = true
					result.Rule = rule.Name
					result.Justification = rule.Justification
					used[rule.Name] = true
				} else {
					report.UnexpectedCount++
				}
			}
			report.Pairs = append(report.Pairs, result)
		}
	}

	for _, rule := range rules {
		if used[rule.Name] {
			report.UsedRules = append(report.UsedRules, rule.Name)
		} else {
			report.UnusedRules = append(report.UnusedRules, rule.Name)
		}
	}
	sort.Strings(report.UsedRules)
	sort.Strings(report.UnusedRules)

	if mode == ModeStrict && report.UnexpectedCount > 0 {
		report.Status = "failed"
	}
	return report
}

// matchRule finds the first rule covering the divergence for the given
// pair. A rule covers a divergence when its field pattern matches the
// divergence's value for that field on either side of the comparison.
func matchRule(rules []allowlist.Rule, pair string, d *Divergence) (allowlist.Rule, bool) {
	for _, rule := range rules {
		for _, value := range fieldValues(rule.Field, d) {
			if rule.Matches(pair, rule.Field, value) {
				return rule, true
			}
		}
	}
	return allowlist.Rule{}, false
}

func fieldValues(field string, d *Divergence) []string {
	switch field {
	case "reason":
		return []string{d.Reason}
	case "event_type":
		return []string{d.BaselineEventType, d.CurrentEventType}
	case "step_id":
		return []string{d.BaselineStepID, d.CurrentStepID}
	case "case_id":
		return []string{d.BaselineCaseID, d.CurrentCaseID}
	default:
		return nil
	}
}
