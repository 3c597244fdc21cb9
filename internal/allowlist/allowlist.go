// Package allowlist loads known-divergence rules from CUE files.
//
// A rule names a trace pair and a field pattern that is expected to differ
// between those traces, with a written justification. Rules are declared
// under a top-level "divergence" struct:
//
//	divergence: firefox_scrollback: {
//		pair:          "chromium|firefox"
//		field:         "step_id"
//		pattern:       "^resize-"
//		justification: "firefox reflows scrollback on resize"
//	}
package allowlist

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// Fields a rule pattern may match against.
var validFields = map[string]bool{
	"reason":     true,
	"event_type": true,
	"step_id":    true,
	"case_id":    true,
}

// Rule is one known-divergence entry.
type Rule struct {
	Name          string `json:"name"`
	Pair          string `json:"pair"` // "a|b" trace-name pair, or "*" for any
	Field         string `json:"field"`
	Pattern       string `json:"pattern"` // regexp over the field value; empty matches any
	Justification string `json:"justification"`

	re *regexp.Regexp
}

// Matches reports whether the rule covers the given pair label and field
// value.
func (r Rule) Matches(pair, field, value string) bool {
	if r.Pair != "*" && r.Pair != pair {
		return false
	}
	if r.Field != field {
		return false
	}
	if r.re == nil {
		return true
	}
	return r.re.MatchString(value)
}

// LoadError describes a failure to load or validate an allowlist.
type LoadError struct {
	Code    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for allowlist loading.
const (
	ErrCodeNotFound    = "E101"
	ErrCodeNoFiles     = "E102"
	ErrCodeLoadFailed  = "E103"
	ErrCodeBuildFailed = "E104"
	ErrCodeBadRule     = "E105"
)

// ruleDTO mirrors the CUE rule shape for decoding.
type ruleDTO struct {
	Pair          string `json:"pair"`
	Field         string `json:"field"`
	Pattern       string `json:"pattern"`
	Justification string `json:"justification"`
}

// Load reads every CUE file in dir and returns the declared rules sorted
// by name. All rule-level problems are collected before returning so one
// pass surfaces every defect in the allowlist.
func Load(dir string) ([]Rule, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("allowlist directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing allowlist directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := findCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	divergences := value.LookupPath(cue.ParsePath("divergence"))
	if !divergences.Exists() {
		return nil, []error{&LoadError{Code: ErrCodeBadRule, Message: "no 'divergence' struct found in allowlist"}}
	}

	var rules []Rule
	var errs []error

	iter, iterErr := divergences.Fields()
	if iterErr != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("iterating divergences: %v", iterErr)}}
	}
	for iter.Next() {
		name := iter.Label()
		var dto ruleDTO
		if err := iter.Value().Decode(&dto); err != nil {
			errs = append(errs, &LoadError{Code: ErrCodeBadRule, Message: fmt.Sprintf("divergence %q: %v", name, err)})
			continue
		}

		rule, err := buildRule(name, dto)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rules = append(rules, rule)
	}

	sort.Slice(rules, func(i, j int) bool { return rules[i].Name < rules[j].Name })
	return rules, errs
}

func buildRule(name string, dto ruleDTO) (Rule, error) {
	if dto.Pair == "" {
		return Rule{}, &LoadError{Code: ErrCodeBadRule, Message: fmt.Sprintf("divergence %q: missing pair", name)}
	}
	if !validFields[dto.Field] {
		return Rule{}, &LoadError{Code: ErrCodeBadRule, Message: fmt.Sprintf("divergence %q: invalid field %q", name, dto.Field)}
	}
	if dto.Justification == "" {
		return Rule{}, &LoadError{Code: ErrCodeBadRule, Message: fmt.Sprintf("divergence %q: missing justification", name)}
	}

	rule := Rule{
		Name:          name,
		Pair:          dto.Pair,
		Field:         dto.Field,
		Pattern:       dto.Pattern,
		Justification: dto.Justification,
	}
	if dto.Pattern != "" {
		re, err := regexp.Compile(dto.Pattern)
		if err != nil {
			return Rule{}, &LoadError{Code: ErrCodeBadRule, Message: fmt.Sprintf("divergence %q: invalid pattern: %v", name, err)}
		}
		rule.re = re
	}
	return rule, nil
}

// PairLabel builds the canonical pair label for two trace names. Names are
// joined in input order; cross-trace comparison fixes the order, so rules
// are written against it.
func PairLabel(a, b string) string {
	return a + "|" + b
}

func findCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), ".cue") {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	return files, nil
}
