package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/detrace/internal/diff"
	"github.com/roach88/detrace/internal/normalize"
	"github.com/roach88/detrace/internal/trace"
)

// CompareOptions holds flags for the compare command.
type CompareOptions struct {
	*RootOptions
	Baseline        string
	Candidate       string
	Config          string
	SoakRoot        string
	BaselineRunDir  string
	CandidateRunDir string
}

// CompareResult is the compare command's output.
type CompareResult struct {
	Baseline            string           `json:"baseline"`
	Candidate           string           `json:"candidate"`
	BaselineFingerprint string           `json:"baseline_fingerprint"`
	CurrentFingerprint  string           `json:"current_fingerprint"`
	Divergence          *diff.Divergence `json:"divergence,omitempty"`
}

// NewCompareCommand creates the compare command.
func NewCompareCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompareOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare two traces for behavioral divergence",
		Long: `Normalize two traces and locate their first behavioral divergence.

Differences confined to timestamps, durations, run identities,
correlation ids, or volatile artifacts do not count as divergence.

Exit codes:
  0 - traces are behaviorally identical
  1 - divergence detected
  2 - command error

Examples:
  detrace compare --baseline a/events.ndjson --candidate b/events.ndjson
  detrace compare --baseline a.ndjson --candidate b.ndjson \
      --soak-root /tmp/soak --baseline-run-dir /tmp/soak/iter-0001 --candidate-run-dir /tmp/soak/iter-0002`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Baseline, "baseline", "", "baseline trace path (required)")
	_ = cmd.MarkFlagRequired("baseline")
	cmd.Flags().StringVar(&opts.Candidate, "candidate", "", "candidate trace path (required)")
	_ = cmd.MarkFlagRequired("candidate")
	cmd.Flags().StringVar(&opts.Config, "config", "", "path to YAML config")
	cmd.Flags().StringVar(&opts.SoakRoot, "soak-root", "", "soak root path to normalize away")
	cmd.Flags().StringVar(&opts.BaselineRunDir, "baseline-run-dir", "", "baseline run directory to normalize away")
	cmd.Flags().StringVar(&opts.CandidateRunDir, "candidate-run-dir", "", "candidate run directory to normalize away")

	return cmd
}

func runCompare(opts *CompareOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := loadConfig(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "load config", err)
	}

	baseline, baselineFP, err := loadNormalized(opts.Baseline, opts.SoakRoot, opts.BaselineRunDir, cfg.Suffixes())
	if err != nil {
		return WrapExitError(ExitCommandError, "baseline", err)
	}
	candidate, candidateFP, err := loadNormalized(opts.Candidate, opts.SoakRoot, opts.CandidateRunDir, cfg.Suffixes())
	if err != nil {
		return WrapExitError(ExitCommandError, "candidate", err)
	}

	result := CompareResult{
		Baseline:            opts.Baseline,
		Candidate:           opts.Candidate,
		BaselineFingerprint: baselineFP,
		CurrentFingerprint:  candidateFP,
	}

	// Equal fingerprints guarantee equality; the walk only runs to
	// localize a difference.
	if baselineFP != candidateFP {
		result.Divergence = diff.Compare(baseline, candidate)
	}

	if result.Divergence == nil {
		if opts.Format == "json" {
			return formatter.Success(result)
		}
		fmt.Fprintln(formatter.Writer, "✓ traces are behaviorally identical")
		return nil
	}

	d := result.Divergence
	if opts.Format == "json" {
		_ = formatter.Failure("E002", "traces diverge", result)
	} else {
		fmt.Fprintf(formatter.Writer, "✗ divergence at event %d: %s\n", d.FirstDivergenceEventIndex, d.Reason)
		if d.Reason == diff.ReasonEventCountMismatch {
			fmt.Fprintf(formatter.Writer, "  baseline events: %d\n", d.BaselineEventCount)
			fmt.Fprintf(formatter.Writer, "  candidate events: %d\n", d.CurrentEventCount)
		} else {
			fmt.Fprintf(formatter.Writer, "  baseline: type=%s step=%q case=%q\n", d.BaselineEventType, d.BaselineStepID, d.BaselineCaseID)
			fmt.Fprintf(formatter.Writer, "  candidate: type=%s step=%q case=%q\n", d.CurrentEventType, d.CurrentStepID, d.CurrentCaseID)
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("divergence at event %d", d.FirstDivergenceEventIndex))
}

func loadNormalized(path, soakRoot, runDir string, suffixes []string) ([]normalize.Event, string, error) {
	tr, err := trace.ParseFile(path)
	if err != nil {
		return nil, "", err
	}
	events := normalize.NormalizeTrace(tr, normalize.Options{
		Roots:            normalize.Roots{SoakRoot: soakRoot, RunDir: runDir},
		VolatileSuffixes: suffixes,
	})
	fingerprint, err := normalize.Fingerprint(events)
	if err != nil {
		return nil, "", err
	}
	return events, fingerprint, nil
}
