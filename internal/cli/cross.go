package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/detrace/internal/allowlist"
	"github.com/roach88/detrace/internal/diff"
	"github.com/roach88/detrace/internal/normalize"
	"github.com/roach88/detrace/internal/trace"
)

// CrossOptions holds flags for the cross command.
type CrossOptions struct {
	*RootOptions
	Traces    []string // "name=path" entries
	Allowlist string
	Mode      string
	Config    string
	SoakRoot  string
	RunDirs   []string // "name=dir" entries
	Out       string
}

// NewCrossCommand creates the cross command.
func NewCrossCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CrossOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cross",
		Short: "Pairwise-compare N named traces with a known-divergence allowlist",
		Long: `Compare every pair of named traces (e.g. one per browser) and classify
each detected difference against a CUE allowlist of known divergences.

Unmatched differences are unexpected: in strict mode (the default) any
unexpected difference fails the run; in warn mode it is only recorded.

Exit codes:
  0 - no unexpected differences (or warn mode)
  1 - unexpected difference in strict mode
  2 - command error (bad trace spec, unloadable allowlist)

Examples:
  detrace cross --trace chromium=chromium.ndjson --trace firefox=firefox.ndjson --allowlist ./known
  detrace cross --trace a=a.ndjson --trace b=b.ndjson --allowlist ./known --mode warn`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCross(opts, cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Traces, "trace", nil, "named trace as name=path (repeat; at least 2 required)")
	cmd.Flags().StringVar(&opts.Allowlist, "allowlist", "", "directory of CUE known-divergence rules")
	cmd.Flags().StringVar(&opts.Mode, "mode", string(diff.ModeStrict), "strict|warn")
	cmd.Flags().StringVar(&opts.Config, "config", "", "path to YAML config")
	cmd.Flags().StringVar(&opts.SoakRoot, "soak-root", "", "soak root path to normalize away")
	cmd.Flags().StringArrayVar(&opts.RunDirs, "run-dir", nil, "per-trace run directory as name=dir (repeat)")
	cmd.Flags().StringVar(&opts.Out, "out", "", "write JSON report to this path")

	return cmd
}

func runCross(opts *CrossOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	mode := diff.Mode(opts.Mode)
	if !mode.Valid() {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid mode %q: must be strict or warn", opts.Mode))
	}
	if len(opts.Traces) < 2 {
		return NewExitError(ExitCommandError, "at least two --trace name=path entries are required")
	}

	cfg, err := loadConfig(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "load config", err)
	}

	runDirs, err := parseNamedValues(opts.RunDirs)
	if err != nil {
		return WrapExitError(ExitCommandError, "parse --run-dir", err)
	}

	var rules []allowlist.Rule
	if opts.Allowlist != "" {
		var errs []error
		rules, errs = allowlist.Load(opts.Allowlist)
		if len(errs) > 0 {
			msgs := make([]string, len(errs))
			for i, e := range errs {
				msgs[i] = e.Error()
			}
			return NewExitError(ExitCommandError, "allowlist: "+strings.Join(msgs, "; "))
		}
		formatter.VerboseLog("loaded %d allowlist rule(s) from %s", len(rules), opts.Allowlist)
	}

	var traces []diff.NamedTrace
	seen := make(map[string]bool)
	for _, entry := range opts.Traces {
		name, path, err := splitNamedValue(entry)
		if err != nil {
			return WrapExitError(ExitCommandError, "parse --trace", err)
		}
		if seen[name] {
			return NewExitError(ExitCommandError, fmt.Sprintf("duplicate trace name %q", name))
		}
		seen[name] = true

		tr, err := trace.ParseFile(path)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("trace %s", name), err)
		}
		events := normalize.NormalizeTrace(tr, normalize.Options{
			Roots:            normalize.Roots{SoakRoot: opts.SoakRoot, RunDir: runDirs[name]},
			VolatileSuffixes: cfg.Suffixes(),
		})
		traces = append(traces, diff.NamedTrace{Name: name, Path: path, Events: events})
	}

	report := diff.ComparePairwise(traces, rules, mode)

	if opts.Out != "" {
		if err := writeJSONFile(opts.Out, report); err != nil {
			return WrapExitError(ExitCommandError, "write report", err)
		}
	}

	if report.Status == "passed" {
		if opts.Format == "json" {
			return formatter.Success(report)
		}
		writeCrossText(formatter, report)
		return nil
	}

	if opts.Format == "json" {
		_ = formatter.Failure("E004", fmt.Sprintf("%d unexpected difference(s)", report.UnexpectedCount), report)
	} else {
		writeCrossText(formatter, report)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%d unexpected difference(s)", report.UnexpectedCount))
}

func writeCrossText(formatter *OutputFormatter, report diff.CrossReport) {
	w := formatter.Writer
	fmt.Fprintf(w, "cross-trace comparison: %s (mode %s)\n", report.Status, report.Mode)
	for _, pair := range report.Pairs {
		switch {
		case pair.Divergence == nil:
			fmt.Fprintf(w, "  %s: identical\n", pair.Pair)
		case pair.Expected:
			fmt.Fprintf(w, "  %s: expected divergence at event %d (%s), rule %s: %s\n",
				pair.Pair, pair.Divergence.FirstDivergenceEventIndex, pair.Divergence.Reason,
				pair.Rule, pair.Justification)
		default:
			fmt.Fprintf(w, "  %s: UNEXPECTED divergence at event %d (%s)\n",
				pair.Pair, pair.Divergence.FirstDivergenceEventIndex, pair.Divergence.Reason)
		}
	}
	if len(report.UnusedRules) > 0 {
		fmt.Fprintf(w, "unused allowlist rules: %s\n", strings.Join(report.UnusedRules, ", "))
	}
}

func splitNamedValue(entry string) (name, value string, err error) {
	name, value, ok := strings.Cut(entry, "=")
	if !ok || name == "" || value == "" {
		return "", "", fmt.Errorf("expected name=value, got %q", entry)
	}
	return name, value, nil
}

func parseNamedValues(entries []string) (map[string]string, error) {
	out := make(map[string]string, len(entries))
	for _, entry := range entries {
		name, value, err := splitNamedValue(entry)
		if err != nil {
			return nil, err
		}
		out[name] = value
	}
	return out, nil
}
