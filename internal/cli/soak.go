package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/detrace/internal/history"
	"github.com/roach88/detrace/internal/soak"
)

// SoakOptions holds flags for the soak command.
type SoakOptions struct {
	*RootOptions
	RunRoot    string
	Workflows  []string
	Iterations int
	Config     string
	HistoryDB  string
	Out        string
	Text       string
}

// NewSoakCommand creates the soak command.
func NewSoakCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SoakOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "soak",
		Short: "Aggregate repeated workflow runs into a determinism verdict",
		Long: `Validate N iterations of each workflow under a soak run root and
compare every non-skipped iteration against the first one (the baseline).

Expects the conventional layout left behind by the workflow runner:

  <run-root>/iter-0001/<workflow>/events.ndjson
  <run-root>/iter-0001/<workflow>/run_summary.json

Exit codes:
  0 - all workflows passed, or every iteration was uniformly skipped
  1 - validation errors or divergence detected
  2 - command error

Examples:
  detrace soak --run-root /tmp/soak --workflows happy,failure --iterations 5
  detrace soak --run-root /tmp/soak --workflows happy --iterations 10 --history soak.db --out report.json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSoak(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.RunRoot, "run-root", "", "soak run root directory (required)")
	_ = cmd.MarkFlagRequired("run-root")
	cmd.Flags().StringSliceVar(&opts.Workflows, "workflows", []string{"happy", "failure"}, "workflows to aggregate")
	cmd.Flags().IntVar(&opts.Iterations, "iterations", 0, "number of iterations (required)")
	_ = cmd.MarkFlagRequired("iterations")
	cmd.Flags().StringVar(&opts.Config, "config", "", "path to YAML config")
	cmd.Flags().StringVar(&opts.HistoryDB, "history", "", "record the session in this SQLite database")
	cmd.Flags().StringVar(&opts.Out, "out", "", "write JSON report to this path")
	cmd.Flags().StringVar(&opts.Text, "text", "", "write plain-text report to this path")

	return cmd
}

func runSoak(opts *SoakOptions, cmd *cobra.Command) error {
	ctx := context.Background()

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
	if info, err := os.Stat(opts.RunRoot); err != nil || !info.IsDir() {
		return NewExitError(ExitCommandError, fmt.Sprintf("run root is not a directory: %s", opts.RunRoot))
	}

	aggregator := &soak.Aggregator{
		Runner: soak.DirRunner{Root: opts.RunRoot},
		Config: cfg,
	}
	if opts.Verbose {
		aggregator.Logger = soak.NewLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	}

	report, err := aggregator.Run(ctx, opts.RunRoot, opts.Workflows, opts.Iterations)
	if err != nil {
		return WrapExitError(ExitCommandError, "soak aggregation", err)
	}

	if opts.Out != "" {
		if err := writeJSONFile(opts.Out, report); err != nil {
			return WrapExitError(ExitCommandError, "write report", err)
		}
	}
	if opts.Text != "" {
		f, err := os.Create(opts.Text)
		if err != nil {
			return WrapExitError(ExitCommandError, "write text report", err)
		}
		writeErr := soak.WriteText(f, report)
		closeErr := f.Close()
		if writeErr != nil {
			return WrapExitError(ExitCommandError, "write text report", writeErr)
		}
		if closeErr != nil {
			return WrapExitError(ExitCommandError, "write text report", closeErr)
		}
	}

	if opts.HistoryDB != "" {
		if err := recordHistory(ctx, opts.HistoryDB, report); err != nil {
			return WrapExitError(ExitCommandError, "record history", err)
		}
		formatter.VerboseLog("session %s recorded in %s", report.SessionID, opts.HistoryDB)
	}

	switch report.Status {
	case soak.StatusPassed, soak.StatusSkipped:
		if opts.Format == "json" {
			return formatter.Success(report)
		}
		return soak.WriteText(formatter.Writer, report)
	default:
		if opts.Format == "json" {
			_ = formatter.Failure("E003", summarizeFailure(report), report)
		} else {
			_ = soak.WriteText(formatter.Writer, report)
		}
		return NewExitError(ExitFailure, summarizeFailure(report))
	}
}

func recordHistory(ctx context.Context, path string, report soak.Report) error {
	st, err := history.Open(path)
	if err != nil {
		return err
	}
	defer st.Close()
	return st.RecordReport(ctx, report)
}

func summarizeFailure(report soak.Report) string {
	var parts []string
	if n := len(report.Divergences); n > 0 {
		parts = append(parts, fmt.Sprintf("%d divergence(s)", n))
	}
	failed := 0
	for _, wr := range report.WorkflowReports {
		if wr.Status == soak.StatusFailed {
			failed++
		}
	}
	if failed > 0 {
		parts = append(parts, fmt.Sprintf("%d workflow(s) failed", failed))
	}
	if len(report.GlobalErrors) > 0 {
		parts = append(parts, fmt.Sprintf("%d global error(s)", len(report.GlobalErrors)))
	}
	if len(parts) == 0 {
		return "soak failed"
	}
	return "soak failed: " + strings.Join(parts, ", ")
}
