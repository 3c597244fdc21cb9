package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/detrace/internal/config"
	"github.com/roach88/detrace/internal/normalize"
	"github.com/roach88/detrace/internal/trace"
	"github.com/roach88/detrace/internal/validate"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Trace    string
	Workflow string
	Out      string
	Config   string
	SoakRoot string
	RunDir   string
}

// ValidationReport is the validate command's machine-readable output.
// MissingTools is always present: the engine never fills it, but callers
// merge collaborator setup failures into the same document.
type ValidationReport struct {
	Status       string   `json:"status"`
	Workflow     string   `json:"workflow"`
	TotalEvents  int      `json:"total_events"`
	Errors       []string `json:"errors"`
	MissingTools []string `json:"missing_tools"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a workflow trace",
		Long: `Validate a line-delimited JSON trace against the event schema and the
run lifecycle state machine.

Checks required fields on every event, run_start/run_end boundaries,
step/case pairing for the given workflow, correlation-id sequencing, and
artifact digest shape. All violations are reported in one pass.

Exit codes:
  0 - trace passed
  1 - validation failed
  2 - command error (unreadable trace, bad flags)

Examples:
  detrace validate --trace events.ndjson --workflow happy
  detrace validate --trace events.ndjson --workflow failure --out report.json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Trace, "trace", "", "path to trace file (required)")
	_ = cmd.MarkFlagRequired("trace")
	cmd.Flags().StringVar(&opts.Workflow, "workflow", "", "workflow label: happy|failure (required)")
	_ = cmd.MarkFlagRequired("workflow")
	cmd.Flags().StringVar(&opts.Out, "out", "", "write JSON report to this path")
	cmd.Flags().StringVar(&opts.Config, "config", "", "path to YAML config")
	cmd.Flags().StringVar(&opts.SoakRoot, "soak-root", "", "soak root path to normalize away")
	cmd.Flags().StringVar(&opts.RunDir, "run-dir", "", "run directory path to normalize away")

	return cmd
}

func runValidate(opts *ValidateOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	workflow := validate.Workflow(opts.Workflow)
	if !workflow.Valid() {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown workflow %q: must be happy or failure", opts.Workflow))
	}

	cfg, err := loadConfig(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "load config", err)
	}

	// A missing or unreadable path is a command error; a readable file
	// with bad content is a validation failure.
	if _, err := os.Stat(opts.Trace); err != nil {
		return WrapExitError(ExitCommandError, "trace file", err)
	}

	report := validateTrace(opts, workflow, cfg, formatter)

	if opts.Out != "" {
		if err := writeJSONFile(opts.Out, report); err != nil {
			return WrapExitError(ExitCommandError, "write report", err)
		}
	}

	if report.Status == "passed" {
		if opts.Format == "json" {
			return formatter.Success(report)
		}
		fmt.Fprintf(formatter.Writer, "✓ trace passed (%d events, workflow %s)\n", report.TotalEvents, report.Workflow)
		return nil
	}

	if opts.Format == "json" {
		_ = formatter.Failure("E001", fmt.Sprintf("validation failed with %d error(s)", len(report.Errors)), report)
	} else {
		fmt.Fprintf(formatter.Writer, "✗ trace failed (%d events, workflow %s)\n\n", report.TotalEvents, report.Workflow)
		for _, e := range report.Errors {
			fmt.Fprintf(formatter.Writer, "  %s\n", e)
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(report.Errors)))
}

// validateTrace runs the full single-trace validation pass. An unparsable
// trace is a hard validation failure of the trace, not a command error:
// the file was there, its content was wrong.
func validateTrace(opts *ValidateOptions, workflow validate.Workflow, cfg config.Config, formatter *OutputFormatter) ValidationReport {
	report := ValidationReport{
		Status:       "passed",
		Workflow:     string(workflow),
		Errors:       []string{},
		MissingTools: []string{},
	}

	tr, err := trace.ParseFile(opts.Trace)
	if err != nil {
		report.Status = "failed"
		report.Errors = append(report.Errors, fmt.Sprintf("parse trace: %v", err))
		return report
	}
	report.TotalEvents = len(tr.Events)
	formatter.VerboseLog("parsed %d event(s) from %s", len(tr.Events), opts.Trace)

	report.Errors = append(report.Errors, validate.RequiredFieldErrors(tr.Events, cfg.RequiredFieldsFor(string(workflow)))...)
	report.Errors = append(report.Errors, validate.StructuralErrors(tr.Events)...)
	report.Errors = append(report.Errors, validate.ValidateEventOrder(workflow, tr.Events)...)

	// Shape errors force the run to failed regardless of other checks.
	events := normalize.NormalizeTrace(tr, normalize.Options{
		Roots:            normalize.Roots{SoakRoot: opts.SoakRoot, RunDir: opts.RunDir},
		VolatileSuffixes: cfg.Suffixes(),
	})
	report.Errors = append(report.Errors, normalize.ShapeErrors(events)...)

	if len(report.Errors) > 0 {
		report.Status = "failed"
	}
	return report
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
