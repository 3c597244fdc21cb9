package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/detrace/internal/normalize"
	"github.com/roach88/detrace/internal/trace"
)

// FingerprintOptions holds flags for the fingerprint command.
type FingerprintOptions struct {
	*RootOptions
	Trace    string
	Config   string
	SoakRoot string
	RunDir   string
}

// FingerprintResult is the fingerprint command's output.
type FingerprintResult struct {
	Trace       string `json:"trace"`
	TotalEvents int    `json:"total_events"`
	Fingerprint string `json:"fingerprint"`
}

// NewFingerprintCommand creates the fingerprint command.
func NewFingerprintCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FingerprintOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fingerprint",
		Short: "Print the canonical fingerprint of a normalized trace",
		Long: `Normalize a trace and print its canonical SHA-256 fingerprint.

Two traces with equal fingerprints are behaviorally identical under the
normalization model; differing wall-clock times, run identities, and
volatile artifacts do not affect the digest.

Examples:
  detrace fingerprint --trace events.ndjson
  detrace fingerprint --trace events.ndjson --soak-root /tmp/soak --run-dir /tmp/soak/iter-0001`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFingerprint(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Trace, "trace", "", "path to trace file (required)")
	_ = cmd.MarkFlagRequired("trace")
	cmd.Flags().StringVar(&opts.Config, "config", "", "path to YAML config")
	cmd.Flags().StringVar(&opts.SoakRoot, "soak-root", "", "soak root path to normalize away")
	cmd.Flags().StringVar(&opts.RunDir, "run-dir", "", "run directory path to normalize away")

	return cmd
}

func runFingerprint(opts *FingerprintOptions, cmd *cobra.Command) error {
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

	tr, err := trace.ParseFile(opts.Trace)
	if err != nil {
		return WrapExitError(ExitCommandError, "parse trace", err)
	}

	events := normalize.NormalizeTrace(tr, normalize.Options{
		Roots:            normalize.Roots{SoakRoot: opts.SoakRoot, RunDir: opts.RunDir},
		VolatileSuffixes: cfg.Suffixes(),
	})
	fingerprint, err := normalize.Fingerprint(events)
	if err != nil {
		return WrapExitError(ExitCommandError, "fingerprint", err)
	}

	result := FingerprintResult{
		Trace:       opts.Trace,
		TotalEvents: len(tr.Events),
		Fingerprint: fingerprint,
	}
	if opts.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintln(formatter.Writer, fingerprint)
	return nil
}
