package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/detrace/internal/history"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Session  string
}

// HistoryResult is the history command's JSON output.
type HistoryResult struct {
	Sessions   []history.Session      `json:"sessions,omitempty"`
	Iterations []history.IterationRow `json:"iterations,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Query recorded soak sessions",
		Long: `List soak sessions recorded by 'detrace soak --history', or show one
session's per-iteration rows.

Examples:
  detrace history --db soak.db
  detrace history --db soak.db --session 0190f0a2-...`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to history database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "show iterations for this session")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	st, err := history.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "open history database", err)
	}
	defer st.Close()

	if opts.Session == "" {
		sessions, err := st.ListSessions(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "list sessions", err)
		}
		if opts.Format == "json" {
			return formatter.Success(HistoryResult{Sessions: sessions})
		}
		if len(sessions) == 0 {
			fmt.Fprintln(formatter.Writer, "No sessions recorded.")
			return nil
		}
		for _, sess := range sessions {
			fmt.Fprintf(formatter.Writer, "%s  %-7s  %s  %s\n", sess.ID, sess.Status, sess.CreatedAt, sess.RunRoot)
		}
		return nil
	}

	rows, err := st.SessionIterations(ctx, opts.Session)
	if err != nil {
		return WrapExitError(ExitCommandError, "query session", err)
	}
	if opts.Format == "json" {
		return formatter.Success(HistoryResult{Iterations: rows})
	}
	if len(rows) == 0 {
		fmt.Fprintf(formatter.Writer, "No iterations found for session: %s\n", opts.Session)
		return nil
	}
	for _, row := range rows {
		line := fmt.Sprintf("%-10s iter %4d  %-7s", row.Workflow, row.Iteration, row.Status)
		if row.Fingerprint != "" {
			line += "  " + row.Fingerprint[:12]
		}
		if row.DivergenceReason != "" {
			line += "  " + row.DivergenceReason
		}
		fmt.Fprintln(formatter.Writer, line)
	}
	return nil
}
