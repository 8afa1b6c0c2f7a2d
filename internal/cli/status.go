package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/storywatch/storyfold/internal/store"
)

// recentRunCount is how many runs the status command shows.
const recentRunCount = 5

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	Database string
}

// StatusReport is the status command's JSON payload.
type StatusReport struct {
	Overview   *store.Overview   `json:"overview"`
	RecentRuns []store.RunRecord `json:"recent_runs"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show a database overview",
		Long: `Show the database at a glance: table sizes, the event hierarchy per
country, and the most recent consolidation runs.

Examples:
  storyfold status --db ./events.db
  storyfold status --db ./events.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runStatus(opts *StatusOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	overview, err := st.GetOverview(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to collect overview", err)
	}
	runs, err := st.ListRuns(ctx, "", recentRunCount)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	report := StatusReport{Overview: overview, RecentRuns: runs}
	if opts.Format == "json" {
		return encodeResponse(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: report})
	}
	return outputStatusText(cmd, report)
}

// outputStatusText outputs the overview as text.
func outputStatusText(cmd *cobra.Command, report StatusReport) error {
	w := cmd.OutOrStdout()
	o := report.Overview

	fmt.Fprintln(w, "Database overview:")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Documents: %d\n", o.Documents)
	fmt.Fprintf(w, "  Clusters:  %d\n", o.Clusters)
	fmt.Fprintf(w, "  Events:    %d (%d masters, %d children)\n", o.Events, o.Masters, o.Children)
	fmt.Fprintf(w, "  Mentions:  %d (%d articles)\n", o.Mentions, o.Articles)
	fmt.Fprintf(w, "  Runs:      %d\n", o.Runs)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Countries ===")
	if len(o.Countries) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, ct := range o.Countries {
		fmt.Fprintf(w, "  %s: events %d (%d masters, %d children, %d validated), mentions %d, articles %d\n",
			ct.Country, ct.Events, ct.Masters, ct.Children, ct.Validated, ct.Mentions, ct.Articles)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Recent runs ===")
	if len(report.RecentRuns) == 0 {
		fmt.Fprintln(w, "  (no runs recorded)")
	}
	for _, run := range report.RecentRuns {
		fmt.Fprintf(w, "  %s\n", formatRunLine(run))
	}

	return nil
}
