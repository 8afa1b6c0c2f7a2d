package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/storywatch/storyfold/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Run      string
	Country  string
	Limit    int
}

// RunDetail is one run plus its merge log, the drill-down payload.
type RunDetail struct {
	Run *store.RunRecord      `json:"run"`
	Log []store.MergeLogEntry `json:"log"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the consolidation audit trail",
		Long: `List recent consolidation runs, newest first, or drill into one run
with --run to see its merge log: every reassignment, additive merge
and child deletion in execution order.

Dry-run and failed runs keep their run record but no merge log; the
log rolls back with the transaction it describes.

Examples:
  storyfold history --db ./events.db
  storyfold history --db ./events.db --country KE --limit 10
  storyfold history --db ./events.db --run 01924f0a-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Run, "run", "", "run token to drill into")
	cmd.Flags().StringVar(&opts.Country, "country", "", "restrict the listing to one country")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum runs listed (0 = no limit)")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.Run != "" {
		return runHistoryDetail(ctx, st, opts, cmd)
	}

	runs, err := st.ListRuns(ctx, opts.Country, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	if opts.Format == "json" {
		return encodeResponse(cmd.OutOrStdout(), CLIResponse{
			Status: "ok",
			Data:   map[string]any{"runs": runs},
		})
	}

	w := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	fmt.Fprintf(w, "%d run(s):\n\n", len(runs))
	for _, run := range runs {
		fmt.Fprintf(w, "  %s\n", formatRunLine(run))
	}
	return nil
}

func runHistoryDetail(ctx context.Context, st *store.Store, opts *HistoryOptions, cmd *cobra.Command) error {
	rec, err := st.GetRun(ctx, opts.Run)
	if errors.Is(err, store.ErrRunNotFound) {
		return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", opts.Run))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to get run", err)
	}
	log, err := st.MergeLogOf(ctx, opts.Run)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to get merge log", err)
	}

	detail := RunDetail{Run: rec, Log: log}
	if opts.Format == "json" {
		return encodeResponse(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: detail})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Run %s:\n\n", rec.Token)
	fmt.Fprintf(w, "  Country:  %s\n", rec.Country)
	fmt.Fprintf(w, "  Status:   %s\n", rec.Status)
	fmt.Fprintf(w, "  Started:  %s\n", rec.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "  Finished: %s\n", rec.FinishedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "  Stats:    masters=%d children=%d reassigned=%d merged=%d deleted=%d\n",
		rec.Masters, rec.Children, rec.Reassigned, rec.Merged, rec.Deleted)
	if rec.Error != "" {
		fmt.Fprintf(w, "  Error:    %s\n", rec.Error)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Merge log ===")
	if len(log) == 0 {
		fmt.Fprintln(w, "  (no merge log)")
		return nil
	}
	for _, entry := range log {
		fmt.Fprintf(w, "  %s\n", formatLogEntry(entry))
	}
	return nil
}

// formatRunLine renders one run as a listing row.
func formatRunLine(run store.RunRecord) string {
	line := fmt.Sprintf("%s  %-3s %-9s %s",
		run.Token, run.Country, run.Status, run.StartedAt.Format(time.RFC3339))
	if run.Status == store.RunFailed {
		return line + "  " + run.Error
	}
	return fmt.Sprintf("%s  masters=%d children=%d reassigned=%d merged=%d deleted=%d",
		line, run.Masters, run.Children, run.Reassigned, run.Merged, run.Deleted)
}

// formatLogEntry renders one merge-log action. Drop-child entries
// carry no mention date or article count.
func formatLogEntry(entry store.MergeLogEntry) string {
	line := fmt.Sprintf("[%d] %-10s master=%d child=%d",
		entry.Seq, entry.Action, entry.MasterID, entry.ChildID)
	if entry.MentionDate != "" {
		line += fmt.Sprintf("  %s  articles=%d", entry.MentionDate, entry.ArticlesMoved)
	}
	return line
}
