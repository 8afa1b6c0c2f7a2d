package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/storywatch/storyfold/internal/merge"
	"github.com/storywatch/storyfold/internal/store"
)

// ConsolidateOptions holds flags for the consolidate command.
type ConsolidateOptions struct {
	*RootOptions
	Database  string
	Registry  string
	Countries []string
	All       bool
	DryRun    bool

	// Tokens allows overriding the run token generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	Tokens merge.TokenGenerator
}

// ConsolidateReport is the batch outcome plus its rollup, the JSON
// payload of the consolidate command.
type ConsolidateReport struct {
	DryRun  bool                  `json:"dry_run"`
	Results []merge.CountryResult `json:"results"`
	Totals  merge.Stats           `json:"totals"`
	Failed  int                   `json:"failed"`
}

// NewConsolidateCommand creates the consolidate command.
func NewConsolidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConsolidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "consolidate",
		Short: "Fold children into validated masters",
		Long: `Fold the daily mentions of child events into their validated master
events, one transaction per country. Drained children are deleted and
master aggregates refreshed; every mutation lands in the merge log
under a fresh run token.

Scope comes from --country flags or --all. With --registry the scope
is resolved against the CUE country registry (aliases accepted,
disabled countries refused); without it, the countries present in the
database act as the registry. A country that fails resolution is
reported as a failed result with zero activity, and the rest of the
batch proceeds.

Exit codes:
  0 - every country in scope consolidated
  1 - one or more countries failed
  2 - command error (bad flags, database or registry unavailable)

Examples:
  storyfold consolidate --db ./events.db --country KE
  storyfold consolidate --db ./events.db --registry ./registry --all --dry-run
  storyfold consolidate --db ./events.db --country KE --country NG --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsolidate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Registry, "registry", "", "path to CUE country registry directory")
	cmd.Flags().StringSliceVar(&opts.Countries, "country", nil, "country code or alias to consolidate (repeatable)")
	cmd.Flags().BoolVar(&opts.All, "all", false, "consolidate every enabled country")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "run the full merge, then roll back")

	return cmd
}

func runConsolidate(opts *ConsolidateOptions, cmd *cobra.Command) error {
	if len(opts.Countries) == 0 && !opts.All {
		return NewExitError(ExitCommandError, "nothing to consolidate: pass --country or --all")
	}
	if len(opts.Countries) > 0 && opts.All {
		return NewExitError(ExitCommandError, "cannot combine --all with --country")
	}

	logger := setupLogging(opts.Verbose)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	reg, err := scopeRegistry(ctx, st, opts.Registry)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load registry", err)
	}

	// --all resolves the empty request to every enabled country.
	var requested []string
	if !opts.All {
		requested = opts.Countries
	}
	scope := merge.ResolveScope(reg, requested)

	cons := merge.New(st, opts.Tokens, logger)
	batch, err := cons.Consolidate(ctx, scope.Countries, merge.Options{DryRun: opts.DryRun})
	if err != nil {
		return WrapExitError(ExitCommandError, "consolidation interrupted", err)
	}
	batch.Results = append(batch.Results, scope.Rejected...)

	report := ConsolidateReport{
		DryRun:  batch.DryRun,
		Results: batch.Results,
		Totals:  batch.Totals(),
		Failed:  batch.FailedCount(),
	}
	if opts.Format == "json" {
		return outputConsolidateJSON(cmd, report)
	}
	return outputConsolidateText(cmd, report, opts.Verbose)
}

// outputConsolidateJSON outputs the batch report as JSON.
func outputConsolidateJSON(cmd *cobra.Command, report ConsolidateReport) error {
	response := CLIResponse{Status: "ok", Data: report}
	if report.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_CONSOLIDATE_FAILED",
			Message: fmt.Sprintf("%d of %d countries failed", report.Failed, len(report.Results)),
		}
	}
	if err := encodeResponse(cmd.OutOrStdout(), response); err != nil {
		return err
	}
	if report.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d countries failed", report.Failed, len(report.Results)))
	}
	return nil
}

// outputConsolidateText outputs the batch report as text.
func outputConsolidateText(cmd *cobra.Command, report ConsolidateReport, verbose bool) error {
	w := cmd.OutOrStdout()

	if len(report.Results) == 0 {
		fmt.Fprintln(w, "No countries in scope.")
		return nil
	}

	header := "Consolidation summary"
	if report.DryRun {
		header += " (dry-run)"
	}
	fmt.Fprintf(w, "%s:\n\n", header)

	for _, res := range report.Results {
		mark := "✓"
		if res.Failed() {
			mark = "✗"
		}
		fmt.Fprintf(w, "  %s %-3s %-9s  %s\n", mark, res.Country, res.Status, summarizeResult(res))
		if verbose && res.RunToken != "" {
			fmt.Fprintf(w, "      run %s (%s)\n", res.RunToken, res.Elapsed.Round(time.Millisecond))
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Totals: %s\n", formatStats(report.Totals))

	if report.Failed > 0 {
		fmt.Fprintf(w, "✗ %d of %d countries failed\n", report.Failed, len(report.Results))
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d countries failed", report.Failed, len(report.Results)))
	}
	fmt.Fprintf(w, "✓ %d countries consolidated\n", len(report.Results))
	return nil
}

// summarizeResult is the one-line body of a country row: stats when
// the run went through, the error when it did not.
func summarizeResult(res merge.CountryResult) string {
	if res.Failed() {
		return res.Error
	}
	return formatStats(res.Stats)
}

func formatStats(s merge.Stats) string {
	return fmt.Sprintf("masters=%d children=%d reassigned=%d merged=%d deleted=%d",
		s.MasterCount, s.ChildCount, s.MentionsReassigned, s.MentionsMerged, s.EventsDeleted)
}
