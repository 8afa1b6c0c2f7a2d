package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/storywatch/storyfold/internal/store"
	"github.com/storywatch/storyfold/internal/verify"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Database   string
	Country    string
	Full       bool
	SampleSize int
	ScanLimit  int
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Run the read-only integrity sweep",
		Long: `Run the integrity checks against a database without touching it:
mentions with empty doc-id sets, mention doc-ids missing from the
documents table, events with zero mentions, clusters with empty doc-id
sets, and broken hierarchy references. A per-country pipeline block
reports processing coverage; it informs but never fails the sweep.

The document check samples the newest mention rows by default. --full
walks every row instead.

Exit codes:
  0 - no violations
  1 - at least one check found violations
  2 - command error (database unavailable)

Examples:
  storyfold verify --db ./events.db
  storyfold verify --db ./events.db --country KE --full
  storyfold verify --db ./events.db --sample 20 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Country, "country", "", "restrict the sweep to one country")
	cmd.Flags().BoolVar(&opts.Full, "full", false, "scan every mention row in the document check")
	cmd.Flags().IntVar(&opts.SampleSize, "sample", 0, "offending rows quoted per check (default 5)")
	cmd.Flags().IntVar(&opts.ScanLimit, "scan-limit", 0, "mention rows examined by the sampled document check (default 1000)")

	return cmd
}

func runVerify(opts *VerifyOptions, cmd *cobra.Command) error {
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

	ver := verify.New(st, logger)
	report, err := ver.Run(ctx, verify.Options{
		Country:    opts.Country,
		SampleSize: opts.SampleSize,
		ScanLimit:  opts.ScanLimit,
		FullScan:   opts.Full,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "verification sweep failed", err)
	}

	if opts.Format == "json" {
		return outputVerifyJSON(cmd, report)
	}
	return outputVerifyText(cmd, report)
}

// outputVerifyJSON outputs the report as JSON.
func outputVerifyJSON(cmd *cobra.Command, report *verify.Report) error {
	response := CLIResponse{Status: "ok", Data: report}
	if report.Failed() {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_VERIFY_FAILED",
			Message: fmt.Sprintf("%d violation(s) found", report.Violations()),
		}
	}
	if err := encodeResponse(cmd.OutOrStdout(), response); err != nil {
		return err
	}
	if report.Failed() {
		return NewExitError(ExitFailure, fmt.Sprintf("verification failed: %d violation(s)", report.Violations()))
	}
	return nil
}

// outputVerifyText outputs the report as text.
func outputVerifyText(cmd *cobra.Command, report *verify.Report) error {
	w := cmd.OutOrStdout()

	header := "Integrity report"
	if report.Country != "" {
		header += " for " + report.Country
	}
	if report.FullScan {
		header += " (full scan)"
	}
	fmt.Fprintf(w, "%s:\n\n", header)

	for _, check := range report.Checks {
		mark := "✓"
		if !check.OK() {
			mark = "✗"
		}
		scanned := fmt.Sprintf("scanned %d", check.Scanned)
		if check.Partial {
			scanned += " (partial)"
		}
		fmt.Fprintf(w, "  %s %-42s %s, violations %d\n", mark, check.Name, scanned, check.Violations)
		for _, sample := range check.Samples {
			fmt.Fprintf(w, "      %s\n", sample)
		}
	}

	if len(report.Pipeline) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Pipeline ===")
		for _, p := range report.Pipeline {
			fmt.Fprintf(w, "  %s: clusters %d (%.1f%% processed, %.1f%% deconflicted), events %d (%d masters, %d children, %d validated), mentions %d, scored %.1f%%\n",
				p.Country, p.Clusters, p.ProcessedPct, p.DeconflictedPct,
				p.Events, p.Masters, p.Children, p.Validated, p.Mentions, p.ScoredPct)
		}
	}

	fmt.Fprintln(w)
	if report.Failed() {
		fmt.Fprintf(w, "✗ %d violation(s) found\n", report.Violations())
		return NewExitError(ExitFailure, fmt.Sprintf("verification failed: %d violation(s)", report.Violations()))
	}
	fmt.Fprintln(w, "✓ No violations")
	return nil
}
