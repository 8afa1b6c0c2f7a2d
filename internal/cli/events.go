package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/storywatch/storyfold/internal/event"
	"github.com/storywatch/storyfold/internal/store"
)

// EventsOptions holds flags for the events command.
type EventsOptions struct {
	*RootOptions
	Database    string
	Country     string
	From        string
	To          string
	MastersOnly bool
	Validated   bool
	Limit       int
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Query canonical events",
		Long: `Query canonical events for a country, optionally bounded to a date
window. An event matches the window when its mention span overlaps it.
This is the same query surface downstream consumers read, so what this
command prints is what they get.

Examples:
  storyfold events --db ./events.db --country KE
  storyfold events --db ./events.db --country KE --from 2025-06-01 --to 2025-06-30
  storyfold events --db ./events.db --country NG --masters-only --validated --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Country, "country", "", "country code (required)")
	_ = cmd.MarkFlagRequired("country")
	cmd.Flags().StringVar(&opts.From, "from", "", "window start, YYYY-MM-DD")
	cmd.Flags().StringVar(&opts.To, "to", "", "window end, YYYY-MM-DD")
	cmd.Flags().BoolVar(&opts.MastersOnly, "masters-only", false, "drop children from the result")
	cmd.Flags().BoolVar(&opts.Validated, "validated", false, "only events a reviewer confirmed")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum events returned (0 = no limit)")

	return cmd
}

func runEvents(opts *EventsOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	query := store.EventQuery{
		Country:       opts.Country,
		MastersOnly:   opts.MastersOnly,
		OnlyValidated: opts.Validated,
		Limit:         opts.Limit,
	}
	var err error
	if opts.From != "" {
		if query.From, err = event.ParseDay(opts.From); err != nil {
			return WrapExitError(ExitCommandError, "invalid --from", err)
		}
	}
	if opts.To != "" {
		if query.To, err = event.ParseDay(opts.To); err != nil {
			return WrapExitError(ExitCommandError, "invalid --to", err)
		}
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	events, err := st.ListEvents(ctx, query)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list events", err)
	}

	if opts.Format == "json" {
		return encodeResponse(cmd.OutOrStdout(), CLIResponse{
			Status: "ok",
			Data:   map[string]any{"count": len(events), "events": events},
		})
	}

	w := cmd.OutOrStdout()
	if len(events) == 0 {
		fmt.Fprintln(w, "No matching events.")
		return nil
	}
	fmt.Fprintf(w, "%d event(s):\n\n", len(events))
	for i := range events {
		fmt.Fprintf(w, "  %s\n", formatEventLine(&events[i]))
	}
	return nil
}

// formatEventLine renders one event as a listing row.
func formatEventLine(ev *event.CanonicalEvent) string {
	span := "no mentions"
	if !ev.FirstMention.IsZero() {
		span = fmt.Sprintf("%s..%s", ev.FirstMention, ev.LastMention)
	}
	line := fmt.Sprintf("[%d] %s  %s  days=%d articles=%d",
		ev.ID, ev.Name, span, ev.MentionDays, ev.TotalArticles)
	if !ev.IsMaster() {
		line += fmt.Sprintf("  child of %d", *ev.MasterEventID)
	}
	if ev.Validated {
		line += "  validated"
	}
	return line
}
