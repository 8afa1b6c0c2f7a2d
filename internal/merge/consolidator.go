package merge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/storywatch/storyfold/internal/event"
	"github.com/storywatch/storyfold/internal/store"
)

// Options controls one Consolidate call.
type Options struct {
	// DryRun runs the identical merge path and then rolls the
	// transaction back, so the reported stats are exactly what a live
	// run would do. Only the run record survives, marked 'dry-run'.
	DryRun bool
}

// Consolidator folds children into their validated masters, one
// country at a time, one transaction per country.
type Consolidator struct {
	store  *store.Store
	tokens TokenGenerator
	logger *slog.Logger
}

// New creates a Consolidator. A nil generator gets UUIDv7 tokens; a
// nil logger discards.
func New(st *store.Store, tokens TokenGenerator, logger *slog.Logger) *Consolidator {
	if tokens == nil {
		tokens = UUIDv7Generator{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Consolidator{store: st, tokens: tokens, logger: logger}
}

// Consolidate runs the merge for each country in scope, in the given
// order. Per-country failures are isolated: a failed country rolls
// back, is reported in its CountryResult, and the batch moves on. The
// returned error is non-nil only when the context is cancelled.
func (c *Consolidator) Consolidate(ctx context.Context, countries []string, opts Options) (*BatchResult, error) {
	batch := &BatchResult{DryRun: opts.DryRun, Results: []CountryResult{}}
	for _, country := range countries {
		if err := ctx.Err(); err != nil {
			return batch, err
		}
		batch.Results = append(batch.Results, c.consolidateCountry(ctx, country, opts))
	}
	return batch, nil
}

// NewConfigResult builds the zero-activity result for a country that
// failed scope resolution. The CLI folds these into the batch report
// next to real runs; no transaction is ever opened for them.
func NewConfigResult(country, message string) CountryResult {
	err := NewConfigError(country, message)
	return CountryResult{
		Country: country,
		Status:  store.RunFailed,
		Err:     err,
		Error:   err.Error(),
	}
}

func (c *Consolidator) consolidateCountry(ctx context.Context, country string, opts Options) CountryResult {
	start := time.Now()
	token := c.tokens.Generate()
	log := c.logger.With("country", country, "run_token", token)

	res := CountryResult{Country: country, RunToken: token}
	log.Info("consolidation started", "dry_run", opts.DryRun)

	stats, err := c.mergeCountry(ctx, country, token, start, opts, log)
	res.Elapsed = time.Since(start)
	res.Stats = stats

	if err != nil {
		res.Status = store.RunFailed
		res.Stats = Stats{} // a failed country commits nothing
		res.Err = err
		res.Error = err.Error()
		log.Error("consolidation failed", "error", err)

		// The merge transaction is gone; the failure record goes in
		// on its own. Best effort: losing it must not mask the error.
		rec := store.RunRecord{
			Token:      token,
			Country:    country,
			DryRun:     opts.DryRun,
			Status:     store.RunFailed,
			Error:      err.Error(),
			StartedAt:  start,
			FinishedAt: time.Now(),
		}
		if recErr := c.store.RecordRun(ctx, rec); recErr != nil {
			log.Warn("could not record failed run", "error", recErr)
		}
		return res
	}

	if opts.DryRun {
		res.Status = store.RunDryRun
	} else {
		res.Status = store.RunCompleted
	}
	log.Info("consolidation finished",
		"status", res.Status,
		"masters", stats.MasterCount,
		"children", stats.ChildCount,
		"mentions_reassigned", stats.MentionsReassigned,
		"mentions_merged", stats.MentionsMerged,
		"events_deleted", stats.EventsDeleted,
		"elapsed", res.Elapsed.Round(time.Millisecond),
	)
	return res
}

// logBuffer accumulates merge-log entries during the transaction so
// they can be flushed after the run record they reference.
type logBuffer struct {
	token   string
	seq     int64
	entries []store.MergeLogEntry
}

func (b *logBuffer) add(action string, masterID, childID int64, date event.Day, articles int) {
	b.seq++
	b.entries = append(b.entries, store.MergeLogEntry{
		Token:         b.token,
		Seq:           b.seq,
		MasterID:      masterID,
		ChildID:       childID,
		MentionDate:   string(date),
		Action:        action,
		ArticlesMoved: articles,
	})
}

func (c *Consolidator) mergeCountry(ctx context.Context, country, token string, start time.Time, opts Options, log *slog.Logger) (Stats, error) {
	var stats Stats

	tx, err := c.store.BeginMerge(ctx)
	if err != nil {
		return stats, newStoreError(country, "begin transaction", err)
	}
	defer tx.Rollback()

	masters, err := tx.EligibleMasters(ctx, country)
	if err != nil {
		return stats, newStoreError(country, "load eligible masters", err)
	}
	log.Debug("eligible masters loaded", "count", len(masters))

	buf := &logBuffer{token: token}
	for i := range masters {
		if err := c.mergeMaster(ctx, tx, country, &masters[i], &stats, buf, log); err != nil {
			return Stats{}, err
		}
	}

	rec := store.RunRecord{
		Token:      token,
		Country:    country,
		DryRun:     opts.DryRun,
		Masters:    stats.MasterCount,
		Children:   stats.ChildCount,
		Merged:     stats.MentionsMerged,
		Reassigned: stats.MentionsReassigned,
		Deleted:    stats.EventsDeleted,
		StartedAt:  start,
		FinishedAt: time.Now(),
	}

	if opts.DryRun {
		// Same path, no commit. The rollback reverts mutations and
		// the buffered log with them; only the run record survives,
		// written outside the discarded transaction.
		if err := tx.Rollback(); err != nil {
			return stats, newStoreError(country, "roll back dry run", err)
		}
		rec.Status = store.RunDryRun
		if err := c.store.RecordRun(ctx, rec); err != nil {
			return stats, newStoreError(country, "record dry run", err)
		}
		return stats, nil
	}

	rec.Status = store.RunCompleted
	if err := tx.RecordRun(ctx, rec, buf.entries); err != nil {
		return stats, newStoreError(country, "record run", err)
	}
	if err := tx.Commit(); err != nil {
		return stats, newStoreError(country, "commit", err)
	}
	return stats, nil
}

func (c *Consolidator) mergeMaster(ctx context.Context, tx *store.Tx, country string, master *event.CanonicalEvent, stats *Stats, buf *logBuffer, log *slog.Logger) error {
	stats.MasterCount++

	kids, err := tx.Children(ctx, master.ID)
	if err != nil {
		return newStoreError(country, fmt.Sprintf("load children of master %d", master.ID), err)
	}
	if len(kids) == 0 {
		return nil
	}
	log.Debug("folding master", "master_id", master.ID, "children", len(kids))

	absorbed := make([]string, 0, len(kids))
	for i := range kids {
		child := &kids[i]
		if err := c.drainChild(ctx, tx, country, master, child, stats, buf, log); err != nil {
			return err
		}
		absorbed = append(absorbed, child.Name)
	}

	if err := tx.RefreshMasterAggregates(ctx, master.ID, absorbed); err != nil {
		return newStoreError(country, fmt.Sprintf("refresh master %d", master.ID), err)
	}
	return nil
}

// drainChild moves every mention of child onto master, then deletes
// the child. The per-mention branch is the two-case transition at the
// heart of the merge: a date the master already covers folds
// additively, an uncovered date moves wholesale. Either way the
// child's row count reaches zero before the guarded delete.
func (c *Consolidator) drainChild(ctx context.Context, tx *store.Tx, country string, master, child *event.CanonicalEvent, stats *Stats, buf *logBuffer, log *slog.Logger) error {
	stats.ChildCount++

	// A child with children of its own means the one-level invariant
	// is already broken in the data. Folding on top of corruption
	// compounds it, so the country aborts instead.
	grand, err := tx.Children(ctx, child.ID)
	if err != nil {
		return newStoreError(country, fmt.Sprintf("check depth of child %d", child.ID), err)
	}
	if len(grand) > 0 {
		return newInvariantError(country, master.ID, child.ID,
			fmt.Sprintf("child has %d children of its own", len(grand)), nil)
	}

	mentions, err := tx.MentionsOf(ctx, child.ID)
	if err != nil {
		return newStoreError(country, fmt.Sprintf("load mentions of child %d", child.ID), err)
	}

	for i := range mentions {
		m := &mentions[i]
		existing, err := tx.MentionOn(ctx, master.ID, m.Date)
		if err != nil {
			return newStoreError(country, fmt.Sprintf("probe master %d on %s", master.ID, m.Date), err)
		}

		switch {
		case existing != nil:
			if err := tx.FoldMention(ctx, existing, m); err != nil {
				return newStoreError(country, fmt.Sprintf("fold mention %d", m.ID), err)
			}
			stats.MentionsMerged++
			buf.add(store.ActionMerge, master.ID, child.ID, m.Date, m.ArticleCount)
			log.Debug("mention folded", "date", m.Date, "child_id", child.ID, "articles", m.ArticleCount)
		default:
			if err := tx.ReassignMention(ctx, m.ID, master.ID); err != nil {
				return newStoreError(country, fmt.Sprintf("reassign mention %d", m.ID), err)
			}
			buf.add(store.ActionReassign, master.ID, child.ID, m.Date, m.ArticleCount)
			log.Debug("mention reassigned", "date", m.Date, "child_id", child.ID, "articles", m.ArticleCount)
		}
		stats.MentionsReassigned++
	}

	if err := tx.DeleteChildIfDrained(ctx, child.ID); err != nil {
		if errors.Is(err, store.ErrChildNotDrained) {
			return newInvariantError(country, master.ID, child.ID,
				"child still owns mentions after draining", err)
		}
		return newStoreError(country, fmt.Sprintf("delete child %d", child.ID), err)
	}
	stats.EventsDeleted++
	buf.add(store.ActionDropChild, master.ID, child.ID, "", 0)
	log.Debug("child deleted", "child_id", child.ID)
	return nil
}
