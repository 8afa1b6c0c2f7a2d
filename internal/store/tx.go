package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/storywatch/storyfold/internal/event"
)

// Tx is one country-scoped consolidation transaction. Every merge
// mutation lives here so the whole fold commits or rolls back as a
// unit; the connection's _txlock=immediate means the write lock is
// held from BeginMerge on.
type Tx struct {
	tx *sql.Tx
}

// BeginMerge opens a consolidation transaction.
func (s *Store) BeginMerge(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin merge: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// Commit makes the transaction's mutations durable.
func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback discards the transaction. Safe to call after Commit;
// callers defer it unconditionally.
func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

// EligibleMasters reads a country's validated roots inside the
// transaction, in ID order.
func (t *Tx) EligibleMasters(ctx context.Context, country string) ([]event.CanonicalEvent, error) {
	return eligibleMasters(ctx, t.tx, country)
}

// Children reads a master's direct children inside the transaction.
func (t *Tx) Children(ctx context.Context, masterID int64) ([]event.CanonicalEvent, error) {
	return children(ctx, t.tx, masterID)
}

// MentionsOf reads an event's mentions inside the transaction.
func (t *Tx) MentionsOf(ctx context.Context, eventID int64) ([]event.Mention, error) {
	return mentionsOf(ctx, t.tx, eventID)
}

// MentionOn probes for a mention on one day inside the transaction.
// Returns (nil, nil) when the day is uncovered.
func (t *Tx) MentionOn(ctx context.Context, eventID int64, d event.Day) (*event.Mention, error) {
	return mentionOn(ctx, t.tx, eventID, d)
}

// MentionCount counts an event's mentions inside the transaction.
func (t *Tx) MentionCount(ctx context.Context, eventID int64) (int, error) {
	return mentionCount(ctx, t.tx, eventID)
}

// GetEvent fetches one event inside the transaction.
func (t *Tx) GetEvent(ctx context.Context, id int64) (*event.CanonicalEvent, error) {
	return getEvent(ctx, t.tx, id)
}

// ReassignMention moves a mention row to a new owning event. The
// caller must have probed MentionOn first; if the target already
// covers the date, the UNIQUE constraint rejects the move here and
// the error propagates rather than silently dropping coverage.
func (t *Tx) ReassignMention(ctx context.Context, mentionID, newEventID int64) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE daily_mentions SET canonical_event_id = ? WHERE id = ?
	`, newEventID, mentionID)
	if err != nil {
		return fmt.Errorf("reassign mention %d: %w", mentionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reassign mention %d: %w", mentionID, err)
	}
	if n == 0 {
		return fmt.Errorf("reassign mention %d: %w", mentionID, ErrMentionNotFound)
	}
	return nil
}

// FoldMention merges src into dst on a shared date: article counts
// sum, doc-id and source-name sets union, dst's headline and summary
// survive. The src row is deleted with an ownership predicate so a
// row that moved under us since the read fails loudly instead of
// vanishing twice.
func (t *Tx) FoldMention(ctx context.Context, dst, src *event.Mention) error {
	if dst.Date != src.Date {
		return fmt.Errorf("fold mention: date mismatch %s vs %s", dst.Date, src.Date)
	}

	dst.ArticleCount += src.ArticleCount
	dst.DocIDs = dst.DocIDs.Union(src.DocIDs)
	dst.SourceNames = event.MergeNames(dst.SourceNames, src.SourceNames...)
	if err := updateMentionRow(ctx, t.tx, dst); err != nil {
		return fmt.Errorf("fold mention %d into %d: %w", src.ID, dst.ID, err)
	}

	res, err := t.tx.ExecContext(ctx, `
		DELETE FROM daily_mentions WHERE id = ? AND canonical_event_id = ?
	`, src.ID, src.EventID)
	if err != nil {
		return fmt.Errorf("fold mention %d into %d: %w", src.ID, dst.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("fold mention %d into %d: %w", src.ID, dst.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("fold mention %d into %d: %w", src.ID, dst.ID, ErrMentionNotFound)
	}
	return nil
}

// DeleteChildIfDrained removes a child event only if it owns zero
// mentions. The zero-mention predicate is part of the DELETE itself,
// so the check and the delete cannot be split by another writer.
// Returns ErrChildNotDrained when mentions remain.
func (t *Tx) DeleteChildIfDrained(ctx context.Context, childID int64) error {
	res, err := t.tx.ExecContext(ctx, `
		DELETE FROM canonical_events
		WHERE id = ?
		  AND NOT EXISTS (
			SELECT 1 FROM daily_mentions WHERE canonical_event_id = ?
		  )
	`, childID, childID)
	if err != nil {
		return fmt.Errorf("delete child %d: %w", childID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete child %d: %w", childID, err)
	}
	if n == 1 {
		return nil
	}

	// Nothing deleted: either the child is gone already or it still
	// owns mentions. Tell the two apart for the error report.
	remaining, err := mentionCount(ctx, t.tx, childID)
	if err != nil {
		return fmt.Errorf("delete child %d: %w", childID, err)
	}
	if remaining > 0 {
		return fmt.Errorf("delete child %d: %d mentions remain: %w",
			childID, remaining, ErrChildNotDrained)
	}
	return fmt.Errorf("delete child %d: %w", childID, ErrEventNotFound)
}

// RefreshMasterAggregates recomputes a master's derived span from its
// post-merge mentions and folds absorbed child names into alt_names.
// Peak ties resolve to the earliest day.
func (t *Tx) RefreshMasterAggregates(ctx context.Context, masterID int64, absorbedNames []string) error {
	master, err := getEvent(ctx, t.tx, masterID)
	if err != nil {
		return fmt.Errorf("refresh master %d: %w", masterID, err)
	}
	mentions, err := mentionsOf(ctx, t.tx, masterID)
	if err != nil {
		return fmt.Errorf("refresh master %d: %w", masterID, err)
	}

	var (
		first, last, peakDay event.Day
		total, peak          int
		sources              = master.SourceNames
	)
	for i := range mentions {
		m := &mentions[i]
		first = event.MinDay(first, m.Date)
		last = event.MaxDay(last, m.Date)
		total += m.ArticleCount
		// Mentions arrive date-ordered, so strict > keeps the
		// earliest day on a tie.
		if m.ArticleCount > peak {
			peak = m.ArticleCount
			peakDay = m.Date
		}
		sources = event.MergeNames(sources, m.SourceNames...)
	}

	// A child's display name becomes an alias unless it is the
	// master's own name.
	alt := master.AltNames
	for _, name := range absorbedNames {
		if event.EqualNames(name, master.Name) {
			continue
		}
		alt = event.MergeNames(alt, name)
	}

	sourcesJSON, err := marshalStrings(sources)
	if err != nil {
		return fmt.Errorf("refresh master %d: %w", masterID, err)
	}
	altJSON, err := marshalStrings(alt)
	if err != nil {
		return fmt.Errorf("refresh master %d: %w", masterID, err)
	}

	res, err := t.tx.ExecContext(ctx, `
		UPDATE canonical_events
		SET first_mention = ?, last_mention = ?, mention_days = ?,
		    total_articles = ?, peak_date = ?, peak_articles = ?,
		    source_names = ?, alt_names = ?, updated_at = ?
		WHERE id = ?
	`,
		string(first),
		string(last),
		len(mentions),
		total,
		string(peakDay),
		peak,
		sourcesJSON,
		altJSON,
		formatTime(time.Now()),
		masterID,
	)
	if err != nil {
		return fmt.Errorf("refresh master %d: %w", masterID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("refresh master %d: %w", masterID, err)
	}
	if n == 0 {
		return fmt.Errorf("refresh master %d: %w", masterID, ErrEventNotFound)
	}
	return nil
}
