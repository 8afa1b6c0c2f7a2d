package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/storywatch/storyfold/internal/event"
)

// dbtx is the query surface shared by *sql.DB and *sql.Tx, so the
// read helpers below serve both the plain store and an open
// consolidation transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner abstracts sql.Row and sql.Rows for the scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

// eventColumns is the canonical SELECT list for canonical_events.
// Every event read uses it so scanEvent stays in one place.
const eventColumns = `id, master_event_id, name, country,
	first_mention, last_mention, mention_days, total_articles,
	peak_date, peak_articles, story_phase, source_names, alt_names,
	summary, key_facts, category_totals, recipient_totals, embedding,
	materiality_score, materiality_note, validated, validated_at,
	created_at, updated_at`

// mentionColumns is the canonical SELECT list for daily_mentions.
const mentionColumns = `id, canonical_event_id, country, mention_date,
	article_count, headline, summary, source_names, source_diversity,
	context_tag, intensity, doc_ids`

func scanEvent(row rowScanner) (*event.CanonicalEvent, error) {
	var (
		ev          event.CanonicalEvent
		masterID    sql.NullInt64
		firstDay    string
		lastDay     string
		peakDay     string
		sources     string
		altNames    string
		keyFacts    string
		catTotals   string
		recTotals   string
		score       sql.NullFloat64
		validated   int
		validatedAt sql.NullString
		createdAt   string
		updatedAt   string
	)
	err := row.Scan(
		&ev.ID, &masterID, &ev.Name, &ev.Country,
		&firstDay, &lastDay, &ev.MentionDays, &ev.TotalArticles,
		&peakDay, &ev.PeakArticles, &ev.StoryPhase, &sources, &altNames,
		&ev.Summary, &keyFacts, &catTotals, &recTotals, &ev.Embedding,
		&score, &ev.MaterialityNote, &validated, &validatedAt,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if masterID.Valid {
		id := masterID.Int64
		ev.MasterEventID = &id
	}
	ev.FirstMention = event.Day(firstDay)
	ev.LastMention = event.Day(lastDay)
	ev.PeakDate = event.Day(peakDay)
	ev.MaterialityScore = scanFloat(score)
	ev.Validated = validated != 0

	if ev.SourceNames, err = unmarshalStrings(sources); err != nil {
		return nil, fmt.Errorf("event %d: %w", ev.ID, err)
	}
	if ev.AltNames, err = unmarshalStrings(altNames); err != nil {
		return nil, fmt.Errorf("event %d: %w", ev.ID, err)
	}
	if ev.KeyFacts, err = unmarshalStringMap(keyFacts); err != nil {
		return nil, fmt.Errorf("event %d: %w", ev.ID, err)
	}
	if ev.CategoryTotals, err = unmarshalIntMap(catTotals); err != nil {
		return nil, fmt.Errorf("event %d: %w", ev.ID, err)
	}
	if ev.RecipientTotals, err = unmarshalIntMap(recTotals); err != nil {
		return nil, fmt.Errorf("event %d: %w", ev.ID, err)
	}
	if ev.ValidatedAt, err = scanTime(validatedAt); err != nil {
		return nil, fmt.Errorf("event %d: %w", ev.ID, err)
	}
	if ev.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("event %d: %w", ev.ID, err)
	}
	if ev.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("event %d: %w", ev.ID, err)
	}
	return &ev, nil
}

func scanMention(row rowScanner) (*event.Mention, error) {
	var (
		m       event.Mention
		day     string
		sources string
		docs    string
	)
	err := row.Scan(
		&m.ID, &m.EventID, &m.Country, &day,
		&m.ArticleCount, &m.Headline, &m.Summary, &sources,
		&m.SourceDiversity, &m.ContextTag, &m.Intensity, &docs,
	)
	if err != nil {
		return nil, err
	}
	m.Date = event.Day(day)
	if m.SourceNames, err = unmarshalStrings(sources); err != nil {
		return nil, fmt.Errorf("mention %d: %w", m.ID, err)
	}
	if m.DocIDs, err = unmarshalDocSet(docs); err != nil {
		return nil, fmt.Errorf("mention %d: %w", m.ID, err)
	}
	return &m, nil
}

func collectEvents(rows *sql.Rows) ([]event.CanonicalEvent, error) {
	defer rows.Close()
	// Always return empty slice, not nil
	out := []event.CanonicalEvent{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ev)
	}
	return out, rows.Err()
}

func collectMentions(rows *sql.Rows) ([]event.Mention, error) {
	defer rows.Close()
	out := []event.Mention{}
	for rows.Next() {
		m, err := scanMention(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// getEvent fetches one event by ID.
func getEvent(ctx context.Context, q dbtx, id int64) (*event.CanonicalEvent, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM canonical_events WHERE id = ?`, id)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %d: %w", id, ErrEventNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return ev, nil
}

// eligibleMasters returns the consolidation targets for a country:
// validated roots, in ID order so merge order is reproducible.
func eligibleMasters(ctx context.Context, q dbtx, country string) ([]event.CanonicalEvent, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM canonical_events
		 WHERE country = ? AND master_event_id IS NULL AND validated = 1
		 ORDER BY id ASC`, country)
	if err != nil {
		return nil, fmt.Errorf("eligible masters: %w", err)
	}
	out, err := collectEvents(rows)
	if err != nil {
		return nil, fmt.Errorf("eligible masters: %w", err)
	}
	return out, nil
}

// children returns the direct children of a master, in ID order.
func children(ctx context.Context, q dbtx, masterID int64) ([]event.CanonicalEvent, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM canonical_events
		 WHERE master_event_id = ?
		 ORDER BY id ASC`, masterID)
	if err != nil {
		return nil, fmt.Errorf("children of %d: %w", masterID, err)
	}
	out, err := collectEvents(rows)
	if err != nil {
		return nil, fmt.Errorf("children of %d: %w", masterID, err)
	}
	return out, nil
}

// mentionsOf returns every mention of an event ordered by date then ID.
func mentionsOf(ctx context.Context, q dbtx, eventID int64) ([]event.Mention, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+mentionColumns+` FROM daily_mentions
		 WHERE canonical_event_id = ?
		 ORDER BY mention_date ASC, id ASC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("mentions of %d: %w", eventID, err)
	}
	out, err := collectMentions(rows)
	if err != nil {
		return nil, fmt.Errorf("mentions of %d: %w", eventID, err)
	}
	return out, nil
}

// mentionOn probes for an event's mention on one day. Returns
// (nil, nil) when the day is uncovered; that is the merge engine's
// reassignment branch, not an error.
func mentionOn(ctx context.Context, q dbtx, eventID int64, d event.Day) (*event.Mention, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+mentionColumns+` FROM daily_mentions
		 WHERE canonical_event_id = ? AND mention_date = ?`, eventID, string(d))
	m, err := scanMention(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mention on %s: %w", d, err)
	}
	return m, nil
}

// getMention fetches one mention by ID.
func getMention(ctx context.Context, q dbtx, id int64) (*event.Mention, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+mentionColumns+` FROM daily_mentions WHERE id = ?`, id)
	m, err := scanMention(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mention %d: %w", id, ErrMentionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get mention: %w", err)
	}
	return m, nil
}

// mentionCount counts an event's mention rows.
func mentionCount(ctx context.Context, q dbtx, eventID int64) (int, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM daily_mentions WHERE canonical_event_id = ?`,
		eventID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("mention count of %d: %w", eventID, err)
	}
	return n, nil
}

// GetEvent fetches one canonical event by ID.
// Returns ErrEventNotFound if no such event exists.
func (s *Store) GetEvent(ctx context.Context, id int64) (*event.CanonicalEvent, error) {
	return getEvent(ctx, s.db, id)
}

// GetMention fetches one daily mention by ID.
// Returns ErrMentionNotFound if no such mention exists.
func (s *Store) GetMention(ctx context.Context, id int64) (*event.Mention, error) {
	return getMention(ctx, s.db, id)
}

// EligibleMasters returns a country's validated master events in ID
// order. Unvalidated masters and children are never merge targets.
func (s *Store) EligibleMasters(ctx context.Context, country string) ([]event.CanonicalEvent, error) {
	return eligibleMasters(ctx, s.db, country)
}

// Children returns the direct children of a master in ID order.
func (s *Store) Children(ctx context.Context, masterID int64) ([]event.CanonicalEvent, error) {
	return children(ctx, s.db, masterID)
}

// MentionsOf returns an event's mentions ordered by date then ID.
// Always returns empty slice, not nil.
func (s *Store) MentionsOf(ctx context.Context, eventID int64) ([]event.Mention, error) {
	return mentionsOf(ctx, s.db, eventID)
}

// MentionOn returns an event's mention on the given day, or nil if
// the day is uncovered.
func (s *Store) MentionOn(ctx context.Context, eventID int64, d event.Day) (*event.Mention, error) {
	return mentionOn(ctx, s.db, eventID, d)
}

// MentionCount counts an event's mention rows.
func (s *Store) MentionCount(ctx context.Context, eventID int64) (int, error) {
	return mentionCount(ctx, s.db, eventID)
}

// Countries lists every country present in canonical_events, sorted.
func (s *Store) Countries(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT country FROM canonical_events ORDER BY country ASC`)
	if err != nil {
		return nil, fmt.Errorf("countries: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("countries: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
