package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/storywatch/storyfold/internal/event"
)

// InsertDocument inserts an ingested article record.
// Uses ON CONFLICT(doc_id) DO NOTHING for idempotency - re-ingesting
// the same document is silently ignored.
func (s *Store) InsertDocument(ctx context.Context, doc event.Document) error {
	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (doc_id, country, source_name, title, published_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(doc_id) DO NOTHING
	`,
		doc.DocID,
		doc.Country,
		doc.SourceName,
		doc.Title,
		string(doc.PublishedAt),
		formatTime(createdAt),
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// InsertCluster inserts a clustering-stage output row and returns its ID.
// Duplicate (country, date, batch, cluster) coordinates are rejected by
// the UNIQUE constraint; batch re-runs should mark the old row processed
// instead of re-inserting.
func (s *Store) InsertCluster(ctx context.Context, c event.Cluster) (int64, error) {
	namesJSON, err := marshalStrings(c.EventNames)
	if err != nil {
		return 0, fmt.Errorf("insert cluster: %w", err)
	}
	docsJSON, err := marshalDocSet(c.DocIDs)
	if err != nil {
		return 0, fmt.Errorf("insert cluster: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO event_clusters
		(country, cluster_date, batch_no, cluster_no, event_names, doc_ids,
		 size, is_noise, representative_name, processed, deconflicted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.Country,
		string(c.ClusterDate),
		c.BatchNo,
		c.ClusterNo,
		namesJSON,
		docsJSON,
		c.Size,
		c.IsNoise,
		event.NormalizeName(c.RepresentativeName),
		c.Processed,
		c.Deconflicted,
	)
	if err != nil {
		return 0, fmt.Errorf("insert cluster: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert cluster: %w", err)
	}
	return id, nil
}

// SetClusterFlags updates a cluster's pipeline progress markers.
func (s *Store) SetClusterFlags(ctx context.Context, id int64, processed, deconflicted bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE event_clusters SET processed = ?, deconflicted = ? WHERE id = ?
	`, processed, deconflicted, id)
	if err != nil {
		return fmt.Errorf("set cluster flags: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set cluster flags: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("set cluster flags: cluster %d not found", id)
	}
	return nil
}

// checkMasterRef validates a would-be parent reference: the master
// must exist and must itself be a root. This is the write-path
// enforcement of the one-level hierarchy; the schema triggers are the
// backstop for writes that bypass the store layer.
func checkMasterRef(ctx context.Context, q dbtx, masterID int64) error {
	var parentOfMaster sql.NullInt64
	err := q.QueryRowContext(ctx,
		`SELECT master_event_id FROM canonical_events WHERE id = ?`,
		masterID).Scan(&parentOfMaster)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("event %d: %w", masterID, ErrMasterNotFound)
	}
	if err != nil {
		return fmt.Errorf("check master ref: %w", err)
	}
	if parentOfMaster.Valid {
		return fmt.Errorf("event %d: %w", masterID, ErrMasterIsChild)
	}
	return nil
}

// CreateEvent inserts a canonical event and returns its ID. The name
// is normalized on the way in. When MasterEventID is set, the parent
// must exist and be a root (ErrMasterNotFound / ErrMasterIsChild).
func (s *Store) CreateEvent(ctx context.Context, ev event.CanonicalEvent) (int64, error) {
	if ev.MasterEventID != nil {
		if err := checkMasterRef(ctx, s.db, *ev.MasterEventID); err != nil {
			return 0, fmt.Errorf("create event: %w", err)
		}
	}

	sourcesJSON, err := marshalStrings(ev.SourceNames)
	if err != nil {
		return 0, fmt.Errorf("create event: %w", err)
	}
	altJSON, err := marshalStrings(ev.AltNames)
	if err != nil {
		return 0, fmt.Errorf("create event: %w", err)
	}
	factsJSON, err := marshalStringMap(ev.KeyFacts)
	if err != nil {
		return 0, fmt.Errorf("create event: %w", err)
	}
	catJSON, err := marshalIntMap(ev.CategoryTotals)
	if err != nil {
		return 0, fmt.Errorf("create event: %w", err)
	}
	recJSON, err := marshalIntMap(ev.RecipientTotals)
	if err != nil {
		return 0, fmt.Errorf("create event: %w", err)
	}

	now := time.Now()
	createdAt := ev.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	var masterID any
	if ev.MasterEventID != nil {
		masterID = *ev.MasterEventID
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO canonical_events
		(master_event_id, name, country, first_mention, last_mention,
		 mention_days, total_articles, peak_date, peak_articles, story_phase,
		 source_names, alt_names, summary, key_facts, category_totals,
		 recipient_totals, embedding, materiality_score, materiality_note,
		 validated, validated_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		masterID,
		event.NormalizeName(ev.Name),
		ev.Country,
		string(ev.FirstMention),
		string(ev.LastMention),
		ev.MentionDays,
		ev.TotalArticles,
		string(ev.PeakDate),
		ev.PeakArticles,
		ev.StoryPhase,
		sourcesJSON,
		altJSON,
		ev.Summary,
		factsJSON,
		catJSON,
		recJSON,
		ev.Embedding,
		nullFloat(ev.MaterialityScore),
		ev.MaterialityNote,
		ev.Validated,
		nullTime(ev.ValidatedAt),
		formatTime(createdAt),
		formatTime(now),
	)
	if err != nil {
		return 0, fmt.Errorf("create event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create event: %w", err)
	}
	return id, nil
}

// AssignMaster reparents child under master. The same one-level guard
// applies as at creation, plus the child must not have children of its
// own (that would orphan a level).
func (s *Store) AssignMaster(ctx context.Context, childID, masterID int64) error {
	if childID == masterID {
		return fmt.Errorf("assign master: event %d cannot be its own master", childID)
	}
	if err := checkMasterRef(ctx, s.db, masterID); err != nil {
		return fmt.Errorf("assign master: %w", err)
	}

	var grandchildren int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM canonical_events WHERE master_event_id = ?`,
		childID).Scan(&grandchildren)
	if err != nil {
		return fmt.Errorf("assign master: %w", err)
	}
	if grandchildren > 0 {
		return fmt.Errorf("assign master: event %d has %d children: %w",
			childID, grandchildren, ErrMasterIsChild)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE canonical_events SET master_event_id = ?, updated_at = ? WHERE id = ?
	`, masterID, formatTime(time.Now()), childID)
	if err != nil {
		return fmt.Errorf("assign master: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("assign master: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("assign master: event %d: %w", childID, ErrEventNotFound)
	}
	return nil
}

// SetValidated flips an event's human-review flag. Validating stamps
// the given review time; un-validating clears it.
func (s *Store) SetValidated(ctx context.Context, id int64, validated bool, at time.Time) error {
	var validatedAt any
	if validated {
		if at.IsZero() {
			at = time.Now()
		}
		validatedAt = formatTime(at)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE canonical_events SET validated = ?, validated_at = ?, updated_at = ?
		WHERE id = ?
	`, validated, validatedAt, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("set validated: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set validated: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("set validated: event %d: %w", id, ErrEventNotFound)
	}
	return nil
}

// UpsertMention records one day of coverage for an event. A fresh
// (event, date) pair inserts a row; an existing pair folds additively:
// article counts sum, doc-id and source-name sets union, and the
// existing row's headline and summary are kept. Returns the surviving
// mention ID.
//
// The mention's country is taken from the owning event, never from
// the caller, so a mention can never disagree with its event.
func (s *Store) UpsertMention(ctx context.Context, m event.Mention) (int64, error) {
	ev, err := getEvent(ctx, s.db, m.EventID)
	if err != nil {
		return 0, fmt.Errorf("upsert mention: %w", err)
	}

	existing, err := mentionOn(ctx, s.db, m.EventID, m.Date)
	if err != nil {
		return 0, fmt.Errorf("upsert mention: %w", err)
	}
	if existing != nil {
		existing.ArticleCount += m.ArticleCount
		existing.DocIDs = existing.DocIDs.Union(m.DocIDs)
		existing.SourceNames = event.MergeNames(existing.SourceNames, m.SourceNames...)
		if err := updateMentionRow(ctx, s.db, existing); err != nil {
			return 0, fmt.Errorf("upsert mention: %w", err)
		}
		return existing.ID, nil
	}

	m.Country = ev.Country
	id, err := insertMentionRow(ctx, s.db, &m)
	if err != nil {
		return 0, fmt.Errorf("upsert mention: %w", err)
	}
	return id, nil
}

// insertMentionRow inserts a mention row as-is. The UNIQUE
// (event, date) constraint surfaces as an error here; callers that
// want fold-on-conflict go through UpsertMention.
func insertMentionRow(ctx context.Context, q dbtx, m *event.Mention) (int64, error) {
	sourcesJSON, err := marshalStrings(m.SourceNames)
	if err != nil {
		return 0, err
	}
	docsJSON, err := marshalDocSet(m.DocIDs)
	if err != nil {
		return 0, err
	}
	res, err := q.ExecContext(ctx, `
		INSERT INTO daily_mentions
		(canonical_event_id, country, mention_date, article_count, headline,
		 summary, source_names, source_diversity, context_tag, intensity, doc_ids)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		m.EventID,
		m.Country,
		string(m.Date),
		m.ArticleCount,
		m.Headline,
		m.Summary,
		sourcesJSON,
		m.SourceDiversity,
		m.ContextTag,
		m.Intensity,
		docsJSON,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// updateMentionRow rewrites a mention's mutable columns in place.
// Ownership and date do not change here; reassignment has its own
// guarded path on Tx.
func updateMentionRow(ctx context.Context, q dbtx, m *event.Mention) error {
	sourcesJSON, err := marshalStrings(m.SourceNames)
	if err != nil {
		return err
	}
	docsJSON, err := marshalDocSet(m.DocIDs)
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `
		UPDATE daily_mentions
		SET article_count = ?, headline = ?, summary = ?, source_names = ?,
		    source_diversity = ?, context_tag = ?, intensity = ?, doc_ids = ?
		WHERE id = ?
	`,
		m.ArticleCount,
		m.Headline,
		m.Summary,
		sourcesJSON,
		m.SourceDiversity,
		m.ContextTag,
		m.Intensity,
		docsJSON,
		m.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("mention %d: %w", m.ID, ErrMentionNotFound)
	}
	return nil
}
