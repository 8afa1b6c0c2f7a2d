package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Run status values. A run row exists for every attempted country:
// committed merges are 'completed', rolled-back rehearsals are
// 'dry-run', aborted countries are 'failed'.
const (
	RunCompleted = "completed"
	RunDryRun    = "dry-run"
	RunFailed    = "failed"
)

// Merge-log actions, one per mutation kind the engine performs.
const (
	ActionReassign  = "reassign"
	ActionMerge     = "merge"
	ActionDropChild = "drop-child"
)

// RunRecord is one consolidation attempt for one country.
type RunRecord struct {
	Token      string    `json:"run_token"`
	Country    string    `json:"country"`
	DryRun     bool      `json:"dry_run"`
	Status     string    `json:"status"`
	Masters    int       `json:"masters"`
	Children   int       `json:"children"`
	Merged     int       `json:"mentions_merged"`
	Reassigned int       `json:"mentions_reassigned"`
	Deleted    int       `json:"events_deleted"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// MergeLogEntry is one mutation a run performed, in execution order.
// Seq starts at 1 and is contiguous within a run.
type MergeLogEntry struct {
	Token         string `json:"run_token"`
	Seq           int64  `json:"seq"`
	MasterID      int64  `json:"master_id"`
	ChildID       int64  `json:"child_id"`
	MentionDate   string `json:"mention_date,omitempty"`
	Action        string `json:"action"`
	ArticlesMoved int    `json:"articles_moved"`
}

// RecordRun writes a run record and its merge log inside the
// consolidation transaction, so the audit trail commits atomically
// with the mutations it describes. The engine buffers log entries and
// flushes them here once, satisfying the log's foreign key on the run
// row.
func (t *Tx) RecordRun(ctx context.Context, rec RunRecord, log []MergeLogEntry) error {
	if err := insertRun(ctx, t.tx, rec); err != nil {
		return err
	}
	for _, entry := range log {
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO merge_log
			(run_token, seq, master_id, child_id, mention_date, action, articles_moved)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			rec.Token,
			entry.Seq,
			entry.MasterID,
			entry.ChildID,
			entry.MentionDate,
			entry.Action,
			entry.ArticlesMoved,
		)
		if err != nil {
			return fmt.Errorf("record run %s: log seq %d: %w", rec.Token, entry.Seq, err)
		}
	}
	return nil
}

// RecordRun writes a run record outside any merge transaction. Used
// for failed and dry-run outcomes, whose merge transaction rolled
// back; the record itself should still survive.
func (s *Store) RecordRun(ctx context.Context, rec RunRecord) error {
	return insertRun(ctx, s.db, rec)
}

func insertRun(ctx context.Context, q dbtx, rec RunRecord) error {
	// ON CONFLICT DO NOTHING keeps a retried token from failing the
	// retry itself; tokens are UUIDv7 so collisions mean a retry.
	_, err := q.ExecContext(ctx, `
		INSERT INTO consolidation_runs
		(run_token, country, dry_run, status, masters, children,
		 mentions_merged, mentions_reassigned, events_deleted, error,
		 started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_token) DO NOTHING
	`,
		rec.Token,
		rec.Country,
		rec.DryRun,
		rec.Status,
		rec.Masters,
		rec.Children,
		rec.Merged,
		rec.Reassigned,
		rec.Deleted,
		rec.Error,
		formatTime(rec.StartedAt),
		formatTime(rec.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", rec.Token, err)
	}
	return nil
}

func scanRun(row rowScanner) (*RunRecord, error) {
	var (
		rec        RunRecord
		dryRun     int
		startedAt  string
		finishedAt string
	)
	err := row.Scan(
		&rec.Token, &rec.Country, &dryRun, &rec.Status,
		&rec.Masters, &rec.Children, &rec.Merged, &rec.Reassigned,
		&rec.Deleted, &rec.Error, &startedAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.DryRun = dryRun != 0
	if rec.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, fmt.Errorf("run %s: %w", rec.Token, err)
	}
	if rec.FinishedAt, err = parseTime(finishedAt); err != nil {
		return nil, fmt.Errorf("run %s: %w", rec.Token, err)
	}
	return &rec, nil
}

const runColumns = `run_token, country, dry_run, status, masters, children,
	mentions_merged, mentions_reassigned, events_deleted, error,
	started_at, finished_at`

// GetRun fetches one run by token. Returns ErrRunNotFound if absent.
func (s *Store) GetRun(ctx context.Context, token string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM consolidation_runs WHERE run_token = ?`, token)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", token, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return rec, nil
}

// ListRuns returns recent runs, newest first. UUIDv7 tokens are
// time-ordered, so the token is the tiebreak within one timestamp.
// A limit of 0 means no limit.
func (s *Store) ListRuns(ctx context.Context, country string, limit int) ([]RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM consolidation_runs`
	args := []any{}
	if country != "" {
		query += ` WHERE country = ?`
		args = append(args, country)
	}
	query += ` ORDER BY started_at DESC, run_token DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	out := []RunRecord{}
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// MergeLogOf returns a run's merge log in execution order.
// Always returns empty slice, not nil.
func (s *Store) MergeLogOf(ctx context.Context, token string) ([]MergeLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_token, seq, master_id, child_id, mention_date, action, articles_moved
		FROM merge_log
		WHERE run_token = ?
		ORDER BY seq ASC
	`, token)
	if err != nil {
		return nil, fmt.Errorf("merge log of %s: %w", token, err)
	}
	defer rows.Close()

	out := []MergeLogEntry{}
	for rows.Next() {
		var e MergeLogEntry
		err := rows.Scan(&e.Token, &e.Seq, &e.MasterID, &e.ChildID,
			&e.MentionDate, &e.Action, &e.ArticlesMoved)
		if err != nil {
			return nil, fmt.Errorf("merge log of %s: %w", token, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
