package verify

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/storywatch/storyfold/internal/event"
	"github.com/storywatch/storyfold/internal/store"
)

const (
	// DefaultSampleSize caps the offending rows quoted per check.
	DefaultSampleSize = 5

	// DefaultScanLimit is how many mention rows the sampled document
	// check examines, newest first. Fresh ingestion is where document
	// references break, so the tail of the table is the signal.
	DefaultScanLimit = 1000

	// lookupChunk keeps document-existence queries under SQLite's
	// bound-variable limit.
	lookupChunk = 500
)

// Options controls one verification sweep.
type Options struct {
	// Country restricts the sweep to one country; empty means all.
	Country string

	// SampleSize caps quoted offenders per check (0 = default).
	SampleSize int

	// ScanLimit bounds the sampled document check (0 = default).
	ScanLimit int

	// FullScan makes the document check walk every mention row.
	FullScan bool
}

// Verifier runs the integrity sweep. Strictly read-only: it opens no
// transaction and mutates nothing.
type Verifier struct {
	store  *store.Store
	logger *slog.Logger
}

// New creates a Verifier. A nil logger discards.
func New(st *store.Store, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Verifier{store: st, logger: logger}
}

// Run executes every check plus the pipeline stats block and returns
// the assembled report. The returned error covers only sweep
// mechanics; violations live in the report.
func (v *Verifier) Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.SampleSize <= 0 {
		opts.SampleSize = DefaultSampleSize
	}
	if opts.ScanLimit <= 0 {
		opts.ScanLimit = DefaultScanLimit
	}

	report := &Report{
		Country:     opts.Country,
		FullScan:    opts.FullScan,
		GeneratedAt: time.Now().UTC(),
		Checks:      []CheckResult{},
		Pipeline:    []PipelineStats{},
	}

	checks := []func(context.Context, Options) (CheckResult, error){
		v.checkEmptyDocMentions,
		v.checkMissingDocuments,
		v.checkZeroMentionEvents,
		v.checkEmptyDocClusters,
		v.checkHierarchyRefs,
	}
	for _, check := range checks {
		res, err := check(ctx, opts)
		if err != nil {
			return nil, err
		}
		v.logger.Debug("check complete",
			"check", res.ID, "scanned", res.Scanned, "violations", res.Violations)
		report.Checks = append(report.Checks, res)
	}

	pipeline, err := v.pipelineStats(ctx, opts.Country)
	if err != nil {
		return nil, err
	}
	report.Pipeline = pipeline

	v.logger.Info("verification complete",
		"checks", len(report.Checks),
		"violations", report.Violations(),
		"failed", report.Failed())
	return report, nil
}

// countRow runs a single-value COUNT query.
func (v *Verifier) countRow(ctx context.Context, query string, args ...any) (int, error) {
	rows, err := v.store.Query(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	n := 0
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, err
		}
	}
	return n, rows.Err()
}

// emptyDocPredicate matches doc-id columns that carry no references,
// whichever way the emptiness was written.
const emptyDocPredicate = `(doc_ids IS NULL OR doc_ids IN ('', '[]', 'null'))`

func (v *Verifier) checkEmptyDocMentions(ctx context.Context, opts Options) (CheckResult, error) {
	res := CheckResult{ID: CheckEmptyDocMentions, Name: "mentions with empty doc-id sets"}

	scope, args := countryClause("country", opts.Country)
	total, err := v.countRow(ctx,
		`SELECT COUNT(*) FROM daily_mentions WHERE 1=1`+scope, args...)
	if err != nil {
		return res, fmt.Errorf("%s: %w", res.ID, err)
	}
	res.Scanned = total

	bad, err := v.countRow(ctx,
		`SELECT COUNT(*) FROM daily_mentions WHERE `+emptyDocPredicate+scope, args...)
	if err != nil {
		return res, fmt.Errorf("%s: %w", res.ID, err)
	}
	res.Violations = bad
	if bad == 0 {
		return res, nil
	}

	rows, err := v.store.Query(ctx, `
		SELECT id, canonical_event_id, mention_date FROM daily_mentions
		WHERE `+emptyDocPredicate+scope+`
		ORDER BY id LIMIT ?`, append(args, opts.SampleSize)...)
	if err != nil {
		return res, fmt.Errorf("%s: %w", res.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, eventID int64
		var date string
		if err := rows.Scan(&id, &eventID, &date); err != nil {
			return res, fmt.Errorf("%s: %w", res.ID, err)
		}
		res.Samples = append(res.Samples,
			fmt.Sprintf("mention %d (event %d, %s)", id, eventID, date))
	}
	return res, rows.Err()
}

func (v *Verifier) checkMissingDocuments(ctx context.Context, opts Options) (CheckResult, error) {
	res := CheckResult{ID: CheckMissingDocuments, Name: "mention doc-ids missing from documents"}

	query := `SELECT id, doc_ids FROM daily_mentions`
	args := []any{}
	if opts.Country != "" {
		query += ` WHERE country = ?`
		args = append(args, opts.Country)
	}
	query += ` ORDER BY id DESC`
	if !opts.FullScan {
		query += ` LIMIT ?`
		args = append(args, opts.ScanLimit)
		res.Partial = true
	}

	rows, err := v.store.Query(ctx, query, args...)
	if err != nil {
		return res, fmt.Errorf("%s: %w", res.ID, err)
	}
	defer rows.Close()

	// First mention that referenced each doc id, for the sample label.
	firstRef := map[string]int64{}
	order := []string{}
	for rows.Next() {
		var mentionID int64
		var docsJSON sql.NullString
		if err := rows.Scan(&mentionID, &docsJSON); err != nil {
			return res, fmt.Errorf("%s: %w", res.ID, err)
		}
		res.Scanned++
		if !docsJSON.Valid || docsJSON.String == "" {
			continue
		}
		var docs event.DocSet
		if err := json.Unmarshal([]byte(docsJSON.String), &docs); err != nil {
			return res, fmt.Errorf("%s: mention %d: %w", res.ID, mentionID, err)
		}
		for _, docID := range docs {
			if _, seen := firstRef[docID]; !seen {
				firstRef[docID] = mentionID
				order = append(order, docID)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return res, fmt.Errorf("%s: %w", res.ID, err)
	}

	missing, err := v.missingDocs(ctx, order)
	if err != nil {
		return res, fmt.Errorf("%s: %w", res.ID, err)
	}
	res.Violations = len(missing)
	for _, docID := range missing {
		if len(res.Samples) >= opts.SampleSize {
			break
		}
		res.Samples = append(res.Samples,
			fmt.Sprintf("doc %q (mention %d)", docID, firstRef[docID]))
	}
	return res, nil
}

// missingDocs returns, preserving input order, the ids with no row in
// the document store. Lookups run in chunks to stay under the SQLite
// variable limit.
func (v *Verifier) missingDocs(ctx context.Context, ids []string) ([]string, error) {
	found := make(map[string]bool, len(ids))
	for start := 0; start < len(ids); start += lookupChunk {
		chunk := ids[start:min(start+lookupChunk, len(ids))]
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}

		rows, err := v.store.Query(ctx,
			`SELECT doc_id FROM documents WHERE doc_id IN (`+placeholders+`)`, args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, err
			}
			found[id] = true
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}

	missing := []string{}
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (v *Verifier) checkZeroMentionEvents(ctx context.Context, opts Options) (CheckResult, error) {
	res := CheckResult{ID: CheckZeroMentionEvents, Name: "events with zero mentions"}

	scope, args := countryClause("country", opts.Country)
	total, err := v.countRow(ctx,
		`SELECT COUNT(*) FROM canonical_events WHERE 1=1`+scope, args...)
	if err != nil {
		return res, fmt.Errorf("%s: %w", res.ID, err)
	}
	res.Scanned = total

	const orphanPredicate = `NOT EXISTS (
		SELECT 1 FROM daily_mentions m WHERE m.canonical_event_id = canonical_events.id
	)`
	bad, err := v.countRow(ctx,
		`SELECT COUNT(*) FROM canonical_events WHERE `+orphanPredicate+scope, args...)
	if err != nil {
		return res, fmt.Errorf("%s: %w", res.ID, err)
	}
	res.Violations = bad
	if bad == 0 {
		return res, nil
	}

	rows, err := v.store.Query(ctx, `
		SELECT id, name, country, master_event_id IS NULL
		FROM canonical_events
		WHERE `+orphanPredicate+scope+`
		ORDER BY id LIMIT ?`, append(args, opts.SampleSize)...)
	if err != nil {
		return res, fmt.Errorf("%s: %w", res.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id       int64
			name     string
			country  string
			isMaster bool
		)
		if err := rows.Scan(&id, &name, &country, &isMaster); err != nil {
			return res, fmt.Errorf("%s: %w", res.ID, err)
		}
		kind := "child"
		if isMaster {
			kind = "master"
		}
		res.Samples = append(res.Samples,
			fmt.Sprintf("%s %d %q (%s)", kind, id, name, country))
	}
	return res, rows.Err()
}

func (v *Verifier) checkEmptyDocClusters(ctx context.Context, opts Options) (CheckResult, error) {
	res := CheckResult{ID: CheckEmptyDocClusters, Name: "clusters with empty doc-id sets"}

	scope, args := countryClause("country", opts.Country)
	total, err := v.countRow(ctx,
		`SELECT COUNT(*) FROM event_clusters WHERE 1=1`+scope, args...)
	if err != nil {
		return res, fmt.Errorf("%s: %w", res.ID, err)
	}
	res.Scanned = total

	bad, err := v.countRow(ctx,
		`SELECT COUNT(*) FROM event_clusters WHERE `+emptyDocPredicate+scope, args...)
	if err != nil {
		return res, fmt.Errorf("%s: %w", res.ID, err)
	}
	res.Violations = bad
	if bad == 0 {
		return res, nil
	}

	rows, err := v.store.Query(ctx, `
		SELECT id, country, cluster_date, batch_no, cluster_no FROM event_clusters
		WHERE `+emptyDocPredicate+scope+`
		ORDER BY id LIMIT ?`, append(args, opts.SampleSize)...)
	if err != nil {
		return res, fmt.Errorf("%s: %w", res.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id, batch, cluster int64
			country, date      string
		)
		if err := rows.Scan(&id, &country, &date, &batch, &cluster); err != nil {
			return res, fmt.Errorf("%s: %w", res.ID, err)
		}
		res.Samples = append(res.Samples,
			fmt.Sprintf("cluster %d (%s %s batch %d #%d)", id, country, date, batch, cluster))
	}
	return res, rows.Err()
}

func (v *Verifier) checkHierarchyRefs(ctx context.Context, opts Options) (CheckResult, error) {
	res := CheckResult{ID: CheckHierarchyRefs, Name: "hierarchy references"}

	scope, args := countryClause("c.country", opts.Country)
	total, err := v.countRow(ctx, `
		SELECT COUNT(*) FROM canonical_events c
		WHERE c.master_event_id IS NOT NULL`+scope, args...)
	if err != nil {
		return res, fmt.Errorf("%s: %w", res.ID, err)
	}
	res.Scanned = total

	const badRefJoin = `
		FROM canonical_events c
		LEFT JOIN canonical_events p ON p.id = c.master_event_id
		WHERE c.master_event_id IS NOT NULL
		  AND (p.id IS NULL OR p.master_event_id IS NOT NULL)`

	bad, err := v.countRow(ctx, `SELECT COUNT(*)`+badRefJoin+scope, args...)
	if err != nil {
		return res, fmt.Errorf("%s: %w", res.ID, err)
	}
	res.Violations = bad
	if bad == 0 {
		return res, nil
	}

	rows, err := v.store.Query(ctx, `
		SELECT c.id, c.master_event_id, p.id IS NULL`+badRefJoin+scope+`
		ORDER BY c.id LIMIT ?`, append(args, opts.SampleSize)...)
	if err != nil {
		return res, fmt.Errorf("%s: %w", res.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id, masterID int64
			dangling     bool
		)
		if err := rows.Scan(&id, &masterID, &dangling); err != nil {
			return res, fmt.Errorf("%s: %w", res.ID, err)
		}
		if dangling {
			res.Samples = append(res.Samples,
				fmt.Sprintf("event %d references missing master %d", id, masterID))
		} else {
			res.Samples = append(res.Samples,
				fmt.Sprintf("event %d references child %d (depth two)", id, masterID))
		}
	}
	return res, rows.Err()
}

// countryClause builds the optional scope filter for a check query.
// The returned clause starts with AND so it appends to any WHERE.
func countryClause(column, country string) (string, []any) {
	if country == "" {
		return "", []any{}
	}
	return ` AND ` + column + ` = ?`, []any{country}
}
