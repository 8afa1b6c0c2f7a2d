package store

import (
	"context"
	"fmt"
)

// Overview is the status snapshot of a database: table sizes plus a
// per-country breakdown.
type Overview struct {
	Documents int64 `json:"documents"`
	Clusters  int64 `json:"clusters"`
	Events    int64 `json:"events"`
	Masters   int64 `json:"masters"`
	Children  int64 `json:"children"`
	Mentions  int64 `json:"mentions"`
	Articles  int64 `json:"articles"`
	Runs      int64 `json:"runs"`

	Countries []CountryTotals `json:"countries"`
}

// CountryTotals is one country's slice of the overview.
type CountryTotals struct {
	Country   string `json:"country"`
	Events    int64  `json:"events"`
	Masters   int64  `json:"masters"`
	Children  int64  `json:"children"`
	Validated int64  `json:"validated"`
	Mentions  int64  `json:"mentions"`
	Articles  int64  `json:"articles"`
}

// GetOverview collects the status snapshot. Read-only.
func (s *Store) GetOverview(ctx context.Context) (*Overview, error) {
	var o Overview

	counts := []struct {
		dest  *int64
		query string
	}{
		{&o.Documents, `SELECT COUNT(*) FROM documents`},
		{&o.Clusters, `SELECT COUNT(*) FROM event_clusters`},
		{&o.Events, `SELECT COUNT(*) FROM canonical_events`},
		{&o.Masters, `SELECT COUNT(*) FROM canonical_events WHERE master_event_id IS NULL`},
		{&o.Children, `SELECT COUNT(*) FROM canonical_events WHERE master_event_id IS NOT NULL`},
		{&o.Mentions, `SELECT COUNT(*) FROM daily_mentions`},
		{&o.Articles, `SELECT COALESCE(SUM(article_count), 0) FROM daily_mentions`},
		{&o.Runs, `SELECT COUNT(*) FROM consolidation_runs`},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("overview: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT e.country,
		       COUNT(*),
		       SUM(CASE WHEN e.master_event_id IS NULL THEN 1 ELSE 0 END),
		       SUM(CASE WHEN e.master_event_id IS NOT NULL THEN 1 ELSE 0 END),
		       SUM(CASE WHEN e.validated = 1 THEN 1 ELSE 0 END),
		       COALESCE((SELECT COUNT(*) FROM daily_mentions m WHERE m.country = e.country), 0),
		       COALESCE((SELECT SUM(m.article_count) FROM daily_mentions m WHERE m.country = e.country), 0)
		FROM canonical_events e
		GROUP BY e.country
		ORDER BY e.country ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("overview: %w", err)
	}
	defer rows.Close()

	o.Countries = []CountryTotals{}
	for rows.Next() {
		var ct CountryTotals
		err := rows.Scan(&ct.Country, &ct.Events, &ct.Masters, &ct.Children,
			&ct.Validated, &ct.Mentions, &ct.Articles)
		if err != nil {
			return nil, fmt.Errorf("overview: %w", err)
		}
		o.Countries = append(o.Countries, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("overview: %w", err)
	}
	return &o, nil
}
