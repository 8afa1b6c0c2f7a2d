package verify

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// pipelineStats assembles the per-country operational snapshot from
// three grouped sweeps: clusters, events, mentions. A country appears
// as soon as any table mentions it.
func (v *Verifier) pipelineStats(ctx context.Context, country string) ([]PipelineStats, error) {
	byCountry := map[string]*PipelineStats{}
	get := func(c string) *PipelineStats {
		if s, ok := byCountry[c]; ok {
			return s
		}
		s := &PipelineStats{Country: c}
		byCountry[c] = s
		return s
	}

	if err := v.clusterStats(ctx, country, get); err != nil {
		return nil, fmt.Errorf("pipeline stats: clusters: %w", err)
	}
	if err := v.eventStats(ctx, country, get); err != nil {
		return nil, fmt.Errorf("pipeline stats: events: %w", err)
	}
	if err := v.mentionStats(ctx, country, get); err != nil {
		return nil, fmt.Errorf("pipeline stats: mentions: %w", err)
	}

	countries := make([]string, 0, len(byCountry))
	for c := range byCountry {
		countries = append(countries, c)
	}
	sort.Strings(countries)

	out := make([]PipelineStats, 0, len(countries))
	for _, c := range countries {
		s := byCountry[c]
		s.ProcessedPct = pct(s.ClustersProcessed, s.Clusters)
		s.DeconflictedPct = pct(s.ClustersDeconflicted, s.Clusters)
		s.ScoredPct = pct(s.Scored, s.Events)
		out = append(out, *s)
	}
	return out, nil
}

func (v *Verifier) clusterStats(ctx context.Context, country string, get func(string) *PipelineStats) error {
	scope, args := countryClause("country", country)
	rows, err := v.store.Query(ctx, `
		SELECT country, COUNT(*),
		       COALESCE(SUM(processed), 0),
		       COALESCE(SUM(deconflicted), 0)
		FROM event_clusters WHERE 1=1`+scope+`
		GROUP BY country`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var c string
		var total, processed, deconflicted int
		if err := rows.Scan(&c, &total, &processed, &deconflicted); err != nil {
			return err
		}
		s := get(c)
		s.Clusters = total
		s.ClustersProcessed = processed
		s.ClustersDeconflicted = deconflicted
	}
	return rows.Err()
}

func (v *Verifier) eventStats(ctx context.Context, country string, get func(string) *PipelineStats) error {
	scope, args := countryClause("country", country)
	rows, err := v.store.Query(ctx, `
		SELECT country, COUNT(*),
		       SUM(CASE WHEN master_event_id IS NULL THEN 1 ELSE 0 END),
		       SUM(CASE WHEN master_event_id IS NOT NULL THEN 1 ELSE 0 END),
		       COALESCE(SUM(validated), 0),
		       SUM(CASE WHEN materiality_score IS NOT NULL THEN 1 ELSE 0 END)
		FROM canonical_events WHERE 1=1`+scope+`
		GROUP BY country`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var c string
		var total, masters, children, validated, scored int
		if err := rows.Scan(&c, &total, &masters, &children, &validated, &scored); err != nil {
			return err
		}
		s := get(c)
		s.Events = total
		s.Masters = masters
		s.Children = children
		s.Validated = validated
		s.Scored = scored
	}
	return rows.Err()
}

func (v *Verifier) mentionStats(ctx context.Context, country string, get func(string) *PipelineStats) error {
	scope, args := countryClause("country", country)
	rows, err := v.store.Query(ctx, `
		SELECT country, COUNT(*) FROM daily_mentions WHERE 1=1`+scope+`
		GROUP BY country`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var c string
		var total int
		if err := rows.Scan(&c, &total); err != nil {
			return err
		}
		get(c).Mentions = total
	}
	return rows.Err()
}

// pct rounds to one decimal so reports stay byte-stable.
func pct(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*1000) / 10
}
