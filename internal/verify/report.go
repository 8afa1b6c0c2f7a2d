package verify

import "time"

// Check identifiers, stable across releases so automation can key on
// them.
const (
	CheckEmptyDocMentions  = "mention-empty-docs"
	CheckMissingDocuments  = "mention-missing-docs"
	CheckZeroMentionEvents = "event-zero-mentions"
	CheckEmptyDocClusters  = "cluster-empty-docs"
	CheckHierarchyRefs     = "hierarchy-refs"
)

// CheckResult is one check's outcome: how much was examined, how many
// violations, and a bounded sample of offenders for a human to chase.
type CheckResult struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Scanned    int      `json:"scanned"`
	Violations int      `json:"violations"`
	Samples    []string `json:"samples,omitempty"`

	// Partial is true when the check inspected a subset of the data
	// (the sampled document scan). A clean partial check is evidence,
	// not proof.
	Partial bool `json:"partial,omitempty"`
}

// OK reports whether the check found nothing.
func (c *CheckResult) OK() bool {
	return c.Violations == 0
}

// PipelineStats is one country's operational snapshot: how much of
// the upstream chain has been worked through. Informational only.
type PipelineStats struct {
	Country              string  `json:"country"`
	Clusters             int     `json:"clusters"`
	ClustersProcessed    int     `json:"clusters_processed"`
	ClustersDeconflicted int     `json:"clusters_deconflicted"`
	ProcessedPct         float64 `json:"processed_pct"`
	DeconflictedPct      float64 `json:"deconflicted_pct"`
	Events               int     `json:"events"`
	Masters              int     `json:"masters"`
	Children             int     `json:"children"`
	Validated            int     `json:"validated"`
	Scored               int     `json:"scored"`
	ScoredPct            float64 `json:"scored_pct"`
	Mentions             int     `json:"mentions"`
}

// Report is one verification sweep's full outcome.
type Report struct {
	Country     string          `json:"country,omitempty"`
	FullScan    bool            `json:"full_scan"`
	GeneratedAt time.Time       `json:"generated_at"`
	Checks      []CheckResult   `json:"checks"`
	Pipeline    []PipelineStats `json:"pipeline"`
}

// Failed reports whether any check found violations. This is the
// automation gate: Failed maps to a non-zero exit.
func (r *Report) Failed() bool {
	for i := range r.Checks {
		if !r.Checks[i].OK() {
			return true
		}
	}
	return false
}

// Violations sums offending rows across all checks.
func (r *Report) Violations() int {
	n := 0
	for i := range r.Checks {
		n += r.Checks[i].Violations
	}
	return n
}

// Check returns the result with the given ID, or nil.
func (r *Report) Check(id string) *CheckResult {
	for i := range r.Checks {
		if r.Checks[i].ID == id {
			return &r.Checks[i]
		}
	}
	return nil
}
