package merge

import "time"

// Stats counts one consolidation's activity. MentionsReassigned
// counts every child mention processed, both branches of the merge;
// MentionsMerged is the conflict subset of that number, kept as a
// diagnostic.
type Stats struct {
	MasterCount        int `json:"master_count"`
	ChildCount         int `json:"child_count"`
	MentionsReassigned int `json:"mentions_reassigned"`
	MentionsMerged     int `json:"mentions_merged"`
	EventsDeleted      int `json:"events_deleted"`
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.MasterCount += other.MasterCount
	s.ChildCount += other.ChildCount
	s.MentionsReassigned += other.MentionsReassigned
	s.MentionsMerged += other.MentionsMerged
	s.EventsDeleted += other.EventsDeleted
}

// IsZero reports whether the run touched nothing.
func (s Stats) IsZero() bool {
	return s == Stats{}
}

// CountryResult is one country's slice of a batch.
type CountryResult struct {
	Country  string        `json:"country"`
	RunToken string        `json:"run_token,omitempty"`
	Status   string        `json:"status"`
	Stats    Stats         `json:"stats"`
	Error    string        `json:"error,omitempty"`
	Elapsed  time.Duration `json:"-"`

	// Err carries the typed error for programmatic callers; Error
	// above is its rendered form for reports.
	Err error `json:"-"`
}

// Failed reports whether this country's consolidation failed.
func (r *CountryResult) Failed() bool {
	return r.Err != nil
}

// BatchResult is the outcome of one Consolidate call across its
// whole scope. Per-country failures live in Results; the batch
// itself only errors on cancellation.
type BatchResult struct {
	DryRun  bool            `json:"dry_run"`
	Results []CountryResult `json:"results"`
}

// Totals sums stats across all countries, failed ones included
// (their stats are zero by construction).
func (b *BatchResult) Totals() Stats {
	var total Stats
	for _, r := range b.Results {
		total.Add(r.Stats)
	}
	return total
}

// FailedCount counts countries whose consolidation failed.
func (b *BatchResult) FailedCount() int {
	n := 0
	for i := range b.Results {
		if b.Results[i].Failed() {
			n++
		}
	}
	return n
}

// OK reports whether every country in the batch succeeded.
func (b *BatchResult) OK() bool {
	return b.FailedCount() == 0
}
