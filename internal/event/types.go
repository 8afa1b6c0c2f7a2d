package event

import "time"

// =============================================================================
// Documents and clusters (upstream pipeline artifacts)
// =============================================================================

// Document is one ingested article. DocID is the stable provenance key
// that mention and cluster doc-id sets refer to; it never changes once
// assigned by ingestion.
type Document struct {
	DocID       string    `json:"doc_id"`
	Country     string    `json:"country"`
	SourceName  string    `json:"source_name"`
	Title       string    `json:"title"`
	PublishedAt Day       `json:"published_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// Cluster is one clustering-stage output: a group of same-day documents
// believed to describe one happening. Clusters feed canonical event
// construction upstream of consolidation; the verifier audits them but
// the merge engine never mutates them.
type Cluster struct {
	ID                 int64    `json:"id"`
	Country            string   `json:"country"`
	ClusterDate        Day      `json:"cluster_date"`
	BatchNo            int      `json:"batch_no"`
	ClusterNo          int      `json:"cluster_no"`
	EventNames         []string `json:"event_names"`
	DocIDs             DocSet   `json:"doc_ids"`
	Size               int      `json:"size"`
	IsNoise            bool     `json:"is_noise"`
	RepresentativeName string   `json:"representative_name"`
	Processed          bool     `json:"processed"`
	Deconflicted       bool     `json:"deconflicted"`
}

// =============================================================================
// Canonical events
// =============================================================================

// Story phase labels assigned upstream from mention cadence. The merge
// engine carries them through unchanged.
const (
	PhaseEmerging   = "emerging"
	PhaseDeveloping = "developing"
	PhaseOngoing    = "ongoing"
	PhaseDormant    = "dormant"
	PhaseConcluded  = "concluded"
)

// CanonicalEvent is one deduplicated news event within a country.
//
// MasterEventID encodes the hierarchy: nil means this event is a master
// (a root), non-nil means it is a child of that master. The hierarchy
// is one level deep, always: a MasterEventID must reference an event
// whose own MasterEventID is nil.
//
// The span fields (FirstMention, LastMention, MentionDays,
// TotalArticles, PeakDate, PeakArticles) are derived from the event's
// daily mentions and recomputed after consolidation moves mentions
// around. They are a cache, not a source of truth.
type CanonicalEvent struct {
	ID            int64  `json:"id"`
	MasterEventID *int64 `json:"master_event_id,omitempty"`
	Name          string `json:"name"`
	Country       string `json:"country"`

	// Derived span.
	FirstMention  Day `json:"first_mention,omitempty"`
	LastMention   Day `json:"last_mention,omitempty"`
	MentionDays   int `json:"mention_days"`
	TotalArticles int `json:"total_articles"`
	PeakDate      Day `json:"peak_date,omitempty"`
	PeakArticles  int `json:"peak_articles"`

	StoryPhase  string   `json:"story_phase,omitempty"`
	SourceNames []string `json:"source_names,omitempty"`
	AltNames    []string `json:"alt_names,omitempty"`

	// Narrative enrichment, produced by upstream summarization.
	Summary  string            `json:"summary,omitempty"`
	KeyFacts map[string]string `json:"key_facts,omitempty"`

	// Analytical rollups keyed by label.
	CategoryTotals  map[string]int `json:"category_totals,omitempty"`
	RecipientTotals map[string]int `json:"recipient_totals,omitempty"`

	// Embedding is an opaque vector blob owned by the similarity
	// stage; consolidation preserves the master's copy.
	Embedding []byte `json:"-"`

	MaterialityScore *float64 `json:"materiality_score,omitempty"`
	MaterialityNote  string   `json:"materiality_note,omitempty"`

	Validated   bool      `json:"validated"`
	ValidatedAt time.Time `json:"validated_at,omitzero"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsMaster reports whether the event is a hierarchy root.
func (e *CanonicalEvent) IsMaster() bool {
	return e.MasterEventID == nil
}

// Eligible reports whether the event is a consolidation target:
// a validated master. Unvalidated masters and all children are
// never used as merge destinations.
func (e *CanonicalEvent) Eligible() bool {
	return e.IsMaster() && e.Validated
}

// DaysSinceLastMention reports the calendar days elapsed between the
// event's last mention and now. The second return is false when the
// event has no recorded mentions.
func (e *CanonicalEvent) DaysSinceLastMention(now time.Time) (int, bool) {
	if e.LastMention.IsZero() {
		return 0, false
	}
	return int(DayOf(now).Time().Sub(e.LastMention.Time()).Hours() / 24), true
}

// =============================================================================
// Daily mentions
// =============================================================================

// Mention is one event's coverage on one calendar day. At most one
// mention exists per (EventID, Date) pair; the store enforces this
// with a UNIQUE constraint and consolidation preserves it by merging
// same-day rows additively instead of moving them.
type Mention struct {
	ID      int64 `json:"id"`
	EventID int64 `json:"event_id"`

	Country string `json:"country"`
	Date    Day    `json:"date"`

	ArticleCount int    `json:"article_count"`
	Headline     string `json:"headline,omitempty"`
	Summary      string `json:"summary,omitempty"`

	SourceNames     []string `json:"source_names,omitempty"`
	SourceDiversity float64  `json:"source_diversity,omitempty"`

	ContextTag string `json:"context_tag,omitempty"`
	Intensity  string `json:"intensity,omitempty"`

	DocIDs DocSet `json:"doc_ids"`
}
