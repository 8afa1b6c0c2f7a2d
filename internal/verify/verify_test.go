package verify

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storywatch/storyfold/internal/event"
	"github.com/storywatch/storyfold/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir() + "/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedDocument(t *testing.T, s *store.Store, docID, country string) {
	t.Helper()
	err := s.InsertDocument(context.Background(), event.Document{
		DocID:       docID,
		Country:     country,
		SourceName:  "Daily Nation",
		Title:       "headline for " + docID,
		PublishedAt: event.Day("2025-01-01"),
	})
	require.NoError(t, err)
}

func seedEvent(t *testing.T, s *store.Store, country, name string, masterID *int64) int64 {
	t.Helper()
	id, err := s.CreateEvent(context.Background(), event.CanonicalEvent{
		Name:          name,
		Country:       country,
		MasterEventID: masterID,
	})
	require.NoError(t, err)
	return id
}

// seedMention records one day of coverage; docs may be empty to plant
// a traceability violation.
func seedMention(t *testing.T, s *store.Store, eventID int64, day string, docs ...string) {
	t.Helper()
	_, err := s.UpsertMention(context.Background(), event.Mention{
		EventID:      eventID,
		Date:         event.Day(day),
		ArticleCount: 1,
		DocIDs:       event.NewDocSet(docs...),
	})
	require.NoError(t, err)
}

// seedHealthy builds a country with no violations: a document-backed
// mention on an event, and a processed cluster.
func seedHealthy(t *testing.T, s *store.Store, country string) int64 {
	t.Helper()
	seedDocument(t, s, country+"-doc-1", country)
	eventID := seedEvent(t, s, country, country+" Story", nil)
	seedMention(t, s, eventID, "2025-01-01", country+"-doc-1")
	_, err := s.InsertCluster(context.Background(), event.Cluster{
		Country:            country,
		ClusterDate:        event.Day("2025-01-01"),
		BatchNo:            1,
		ClusterNo:          1,
		EventNames:         []string{country + " Story"},
		DocIDs:             event.NewDocSet(country + "-doc-1"),
		Size:               1,
		RepresentativeName: country + " Story",
		Processed:          true,
		Deconflicted:       true,
	})
	require.NoError(t, err)
	return eventID
}

// TestVerifier_CleanDatabase tests that healthy data passes every
// check.
func TestVerifier_CleanDatabase(t *testing.T) {
	s := newTestStore(t)
	seedHealthy(t, s, "KE")

	v := New(s, nil)
	report, err := v.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.False(t, report.Failed())
	assert.Zero(t, report.Violations())
	require.Len(t, report.Checks, 5)
	for _, check := range report.Checks {
		assert.True(t, check.OK(), "check %s found %d violations", check.ID, check.Violations)
		assert.Empty(t, check.Samples)
	}
	assert.WithinDuration(t, time.Now(), report.GeneratedAt, 5*time.Second)
}

// TestVerifier_EmptyDocMentions seeds mentions with no document
// references among healthy ones and checks count, samples, and gating.
func TestVerifier_EmptyDocMentions(t *testing.T) {
	s := newTestStore(t)
	eventID := seedHealthy(t, s, "KE")

	// Three bad days among a healthy run of coverage.
	for day := 2; day <= 10; day++ {
		date := fmt.Sprintf("2025-01-%02d", day)
		if day <= 4 {
			seedMention(t, s, eventID, date)
			continue
		}
		docID := fmt.Sprintf("KE-doc-%d", day)
		seedDocument(t, s, docID, "KE")
		seedMention(t, s, eventID, date, docID)
	}

	v := New(s, nil)
	report, err := v.Run(context.Background(), Options{SampleSize: 2})
	require.NoError(t, err)

	assert.True(t, report.Failed())
	check := report.Check(CheckEmptyDocMentions)
	require.NotNil(t, check)
	assert.Equal(t, 3, check.Violations)
	assert.Equal(t, 10, check.Scanned)
	assert.Len(t, check.Samples, 2) // capped at the configured sample size
	assert.Contains(t, check.Samples[0], "mention")
	assert.Contains(t, check.Samples[0], "2025-01-02")
}

// TestVerifier_MissingDocuments tests the reference check in sampled
// and full modes.
func TestVerifier_MissingDocuments(t *testing.T) {
	s := newTestStore(t)
	eventID := seedHealthy(t, s, "KE")

	// Two mentions referencing documents that were never ingested.
	seedMention(t, s, eventID, "2025-01-02", "ghost-1", "ghost-2")
	seedMention(t, s, eventID, "2025-01-03", "ghost-2")

	v := New(s, nil)
	report, err := v.Run(context.Background(), Options{})
	require.NoError(t, err)

	check := report.Check(CheckMissingDocuments)
	require.NotNil(t, check)
	assert.True(t, check.Partial)
	assert.Equal(t, 3, check.Scanned)
	assert.Equal(t, 2, check.Violations) // distinct missing ids, not references
	require.Len(t, check.Samples, 2)
	assert.Contains(t, check.Samples[0], "ghost")
	assert.True(t, report.Failed())

	// Full scan covers the same ground here, minus the sampling flag.
	full, err := v.Run(context.Background(), Options{FullScan: true})
	require.NoError(t, err)
	fullCheck := full.Check(CheckMissingDocuments)
	require.NotNil(t, fullCheck)
	assert.False(t, fullCheck.Partial)
	assert.Equal(t, 2, fullCheck.Violations)
}

// TestVerifier_MissingDocuments_ScanLimit tests that the sampled mode
// inspects only the newest rows.
func TestVerifier_MissingDocuments_ScanLimit(t *testing.T) {
	s := newTestStore(t)
	eventID := seedEvent(t, s, "KE", "Story", nil)

	// Oldest mention has the broken reference; the newest is clean.
	seedMention(t, s, eventID, "2025-01-01", "ghost-old")
	seedDocument(t, s, "fresh-doc", "KE")
	seedMention(t, s, eventID, "2025-01-02", "fresh-doc")

	v := New(s, nil)
	report, err := v.Run(context.Background(), Options{ScanLimit: 1})
	require.NoError(t, err)

	check := report.Check(CheckMissingDocuments)
	require.NotNil(t, check)
	assert.Equal(t, 1, check.Scanned)
	assert.Zero(t, check.Violations) // the stale breakage is outside the window
	assert.True(t, check.Partial)

	full, err := v.Run(context.Background(), Options{FullScan: true})
	require.NoError(t, err)
	assert.Equal(t, 1, full.Check(CheckMissingDocuments).Violations)
}

// TestVerifier_ZeroMentionEvents tests orphan detection for masters
// and children.
func TestVerifier_ZeroMentionEvents(t *testing.T) {
	s := newTestStore(t)
	seedHealthy(t, s, "KE")
	masterID := seedEvent(t, s, "KE", "Silent Master", nil)
	childID := seedEvent(t, s, "KE", "Silent Child", &masterID)

	v := New(s, nil)
	report, err := v.Run(context.Background(), Options{})
	require.NoError(t, err)

	check := report.Check(CheckZeroMentionEvents)
	require.NotNil(t, check)
	assert.Equal(t, 2, check.Violations)
	assert.Equal(t, 3, check.Scanned)
	require.Len(t, check.Samples, 2)
	assert.Contains(t, check.Samples[0], fmt.Sprintf("master %d", masterID))
	assert.Contains(t, check.Samples[1], fmt.Sprintf("child %d", childID))
}

// TestVerifier_EmptyDocClusters tests the upstream-producer check.
func TestVerifier_EmptyDocClusters(t *testing.T) {
	s := newTestStore(t)
	seedHealthy(t, s, "KE")
	_, err := s.InsertCluster(context.Background(), event.Cluster{
		Country:     "KE",
		ClusterDate: event.Day("2025-01-02"),
		BatchNo:     2,
		ClusterNo:   1,
		EventNames:  []string{"Empty Cluster"},
	})
	require.NoError(t, err)

	v := New(s, nil)
	report, err := v.Run(context.Background(), Options{})
	require.NoError(t, err)

	check := report.Check(CheckEmptyDocClusters)
	require.NotNil(t, check)
	assert.Equal(t, 1, check.Violations)
	assert.Equal(t, 2, check.Scanned)
	require.Len(t, check.Samples, 1)
	assert.Contains(t, check.Samples[0], "KE 2025-01-02 batch 2")
}

// TestVerifier_HierarchyRefs plants both corruption shapes: a
// dangling master reference and a two-level chain.
func TestVerifier_HierarchyRefs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	masterID := seedEvent(t, s, "KE", "Root", nil)
	childID := seedEvent(t, s, "KE", "Child", &masterID)
	danglingID := seedEvent(t, s, "KE", "Dangler", &masterID)
	twoLevelID := seedEvent(t, s, "KE", "Grandchild", &masterID)
	seedMention(t, s, masterID, "2025-01-01", "d1")
	seedMention(t, s, childID, "2025-01-01", "d1")
	seedMention(t, s, danglingID, "2025-01-01", "d1")
	seedMention(t, s, twoLevelID, "2025-01-01", "d1")
	seedDocument(t, s, "d1", "KE")

	// Every write path rejects these shapes, so disarm the guards and
	// corrupt the rows directly.
	_, err := s.DB().ExecContext(ctx, `PRAGMA foreign_keys = OFF`)
	require.NoError(t, err)
	_, err = s.DB().ExecContext(ctx, `DROP TRIGGER trg_events_one_level_update`)
	require.NoError(t, err)
	_, err = s.DB().ExecContext(ctx,
		`UPDATE canonical_events SET master_event_id = 9999 WHERE id = ?`, danglingID)
	require.NoError(t, err)
	_, err = s.DB().ExecContext(ctx,
		`UPDATE canonical_events SET master_event_id = ? WHERE id = ?`, childID, twoLevelID)
	require.NoError(t, err)

	v := New(s, nil)
	report, err := v.Run(ctx, Options{})
	require.NoError(t, err)

	check := report.Check(CheckHierarchyRefs)
	require.NotNil(t, check)
	assert.Equal(t, 2, check.Violations)
	assert.Equal(t, 3, check.Scanned) // three rows carry a master reference
	require.Len(t, check.Samples, 2)
	assert.Contains(t, check.Samples[0], "missing master 9999")
	assert.Contains(t, check.Samples[1], "depth two")
	assert.True(t, report.Failed())
}

// TestVerifier_CountryScope tests that scoping hides other countries'
// violations and stats.
func TestVerifier_CountryScope(t *testing.T) {
	s := newTestStore(t)
	seedHealthy(t, s, "KE")
	ngEvent := seedEvent(t, s, "NG", "NG Story", nil)
	seedMention(t, s, ngEvent, "2025-01-01") // empty doc set

	v := New(s, nil)

	ke, err := v.Run(context.Background(), Options{Country: "KE"})
	require.NoError(t, err)
	assert.False(t, ke.Failed())
	require.Len(t, ke.Pipeline, 1)
	assert.Equal(t, "KE", ke.Pipeline[0].Country)

	ng, err := v.Run(context.Background(), Options{Country: "NG"})
	require.NoError(t, err)
	assert.True(t, ng.Failed())
	assert.Equal(t, 1, ng.Check(CheckEmptyDocMentions).Violations)

	all, err := v.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.True(t, all.Failed())
	assert.Len(t, all.Pipeline, 2)
}

// TestVerifier_PipelineStats tests the per-country rate arithmetic.
func TestVerifier_PipelineStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i := 1; i <= 3; i++ {
		_, err := s.InsertCluster(ctx, event.Cluster{
			Country:            "KE",
			ClusterDate:        event.Day("2025-01-01"),
			BatchNo:            1,
			ClusterNo:          i,
			DocIDs:             event.NewDocSet(fmt.Sprintf("d%d", i)),
			RepresentativeName: fmt.Sprintf("Cluster %d", i),
			Processed:          i <= 2,
			Deconflicted:       i == 1,
		})
		require.NoError(t, err)
	}

	masterID := seedEvent(t, s, "KE", "Scored Story", nil)
	require.NoError(t, s.SetValidated(ctx, masterID, true, time.Time{}))
	childID := seedEvent(t, s, "KE", "Unscored Child", &masterID)
	seedMention(t, s, masterID, "2025-01-01", "d1")
	seedMention(t, s, childID, "2025-01-02", "d2")
	score := 0.8
	_, err := s.DB().ExecContext(ctx,
		`UPDATE canonical_events SET materiality_score = ? WHERE id = ?`, score, masterID)
	require.NoError(t, err)

	v := New(s, nil)
	report, err := v.Run(ctx, Options{})
	require.NoError(t, err)

	require.Len(t, report.Pipeline, 1)
	p := report.Pipeline[0]
	assert.Equal(t, "KE", p.Country)
	assert.Equal(t, 3, p.Clusters)
	assert.Equal(t, 2, p.ClustersProcessed)
	assert.Equal(t, 1, p.ClustersDeconflicted)
	assert.InDelta(t, 66.7, p.ProcessedPct, 0.001)
	assert.InDelta(t, 33.3, p.DeconflictedPct, 0.001)
	assert.Equal(t, 2, p.Events)
	assert.Equal(t, 1, p.Masters)
	assert.Equal(t, 1, p.Children)
	assert.Equal(t, 1, p.Validated)
	assert.Equal(t, 1, p.Scored)
	assert.InDelta(t, 50.0, p.ScoredPct, 0.001)
	assert.Equal(t, 2, p.Mentions)
}

// TestReport_Helpers tests the gate and lookup helpers.
func TestReport_Helpers(t *testing.T) {
	report := &Report{Checks: []CheckResult{
		{ID: CheckEmptyDocMentions, Violations: 0},
		{ID: CheckHierarchyRefs, Violations: 2},
	}}

	assert.True(t, report.Failed())
	assert.Equal(t, 2, report.Violations())
	require.NotNil(t, report.Check(CheckHierarchyRefs))
	assert.Nil(t, report.Check("no-such-check"))

	clean := &Report{Checks: []CheckResult{{ID: CheckEmptyDocMentions}}}
	assert.False(t, clean.Failed())
}
