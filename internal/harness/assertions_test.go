package harness

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storywatch/storyfold/internal/event"
	"github.com/storywatch/storyfold/internal/store"
	"github.com/storywatch/storyfold/internal/verify"
)

// seedAssertEvent creates one event with a single mention and returns
// its ID.
func seedAssertEvent(t *testing.T, st *store.Store) int64 {
	t.Helper()
	ctx := context.Background()

	id, err := st.CreateEvent(ctx, event.CanonicalEvent{Name: "Referendum Debate", Country: "KE"})
	require.NoError(t, err)
	_, err = st.UpsertMention(ctx, event.Mention{
		EventID:      id,
		Date:         "2025-03-01",
		ArticleCount: 4,
		SourceNames:  []string{"Daily Nation"},
		DocIDs:       event.NewDocSet("x1"),
	})
	require.NoError(t, err)
	return id
}

func TestAssertEvent(t *testing.T) {
	st := newAssertStore(t)
	id := seedAssertEvent(t, st)
	ctx := context.Background()

	// Matching subset passes.
	err := assertEvent(ctx, st, id, Assertion{Type: AssertEvent, Event: "e", Validated: boolp(false)})
	assert.NoError(t, err)

	// Mismatched field names the field in the error.
	err = assertEvent(ctx, st, id, Assertion{Type: AssertEvent, Event: "e", TotalArticles: intp(9)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "total_articles")

	// Missing alt name reports the expected name.
	err = assertEvent(ctx, st, id, Assertion{Type: AssertEvent, Event: "e", AltNames: []string{"Other Name"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Other Name")
}

func TestAssertEventAbsent(t *testing.T) {
	st := newAssertStore(t)
	id := seedAssertEvent(t, st)
	ctx := context.Background()

	assert.NoError(t, assertEventAbsent(ctx, st, 9999, Assertion{Type: AssertEventAbsent, Event: "gone"}))

	err := assertEventAbsent(ctx, st, id, Assertion{Type: AssertEventAbsent, Event: "e"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "still exists")
}

func TestAssertMention(t *testing.T) {
	st := newAssertStore(t)
	id := seedAssertEvent(t, st)
	ctx := context.Background()

	ok := Assertion{Type: AssertMention, Event: "e", Date: "2025-03-01",
		Articles: intp(4), Docs: []string{"x1"}, Sources: []string{"Daily Nation"}}
	assert.NoError(t, assertMention(ctx, st, id, ok))

	err := assertMention(ctx, st, id, Assertion{Type: AssertMention, Event: "e", Date: "2025-03-02"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no mention")

	err = assertMention(ctx, st, id, Assertion{Type: AssertMention, Event: "e", Date: "2025-03-01", Articles: intp(7)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "7 articles")

	err = assertMention(ctx, st, id, Assertion{Type: AssertMention, Event: "e", Date: "2025-03-01", Docs: []string{"x1", "x2"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "docs")
}

func TestAssertMentionAbsent(t *testing.T) {
	st := newAssertStore(t)
	id := seedAssertEvent(t, st)
	ctx := context.Background()

	assert.NoError(t, assertMentionAbsent(ctx, st, id, Assertion{Type: AssertMentionAbsent, Event: "e", Date: "2025-03-02"}))

	err := assertMentionAbsent(ctx, st, id, Assertion{Type: AssertMentionAbsent, Event: "e", Date: "2025-03-01"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no mention")
}

func TestAssertMentionCount(t *testing.T) {
	st := newAssertStore(t)
	id := seedAssertEvent(t, st)
	ctx := context.Background()

	assert.NoError(t, assertMentionCount(ctx, st, id, Assertion{Type: AssertMentionCount, Event: "e", Count: intp(1)}))

	err := assertMentionCount(ctx, st, id, Assertion{Type: AssertMentionCount, Event: "e", Count: intp(3)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 mentions")
}

func TestAssertRunLog(t *testing.T) {
	st := newAssertStore(t)
	ctx := context.Background()

	tx, err := st.BeginMerge(ctx)
	require.NoError(t, err)
	rec := store.RunRecord{
		Token:      "tok-log",
		Country:    "KE",
		Status:     store.RunCompleted,
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
	}
	log := []store.MergeLogEntry{
		{Seq: 1, MasterID: 1, ChildID: 2, MentionDate: "2025-03-01", Action: store.ActionReassign, ArticlesMoved: 4},
		{Seq: 2, MasterID: 1, ChildID: 2, Action: store.ActionDropChild},
	}
	require.NoError(t, tx.RecordRun(ctx, rec, log))
	require.NoError(t, tx.Commit())

	ok := Assertion{Type: AssertRunLog, Token: "tok-log", Actions: []string{"reassign", "drop-child"}}
	assert.NoError(t, assertRunLog(ctx, st, ok))

	err = assertRunLog(ctx, st, Assertion{Type: AssertRunLog, Token: "tok-log", Actions: []string{"merge"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reassign, drop-child")

	// Unknown token reads as an empty log.
	assert.NoError(t, assertRunLog(ctx, st, Assertion{Type: AssertRunLog, Token: "tok-none"}))
}

func TestAssertCheck(t *testing.T) {
	report := &verify.Report{Checks: []verify.CheckResult{
		{ID: verify.CheckHierarchyRefs, Violations: 2},
	}}

	ok := Assertion{Type: AssertCheck, Check: verify.CheckHierarchyRefs, Violations: intp(2)}
	assert.NoError(t, assertCheck(report, ok))

	err := assertCheck(report, Assertion{Type: AssertCheck, Check: verify.CheckHierarchyRefs, Violations: intp(0)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0 violations")

	err = assertCheck(nil, ok)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no verify step ran")
}

// TestEvaluateAssertions_CollectsAllFailures verifies that evaluation
// reports every failed assertion instead of stopping at the first.
func TestEvaluateAssertions_CollectsAllFailures(t *testing.T) {
	st := newAssertStore(t)
	id := seedAssertEvent(t, st)
	refs := map[string]int64{"e": id}

	failures := EvaluateAssertions(context.Background(), st, refs, nil, []Assertion{
		{Type: AssertEventAbsent, Event: "e"},
		{Type: AssertMentionCount, Event: "e", Count: intp(5)},
		{Type: AssertMention, Event: "e", Date: "2025-03-01", Articles: intp(4)},
	})

	require.Len(t, failures, 2)
	assert.Contains(t, failures[0], "still exists")
	assert.Contains(t, failures[1], "5 mentions")
}

func boolp(b bool) *bool { return &b }
