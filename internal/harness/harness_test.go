package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storywatch/storyfold/internal/registry"
	"github.com/storywatch/storyfold/internal/store"
)

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, errs := registry.LoadDir("testdata/registry")
	require.Empty(t, errs)
	return reg
}

func newAssertStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func intp(n int) *int { return &n }

// TestScenarios runs every scenario under testdata/scenarios and
// compares each against its golden snapshot.
func TestScenarios(t *testing.T) {
	paths, err := FindScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.Len(t, paths, 4)

	h := New(testRegistry(t), nil)
	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			result := RunWithGolden(t, h, path)
			assert.True(t, result.Passed(), "failures: %v", result.Failures)
		})
	}
}

// TestRun_EmptyScopeUsesRegistry verifies that a consolidate step
// without countries expands to every enabled registry entry.
func TestRun_EmptyScopeUsesRegistry(t *testing.T) {
	sc := &Scenario{
		Name:  "all-enabled",
		Steps: []Step{{Consolidate: &ConsolidateStep{}}},
	}

	result, err := New(testRegistry(t), nil).Run(context.Background(), sc)
	require.NoError(t, err)
	require.Len(t, result.Consolidations, 1)

	results := result.Consolidations[0].Results
	require.Len(t, results, 2) // KE and NG enabled, TZ disabled
	assert.Equal(t, "KE", results[0].Country)
	assert.Equal(t, "NG", results[1].Country)
	assert.Equal(t, store.RunCompleted, results[0].Status)
	assert.Equal(t, "run-1", results[0].RunToken)
	assert.Equal(t, "run-2", results[1].RunToken)
}

// TestRun_ExpectationMismatchReported verifies that a wrong expected
// stat lands in Failures instead of aborting the run.
func TestRun_ExpectationMismatchReported(t *testing.T) {
	sc := &Scenario{
		Name: "mismatch",
		Seed: Seed{
			Events: []SeedEvent{{Ref: "m", Name: "Lone Master", Country: "KE", Validated: true}},
		},
		Steps: []Step{{Consolidate: &ConsolidateStep{Countries: []string{"KE"}}}},
		Expect: &Expect{Results: []ExpectedResult{{
			Country: "KE",
			Status:  store.RunCompleted,
			Stats:   &ExpectedStats{Masters: 7},
		}}},
	}

	result, err := New(testRegistry(t), nil).Run(context.Background(), sc)
	require.NoError(t, err)
	assert.False(t, result.Passed())
	require.Len(t, result.Failures, 1)
	assert.Contains(t, result.Failures[0], "stats")
}

// TestRun_ResultCountMismatch verifies that the expect block is
// exhaustive over the batch.
func TestRun_ResultCountMismatch(t *testing.T) {
	sc := &Scenario{
		Name:  "count-mismatch",
		Steps: []Step{{Consolidate: &ConsolidateStep{Countries: []string{"KE"}}}},
		Expect: &Expect{Results: []ExpectedResult{
			{Country: "KE", Status: store.RunCompleted},
			{Country: "NG", Status: store.RunCompleted},
		}},
	}

	result, err := New(testRegistry(t), nil).Run(context.Background(), sc)
	require.NoError(t, err)
	assert.False(t, result.Passed())
	require.Len(t, result.Failures, 1)
	assert.Contains(t, result.Failures[0], "expected 2 country results")
}

// TestRun_AssertionFailureReported verifies that failed assertions
// are collected with their expected and actual outcomes.
func TestRun_AssertionFailureReported(t *testing.T) {
	sc := &Scenario{
		Name: "assert-fail",
		Seed: Seed{
			Events: []SeedEvent{{Ref: "m", Name: "Lone Master", Country: "KE", Validated: true}},
			Mentions: []SeedMention{
				{Event: "m", Date: "2025-01-01", Articles: 2, Docs: []string{"d1"}},
			},
		},
		Steps: []Step{{Consolidate: &ConsolidateStep{Countries: []string{"KE"}}}},
		Assertions: []Assertion{
			{Type: AssertEventAbsent, Event: "m"},
			{Type: AssertMentionCount, Event: "m", Count: intp(5)},
		},
	}

	result, err := New(testRegistry(t), nil).Run(context.Background(), sc)
	require.NoError(t, err)
	assert.False(t, result.Passed())
	require.Len(t, result.Failures, 2)
	assert.Contains(t, result.Failures[0], "still exists")
	assert.Contains(t, result.Failures[1], "5 mentions")
}

// TestRun_VerifyExpectationWithoutStep verifies the guard against an
// expect.verify block in a scenario that never verifies.
func TestRun_VerifyExpectationWithoutStep(t *testing.T) {
	sc := &Scenario{
		Name:   "no-verify-step",
		Steps:  []Step{{Consolidate: &ConsolidateStep{Countries: []string{"KE"}}}},
		Expect: &Expect{Verify: &ExpectedVerify{Failed: false}},
	}

	result, err := New(testRegistry(t), nil).Run(context.Background(), sc)
	require.NoError(t, err)
	assert.False(t, result.Passed())
	require.Len(t, result.Failures, 1)
	assert.Contains(t, result.Failures[0], "no verify step ran")
}

// TestRun_IsolatedStores verifies that consecutive runs do not leak
// state into each other.
func TestRun_IsolatedStores(t *testing.T) {
	sc := &Scenario{
		Name: "isolated",
		Seed: Seed{
			Events: []SeedEvent{{Ref: "m", Name: "Lone Master", Country: "KE", Validated: true}},
			Mentions: []SeedMention{
				{Event: "m", Date: "2025-01-01", Articles: 2, Docs: []string{"d1"}},
			},
		},
		Steps:      []Step{{Consolidate: &ConsolidateStep{Countries: []string{"KE"}}}},
		Assertions: []Assertion{{Type: AssertMentionCount, Event: "m", Count: intp(1)}},
	}

	h := New(testRegistry(t), nil)
	for i := 0; i < 2; i++ {
		result, err := h.Run(context.Background(), sc)
		require.NoError(t, err)
		assert.True(t, result.Passed(), "run %d failures: %v", i, result.Failures)
		// Same token sequence every run: each store is fresh.
		assert.Equal(t, "run-1", result.Consolidations[0].Results[0].RunToken)
	}
}
