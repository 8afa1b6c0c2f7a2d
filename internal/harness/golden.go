package harness

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/storywatch/storyfold/internal/merge"
	"github.com/storywatch/storyfold/internal/verify"
)

// Snapshot is the deterministic projection of a Result: everything
// the steps produced minus wall-clock fields, serialized for golden
// comparison.
type Snapshot struct {
	Scenario       string                  `json:"scenario"`
	Consolidations []ConsolidationSnapshot `json:"consolidations,omitempty"`
	Verifications  []VerificationSnapshot  `json:"verifications,omitempty"`
	Failures       []string                `json:"failures,omitempty"`
}

// ConsolidationSnapshot is one consolidate step's outcome.
type ConsolidationSnapshot struct {
	DryRun  bool                  `json:"dry_run"`
	Results []merge.CountryResult `json:"results"`
	Totals  merge.Stats           `json:"totals"`
}

// VerificationSnapshot is one verify step's report without its
// generation timestamp.
type VerificationSnapshot struct {
	Country  string                 `json:"country,omitempty"`
	FullScan bool                   `json:"full_scan"`
	Checks   []verify.CheckResult   `json:"checks"`
	Pipeline []verify.PipelineStats `json:"pipeline"`
}

// NewSnapshot projects a result for golden comparison.
func NewSnapshot(result *Result) *Snapshot {
	snap := &Snapshot{Scenario: result.Scenario, Failures: result.Failures}
	for _, batch := range result.Consolidations {
		snap.Consolidations = append(snap.Consolidations, ConsolidationSnapshot{
			DryRun:  batch.DryRun,
			Results: batch.Results,
			Totals:  batch.Totals(),
		})
	}
	for _, rep := range result.Verifications {
		snap.Verifications = append(snap.Verifications, VerificationSnapshot{
			Country:  rep.Country,
			FullScan: rep.FullScan,
			Checks:   rep.Checks,
			Pipeline: rep.Pipeline,
		})
	}
	return snap
}

// Marshal renders the snapshot as indented JSON with a trailing
// newline, the exact bytes a golden file holds.
func (s *Snapshot) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden loads and executes a scenario, then compares its
// snapshot against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, h *Harness, path string) *Result {
	t.Helper()

	sc, err := LoadScenario(path)
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	result, err := h.Run(context.Background(), sc)
	if err != nil {
		t.Fatalf("run scenario %s: %v", sc.Name, err)
	}
	AssertGolden(t, sc.Name, result)
	return result
}

// AssertGolden compares an already-executed result against its golden
// file. Useful when the caller needs the result for further checks
// beyond the snapshot.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	data, err := NewSnapshot(result).Marshal()
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}
