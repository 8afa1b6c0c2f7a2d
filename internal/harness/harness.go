package harness

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/storywatch/storyfold/internal/event"
	"github.com/storywatch/storyfold/internal/merge"
	"github.com/storywatch/storyfold/internal/registry"
	"github.com/storywatch/storyfold/internal/store"
	"github.com/storywatch/storyfold/internal/testutil"
	"github.com/storywatch/storyfold/internal/verify"
)

// Harness executes scenarios. Each run gets its own in-memory store;
// the registry and logger are shared across runs.
type Harness struct {
	registry *registry.Registry
	logger   *slog.Logger
}

// New creates a harness. A nil registry behaves as empty; a nil
// logger discards.
func New(reg *registry.Registry, logger *slog.Logger) *Harness {
	if reg == nil {
		reg = registry.NewRegistry(nil)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Harness{registry: reg, logger: logger}
}

// Run executes one scenario end to end: seed a fresh store, run the
// steps, then evaluate expectations and assertions. The returned
// error covers infrastructure problems only; behavioral mismatches
// land in Result.Failures.
func (h *Harness) Run(ctx context.Context, sc *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	defer st.Close()

	refs, err := seedStore(ctx, st, sc.Seed)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	cons := merge.New(st, testutil.NewSeqTokenGenerator(sc.TokenPrefix), h.logger)
	ver := verify.New(st, h.logger)

	result := &Result{Scenario: sc.Name}
	for i, step := range sc.Steps {
		switch {
		case step.Consolidate != nil:
			scope := merge.ResolveScope(h.registry, step.Consolidate.Countries)
			batch, err := cons.Consolidate(ctx, scope.Countries,
				merge.Options{DryRun: step.Consolidate.DryRun})
			if err != nil {
				return nil, fmt.Errorf("scenario %s: steps[%d]: %w", sc.Name, i, err)
			}
			batch.Results = append(batch.Results, scope.Rejected...)
			result.Consolidations = append(result.Consolidations, batch)

		case step.Verify != nil:
			rep, err := ver.Run(ctx, verify.Options{
				Country:    step.Verify.Country,
				SampleSize: step.Verify.SampleSize,
				ScanLimit:  step.Verify.ScanLimit,
				FullScan:   step.Verify.FullScan,
			})
			if err != nil {
				return nil, fmt.Errorf("scenario %s: steps[%d]: %w", sc.Name, i, err)
			}
			result.Verifications = append(result.Verifications, rep)
		}
	}

	checkExpectations(result, sc.Expect)
	result.Failures = append(result.Failures,
		EvaluateAssertions(ctx, st, refs, result.lastReport(), sc.Assertions)...)
	return result, nil
}

// seedStore inserts the scenario's starting state and returns the
// ref-to-ID mapping for assertions. Insertion order follows
// declaration order, so row IDs are stable across runs.
func seedStore(ctx context.Context, st *store.Store, seed Seed) (map[string]int64, error) {
	for _, d := range seed.Documents {
		doc := event.Document{
			DocID:       d.DocID,
			Country:     d.Country,
			SourceName:  d.Source,
			Title:       d.Title,
			PublishedAt: event.Day(d.Published),
		}
		if err := st.InsertDocument(ctx, doc); err != nil {
			return nil, fmt.Errorf("seed document %s: %w", d.DocID, err)
		}
	}

	for i, c := range seed.Clusters {
		cl := event.Cluster{
			Country:     c.Country,
			ClusterDate: event.Day(c.Date),
			BatchNo:     c.Batch,
			ClusterNo:   c.Cluster,
			EventNames:  c.Names,
			DocIDs:      event.NewDocSet(c.Docs...),
			Size:        len(c.Docs),
		}
		id, err := st.InsertCluster(ctx, cl)
		if err != nil {
			return nil, fmt.Errorf("seed cluster %d: %w", i, err)
		}
		if c.Processed || c.Deconflicted {
			if err := st.SetClusterFlags(ctx, id, c.Processed, c.Deconflicted); err != nil {
				return nil, fmt.Errorf("seed cluster %d: %w", i, err)
			}
		}
	}

	refs := make(map[string]int64, len(seed.Events))
	for _, se := range seed.Events {
		ev := event.CanonicalEvent{Name: se.Name, Country: se.Country, StoryPhase: se.Phase}
		if se.Master != "" {
			masterID := refs[se.Master]
			ev.MasterEventID = &masterID
		}
		id, err := st.CreateEvent(ctx, ev)
		if err != nil {
			return nil, fmt.Errorf("seed event %s: %w", se.Ref, err)
		}
		if se.Validated {
			if err := st.SetValidated(ctx, id, true, time.Time{}); err != nil {
				return nil, fmt.Errorf("seed event %s: %w", se.Ref, err)
			}
		}
		refs[se.Ref] = id
	}

	for i, m := range seed.Mentions {
		mention := event.Mention{
			EventID:      refs[m.Event],
			Date:         event.Day(m.Date),
			ArticleCount: m.Articles,
			Headline:     m.Headline,
			SourceNames:  m.Sources,
			DocIDs:       event.NewDocSet(m.Docs...),
		}
		if _, err := st.UpsertMention(ctx, mention); err != nil {
			return nil, fmt.Errorf("seed mention %d: %w", i, err)
		}
	}

	return refs, nil
}

func (e *ExpectedStats) stats() merge.Stats {
	return merge.Stats{
		MasterCount:        e.Masters,
		ChildCount:         e.Children,
		MentionsReassigned: e.Reassigned,
		MentionsMerged:     e.Merged,
		EventsDeleted:      e.Deleted,
	}
}

// checkExpectations matches the expect block against what the steps
// produced. Results match positionally and exhaustively: the batch
// must contain exactly the declared countries in order.
func checkExpectations(res *Result, exp *Expect) {
	if exp == nil {
		return
	}

	if len(exp.Results) > 0 {
		got := res.countryResults()
		if len(got) != len(exp.Results) {
			res.failf("expected %d country results, got %d", len(exp.Results), len(got))
		} else {
			for i, want := range exp.Results {
				have := got[i]
				if have.Country != want.Country {
					res.failf("results[%d]: country %s, want %s", i, have.Country, want.Country)
				}
				if have.Status != want.Status {
					res.failf("results[%d] %s: status %s, want %s", i, want.Country, have.Status, want.Status)
				}
				if want.Token != "" && have.RunToken != want.Token {
					res.failf("results[%d] %s: run token %s, want %s", i, want.Country, have.RunToken, want.Token)
				}
				if want.Stats != nil && have.Stats != want.Stats.stats() {
					res.failf("results[%d] %s: stats %+v, want %+v", i, want.Country, have.Stats, want.Stats.stats())
				}
				if want.ErrorContains != "" && !strings.Contains(have.Error, want.ErrorContains) {
					res.failf("results[%d] %s: error %q does not contain %q", i, want.Country, have.Error, want.ErrorContains)
				}
			}
		}
	}

	if exp.Totals != nil {
		var total merge.Stats
		for _, batch := range res.Consolidations {
			total.Add(batch.Totals())
		}
		if total != exp.Totals.stats() {
			res.failf("batch totals %+v, want %+v", total, exp.Totals.stats())
		}
	}

	if exp.Verify != nil {
		rep := res.lastReport()
		if rep == nil {
			res.failf("expect.verify is set but no verify step ran")
			return
		}
		if rep.Failed() != exp.Verify.Failed {
			res.failf("verification failed=%v, want %v", rep.Failed(), exp.Verify.Failed)
		}
		if exp.Verify.Violations != nil && rep.Violations() != *exp.Verify.Violations {
			res.failf("verification found %d violations, want %d", rep.Violations(), *exp.Verify.Violations)
		}
	}
}
