package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/storywatch/storyfold/internal/event"
	"github.com/storywatch/storyfold/internal/store"
	"github.com/storywatch/storyfold/internal/verify"
)

// Assertion types supported by scenarios.
const (
	AssertEvent         = "event"
	AssertEventAbsent   = "event_absent"
	AssertMention       = "mention"
	AssertMentionAbsent = "mention_absent"
	AssertMentionCount  = "mention_count"
	AssertRunLog        = "run_log"
	AssertCheck         = "check"
)

// Scenario is one executable test case: seed data, steps to run, and
// the outcomes to check.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// TokenPrefix seeds the run token sequence ("prefix-1",
	// "prefix-2", ...). Defaults to "run".
	TokenPrefix string `yaml:"token_prefix,omitempty"`

	Seed       Seed        `yaml:"seed"`
	Steps      []Step      `yaml:"steps"`
	Expect     *Expect     `yaml:"expect,omitempty"`
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Seed declares the store contents a scenario starts from. Events
// seed in declared order, so a child's master must be declared first.
type Seed struct {
	Documents []SeedDocument `yaml:"documents,omitempty"`
	Clusters  []SeedCluster  `yaml:"clusters,omitempty"`
	Events    []SeedEvent    `yaml:"events,omitempty"`
	Mentions  []SeedMention  `yaml:"mentions,omitempty"`
}

// SeedDocument is one ingested article to insert.
type SeedDocument struct {
	DocID     string `yaml:"doc_id"`
	Country   string `yaml:"country"`
	Source    string `yaml:"source,omitempty"`
	Title     string `yaml:"title,omitempty"`
	Published string `yaml:"published"`
}

// SeedCluster is one clustering-stage row to insert.
type SeedCluster struct {
	Country      string   `yaml:"country"`
	Date         string   `yaml:"date"`
	Batch        int      `yaml:"batch,omitempty"`
	Cluster      int      `yaml:"cluster,omitempty"`
	Names        []string `yaml:"names,omitempty"`
	Docs         []string `yaml:"docs,omitempty"`
	Processed    bool     `yaml:"processed,omitempty"`
	Deconflicted bool     `yaml:"deconflicted,omitempty"`
}

// SeedEvent is one canonical event to insert. Ref names the event for
// mentions and assertions; it never reaches the store.
type SeedEvent struct {
	Ref       string `yaml:"ref"`
	Name      string `yaml:"name"`
	Country   string `yaml:"country"`
	Master    string `yaml:"master,omitempty"`
	Validated bool   `yaml:"validated,omitempty"`
	Phase     string `yaml:"phase,omitempty"`
}

// SeedMention is one day of coverage to insert. The owning event's
// country carries over automatically.
type SeedMention struct {
	Event    string   `yaml:"event"`
	Date     string   `yaml:"date"`
	Articles int      `yaml:"articles"`
	Headline string   `yaml:"headline,omitempty"`
	Sources  []string `yaml:"sources,omitempty"`
	Docs     []string `yaml:"docs,omitempty"`
}

// Step is one action to execute. Exactly one of the fields is set.
type Step struct {
	Consolidate *ConsolidateStep `yaml:"consolidate,omitempty"`
	Verify      *VerifyStep      `yaml:"verify,omitempty"`
}

// ConsolidateStep runs the merge engine. An empty country list means
// every enabled registry country.
type ConsolidateStep struct {
	Countries []string `yaml:"countries,omitempty"`
	DryRun    bool     `yaml:"dry_run,omitempty"`
}

// VerifyStep runs the integrity verifier.
type VerifyStep struct {
	Country    string `yaml:"country,omitempty"`
	FullScan   bool   `yaml:"full_scan,omitempty"`
	SampleSize int    `yaml:"sample_size,omitempty"`
	ScanLimit  int    `yaml:"scan_limit,omitempty"`
}

// Expect declares batch-level outcomes. Results match the
// concatenated country results of every consolidate step, in order
// and exhaustively; Verify matches the last verification report.
type Expect struct {
	Results []ExpectedResult `yaml:"results,omitempty"`
	Totals  *ExpectedStats   `yaml:"totals,omitempty"`
	Verify  *ExpectedVerify  `yaml:"verify,omitempty"`
}

// ExpectedResult is one country's expected outcome.
type ExpectedResult struct {
	Country       string         `yaml:"country"`
	Status        string         `yaml:"status"`
	Token         string         `yaml:"token,omitempty"`
	Stats         *ExpectedStats `yaml:"stats,omitempty"`
	ErrorContains string         `yaml:"error_contains,omitempty"`
}

// ExpectedStats mirrors merge.Stats with scenario-friendly keys.
type ExpectedStats struct {
	Masters    int `yaml:"masters,omitempty"`
	Children   int `yaml:"children,omitempty"`
	Reassigned int `yaml:"reassigned,omitempty"`
	Merged     int `yaml:"merged,omitempty"`
	Deleted    int `yaml:"deleted,omitempty"`
}

// ExpectedVerify is the expected verification outcome. A nil
// Violations skips the total count check.
type ExpectedVerify struct {
	Failed     bool `yaml:"failed"`
	Violations *int `yaml:"violations,omitempty"`
}

// Assertion is one check against the final store state. Which fields
// apply depends on Type; validateAssertion enforces the shape.
type Assertion struct {
	Type string `yaml:"type"`

	// Event names a seed ref; Date is a calendar day.
	Event string `yaml:"event,omitempty"`
	Date  string `yaml:"date,omitempty"`

	// Mention fields.
	Articles *int     `yaml:"articles,omitempty"`
	Docs     []string `yaml:"docs,omitempty"`
	Sources  []string `yaml:"sources,omitempty"`
	Count    *int     `yaml:"count,omitempty"`

	// Event fields. AltNames uses contains semantics; the rest match
	// exactly when present.
	TotalArticles *int     `yaml:"total_articles,omitempty"`
	MentionDays   *int     `yaml:"mention_days,omitempty"`
	First         string   `yaml:"first,omitempty"`
	Last          string   `yaml:"last,omitempty"`
	AltNames      []string `yaml:"alt_names,omitempty"`
	Validated     *bool    `yaml:"validated,omitempty"`

	// Run-log fields. Actions is the exact ordered action sequence.
	Token   string   `yaml:"token,omitempty"`
	Actions []string `yaml:"actions,omitempty"`

	// Verification fields.
	Check      string `yaml:"check,omitempty"`
	Violations *int   `yaml:"violations,omitempty"`
}

// LoadScenario loads and validates a scenario from a YAML file.
// Unknown YAML keys are errors, so typos in scenario files fail
// loudly instead of silently dropping a step.
func LoadScenario(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}
	defer f.Close()

	var sc Scenario
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("load scenario %s: %w", filepath.Base(path), err)
	}

	if err := validateScenario(&sc); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", filepath.Base(path), err)
	}
	return &sc, nil
}

// FindScenarios lists the scenario YAML files under dir, sorted by
// name so test runs are ordered deterministically.
func FindScenarios(dir string) ([]string, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("find scenarios: %w", err)
		}
		paths = append(paths, matches...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("find scenarios: no .yaml files in %s", dir)
	}
	sort.Strings(paths)
	return paths, nil
}

var seedPhases = map[string]bool{
	"":                    true,
	event.PhaseEmerging:   true,
	event.PhaseDeveloping: true,
	event.PhaseOngoing:    true,
	event.PhaseDormant:    true,
	event.PhaseConcluded:  true,
}

func validateScenario(sc *Scenario) error {
	if sc.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(sc.Steps) == 0 {
		return fmt.Errorf("at least one step is required")
	}

	refs := make(map[string]bool)
	for i, ev := range sc.Seed.Events {
		switch {
		case ev.Ref == "":
			return fmt.Errorf("seed.events[%d]: ref is required", i)
		case refs[ev.Ref]:
			return fmt.Errorf("seed.events[%d]: duplicate ref %q", i, ev.Ref)
		case ev.Name == "":
			return fmt.Errorf("seed.events[%d]: name is required", i)
		case ev.Country == "":
			return fmt.Errorf("seed.events[%d]: country is required", i)
		case ev.Master != "" && !refs[ev.Master]:
			return fmt.Errorf("seed.events[%d]: master %q is not a previously declared ref", i, ev.Master)
		case !seedPhases[ev.Phase]:
			return fmt.Errorf("seed.events[%d]: unknown phase %q", i, ev.Phase)
		}
		refs[ev.Ref] = true
	}

	for i, d := range sc.Seed.Documents {
		if d.DocID == "" {
			return fmt.Errorf("seed.documents[%d]: doc_id is required", i)
		}
		if d.Country == "" {
			return fmt.Errorf("seed.documents[%d]: country is required", i)
		}
		if _, err := event.ParseDay(d.Published); err != nil {
			return fmt.Errorf("seed.documents[%d]: %w", i, err)
		}
	}

	for i, c := range sc.Seed.Clusters {
		if c.Country == "" {
			return fmt.Errorf("seed.clusters[%d]: country is required", i)
		}
		if _, err := event.ParseDay(c.Date); err != nil {
			return fmt.Errorf("seed.clusters[%d]: %w", i, err)
		}
	}

	for i, m := range sc.Seed.Mentions {
		if !refs[m.Event] {
			return fmt.Errorf("seed.mentions[%d]: event %q is not a declared ref", i, m.Event)
		}
		if _, err := event.ParseDay(m.Date); err != nil {
			return fmt.Errorf("seed.mentions[%d]: %w", i, err)
		}
		if m.Articles < 1 {
			return fmt.Errorf("seed.mentions[%d]: articles must be at least 1", i)
		}
	}

	for i, step := range sc.Steps {
		set := 0
		if step.Consolidate != nil {
			set++
		}
		if step.Verify != nil {
			set++
		}
		if set != 1 {
			return fmt.Errorf("steps[%d]: exactly one of consolidate or verify is required", i)
		}
	}

	if sc.Expect != nil {
		for i, r := range sc.Expect.Results {
			if r.Country == "" {
				return fmt.Errorf("expect.results[%d]: country is required", i)
			}
			switch r.Status {
			case store.RunCompleted, store.RunDryRun, store.RunFailed:
			default:
				return fmt.Errorf("expect.results[%d]: unknown status %q", i, r.Status)
			}
		}
	}

	for i, a := range sc.Assertions {
		if err := validateAssertion(a, refs); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

var checkIDs = map[string]bool{
	verify.CheckEmptyDocMentions:  true,
	verify.CheckMissingDocuments:  true,
	verify.CheckZeroMentionEvents: true,
	verify.CheckEmptyDocClusters:  true,
	verify.CheckHierarchyRefs:     true,
}

var logActions = map[string]bool{
	store.ActionReassign:  true,
	store.ActionMerge:     true,
	store.ActionDropChild: true,
}

func validateAssertion(a Assertion, refs map[string]bool) error {
	needRef := func() error {
		if a.Event == "" {
			return fmt.Errorf("%s: event is required", a.Type)
		}
		if !refs[a.Event] {
			return fmt.Errorf("%s: event %q is not a declared ref", a.Type, a.Event)
		}
		return nil
	}
	needDate := func() error {
		if _, err := event.ParseDay(a.Date); err != nil {
			return fmt.Errorf("%s: %w", a.Type, err)
		}
		return nil
	}

	switch a.Type {
	case AssertEvent, AssertEventAbsent:
		return needRef()
	case AssertMention, AssertMentionAbsent:
		if err := needRef(); err != nil {
			return err
		}
		return needDate()
	case AssertMentionCount:
		if err := needRef(); err != nil {
			return err
		}
		if a.Count == nil {
			return fmt.Errorf("%s: count is required", a.Type)
		}
		return nil
	case AssertRunLog:
		if a.Token == "" {
			return fmt.Errorf("%s: token is required", a.Type)
		}
		for _, action := range a.Actions {
			if !logActions[action] {
				return fmt.Errorf("%s: unknown action %q", a.Type, action)
			}
		}
		return nil
	case AssertCheck:
		if !checkIDs[a.Check] {
			return fmt.Errorf("%s: unknown check %q", a.Type, a.Check)
		}
		if a.Violations == nil {
			return fmt.Errorf("%s: violations is required", a.Type)
		}
		return nil
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}
