package harness

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/storywatch/storyfold/internal/event"
	"github.com/storywatch/storyfold/internal/store"
	"github.com/storywatch/storyfold/internal/verify"
)

// AssertionError is returned when an assertion fails. Expected and
// Actual are human-readable outcome descriptions.
type AssertionError struct {
	Type     string
	Subject  string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion %s (%s): expected %s, got %s",
		e.Type, e.Subject, e.Expected, e.Actual)
}

func assertEvent(ctx context.Context, st *store.Store, id int64, a Assertion) error {
	ev, err := st.GetEvent(ctx, id)
	if errors.Is(err, store.ErrEventNotFound) {
		return &AssertionError{Type: a.Type, Subject: a.Event,
			Expected: "event exists", Actual: "event not found"}
	}
	if err != nil {
		return err
	}

	fail := func(field string, want, got any) error {
		return &AssertionError{Type: a.Type, Subject: a.Event,
			Expected: fmt.Sprintf("%s %v", field, want),
			Actual:   fmt.Sprintf("%s %v", field, got)}
	}
	if a.TotalArticles != nil && ev.TotalArticles != *a.TotalArticles {
		return fail("total_articles", *a.TotalArticles, ev.TotalArticles)
	}
	if a.MentionDays != nil && ev.MentionDays != *a.MentionDays {
		return fail("mention_days", *a.MentionDays, ev.MentionDays)
	}
	if a.First != "" && ev.FirstMention != event.Day(a.First) {
		return fail("first_mention", a.First, ev.FirstMention)
	}
	if a.Last != "" && ev.LastMention != event.Day(a.Last) {
		return fail("last_mention", a.Last, ev.LastMention)
	}
	if a.Validated != nil && ev.Validated != *a.Validated {
		return fail("validated", *a.Validated, ev.Validated)
	}
	for _, want := range a.AltNames {
		found := false
		for _, name := range ev.AltNames {
			if name == want {
				found = true
				break
			}
		}
		if !found {
			return fail("alt_names containing", fmt.Sprintf("%q", want), fmt.Sprintf("%v", ev.AltNames))
		}
	}
	return nil
}

func assertEventAbsent(ctx context.Context, st *store.Store, id int64, a Assertion) error {
	_, err := st.GetEvent(ctx, id)
	if errors.Is(err, store.ErrEventNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return &AssertionError{Type: a.Type, Subject: a.Event,
		Expected: "event deleted", Actual: "event still exists"}
}

func assertMention(ctx context.Context, st *store.Store, id int64, a Assertion) error {
	m, err := st.MentionOn(ctx, id, event.Day(a.Date))
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("%s on %s", a.Event, a.Date)
	if m == nil {
		return &AssertionError{Type: a.Type, Subject: subject,
			Expected: "a mention", Actual: "no mention"}
	}
	if a.Articles != nil && m.ArticleCount != *a.Articles {
		return &AssertionError{Type: a.Type, Subject: subject,
			Expected: fmt.Sprintf("%d articles", *a.Articles),
			Actual:   fmt.Sprintf("%d articles", m.ArticleCount)}
	}
	if a.Docs != nil && !event.NewDocSet(a.Docs...).Equal(m.DocIDs) {
		return &AssertionError{Type: a.Type, Subject: subject,
			Expected: fmt.Sprintf("docs %v", event.NewDocSet(a.Docs...)),
			Actual:   fmt.Sprintf("docs %v", m.DocIDs)}
	}
	for _, want := range a.Sources {
		found := false
		for _, src := range m.SourceNames {
			if src == want {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{Type: a.Type, Subject: subject,
				Expected: fmt.Sprintf("sources containing %q", want),
				Actual:   fmt.Sprintf("sources %v", m.SourceNames)}
		}
	}
	return nil
}

func assertMentionAbsent(ctx context.Context, st *store.Store, id int64, a Assertion) error {
	m, err := st.MentionOn(ctx, id, event.Day(a.Date))
	if err != nil {
		return err
	}
	if m != nil {
		return &AssertionError{Type: a.Type,
			Subject:  fmt.Sprintf("%s on %s", a.Event, a.Date),
			Expected: "no mention",
			Actual:   fmt.Sprintf("%d articles", m.ArticleCount)}
	}
	return nil
}

func assertMentionCount(ctx context.Context, st *store.Store, id int64, a Assertion) error {
	n, err := st.MentionCount(ctx, id)
	if err != nil {
		return err
	}
	if n != *a.Count {
		return &AssertionError{Type: a.Type, Subject: a.Event,
			Expected: fmt.Sprintf("%d mentions", *a.Count),
			Actual:   fmt.Sprintf("%d mentions", n)}
	}
	return nil
}

func assertRunLog(ctx context.Context, st *store.Store, a Assertion) error {
	entries, err := st.MergeLogOf(ctx, a.Token)
	if err != nil {
		return err
	}
	got := make([]string, len(entries))
	for i, e := range entries {
		got[i] = e.Action
	}
	match := len(got) == len(a.Actions)
	if match {
		for i := range got {
			if got[i] != a.Actions[i] {
				match = false
				break
			}
		}
	}
	if !match {
		return &AssertionError{Type: a.Type, Subject: a.Token,
			Expected: strings.Join(a.Actions, ", "),
			Actual:   strings.Join(got, ", ")}
	}
	return nil
}

func assertCheck(report *verify.Report, a Assertion) error {
	if report == nil {
		return &AssertionError{Type: a.Type, Subject: a.Check,
			Expected: "a verification report", Actual: "no verify step ran"}
	}
	c := report.Check(a.Check)
	if c == nil {
		return &AssertionError{Type: a.Type, Subject: a.Check,
			Expected: "check present in report", Actual: "check missing"}
	}
	if c.Violations != *a.Violations {
		return &AssertionError{Type: a.Type, Subject: a.Check,
			Expected: fmt.Sprintf("%d violations", *a.Violations),
			Actual:   fmt.Sprintf("%d violations", c.Violations)}
	}
	return nil
}

// EvaluateAssertions runs every assertion against the final store
// state and the last verification report. Returns one message per
// failed assertion; evaluation never stops early, so a run reports
// all its failures at once.
func EvaluateAssertions(ctx context.Context, st *store.Store, refs map[string]int64, report *verify.Report, assertions []Assertion) []string {
	var failures []string
	for _, a := range assertions {
		var err error
		switch a.Type {
		case AssertEvent:
			err = assertEvent(ctx, st, refs[a.Event], a)
		case AssertEventAbsent:
			err = assertEventAbsent(ctx, st, refs[a.Event], a)
		case AssertMention:
			err = assertMention(ctx, st, refs[a.Event], a)
		case AssertMentionAbsent:
			err = assertMentionAbsent(ctx, st, refs[a.Event], a)
		case AssertMentionCount:
			err = assertMentionCount(ctx, st, refs[a.Event], a)
		case AssertRunLog:
			err = assertRunLog(ctx, st, a)
		case AssertCheck:
			err = assertCheck(report, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}
