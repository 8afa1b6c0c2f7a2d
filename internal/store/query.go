package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/storywatch/storyfold/internal/event"
)

// EventQuery selects canonical events for downstream consumers.
// Zero-valued fields are unconstrained.
type EventQuery struct {
	Country string

	// From and To bound the event's mention span inclusively: an
	// event matches when its span overlaps [From, To].
	From event.Day
	To   event.Day

	// MastersOnly drops children from the result. After a clean
	// consolidation this filter changes nothing; before one, it is
	// the difference between stories and fragments.
	MastersOnly bool

	// OnlyValidated keeps events a reviewer has confirmed.
	OnlyValidated bool

	// Limit caps the result. 0 means no cap.
	Limit int
}

// ListEvents returns events matching q, ordered by country, then
// first mention, then ID, so pagination by eye is stable across runs.
func (s *Store) ListEvents(ctx context.Context, q EventQuery) ([]event.CanonicalEvent, error) {
	var (
		where []string
		args  []any
	)
	if q.Country != "" {
		where = append(where, "country = ?")
		args = append(args, q.Country)
	}
	if !q.From.IsZero() {
		// Span overlap: the event must not end before the window opens.
		where = append(where, "last_mention >= ?")
		args = append(args, string(q.From))
	}
	if !q.To.IsZero() {
		where = append(where, "first_mention <= ? AND first_mention != ''")
		args = append(args, string(q.To))
	}
	if q.MastersOnly {
		where = append(where, "master_event_id IS NULL")
	}
	if q.OnlyValidated {
		where = append(where, "validated = 1")
	}

	query := `SELECT ` + eventColumns + ` FROM canonical_events`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY country ASC, first_mention ASC, id ASC`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	out, err := collectEvents(rows)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return out, nil
}
