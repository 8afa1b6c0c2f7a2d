package event

import (
	"fmt"
	"time"
)

// dayLayout is the wire and storage form of a calendar day.
const dayLayout = "2006-01-02"

// Day is a calendar date in YYYY-MM-DD form. The fixed-width form
// makes lexical order equal chronological order, so Day values compare
// with < and sort with sort.Strings, and SQLite ORDER BY on the TEXT
// column agrees with Go.
type Day string

// ParseDay validates s as a YYYY-MM-DD calendar date.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid day %q: %w", s, err)
	}
	// Round-trip guard: reject forms like 2024-1-2 that time.Parse
	// would otherwise normalize.
	if t.Format(dayLayout) != s {
		return "", fmt.Errorf("invalid day %q: want YYYY-MM-DD", s)
	}
	return Day(s), nil
}

// DayOf truncates t to its calendar date in UTC.
func DayOf(t time.Time) Day {
	return Day(t.UTC().Format(dayLayout))
}

// Valid reports whether d is a well-formed calendar date.
func (d Day) Valid() bool {
	_, err := ParseDay(string(d))
	return err == nil
}

// IsZero reports whether d is unset.
func (d Day) IsZero() bool { return d == "" }

// Before reports whether d precedes other. Zero values sort first.
func (d Day) Before(other Day) bool { return d < other }

// After reports whether d follows other.
func (d Day) After(other Day) bool { return d > other }

// Time returns the day as a UTC midnight instant. Zero Day yields the
// zero time.
func (d Day) Time() time.Time {
	if d.IsZero() {
		return time.Time{}
	}
	t, err := time.Parse(dayLayout, string(d))
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func (d Day) String() string { return string(d) }

// MinDay returns the earlier of a and b, ignoring zero values.
func MinDay(a, b Day) Day {
	switch {
	case a.IsZero():
		return b
	case b.IsZero():
		return a
	case b.Before(a):
		return b
	default:
		return a
	}
}

// MaxDay returns the later of a and b.
func MaxDay(a, b Day) Day {
	if b.After(a) {
		return b
	}
	return a
}
