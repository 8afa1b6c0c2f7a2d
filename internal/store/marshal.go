package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/storywatch/storyfold/internal/event"
)

// timeLayout is the storage form of all timestamps. RFC 3339 UTC text
// sorts lexically in SQLite the same way time.Time sorts in Go.
const timeLayout = time.RFC3339

// marshalStrings converts a name list to JSON TEXT for storage.
// Nil and empty both serialize as "[]" so column equality never
// depends on how the caller built the slice.
func marshalStrings(names []string) (string, error) {
	if len(names) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(names)
	if err != nil {
		return "", fmt.Errorf("marshal strings: %w", err)
	}
	return string(data), nil
}

// unmarshalStrings parses JSON TEXT to a name list.
// Always returns an initialized slice, never nil.
func unmarshalStrings(data string) ([]string, error) {
	out := []string{}
	if data == "" || data == "null" || data == "[]" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("unmarshal strings: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

// marshalDocSet converts a doc-id set to canonical JSON TEXT.
// The set is re-canonicalized (sorted, deduplicated) on the way in, so
// the stored text is byte-stable and "[]" always means empty.
func marshalDocSet(s event.DocSet) (string, error) {
	data, err := json.Marshal(event.NewDocSet(s...))
	if err != nil {
		return "", fmt.Errorf("marshal doc set: %w", err)
	}
	return string(data), nil
}

// unmarshalDocSet parses JSON TEXT to a doc-id set.
// Always returns an initialized set, never nil.
func unmarshalDocSet(data string) (event.DocSet, error) {
	if data == "" || data == "null" || data == "[]" {
		return event.DocSet{}, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(data), &ids); err != nil {
		return nil, fmt.Errorf("unmarshal doc set: %w", err)
	}
	return event.NewDocSet(ids...), nil
}

// marshalStringMap converts key facts to JSON TEXT.
// json.Marshal sorts map keys, so output is deterministic.
func marshalStringMap(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal string map: %w", err)
	}
	return string(data), nil
}

func unmarshalStringMap(data string) (map[string]string, error) {
	out := map[string]string{}
	if data == "" || data == "null" || data == "{}" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("unmarshal string map: %w", err)
	}
	return out, nil
}

// marshalIntMap converts per-label totals to JSON TEXT.
func marshalIntMap(m map[string]int) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal int map: %w", err)
	}
	return string(data), nil
}

func unmarshalIntMap(data string) (map[string]int, error) {
	out := map[string]int{}
	if data == "" || data == "null" || data == "{}" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("unmarshal int map: %w", err)
	}
	return out, nil
}

// sumIntMaps folds src totals into dst, returning dst.
func sumIntMaps(dst, src map[string]int) map[string]int {
	if dst == nil {
		dst = map[string]int{}
	}
	for k, v := range src {
		dst[k] += v
	}
	return dst
}

// formatTime renders a timestamp for storage. Zero time stores as
// empty NULL via nullTime.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime accepts RFC 3339 plus SQLite's datetime() form, since
// operators poke at these databases with the sqlite3 shell.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t.UTC(), nil
}

// nullTime maps a possibly-zero time to a nullable column value.
func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}

// scanTime converts a nullable timestamp column to time.Time.
func scanTime(ns sql.NullString) (time.Time, error) {
	if !ns.Valid {
		return time.Time{}, nil
	}
	return parseTime(ns.String)
}

// nullFloat maps an optional score to a nullable column value.
func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

// scanFloat converts a nullable REAL column to an optional score.
func scanFloat(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	v := nf.Float64
	return &v
}
