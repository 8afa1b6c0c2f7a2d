package event

import (
	"slices"
	"strings"
)

// DocSet is a set of document IDs carried as a sorted, deduplicated
// slice. The canonical form (sorted, no duplicates, no blanks) is an
// invariant of every constructor and method here, which makes set
// equality plain slices.Equal and keeps the JSON stored in SQLite
// byte-stable across round trips.
type DocSet []string

// NewDocSet builds a canonical set from ids, dropping blanks and
// duplicates.
func NewDocSet(ids ...string) DocSet {
	out := make(DocSet, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		out = append(out, id)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Union returns a new canonical set holding every ID in s or other.
// Neither receiver nor argument is mutated; additive mention merges
// rely on that.
func (s DocSet) Union(other DocSet) DocSet {
	merged := make([]string, 0, len(s)+len(other))
	merged = append(merged, s...)
	merged = append(merged, other...)
	return NewDocSet(merged...)
}

// Contains reports whether id is in the set.
func (s DocSet) Contains(id string) bool {
	_, ok := slices.BinarySearch(s, id)
	return ok
}

// Empty reports whether the set has no IDs. A mention or cluster with
// an empty set has lost its provenance; the verifier flags those.
func (s DocSet) Empty() bool { return len(s) == 0 }

// Equal reports whether two canonical sets hold the same IDs.
func (s DocSet) Equal(other DocSet) bool {
	return slices.Equal(s, other)
}

// Clone returns an independent copy.
func (s DocSet) Clone() DocSet {
	return slices.Clone(s)
}
