package event

import (
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeName returns the canonical form of an event or source name:
// Unicode NFC, surrounding whitespace trimmed, interior runs of
// whitespace collapsed to single spaces. Headlines arrive from many
// scrapers with mixed composition forms ("café" as one rune or as
// 'e'+combining accent); normalizing once at the boundary keeps name
// comparison and alt-name dedup byte-stable.
func NormalizeName(s string) string {
	s = norm.NFC.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// EqualNames reports whether two names are the same after
// normalization and case folding.
func EqualNames(a, b string) bool {
	return strings.EqualFold(NormalizeName(a), NormalizeName(b))
}

// MergeNames unions extra into existing, normalizing every entry and
// deduplicating case-insensitively. First-seen casing wins; the result
// is sorted so repeated merges are byte-stable regardless of argument
// order. Blank entries are dropped.
func MergeNames(existing []string, extra ...string) []string {
	seen := make(map[string]struct{}, len(existing)+len(extra))
	out := make([]string, 0, len(existing)+len(extra))
	add := func(name string) {
		name = NormalizeName(name)
		if name == "" {
			return
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}
	for _, n := range existing {
		add(n)
	}
	for _, n := range extra {
		add(n)
	}
	slices.Sort(out)
	return out
}
