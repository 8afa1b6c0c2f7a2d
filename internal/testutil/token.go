// Package testutil provides deterministic substitutes for the
// production collaborators that tests and scenario runs swap in.
package testutil

import (
	"fmt"
	"sync"
)

// SeqTokenGenerator hands out "prefix-1", "prefix-2", ... in call
// order.
//
// Scenario runs cannot declare their token count up front the way
// merge.FixedGenerator requires: an all-country scope produces one run
// per enabled registry entry. The sequence generator stays
// deterministic without a fixed budget, so audit rows and golden
// snapshots still compare byte for byte.
//
// Thread-safety: SeqTokenGenerator is safe for concurrent use via
// internal mutex.
type SeqTokenGenerator struct {
	mu     sync.Mutex
	prefix string
	next   int
}

// NewSeqTokenGenerator creates a sequence generator.
//
// The prefix is typically set in the scenario YAML:
//
//	token_prefix: "fold-siblings"
//
// If prefix is empty, tokens start at "run-1".
func NewSeqTokenGenerator(prefix string) *SeqTokenGenerator {
	if prefix == "" {
		prefix = "run"
	}
	return &SeqTokenGenerator{prefix: prefix, next: 1}
}

// Generate returns the next token in the sequence.
//
// Implements merge.TokenGenerator.
func (g *SeqTokenGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	token := fmt.Sprintf("%s-%d", g.prefix, g.next)
	g.next++
	return token
}
