package harness

import (
	"fmt"

	"github.com/storywatch/storyfold/internal/merge"
	"github.com/storywatch/storyfold/internal/verify"
)

// Result is the outcome of one scenario execution: everything the
// steps produced, plus the expectation and assertion failures found
// afterwards.
type Result struct {
	Scenario string `json:"scenario"`

	// Consolidations holds one batch per consolidate step, in step
	// order; Verifications likewise for verify steps.
	Consolidations []*merge.BatchResult `json:"consolidations,omitempty"`
	Verifications  []*verify.Report     `json:"verifications,omitempty"`

	// Failures is empty when the scenario passed.
	Failures []string `json:"failures,omitempty"`
}

// Passed reports whether every expectation and assertion held.
func (r *Result) Passed() bool {
	return len(r.Failures) == 0
}

func (r *Result) failf(format string, args ...any) {
	r.Failures = append(r.Failures, fmt.Sprintf(format, args...))
}

// countryResults flattens the batch results of every consolidate
// step, in execution order. Expect.Results matches against this.
func (r *Result) countryResults() []merge.CountryResult {
	var out []merge.CountryResult
	for _, batch := range r.Consolidations {
		out = append(out, batch.Results...)
	}
	return out
}

// lastReport returns the most recent verification report, or nil when
// no verify step ran.
func (r *Result) lastReport() *verify.Report {
	if len(r.Verifications) == 0 {
		return nil
	}
	return r.Verifications[len(r.Verifications)-1]
}
