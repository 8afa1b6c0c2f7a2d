// Package harness provides scenario testing for the consolidation
// engine.
//
// The harness seeds a fresh in-memory store from a YAML scenario,
// runs consolidation and verification steps against it, and checks
// declared expectations plus state assertions. Scenarios double as
// executable documentation of merge behavior.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario-name
//	description: "What this scenario demonstrates"
//	token_prefix: fold
//	seed:
//	  documents:
//	    - { doc_id: d1, country: KE, published: 2025-06-01 }
//	  events:
//	    - { ref: master, name: "Finance Bill Protests", country: KE, validated: true }
//	    - { ref: child, name: "Gen Z Protests", country: KE, master: master }
//	  mentions:
//	    - { event: child, date: 2025-06-02, articles: 4, docs: [d1] }
//	steps:
//	  - consolidate: { countries: [KE] }
//	  - verify: { country: KE }
//	expect:
//	  results:
//	    - country: KE
//	      status: completed
//	      stats: { masters: 1, children: 1, reassigned: 1, deleted: 1 }
//	  verify:
//	    failed: false
//	assertions:
//	  - type: event_absent
//	    event: child
//	  - type: mention
//	    event: master
//	    date: 2025-06-02
//	    articles: 4
//	    docs: [d1]
//
// # Assertion Types
//
// The following assertion types run against the final store state:
//
//   - event: the referenced event exists with the given field values
//   - event_absent: the referenced event row is gone
//   - mention: the event covers the date with the given articles and docs
//   - mention_absent: the event has no mention on the date
//   - mention_count: the event owns exactly N mention rows
//   - run_log: the run token's merge log matches the action sequence
//   - check: the last verification's check reports N violations
//
// # Deterministic Execution
//
// Every scenario runs against a fresh in-memory SQLite store with a
// sequential token generator (testutil.SeqTokenGenerator), so run
// tokens, row IDs, and audit rows come out identical on every
// execution. Golden snapshots compare the full batch and verification
// output byte for byte; regenerate them with:
//
//	go test ./internal/harness -update
package harness
