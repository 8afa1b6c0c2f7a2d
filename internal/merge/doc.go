// Package merge implements the Storyfold consolidation engine.
//
// The engine folds the daily mentions of validated masters' children
// up into the master, deletes the drained children, and leaves a flat
// forest of master events behind. It is the only component that
// mutates the event hierarchy.
//
// ARCHITECTURE:
//
// One Transaction Per Country:
// Each country's consolidation runs inside a single immediate SQLite
// transaction. This ensures:
// - A mid-merge failure rolls the whole country back
// - Countries already committed are unaffected
// - "Country" is the unit of failure isolation and of retry
//
// Merge Flow, per eligible master:
// 1. Enumerate children (master_event_id = master, ID order)
// 2. For each child mention, probe the master's coverage on that date
// 3. Covered date: fold additively (counts sum, doc sets union)
//    Uncovered date: reassign the row to the master
// 4. Compare-and-delete the drained child
// 5. Refresh the master's derived aggregates once per master
//
// The two-case transition in step 3 is the whole conflict policy:
// addition commutes and reassignment moves disjoint rows, so the
// outcome is independent of child and mention processing order.
//
// Idempotence falls out of the data model rather than bookkeeping:
// a consolidated country has no children left, so a second run finds
// nothing to fold.
//
// CRITICAL PATTERNS:
//
// Eligibility Gate:
// Only validated masters are processed. Validation is a property of
// the whole group, inherited through the master; an unreviewed group
// is never merged, because merging is irreversible.
//
// Guarded Deletion:
// Children are deleted through a compare-and-delete whose zero-mention
// predicate is inside the DELETE statement. A child that still owns
// mentions at deletion time is an invariant breach and aborts the
// country.
//
// Audit Trail:
// Every mutation appends a merge_log entry (buffered, flushed with the
// run record in the same transaction). A committed run is fully
// reconstructable from its log; a rolled-back run leaves only a
// failure record.
package merge
