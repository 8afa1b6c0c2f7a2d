// Package store provides SQLite-backed durable storage for the
// consolidation pipeline.
//
// Tables:
//   - documents: ingested articles, keyed by doc_id
//   - event_clusters: same-day document groupings from the clustering stage
//   - canonical_events: the one-level master/child event hierarchy
//   - daily_mentions: per-event per-day coverage rows
//   - consolidation_runs, merge_log: audit trail of merge activity
//
// # Critical Patterns
//
// One Mention Per Day
//   - UNIQUE(canonical_event_id, mention_date) constraint
//   - Consolidation folds same-day rows additively instead of moving them
//
// One-Level Hierarchy
//   - master_event_id must reference a row whose own master_event_id is NULL
//   - Enforced three times over: typed error in the write path, SQL
//     triggers, and verifier check (e)
//
// Deterministic Query Results
//   - All multi-row queries ORDER BY a stable key (mention_date then id,
//     or id alone), so merge order and reports are reproducible
//
// Guarded Deletes
//   - Child events are deleted only through a compare-and-delete that
//     re-checks the mention count inside the same transaction
//   - daily_mentions carries ON DELETE RESTRICT as a second line
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - _txlock=immediate: Write lock acquired at BEGIN, not first write
//
// Doc-id sets and name lists are serialized as canonical JSON arrays
// (sorted, deduplicated) so equality checks work on raw column text.
package store
