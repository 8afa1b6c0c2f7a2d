// Package event defines the shared vocabulary for the Storyfold
// consolidation pipeline: documents, clusters, canonical events, and
// their per-day mentions.
//
// LAYERING RULE: this package imports nothing from internal/. Every
// other package (store, merge, verify, registry, cli, harness) imports
// event, never the other way around. Keep it free of SQL, CUE, and
// CLI concerns.
//
// HIERARCHY MODEL:
//
// Canonical events form a one-level forest. A master event has
// MasterEventID == nil. A child event points at a master, and only at
// a master: a child of a child is an invariant breach rejected at
// write time and flagged by the verifier. Consolidation folds the
// daily mentions of validated masters' children into the master and
// deletes the drained children, so the steady state is masters only.
//
// DATES:
//
// Mention dates are calendar days, not instants. Day is a validated
// YYYY-MM-DD string so that ordering is lexical and no timezone can
// shift a mention across midnight.
package event
