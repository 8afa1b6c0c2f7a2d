package store

import "errors"

// Sentinel errors for constraint and lookup failures. Callers branch
// on these with errors.Is; the merge engine maps them onto its own
// error taxonomy.
var (
	// ErrEventNotFound is returned when an event ID does not exist.
	ErrEventNotFound = errors.New("canonical event not found")

	// ErrMentionNotFound is returned when a mention ID does not exist.
	ErrMentionNotFound = errors.New("daily mention not found")

	// ErrMasterNotFound is returned when a master_event_id references
	// a missing row.
	ErrMasterNotFound = errors.New("master event not found")

	// ErrMasterIsChild is returned when a master_event_id references
	// an event that is itself a child. The hierarchy is one level
	// deep, never more.
	ErrMasterIsChild = errors.New("master event is itself a child")

	// ErrChildNotDrained is returned by the compare-and-delete guard
	// when a child event still owns mentions at deletion time.
	ErrChildNotDrained = errors.New("child event still has mentions")

	// ErrRunNotFound is returned when a run token has no record.
	ErrRunNotFound = errors.New("consolidation run not found")
)
