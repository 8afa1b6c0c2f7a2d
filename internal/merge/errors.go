package merge

import (
	"errors"
	"fmt"
)

// RunError represents a failure during a country's consolidation.
//
// Run errors include:
//   - Invariant breach: hierarchy or drain guarantee violated mid-merge
//   - Store error: transaction or statement failure (transient class)
//   - Config error: requested scope not usable (unknown country)
//
// RunError includes structured fields for diagnostics and recovery.
type RunError struct {
	// Code identifies the error category.
	Code RunErrorCode

	// Message is a human-readable description.
	Message string

	// Country identifies the affected consolidation scope.
	Country string

	// MasterID and ChildID identify the events being folded when the
	// error surfaced (0 when not applicable).
	MasterID int64
	ChildID  int64

	// Err is the underlying cause, if any.
	Err error
}

// RunErrorCode categorizes consolidation errors.
type RunErrorCode string

const (
	// ErrCodeInvariantBreach indicates corrupted hierarchy state or a
	// child that failed to drain. The country rolls back; the
	// condition will not clear on its own - run the verifier.
	ErrCodeInvariantBreach RunErrorCode = "INVARIANT_BREACH"

	// ErrCodeStore indicates a database failure. The country rolls
	// back and is safe to retry thanks to idempotence.
	ErrCodeStore RunErrorCode = "STORE_ERROR"

	// ErrCodeConfig indicates the requested scope is not runnable
	// (for example a country absent from the registry). No
	// transaction is opened; stats stay zero.
	ErrCodeConfig RunErrorCode = "CONFIG_ERROR"
)

// Error implements the error interface.
func (e *RunError) Error() string {
	switch {
	case e.Country != "" && e.ChildID != 0:
		return fmt.Sprintf("%s: %s (country=%s, master=%d, child=%d)",
			e.Code, e.Message, e.Country, e.MasterID, e.ChildID)
	case e.Country != "":
		return fmt.Sprintf("%s: %s (country=%s)", e.Code, e.Message, e.Country)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Unwrap exposes the underlying cause to errors.Is / errors.As.
func (e *RunError) Unwrap() error {
	return e.Err
}

// IsInvariantBreach returns true if the error is an invariant breach.
// Uses errors.As to handle wrapped errors.
func IsInvariantBreach(err error) bool {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code == ErrCodeInvariantBreach
	}
	return false
}

// IsStoreError returns true if the error is a store failure.
func IsStoreError(err error) bool {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code == ErrCodeStore
	}
	return false
}

// IsConfigError returns true if the error is a configuration error.
func IsConfigError(err error) bool {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code == ErrCodeConfig
	}
	return false
}

// newInvariantError creates a RunError for a breached invariant.
func newInvariantError(country string, masterID, childID int64, message string, err error) *RunError {
	return &RunError{
		Code:     ErrCodeInvariantBreach,
		Message:  message,
		Country:  country,
		MasterID: masterID,
		ChildID:  childID,
		Err:      err,
	}
}

// newStoreError creates a RunError for a database failure.
func newStoreError(country, op string, err error) *RunError {
	return &RunError{
		Code:    ErrCodeStore,
		Message: fmt.Sprintf("%s: %v", op, err),
		Country: country,
		Err:     err,
	}
}

// NewConfigError creates a RunError for an unusable scope. Exported
// because scope resolution happens in the CLI, before the engine runs.
func NewConfigError(country, message string) *RunError {
	return &RunError{
		Code:    ErrCodeConfig,
		Message: message,
		Country: country,
	}
}
