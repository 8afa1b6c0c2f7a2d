package merge

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestRunError_Error tests message rendering at each detail level.
func TestRunError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *RunError
		want string
	}{
		{
			name: "bare",
			err:  &RunError{Code: ErrCodeStore, Message: "commit failed"},
			want: "STORE_ERROR: commit failed",
		},
		{
			name: "with country",
			err:  &RunError{Code: ErrCodeConfig, Message: "not in registry", Country: "ZZ"},
			want: "CONFIG_ERROR: not in registry (country=ZZ)",
		},
		{
			name: "with events",
			err: &RunError{
				Code:     ErrCodeInvariantBreach,
				Message:  "child has children",
				Country:  "KE",
				MasterID: 4,
				ChildID:  9,
			},
			want: "INVARIANT_BREACH: child has children (country=KE, master=4, child=9)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

// TestRunError_Unwrap tests that the cause is reachable via errors.Is.
func TestRunError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := newStoreError("KE", "commit", cause)

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, cause, err.Unwrap())
}

// TestErrorClassifiers tests the Is* helpers, including through wrapping.
func TestErrorClassifiers(t *testing.T) {
	breach := newInvariantError("KE", 1, 2, "two levels", nil)
	storeErr := newStoreError("KE", "begin", errors.New("locked"))
	config := NewConfigError("ZZ", "unknown")

	assert.True(t, IsInvariantBreach(breach))
	assert.False(t, IsInvariantBreach(storeErr))
	assert.True(t, IsStoreError(storeErr))
	assert.False(t, IsStoreError(config))
	assert.True(t, IsConfigError(config))
	assert.False(t, IsConfigError(breach))

	// Wrapped RunErrors still classify.
	wrapped := fmt.Errorf("country KE: %w", breach)
	assert.True(t, IsInvariantBreach(wrapped))

	// Plain errors classify as nothing.
	assert.False(t, IsInvariantBreach(errors.New("plain")))
	assert.False(t, IsStoreError(nil))
}
