package stats

import "errors"

// Eligibility failures. These are detected at the boundary before any
// mutation is attempted and never reach the store.
var (
	// ErrUnauthenticated means no user identity is available; callers must
	// prompt for login instead of applying any change.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrNotCompleted means a rating was attempted before completion.
	ErrNotCompleted = errors.New("tradition must be completed before rating")

	// ErrAlreadyRated means a second submission for the same (user,
	// tradition) pair. Submissions are rejected, never overwritten.
	ErrAlreadyRated = errors.New("already rated")

	// ErrInvalidValue means the value is outside [1,10]. Out-of-range values
	// are rejected, never clamped.
	ErrInvalidValue = errors.New("value must be between 1 and 10")
)
