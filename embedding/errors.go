package embedding

import (
	"errors"
	"fmt"
)

// Sentinel errors for embedding operations.
var (
	// ErrEmptyContent indicates the requested content was empty or
	// whitespace only. Rejected before any network call, never retried.
	ErrEmptyContent = errors.New("embedding: content is empty")

	// ErrUnavailable indicates the embedding backend could not serve the
	// request and no cached vector was available. The typed
	// *UnavailableError matches this with errors.Is().
	ErrUnavailable = errors.New("embedding: backend unavailable")
)

// UnavailableError is returned when the embedding backend cannot be
// reached and the cache holds no entry for the requested content. Reason
// carries the circuit-breaker or network failure description.
type UnavailableError struct {
	// Reason is the human-readable cause (breaker state or underlying
	// network error).
	Reason string

	// Err is the underlying resilience or provider error.
	Err error
}

// Error implements the error interface.
func (e *UnavailableError) Error() string {
	return fmt.Sprintf("embedding backend unavailable: %s", e.Reason)
}

// Is matches ErrUnavailable.
func (e *UnavailableError) Is(target error) bool {
	return target == ErrUnavailable
}

// Unwrap returns the underlying error.
func (e *UnavailableError) Unwrap() error {
	return e.Err
}
