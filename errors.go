package graphrag

import (
	"errors"
	"fmt"
)

// Sentinel errors for facade-level conditions.
// These errors can be used with errors.Is() for error checking.
var (
	// ErrEmptyQuery indicates the query text was empty or whitespace
	// only. Rejected at the boundary, before any pipeline work.
	ErrEmptyQuery = errors.New("query is empty")

	// ErrRateLimited indicates the per-tool rate limiter rejected the
	// request.
	ErrRateLimited = errors.New("rate limited")

	// ErrInvalidConfig indicates the provided configuration or
	// dependency set is invalid or incomplete.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Error kinds categorize errors by their place in the failure taxonomy.
const (
	// KindValidation marks bad input, rejected before any external call.
	KindValidation = "validation"

	// KindRateLimited marks requests rejected by the rate limiter.
	KindRateLimited = "rate_limited"

	// KindConfiguration marks invalid configuration or wiring.
	KindConfiguration = "configuration"

	// KindInternal marks unexpected internal failures.
	KindInternal = "internal"
)

// Error is a structured error wrapping an underlying cause with the
// operation that failed and the error's category. It supports error
// unwrapping, making it compatible with errors.Is() and errors.As().
type Error struct {
	// Op is the operation that failed (e.g. "System.Query").
	Op string

	// Kind categorizes the error (e.g. KindValidation).
	Kind string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("graphrag: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("graphrag: %s (%s): %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind (and op when the target sets one),
// or delegates to the underlying error.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		if t.Kind != "" && e.Kind == t.Kind {
			return t.Op == "" || e.Op == t.Op
		}
		return false
	}
	return errors.Is(e.Err, target)
}

// NewValidationError creates an Error with KindValidation.
func NewValidationError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindValidation, Err: err}
}

// NewRateLimitedError creates an Error with KindRateLimited.
func NewRateLimitedError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindRateLimited, Err: err}
}

// NewConfigurationError creates an Error with KindConfiguration.
func NewConfigurationError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindConfiguration, Err: err}
}
