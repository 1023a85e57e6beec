package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Sentinel errors for resilience outcomes. The typed errors below match
// these with errors.Is().
var (
	// ErrCircuitOpen indicates the pipeline's circuit breaker is open and
	// the operation was not invoked.
	ErrCircuitOpen = errors.New("circuit open")

	// ErrTimeout indicates the operation timed out on every attempt.
	ErrTimeout = errors.New("operation timed out")
)

// CircuitOpenError is returned when a pipeline's breaker rejects a call.
type CircuitOpenError struct {
	// Pipeline is the name of the pipeline whose breaker is open.
	Pipeline Name

	// RetryAfter is the remaining break duration at rejection time.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("resilience: %s: circuit open, retry after %v", e.Pipeline, e.RetryAfter.Round(time.Millisecond))
}

// Is matches ErrCircuitOpen.
func (e *CircuitOpenError) Is(target error) bool {
	return target == ErrCircuitOpen
}

// TimeoutError is returned when an operation exceeded its pipeline's
// per-call timeout on every attempt.
type TimeoutError struct {
	// Pipeline is the name of the pipeline that timed the operation out.
	Pipeline Name

	// Timeout is the per-call timeout that was exceeded.
	Timeout time.Duration

	// Err is the last attempt's underlying error.
	Err error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("resilience: %s: operation timed out after %v", e.Pipeline, e.Timeout)
}

// Is matches ErrTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// Unwrap returns the last attempt's underlying error.
func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// TransientError marks a store or dependency error as retryable. Store
// adapters wrap their driver's transient failure types with NewTransient
// so the retry policy recognizes them.
type TransientError struct {
	Err error
}

// NewTransient wraps err as retryable. A nil err returns nil.
func NewTransient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// Error implements the error interface.
func (e *TransientError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the wrapped error.
func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err should be retried: transient-marked
// errors, network errors, and timeouts qualify. Caller cancellation never
// does.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
