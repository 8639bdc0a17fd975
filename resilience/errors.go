package resilience

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for resilience outcomes.
var (
	// ErrTimeout is returned when a single attempt exceeds its deadline.
	ErrTimeout = errors.New("resilience: attempt timed out")

	// ErrMaxRetriesExceeded is returned when the retry loop exhausts its attempts.
	ErrMaxRetriesExceeded = errors.New("resilience: max retry attempts exceeded")

	// ErrCircuitOpen is returned when the circuit breaker rejects a call.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrBulkheadFull is returned when no bulkhead permit becomes available
	// within the configured wait.
	ErrBulkheadFull = errors.New("resilience: bulkhead at capacity")

	// ErrRateLimited is returned when the rate limiter rejects a call.
	ErrRateLimited = errors.New("resilience: rate limit exceeded")
)

// CircuitOpenError is the rejection returned by an open circuit breaker.
// RetryAfter is the remaining time until the breaker will admit a half-open
// probe. It matches ErrCircuitOpen under errors.Is.
type CircuitOpenError struct {
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("resilience: circuit breaker is open, retry after %s", e.RetryAfter)
}

// Is reports equivalence with the ErrCircuitOpen sentinel.
func (e *CircuitOpenError) Is(target error) bool {
	return target == ErrCircuitOpen
}

// MaxRetriesError is the terminal failure of an exhausted retry loop. Cause is
// the failure from the final attempt; Attempts is the number of attempts made.
// It matches ErrMaxRetriesExceeded under errors.Is and unwraps to Cause, so
// errors.Is(err, ErrTimeout) still holds when the last attempt timed out.
type MaxRetriesError struct {
	Attempts int
	Cause    error
}

func (e *MaxRetriesError) Error() string {
	return fmt.Sprintf("resilience: %d attempts exhausted, last error: %v", e.Attempts, e.Cause)
}

// Unwrap returns the failure from the final attempt.
func (e *MaxRetriesError) Unwrap() error {
	return e.Cause
}

// Is reports equivalence with the ErrMaxRetriesExceeded sentinel.
func (e *MaxRetriesError) Is(target error) bool {
	return target == ErrMaxRetriesExceeded
}

func isCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}
