package resilience

import (
	"context"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means the circuit is operating normally.
	StateClosed State = iota
	// StateOpen means the circuit is rejecting all calls.
	StateOpen
	// StateHalfOpen means the circuit is probing whether the dependency recovered.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures in the closed
	// state that trips the circuit.
	// Default: 5
	FailureThreshold int

	// RecoveryTimeout is how long the circuit stays open before the next call
	// is admitted as a half-open probe.
	// Default: 30 seconds
	RecoveryTimeout time.Duration

	// HalfOpenSuccesses is the number of successes required in the half-open
	// state to close the circuit. Half-open admission itself is unlimited; a
	// caller wanting to bound concurrent probes composes a bulkhead.
	// Default: 1
	HalfOpenSuccesses int

	// OnStateChange is called when the circuit state changes.
	OnStateChange func(from, to State)

	// IsFailure determines if an error should count as a failure.
	// Default: all non-nil errors are failures.
	IsFailure func(err error) bool

	// Now overrides the time source, for deterministic tests.
	// Default: time.Now
	Now func() time.Time
}

// CircuitBreaker implements a three-state circuit breaker. All state lives in
// one instance behind one mutex; two breakers never share state. The
// open-to-half-open transition is evaluated lazily at call time, so no
// background timer runs.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	now    func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	// Apply defaults
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultFailureThreshold
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = DefaultRecoveryTimeout
	}
	if config.HalfOpenSuccesses <= 0 {
		config.HalfOpenSuccesses = DefaultHalfOpenSuccesses
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool { return err != nil }
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &CircuitBreaker{
		config: config,
		now:    config.Now,
		state:  StateClosed,
	}
}

// Allow reports whether a call may proceed. In the open state it returns a
// *CircuitOpenError carrying the remaining wait; once the recovery timeout has
// elapsed it transitions to half-open and admits the call as a probe.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.advanceLocked() == StateOpen {
		return &CircuitOpenError{
			RetryAfter: cb.config.RecoveryTimeout - cb.now().Sub(cb.openedAt),
		}
	}
	return nil
}

// RecordSuccess records a successful call.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.HalfOpenSuccesses {
			cb.transitionLocked(StateClosed)
		}
	}
}

// RecordFailure records a failed call.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.transitionLocked(StateOpen)
		}
	case StateHalfOpen:
		// A failed probe reopens immediately and restarts the recovery clock.
		cb.transitionLocked(StateOpen)
	}
	// StateOpen: Allow already rejected the call, nothing to count.
}

// Record classifies err with IsFailure and records the outcome.
func (cb *CircuitBreaker) Record(err error) {
	if cb.config.IsFailure(err) {
		cb.RecordFailure()
	} else {
		cb.RecordSuccess()
	}
}

// Execute runs the operation through the circuit breaker.
func (cb *CircuitBreaker) Execute(ctx context.Context, op Operation) error {
	if err := cb.Allow(); err != nil {
		return err
	}

	err := op(ctx)
	cb.Record(err)
	return err
}

// State returns the current circuit state, applying the lazy open-to-half-open
// transition first.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.advanceLocked()
}

// Reset returns the circuit breaker to the closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transitionLocked(StateClosed)
}

// advanceLocked applies the lazy open-to-half-open transition and returns the
// current state. Callers must hold mu.
func (cb *CircuitBreaker) advanceLocked() State {
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.config.RecoveryTimeout {
		cb.transitionLocked(StateHalfOpen)
	}
	return cb.state
}

// transitionLocked moves the machine to the given state, resetting the
// counters that state owns. Callers must hold mu.
func (cb *CircuitBreaker) transitionLocked(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to

	switch to {
	case StateOpen:
		cb.openedAt = cb.now()
		cb.failures = 0
	case StateHalfOpen:
		cb.successes = 0
	case StateClosed:
		cb.failures = 0
		cb.successes = 0
	}

	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(from, to)
	}
}

// Snapshot returns current circuit breaker counters.
func (cb *CircuitBreaker) Snapshot() CircuitBreakerSnapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitBreakerSnapshot{
		State:     cb.advanceLocked(),
		Failures:  cb.failures,
		Successes: cb.successes,
		OpenedAt:  cb.openedAt,
	}
}

// CircuitBreakerSnapshot contains circuit breaker statistics.
type CircuitBreakerSnapshot struct {
	State     State
	Failures  int
	Successes int
	OpenedAt  time.Time
}
