// Package resilience wraps arbitrary operations with retry, circuit breaking,
// bulkheading, rate limiting, and timeout enforcement.
//
// Each pattern is an independent type with its own configuration and can be
// used on its own. The Decorator composes them around one logical dependency
// in a fixed order: rate limiter, then bulkhead admission (once per call),
// then per-attempt circuit breaker check, then the operation under its
// per-attempt timeout.
//
// # Usage
//
// Build one decorator per dependency and hold it for the dependency's
// lifetime; its circuit breaker and bulkhead state is shared by all
// concurrent Execute calls on that instance:
//
//	dec, err := resilience.New(resilience.Policy{
//	    Retry: &resilience.RetryConfig{
//	        MaxAttempts: 3,
//	        BaseDelay:   100 * time.Millisecond,
//	        MaxDelay:    5 * time.Second,
//	    },
//	    CircuitBreaker: &resilience.CircuitBreakerConfig{
//	        FailureThreshold: 5,
//	        RecoveryTimeout:  30 * time.Second,
//	    },
//	    Bulkhead: &resilience.BulkheadConfig{
//	        MaxConcurrent: 20,
//	        MaxWait:       50 * time.Millisecond,
//	    },
//	    Timeout: 2 * time.Second,
//	}, resilience.WithName("billing"))
//	if err != nil {
//	    return err
//	}
//
//	err = dec.Execute(ctx, func(ctx context.Context) error {
//	    return callBilling(ctx)
//	})
//
// # Outcomes
//
// Execute fails with one of ErrTimeout, *MaxRetriesError, *CircuitOpenError,
// ErrBulkheadFull, or ErrRateLimited, all matchable with errors.Is against
// their sentinels. Open-circuit and bulkhead rejections mean "do not attempt
// now" and are never retried internally; timeouts are ordinary retryable
// failures. Caller cancellation surfaces as ctx.Err() and is none of the
// above.
//
// State is purely in-process and per-instance: there is no persistence, no
// background timer (the open-to-half-open transition is evaluated lazily at
// call time), and no cross-process coordination.
package resilience
