package resilience

import (
	"fmt"
	"time"
)

// Default configuration values applied when a config field is zero.
const (
	DefaultMaxAttempts       = 3
	DefaultBaseDelay         = 100 * time.Millisecond
	DefaultMaxDelay          = 30 * time.Second
	DefaultMultiplier        = 2.0
	DefaultFailureThreshold  = 5
	DefaultRecoveryTimeout   = 30 * time.Second
	DefaultHalfOpenSuccesses = 1
	DefaultMaxConcurrent     = 10
	DefaultRate              = 100.0
	DefaultBurst             = 10
	DefaultRateMaxWait       = time.Second
)

// Policy bundles the per-pattern configurations for one Decorator. A nil
// sub-config disables that pattern entirely; a Timeout of zero disables the
// per-attempt deadline. Zero-valued fields inside a present config take the
// package defaults above.
type Policy struct {
	Retry          *RetryConfig
	CircuitBreaker *CircuitBreakerConfig
	Bulkhead       *BulkheadConfig
	RateLimiter    *RateLimiterConfig
	Timeout        time.Duration
}

// validate rejects configurations that cannot mean anything: negative counts,
// negative durations. Zero values are defaulted by the pattern constructors.
func (p Policy) validate() error {
	if p.Timeout < 0 {
		return fmt.Errorf("resilience: timeout must not be negative, got %s", p.Timeout)
	}
	if r := p.Retry; r != nil {
		if r.MaxAttempts < 0 {
			return fmt.Errorf("resilience: retry max attempts must be at least 1, got %d", r.MaxAttempts)
		}
		if r.BaseDelay < 0 || r.MaxDelay < 0 {
			return fmt.Errorf("resilience: retry delays must not be negative")
		}
	}
	if cb := p.CircuitBreaker; cb != nil {
		if cb.FailureThreshold < 0 {
			return fmt.Errorf("resilience: failure threshold must be at least 1, got %d", cb.FailureThreshold)
		}
		if cb.HalfOpenSuccesses < 0 {
			return fmt.Errorf("resilience: half-open successes must be at least 1, got %d", cb.HalfOpenSuccesses)
		}
		if cb.RecoveryTimeout < 0 {
			return fmt.Errorf("resilience: recovery timeout must not be negative, got %s", cb.RecoveryTimeout)
		}
	}
	if b := p.Bulkhead; b != nil {
		if b.MaxConcurrent < 0 {
			return fmt.Errorf("resilience: bulkhead max concurrent must be at least 1, got %d", b.MaxConcurrent)
		}
		if b.MaxWait < 0 {
			return fmt.Errorf("resilience: bulkhead max wait must not be negative, got %s", b.MaxWait)
		}
	}
	if rl := p.RateLimiter; rl != nil {
		if rl.Rate < 0 {
			return fmt.Errorf("resilience: rate must not be negative, got %f", rl.Rate)
		}
		if rl.Burst < 0 {
			return fmt.Errorf("resilience: burst must not be negative, got %d", rl.Burst)
		}
	}
	return nil
}
