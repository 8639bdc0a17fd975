package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// RetryConfig configures the retry behavior.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the first).
	// Default: 3
	MaxAttempts int

	// BaseDelay is the delay before the first retry.
	// Default: 100ms
	BaseDelay time.Duration

	// MaxDelay caps the delay between retries.
	// Default: 30s
	MaxDelay time.Duration

	// Multiplier is the exponential backoff multiplier.
	// Default: 2.0
	Multiplier float64

	// Jitter adds up to 25% randomness to delays to prevent thundering herd.
	// Default: false, so delays follow min(BaseDelay*Multiplier^n, MaxDelay)
	// exactly.
	Jitter bool

	// RetryIf determines if an error should trigger a retry.
	// Default: all non-nil errors except ErrCircuitOpen. Retrying against a
	// breaker that just rejected the call wastes attempts, so an open-circuit
	// rejection always propagates immediately.
	RetryIf func(err error) bool

	// OnRetry is called before each backoff sleep with the 1-based number of
	// the attempt that just failed, its error, and the upcoming delay.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Retry implements retry with capped exponential backoff.
type Retry struct {
	config RetryConfig
}

// NewRetry creates a new retry handler.
func NewRetry(config RetryConfig) *Retry {
	// Apply defaults
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = DefaultBaseDelay
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = DefaultMaxDelay
	}
	if config.Multiplier <= 0 {
		config.Multiplier = DefaultMultiplier
	}
	if config.RetryIf == nil {
		config.RetryIf = DefaultRetryIf
	}

	return &Retry{config: config}
}

// DefaultRetryIf retries every error except an open-circuit rejection.
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}
	return !isCircuitOpen(err)
}

// Execute runs the operation with retry logic. Exhaustion returns a
// *MaxRetriesError wrapping the final failure; a non-retryable error
// propagates as-is. The backoff sleep aborts on context cancellation.
func (r *Retry) Execute(ctx context.Context, op Operation) error {
	var lastErr error

	for attempt := 0; attempt < r.config.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}

		if !r.config.RetryIf(err) {
			return err
		}
		lastErr = err

		if attempt == r.config.MaxAttempts-1 {
			break
		}

		delay := r.Delay(attempt)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt+1, err, delay)
		}
		if serr := sleep(ctx, delay); serr != nil {
			return serr
		}
	}

	return &MaxRetriesError{Attempts: r.config.MaxAttempts, Cause: lastErr}
}

// Delay returns the backoff delay after the given zero-based attempt:
// min(BaseDelay * Multiplier^attempt, MaxDelay), plus jitter when enabled.
func (r *Retry) Delay(attempt int) time.Duration {
	multiplier := math.Pow(r.config.Multiplier, float64(attempt))
	delay := time.Duration(float64(r.config.BaseDelay) * multiplier)

	// A negative delay means the multiplication overflowed.
	if delay > r.config.MaxDelay || delay <= 0 {
		delay = r.config.MaxDelay
	}

	if r.config.Jitter && delay > 0 {
		// Add up to 25% jitter
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		delay += time.Duration(rand.Int64N(int64(delay / 4)))
	}

	return delay
}

// MaxAttempts returns the configured attempt count.
func (r *Retry) MaxAttempts() int {
	return r.config.MaxAttempts
}

// Config returns the retry configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}

// sleep waits for d or until ctx is cancelled, returning ctx.Err() in the
// latter case.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
