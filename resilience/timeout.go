package resilience

import (
	"context"
	"time"
)

// Timeout enforces a deadline on a single attempt of an operation. It does not
// retry; that is the retry policy's job.
type Timeout struct {
	limit time.Duration
}

// NewTimeout creates a new timeout guard.
func NewTimeout(limit time.Duration) *Timeout {
	// Apply default
	if limit <= 0 {
		limit = 30 * time.Second
	}

	return &Timeout{limit: limit}
}

// Execute runs one attempt under the deadline. On expiry it returns ErrTimeout
// while the operation goroutine may keep running in the background; the result
// channel is buffered so that goroutine never leaks blocked. Cancellation of
// the caller's own context returns ctx.Err(), not ErrTimeout.
func (t *Timeout) Execute(ctx context.Context, op Operation) error {
	attemptCtx, cancel := context.WithTimeout(ctx, t.limit)
	defer cancel()

	done := make(chan error, 1)

	go func() {
		done <- op(attemptCtx)
	}()

	select {
	case err := <-done:
		return err
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTimeout
	}
}

// Limit returns the configured deadline.
func (t *Timeout) Limit() time.Duration {
	return t.limit
}
