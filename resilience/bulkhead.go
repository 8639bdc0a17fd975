package resilience

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// BulkheadConfig configures the bulkhead.
type BulkheadConfig struct {
	// MaxConcurrent is the maximum number of concurrent operations.
	// Default: 10
	MaxConcurrent int

	// MaxWait is the maximum time to wait for a permit.
	// Default: 0 (no waiting, reject immediately)
	MaxWait time.Duration
}

// Bulkhead bounds concurrent operations with a counting permit pool. Waiting
// for a permit blocks only the calling goroutine and respects both MaxWait and
// caller cancellation.
type Bulkhead struct {
	config BulkheadConfig
	sem    *semaphore.Weighted

	mu        sync.Mutex
	active    int
	maxActive int
	rejected  int64
}

// NewBulkhead creates a new bulkhead.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	// Apply defaults
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = DefaultMaxConcurrent
	}

	return &Bulkhead{
		config: config,
		sem:    semaphore.NewWeighted(int64(config.MaxConcurrent)),
	}
}

// Acquire takes one permit, waiting up to MaxWait for capacity. It returns
// ErrBulkheadFull when the wait expires and ctx.Err() when the caller's
// context is cancelled first.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	// Fast path: permit available now.
	if b.sem.TryAcquire(1) {
		b.admitted()
		return nil
	}

	if b.config.MaxWait <= 0 {
		b.reject()
		return ErrBulkheadFull
	}

	waitCtx, cancel := context.WithTimeout(ctx, b.config.MaxWait)
	defer cancel()

	if err := b.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			// Caller cancelled; not a capacity rejection.
			return ctx.Err()
		}
		b.reject()
		return ErrBulkheadFull
	}

	b.admitted()
	return nil
}

// Release returns one permit. It must pair with a successful Acquire.
func (b *Bulkhead) Release() {
	b.sem.Release(1)

	b.mu.Lock()
	b.active--
	b.mu.Unlock()
}

// Execute runs the operation within the bulkhead. The permit is released on
// every exit path.
func (b *Bulkhead) Execute(ctx context.Context, op Operation) error {
	if err := b.Acquire(ctx); err != nil {
		return err
	}
	defer b.Release()

	return op(ctx)
}

func (b *Bulkhead) admitted() {
	b.mu.Lock()
	b.active++
	if b.active > b.maxActive {
		b.maxActive = b.active
	}
	b.mu.Unlock()
}

func (b *Bulkhead) reject() {
	b.mu.Lock()
	b.rejected++
	b.mu.Unlock()
}

// Metrics returns current bulkhead metrics.
func (b *Bulkhead) Metrics() BulkheadMetrics {
	b.mu.Lock()
	defer b.mu.Unlock()

	return BulkheadMetrics{
		Active:        b.active,
		MaxActive:     b.maxActive,
		Available:     b.config.MaxConcurrent - b.active,
		MaxConcurrent: b.config.MaxConcurrent,
		Rejected:      b.rejected,
	}
}

// BulkheadMetrics contains bulkhead statistics.
type BulkheadMetrics struct {
	Active        int
	MaxActive     int
	Available     int
	MaxConcurrent int
	Rejected      int64
}
