package resilience

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/RyuheiKiso/k1s0-sub014/observe"
)

// Operation is the caller-supplied unit of work guarded by a Decorator.
type Operation func(ctx context.Context) error

// Decorator composes the configured resilience patterns around an operation.
// One Decorator guards one logical dependency and is held for that
// dependency's lifetime; all concurrent Execute calls on the same instance
// share its circuit breaker, bulkhead, and rate limiter state. Two Decorators
// never share state, even with identical policies.
type Decorator struct {
	name     string
	retry    *Retry
	breaker  *CircuitBreaker
	bulkhead *Bulkhead
	limiter  *RateLimiter
	timeout  *Timeout

	logger observe.Logger
	tracer trace.Tracer
	meter  metric.Meter
	inst   *instruments
	now    func() time.Time
}

// Option configures a Decorator beyond its Policy.
type Option func(*Decorator)

// WithName sets the dependency name used in telemetry.
func WithName(name string) Option {
	return func(d *Decorator) {
		d.name = name
	}
}

// WithLogger sets the structured logger for state changes and rejections.
func WithLogger(logger observe.Logger) Option {
	return func(d *Decorator) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMeter sets the meter used for decorator metrics.
func WithMeter(meter metric.Meter) Option {
	return func(d *Decorator) {
		if meter != nil {
			d.meter = meter
		}
	}
}

// WithTracer sets the tracer used to span each Execute call.
func WithTracer(tracer trace.Tracer) Option {
	return func(d *Decorator) {
		if tracer != nil {
			d.tracer = tracer
		}
	}
}

// WithClock overrides the time source, for deterministic tests. It applies to
// the circuit breaker's recovery clock and to call-duration measurement.
func WithClock(now func() time.Time) Option {
	return func(d *Decorator) {
		if now != nil {
			d.now = now
		}
	}
}

// New creates a decorator for the given policy. A nil sub-config disables that
// pattern; an empty Policy yields a pass-through decorator.
func New(policy Policy, opts ...Option) (*Decorator, error) {
	if err := policy.validate(); err != nil {
		return nil, err
	}

	d := &Decorator{
		name:   "dependency",
		logger: observe.NewNopLogger(),
		tracer: tracenoop.NewTracerProvider().Tracer(instrumentationName),
		meter:  metricnoop.NewMeterProvider().Meter(instrumentationName),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}

	if policy.Retry != nil {
		d.retry = NewRetry(*policy.Retry)
	}
	if policy.CircuitBreaker != nil {
		cfg := *policy.CircuitBreaker
		if cfg.Now == nil {
			cfg.Now = d.now
		}
		user := cfg.OnStateChange
		cfg.OnStateChange = func(from, to State) {
			d.onBreakerTransition(from, to)
			if user != nil {
				user(from, to)
			}
		}
		d.breaker = NewCircuitBreaker(cfg)
	}
	if policy.Bulkhead != nil {
		d.bulkhead = NewBulkhead(*policy.Bulkhead)
	}
	if policy.RateLimiter != nil {
		d.limiter = NewRateLimiter(*policy.RateLimiter)
	}
	if policy.Timeout > 0 {
		d.timeout = NewTimeout(policy.Timeout)
	}

	inst, err := newInstruments(d.meter)
	if err != nil {
		return nil, err
	}
	d.inst = inst

	return d, nil
}

// Execute runs the operation through the configured patterns, in order:
//
//  1. Rate limiter, when configured, before any work begins.
//  2. Bulkhead admission, once for the whole call, never per attempt; the
//     permit is released on every exit path.
//  3. The attempt loop (a single attempt when retry is absent):
//     circuit breaker check, then the operation under the per-attempt
//     timeout. An open-circuit rejection propagates immediately without
//     consuming an attempt or sleeping.
//
// The worst-case latency is MaxAttempts times the per-attempt timeout, plus
// backoff sleeps; size the policy accordingly. Failures surface as ErrTimeout,
// *MaxRetriesError, *CircuitOpenError, ErrBulkheadFull, or ErrRateLimited;
// caller cancellation surfaces as ctx.Err(). When retry is not configured, a
// plain operation failure is returned as-is.
func (d *Decorator) Execute(ctx context.Context, op Operation) error {
	start := d.now()
	ctx, span := d.startSpan(ctx)

	err := d.execute(ctx, op)

	d.recordCall(ctx, d.now().Sub(start), err)
	d.endSpan(span, err)
	return err
}

func (d *Decorator) execute(ctx context.Context, op Operation) error {
	if d.limiter != nil {
		if err := d.admitRate(ctx); err != nil {
			return err
		}
	}

	if d.bulkhead != nil {
		if err := d.bulkhead.Acquire(ctx); err != nil {
			if err == ErrBulkheadFull {
				d.recordRejection(ctx, reasonBulkheadFull)
			}
			return err
		}
		defer d.bulkhead.Release()
	}

	maxAttempts := 1
	if d.retry != nil {
		maxAttempts = d.retry.MaxAttempts()
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if d.breaker != nil {
			if err := d.breaker.Allow(); err != nil {
				d.recordRejection(ctx, reasonCircuitOpen)
				return err
			}
		}

		d.inst.attempts.Add(ctx, 1, d.nameAttr())
		err := d.attempt(ctx, op)
		if err == nil {
			if d.breaker != nil {
				d.breaker.RecordSuccess()
			}
			return nil
		}

		if d.breaker != nil {
			d.breaker.Record(err)
		}

		// Caller cancellation is not a resiliency failure; stop at once.
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if d.retry != nil && !d.retry.config.RetryIf(err) {
			return err
		}
		lastErr = err

		if attempt == maxAttempts-1 {
			break
		}

		delay := d.retry.Delay(attempt)
		if d.retry.config.OnRetry != nil {
			d.retry.config.OnRetry(attempt+1, err, delay)
		}
		d.logger.Debug(ctx, "retrying after failure",
			observe.Field{Key: "dependency", Value: d.name},
			observe.Field{Key: "attempt", Value: attempt + 1},
			observe.Field{Key: "delay", Value: delay.String()},
			observe.Field{Key: "error", Value: err.Error()},
		)
		if serr := sleep(ctx, delay); serr != nil {
			return serr
		}
	}

	if d.retry == nil {
		return lastErr
	}
	return &MaxRetriesError{Attempts: maxAttempts, Cause: lastErr}
}

// attempt runs one invocation, timeout-guarded when configured.
func (d *Decorator) attempt(ctx context.Context, op Operation) error {
	if d.timeout != nil {
		return d.timeout.Execute(ctx, op)
	}
	return op(ctx)
}

func (d *Decorator) admitRate(ctx context.Context) error {
	if d.limiter.config.WaitOnLimit {
		err := d.limiter.Wait(ctx)
		if err == ErrRateLimited {
			d.recordRejection(ctx, reasonRateLimited)
		}
		return err
	}
	if !d.limiter.Allow() {
		d.recordRejection(ctx, reasonRateLimited)
		return ErrRateLimited
	}
	return nil
}

// CircuitState returns the breaker state, or StateClosed when no breaker is
// configured.
func (d *Decorator) CircuitState() State {
	if d.breaker == nil {
		return StateClosed
	}
	return d.breaker.State()
}

// BulkheadMetrics returns bulkhead statistics; the zero value when no bulkhead
// is configured.
func (d *Decorator) BulkheadMetrics() BulkheadMetrics {
	if d.bulkhead == nil {
		return BulkheadMetrics{}
	}
	return d.bulkhead.Metrics()
}

// Name returns the dependency name.
func (d *Decorator) Name() string {
	return d.name
}

// Do runs op through the decorator and returns its typed result. Abandoned
// attempts (a timed-out operation still running in the background) may publish
// late, so the result slot is mutex-guarded.
func Do[T any](ctx context.Context, d *Decorator, op func(ctx context.Context) (T, error)) (T, error) {
	var (
		mu     sync.Mutex
		result T
	)

	err := d.Execute(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		mu.Lock()
		result = v
		mu.Unlock()
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}

	mu.Lock()
	defer mu.Unlock()
	return result, nil
}
