package resilience

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/RyuheiKiso/k1s0-sub014/observe"
)

const instrumentationName = "resilience"

// Rejection reason attribute values.
const (
	reasonBulkheadFull = "bulkhead_full"
	reasonCircuitOpen  = "circuit_open"
	reasonRateLimited  = "rate_limited"
)

// instruments bundles the otel instruments recorded around Execute. All of
// them come from the decorator's meter, which defaults to a noop provider.
type instruments struct {
	calls       metric.Int64Counter
	attempts    metric.Int64Counter
	duration    metric.Float64Histogram
	transitions metric.Int64Counter
	rejections  metric.Int64Counter
}

func newInstruments(meter metric.Meter) (*instruments, error) {
	calls, err := meter.Int64Counter(
		"resiliency.calls",
		metric.WithDescription("Total number of decorated calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	attempts, err := meter.Int64Counter(
		"resiliency.attempts",
		metric.WithDescription("Total number of operation attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"resiliency.call.duration_ms",
		metric.WithDescription("Decorated call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	transitions, err := meter.Int64Counter(
		"resiliency.breaker.transitions",
		metric.WithDescription("Circuit breaker state transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, err
	}

	rejections, err := meter.Int64Counter(
		"resiliency.rejections",
		metric.WithDescription("Calls rejected before reaching the operation"),
		metric.WithUnit("{rejection}"),
	)
	if err != nil {
		return nil, err
	}

	return &instruments{
		calls:       calls,
		attempts:    attempts,
		duration:    duration,
		transitions: transitions,
		rejections:  rejections,
	}, nil
}

func (d *Decorator) nameAttr() metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("dependency", d.name))
}

func (d *Decorator) startSpan(ctx context.Context) (context.Context, trace.Span) {
	return d.tracer.Start(ctx, "resiliency.execute",
		trace.WithAttributes(attribute.String("dependency", d.name)),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (d *Decorator) endSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("resiliency.outcome", outcomeLabel(err)))
		span.RecordError(err)
	} else {
		span.SetAttributes(attribute.String("resiliency.outcome", outcomeSuccess))
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func (d *Decorator) recordCall(ctx context.Context, elapsed time.Duration, err error) {
	opt := metric.WithAttributes(
		attribute.String("dependency", d.name),
		attribute.String("outcome", outcomeLabel(err)),
	)
	d.inst.calls.Add(ctx, 1, opt)
	d.inst.duration.Record(ctx, float64(elapsed)/float64(time.Millisecond), opt)
}

func (d *Decorator) recordRejection(ctx context.Context, reason string) {
	d.inst.rejections.Add(ctx, 1, metric.WithAttributes(
		attribute.String("dependency", d.name),
		attribute.String("reason", reason),
	))
	d.logger.Warn(ctx, "call rejected",
		observe.Field{Key: "dependency", Value: d.name},
		observe.Field{Key: "reason", Value: reason},
	)
}

// onBreakerTransition runs inside the breaker's lock; it must not call back
// into the breaker.
func (d *Decorator) onBreakerTransition(from, to State) {
	ctx := context.Background()
	d.inst.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("dependency", d.name),
		attribute.String("from", from.String()),
		attribute.String("to", to.String()),
	))
	d.logger.Warn(ctx, "circuit breaker state changed",
		observe.Field{Key: "dependency", Value: d.name},
		observe.Field{Key: "from", Value: from.String()},
		observe.Field{Key: "to", Value: to.String()},
	)
}

// Outcome attribute values, one per failure kind plus success and caller
// cancellation.
const (
	outcomeSuccess      = "success"
	outcomeTimeout      = "timeout"
	outcomeMaxRetries   = "max_retries_exceeded"
	outcomeCircuitOpen  = "circuit_open"
	outcomeBulkheadFull = "bulkhead_full"
	outcomeRateLimited  = "rate_limited"
	outcomeCancelled    = "cancelled"
	outcomeError        = "error"
)

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.Is(err, ErrMaxRetriesExceeded):
		return outcomeMaxRetries
	case errors.Is(err, ErrCircuitOpen):
		return outcomeCircuitOpen
	case errors.Is(err, ErrBulkheadFull):
		return outcomeBulkheadFull
	case errors.Is(err, ErrRateLimited):
		return outcomeRateLimited
	case errors.Is(err, ErrTimeout):
		return outcomeTimeout
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return outcomeCancelled
	default:
		return outcomeError
	}
}
