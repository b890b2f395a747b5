package resilience

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/stratotrack/stratotrack/internal/provider/resilience"

// Metrics holds the OpenTelemetry instruments for provider calls and caches.
// A nil *Metrics records nothing.
type Metrics struct {
	callDuration metric.Float64Histogram
	callTotal    metric.Int64Counter
	cacheHit     metric.Int64Counter
	cacheMiss    metric.Int64Counter
}

// NewMetrics creates the provider instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	callDuration, err := meter.Float64Histogram(
		"provider.request.duration",
		metric.WithDescription("Duration of provider requests including retries in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	callTotal, err := meter.Int64Counter(
		"provider.request.total",
		metric.WithDescription("Total number of underlying provider calls"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	cacheHit, err := meter.Int64Counter(
		"provider.cache.hit",
		metric.WithDescription("Number of data cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, err
	}

	cacheMiss, err := meter.Int64Counter(
		"provider.cache.miss",
		metric.WithDescription("Number of data cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		callDuration: callDuration,
		callTotal:    callTotal,
		cacheHit:     cacheHit,
		cacheMiss:    cacheMiss,
	}, nil
}

// RecordCall records one provider's turn in a failover run.
func (m *Metrics) RecordCall(ctx context.Context, kind, provider string, duration time.Duration, calls int, err error) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("provider.kind", kind),
		attribute.String("provider.name", provider),
	}
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}

	ctx = context.WithoutCancel(ctx)
	m.callDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.callTotal.Add(ctx, int64(calls), metric.WithAttributes(attrs...))
}

// RecordCache records a cache lookup.
func (m *Metrics) RecordCache(ctx context.Context, kind string, hit bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("provider.kind", kind))
	ctx = context.WithoutCancel(ctx)
	if hit {
		m.cacheHit.Add(ctx, 1, attrs)
		return
	}
	m.cacheMiss.Add(ctx, 1, attrs)
}
