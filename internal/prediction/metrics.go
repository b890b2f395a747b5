package prediction

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/stratotrack/stratotrack/internal/prediction"

// Prediction outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeFallback = "fallback"
	OutcomeInvalid  = "invalid"
	OutcomeTimeout  = "timeout"
)

// Metrics holds the prediction instruments. A nil *Metrics records nothing.
type Metrics struct {
	total    metric.Int64Counter
	duration metric.Float64Histogram
}

// NewMetrics creates the prediction instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	total, err := meter.Int64Counter(
		"prediction.total",
		metric.WithDescription("Total number of predictions by outcome"),
		metric.WithUnit("{prediction}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"prediction.duration",
		metric.WithDescription("Duration of predictions in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{total: total, duration: duration}, nil
}

// Record records one prediction outcome.
func (m *Metrics) Record(ctx context.Context, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.total.Add(ctx, 1, attrs)
	m.duration.Record(ctx, d.Seconds(), attrs)
}
