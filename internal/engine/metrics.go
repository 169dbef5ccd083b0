package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/optiroute/optiroute/internal/engine"

// Metrics holds the OpenTelemetry metrics instruments.
type Metrics struct {
	optimizationDuration metric.Float64Histogram
	optimizationTotal    metric.Int64Counter
	fallbackTotal        metric.Int64Counter
	feedbackTotal        metric.Int64Counter
	rollingAccuracy      metric.Float64Gauge
}

// NewMetrics creates a new Metrics instance with initialized instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	optimizationDuration, err := meter.Float64Histogram(
		"engine.optimization.duration",
		metric.WithDescription("Duration of optimization calls in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	optimizationTotal, err := meter.Int64Counter(
		"engine.optimization.total",
		metric.WithDescription("Total number of optimization calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	fallbackTotal, err := meter.Int64Counter(
		"engine.fallback.total",
		metric.WithDescription("Optimization calls served by the deterministic fallback"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	feedbackTotal, err := meter.Int64Counter(
		"engine.feedback.total",
		metric.WithDescription("Feedback observations recorded"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, err
	}

	rollingAccuracy, err := meter.Float64Gauge(
		"engine.rolling_accuracy",
		metric.WithDescription("Rolling prediction accuracy over the feedback window"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		optimizationDuration: optimizationDuration,
		optimizationTotal:    optimizationTotal,
		fallbackTotal:        fallbackTotal,
		feedbackTotal:        feedbackTotal,
		rollingAccuracy:      rollingAccuracy,
	}, nil
}

// RecordOptimization records one completed optimization call.
func (m *Metrics) RecordOptimization(ctx context.Context, elapsed time.Duration, clientModel, fallback bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.Bool("client_model", clientModel),
		attribute.Bool("fallback", fallback),
	)
	m.optimizationDuration.Record(ctx, elapsed.Seconds(), attrs)
	m.optimizationTotal.Add(ctx, 1, attrs)
	if fallback {
		m.fallbackTotal.Add(ctx, 1)
	}
}

// RecordFeedback records one observed outcome and the new rolling accuracy.
func (m *Metrics) RecordFeedback(ctx context.Context, accuracy float64) {
	if m == nil {
		return
	}
	m.feedbackTotal.Add(ctx, 1)
	m.rollingAccuracy.Record(ctx, accuracy)
}
