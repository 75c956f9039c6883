package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records routing-core metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordPublish records a publish attempt and its outcome
	// ("delivered", "dropped", "saturated", "rejected").
	RecordPublish(ctx context.Context, queue, outcome string)

	// RecordDispatch records a completed dispatch with its duration and
	// how many handlers failed.
	RecordDispatch(ctx context.Context, queue, eventType string, duration time.Duration, failures int)

	// RecordQueueDepth records the observed queue depth at dequeue time.
	RecordQueueDepth(ctx context.Context, queue string, depth int64)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	publishes     metric.Int64Counter
	dispatches    metric.Int64Counter
	handlerErrors metric.Int64Counter
	dispatchMs    metric.Float64Histogram
	queueDepth    metric.Int64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("tradepipe")

	publishes, err := meter.Int64Counter("tradepipe.publish.attempts",
		metric.WithDescription("Number of publish attempts by queue and outcome"),
	)
	if err != nil {
		return nil, err
	}

	dispatches, err := meter.Int64Counter("tradepipe.dispatch.events",
		metric.WithDescription("Number of events dispatched to handlers"),
	)
	if err != nil {
		return nil, err
	}

	handlerErrors, err := meter.Int64Counter("tradepipe.dispatch.handler_errors",
		metric.WithDescription("Number of handler failures during dispatch"),
	)
	if err != nil {
		return nil, err
	}

	dispatchMs, err := meter.Float64Histogram("tradepipe.dispatch.latency_ms",
		metric.WithDescription("Dispatch latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	queueDepth, err := meter.Int64Histogram("tradepipe.queue.depth",
		metric.WithDescription("Queue depth observed at dequeue time"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		publishes:     publishes,
		dispatches:    dispatches,
		handlerErrors: handlerErrors,
		dispatchMs:    dispatchMs,
		queueDepth:    queueDepth,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("otel metrics init failed, using noop recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordPublish implements MetricsRecorder.
func (m *otelMetrics) RecordPublish(ctx context.Context, queue, outcome string) {
	m.publishes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("queue", queue),
		attribute.String("outcome", outcome),
	))
}

// RecordDispatch implements MetricsRecorder.
func (m *otelMetrics) RecordDispatch(ctx context.Context, queue, eventType string, duration time.Duration, failures int) {
	attrs := metric.WithAttributes(
		attribute.String("queue", queue),
		attribute.String("event_type", eventType),
	)
	m.dispatches.Add(ctx, 1, attrs)
	m.dispatchMs.Record(ctx, float64(duration.Microseconds())/1000.0, attrs)
	if failures > 0 {
		m.handlerErrors.Add(ctx, int64(failures), attrs)
	}
}

// RecordQueueDepth implements MetricsRecorder.
func (m *otelMetrics) RecordQueueDepth(ctx context.Context, queue string, depth int64) {
	m.queueDepth.Record(ctx, depth, metric.WithAttributes(
		attribute.String("queue", queue),
	))
}
