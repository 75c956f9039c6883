package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func setupMetricsTest(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	original := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		otel.SetMeterProvider(original)
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("meter provider shutdown: %v", err)
		}
	})
	return reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) *metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return &rm
}

func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumInt64(m *metricdata.Metrics) int64 {
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		return 0
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetricsRecorder(t *testing.T) {
	reader := setupMetricsTest(t)

	recorder := NewMetricsRecorder()
	require.NotNil(t, recorder)
	_, isNoop := recorder.(NoopMetrics)
	assert.False(t, isNoop, "expected a real recorder with a provider configured")

	ctx := context.Background()
	recorder.RecordPublish(ctx, "data", "delivered")
	recorder.RecordPublish(ctx, "data", "dropped")
	recorder.RecordPublish(ctx, "order", "delivered")
	recorder.RecordDispatch(ctx, "data", "bar.closed", 3*time.Millisecond, 1)
	recorder.RecordQueueDepth(ctx, "data", 7)

	rm := collectMetrics(t, reader)

	publishes := findMetric(rm, "tradepipe.publish.attempts")
	require.NotNil(t, publishes, "publish counter not collected")
	assert.Equal(t, int64(3), sumInt64(publishes))

	dispatches := findMetric(rm, "tradepipe.dispatch.events")
	require.NotNil(t, dispatches)
	assert.Equal(t, int64(1), sumInt64(dispatches))

	failures := findMetric(rm, "tradepipe.dispatch.handler_errors")
	require.NotNil(t, failures)
	assert.Equal(t, int64(1), sumInt64(failures))

	latency := findMetric(rm, "tradepipe.dispatch.latency_ms")
	require.NotNil(t, latency)
	hist, ok := latency.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.NotEmpty(t, hist.DataPoints)

	depth := findMetric(rm, "tradepipe.queue.depth")
	require.NotNil(t, depth)
}
