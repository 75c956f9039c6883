package observability

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureHandler records emitted log records for inspection.
type captureHandler struct {
	mu      sync.Mutex
	records []capturedRecord
}

type capturedRecord struct {
	level slog.Level
	msg   string
	attrs map[string]any
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	rec := capturedRecord{level: r.Level, msg: r.Message, attrs: map[string]any{}}
	r.Attrs(func(a slog.Attr) bool {
		rec.attrs[a.Key] = a.Value.Any()
		return true
	})
	h.mu.Lock()
	h.records = append(h.records, rec)
	h.mu.Unlock()
	return nil
}

func (h *captureHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *captureHandler) WithGroup(string) slog.Handler      { return h }

func (h *captureHandler) last(t *testing.T) capturedRecord {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	require.NotEmpty(t, h.records, "expected at least one log record")
	return h.records[len(h.records)-1]
}

func newCaptureLogger() (*slog.Logger, *captureHandler) {
	h := &captureHandler{}
	return slog.New(h), h
}

func TestLogHelpersAreNilSafe(t *testing.T) {
	// Every helper must tolerate a nil logger.
	LogRouterStart(nil, []string{"data"})
	LogRouterStop(nil)
	LogQueueDrop(nil, "data", "bar.closed", "evt-1", 3)
	LogQueueSaturated(nil, "signal", "signal.generated", time.Millisecond)
	LogHandlerError(nil, "data", "bar.closed", "evt-1", "strategy", errors.New("x"), true)
	LogHandlerPanic(nil, "data", "bar.closed", "strategy", "boom")
	LogDispatch(nil, "data", "bar.closed", 2, 1.5)
	LogDrainComplete(nil, time.Second)
	LogDrainTimeout(nil, "order", 2, true)
	LogLifecycle(nil, "created", "initialized")
}

func TestLogQueueDrop(t *testing.T) {
	logger, h := newCaptureLogger()

	LogQueueDrop(logger, "data", "bar.closed", "evt-1", 4)

	rec := h.last(t)
	assert.Equal(t, slog.LevelWarn, rec.level)
	assert.Equal(t, "data", rec.attrs["queue"])
	assert.Equal(t, "bar.closed", rec.attrs["event_type"])
	assert.EqualValues(t, 4, rec.attrs["total_drops"])
}

func TestLogHandlerError(t *testing.T) {
	logger, h := newCaptureLogger()

	LogHandlerError(logger, "order", "order.requested", "evt-9", "executor", errors.New("venue down"), false)

	rec := h.last(t)
	assert.Equal(t, slog.LevelError, rec.level)
	assert.Equal(t, "executor", rec.attrs["handler"])
	assert.Equal(t, "venue down", rec.attrs["error"])

	// A recoverable stage failure warns instead.
	LogHandlerError(logger, "data", "bar.closed", "evt-1", "strategy", errors.New("model exploded"), true)
	assert.Equal(t, slog.LevelWarn, h.last(t).level)
}

func TestLogDrainTimeoutLevels(t *testing.T) {
	logger, h := newCaptureLogger()

	// A stuck critical queue is an error; others warn.
	LogDrainTimeout(logger, "order", 3, true)
	assert.Equal(t, slog.LevelError, h.last(t).level)

	LogDrainTimeout(logger, "data", 3, false)
	assert.Equal(t, slog.LevelWarn, h.last(t).level)
}

func TestLogLifecycle(t *testing.T) {
	logger, h := newCaptureLogger()

	LogLifecycle(logger, "running", "stopping")

	rec := h.last(t)
	assert.Equal(t, "running", rec.attrs["from"])
	assert.Equal(t, "stopping", rec.attrs["to"])
}

func TestEnrichLogger(t *testing.T) {
	assert.Nil(t, EnrichLogger(nil, "data", "bar.closed"))

	logger, h := newCaptureLogger()
	enriched := EnrichLogger(logger, "data", "bar.closed")
	require.NotNil(t, enriched)
	enriched.Info("hello")
	assert.Equal(t, "hello", h.last(t).msg)
}
