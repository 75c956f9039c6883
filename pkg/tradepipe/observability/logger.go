// Package observability provides production-grade observability features
// for tradepipe: structured logging, metrics, and distributed tracing.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"context"
	"log/slog"
	"time"
)

// EnrichLogger adds pipeline context to a logger.
// Returns a new logger with queue and event_type fields.
func EnrichLogger(logger *slog.Logger, queue, eventType string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("queue", queue),
		slog.String("event_type", eventType),
	)
}

// LogRouterStart logs router startup with its queue set.
func LogRouterStart(logger *slog.Logger, queues []string) {
	if logger == nil {
		return
	}
	logger.Info("router starting",
		slog.Any("queues", queues),
	)
}

// LogRouterStop logs router shutdown.
func LogRouterStop(logger *slog.Logger) {
	if logger == nil {
		return
	}
	logger.Info("router stopped")
}

// LogQueueDrop logs an event discarded under the drop policy.
func LogQueueDrop(logger *slog.Logger, queue, eventType, eventID string, drops int64) {
	if logger == nil {
		return
	}
	logger.Warn("event dropped: queue full",
		slog.String("queue", queue),
		slog.String("event_type", eventType),
		slog.String("event_id", eventID),
		slog.Int64("total_drops", drops),
	)
}

// LogQueueSaturated logs a rejected publish on a must-process queue.
func LogQueueSaturated(logger *slog.Logger, queue, eventType string, waited time.Duration) {
	if logger == nil {
		return
	}
	logger.Error("publish rejected: queue saturated",
		slog.String("queue", queue),
		slog.String("event_type", eventType),
		slog.Duration("waited", waited),
	)
}

// LogHandlerError logs a handler failure with full dispatch context.
// Recoverable failures (best-effort stages, such as strategy evaluation
// on market data) warn; the rest are operationally significant and log
// at error level.
func LogHandlerError(logger *slog.Logger, queue, eventType, eventID, handler string, err error, recoverable bool) {
	if logger == nil {
		return
	}
	level := slog.LevelError
	if recoverable {
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, "handler failed",
		slog.String("queue", queue),
		slog.String("event_type", eventType),
		slog.String("event_id", eventID),
		slog.String("handler", handler),
		slog.String("error", err.Error()),
	)
}

// LogHandlerPanic logs a recovered handler panic.
func LogHandlerPanic(logger *slog.Logger, queue, eventType, handler string, recovered any) {
	if logger == nil {
		return
	}
	logger.Error("handler panicked",
		slog.String("queue", queue),
		slog.String("event_type", eventType),
		slog.String("handler", handler),
		slog.Any("panic", recovered),
	)
}

// LogDispatch logs a completed dispatch at debug level.
func LogDispatch(logger *slog.Logger, queue, eventType string, handlers int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("event dispatched",
		slog.String("queue", queue),
		slog.String("event_type", eventType),
		slog.Int("handlers", handlers),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogDrainComplete logs a successful drain.
func LogDrainComplete(logger *slog.Logger, dur time.Duration) {
	if logger == nil {
		return
	}
	logger.Info("queues drained",
		slog.Duration("elapsed", dur),
	)
}

// LogDrainTimeout logs queues that failed to empty before the shutdown
// deadline. Undrained critical queues are reported at error level since
// their contents represent undelivered consequential events.
func LogDrainTimeout(logger *slog.Logger, queue string, remaining int, critical bool) {
	if logger == nil {
		return
	}
	if critical {
		logger.Error("drain timeout on critical queue",
			slog.String("queue", queue),
			slog.Int("undelivered", remaining),
		)
		return
	}
	logger.Warn("drain timeout",
		slog.String("queue", queue),
		slog.Int("undelivered", remaining),
	)
}

// LogLifecycle logs an orchestrator state transition.
func LogLifecycle(logger *slog.Logger, from, to string) {
	if logger == nil {
		return
	}
	logger.Info("lifecycle transition",
		slog.String("from", from),
		slog.String("to", to),
	)
}
