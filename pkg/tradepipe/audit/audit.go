// Package audit provides the observability sink contract for the routing
// core: a journal of lifecycle transitions, drops, saturation failures,
// and handler failures, with enough context to reconstruct what was lost.
//
// Sink failures never propagate into the pipeline; the router and
// orchestrator record entries best-effort.
package audit

import (
	"context"
	"errors"
	"time"
)

// Kind classifies an audit entry.
type Kind string

// Entry kinds recorded by the routing core.
const (
	KindLifecycle    Kind = "lifecycle"
	KindDrop         Kind = "drop"
	KindSaturation   Kind = "saturation"
	KindHandlerError Kind = "handler_error"
	KindDrainTimeout Kind = "drain_timeout"
)

// Entry is one audit record.
type Entry struct {
	At        time.Time `json:"at"`
	Kind      Kind      `json:"kind"`
	Queue     string    `json:"queue,omitempty"`
	EventType string    `json:"event_type,omitempty"`
	EventID   string    `json:"event_id,omitempty"`
	Handler   string    `json:"handler,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// Sink persists audit entries.
// Implementations must be safe for concurrent use.
type Sink interface {
	// Record appends an entry to the journal.
	Record(ctx context.Context, e Entry) error

	// Close releases any resources (connections, files).
	Close() error
}

// Sentinel errors for sink operations.
var (
	// ErrSinkClosed indicates the sink has been closed.
	ErrSinkClosed = errors.New("audit sink closed")
)
