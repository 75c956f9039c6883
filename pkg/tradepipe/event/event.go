// Package event provides the immutable event envelope and dispatch
// primitives for the tradepipe routing core.
//
// This package implements the building blocks the router depends on:
//   - Event interface with correlation and causation tracking
//   - Registry for the closed set of event kinds
//   - Handler abstraction with typed payload adapters
//
// Events are immutable once created - any modification creates a new event.
package event

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope for every message moving through the pipeline.
type Event interface {
	// Identity
	ID() string     // Unique event identifier
	Type() string   // Event kind (e.g., "bar.closed", "signal.generated")
	Source() string // Originating component (e.g., "feed", "strategy")

	// Correlation across pipeline stages
	CorrelationID() string // Groups the bar -> signal -> order chain
	CausationID() string   // ID of the event that directly caused this one

	// Metadata
	Timestamp() time.Time // When the event was created

	// Payload
	Data() any         // Payload, opaque to the router
	DataBytes() []byte // Serialized payload for audit/transport
}

// Metadata contains the common envelope fields.
type Metadata struct {
	EventID       string    `json:"id"`
	EventType     string    `json:"type"`
	EventSource   string    `json:"source"`
	CorrelationID string    `json:"correlation_id"`
	CausationID   string    `json:"causation_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// BaseEvent provides a generic event implementation.
// T is the payload type for type-safe access.
type BaseEvent[T any] struct {
	Meta    Metadata `json:"metadata"`
	Payload T        `json:"payload"`

	// Cached serialization (computed lazily)
	cachedBytes []byte
}

// ID returns the unique event identifier.
func (e *BaseEvent[T]) ID() string {
	return e.Meta.EventID
}

// Type returns the event kind.
func (e *BaseEvent[T]) Type() string {
	return e.Meta.EventType
}

// Source returns the originating component.
func (e *BaseEvent[T]) Source() string {
	return e.Meta.EventSource
}

// CorrelationID returns the ID grouping this event's causal chain.
func (e *BaseEvent[T]) CorrelationID() string {
	return e.Meta.CorrelationID
}

// CausationID returns the ID of the event that caused this one.
func (e *BaseEvent[T]) CausationID() string {
	return e.Meta.CausationID
}

// Timestamp returns when the event was created.
func (e *BaseEvent[T]) Timestamp() time.Time {
	return e.Meta.Timestamp
}

// Data returns the event payload.
func (e *BaseEvent[T]) Data() any {
	return e.Payload
}

// TypedData returns the strongly-typed payload.
func (e *BaseEvent[T]) TypedData() T {
	return e.Payload
}

// DataBytes returns the serialized payload.
// The result is cached for efficiency.
func (e *BaseEvent[T]) DataBytes() []byte {
	if e.cachedBytes == nil {
		// Best effort - errors are ignored for interface compliance
		e.cachedBytes, _ = json.Marshal(e.Payload)
	}
	return e.cachedBytes
}

// MarshalJSON implements json.Marshaler.
func (e *BaseEvent[T]) MarshalJSON() ([]byte, error) {
	type alias BaseEvent[T]
	return json.Marshal((*alias)(e))
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *BaseEvent[T]) UnmarshalJSON(data []byte) error {
	type alias BaseEvent[T]
	if err := json.Unmarshal(data, (*alias)(e)); err != nil {
		return err
	}
	e.cachedBytes = nil // Clear cache on unmarshal
	return nil
}

// EventOption configures event creation.
type EventOption func(*eventConfig)

type eventConfig struct {
	id            string
	correlationID string
	causationID   string
	timestamp     time.Time
}

// WithEventID sets a specific event ID (default: auto-generated UUID).
func WithEventID(id string) EventOption {
	return func(cfg *eventConfig) {
		cfg.id = id
	}
}

// WithCorrelationID sets the correlation ID for chain tracking.
func WithCorrelationID(id string) EventOption {
	return func(cfg *eventConfig) {
		cfg.correlationID = id
	}
}

// WithCausationID sets the ID of the causing event.
func WithCausationID(id string) EventOption {
	return func(cfg *eventConfig) {
		cfg.causationID = id
	}
}

// WithTimestamp sets a specific timestamp (default: time.Now()).
func WithTimestamp(t time.Time) EventOption {
	return func(cfg *eventConfig) {
		cfg.timestamp = t
	}
}

// New creates a new event with the given kind, source, and payload.
func New[T any](
	eventType string,
	source string,
	payload T,
	opts ...EventOption,
) *BaseEvent[T] {
	cfg := &eventConfig{
		id:        uuid.New().String(),
		timestamp: time.Now(),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	// If no correlation ID, use event ID as the root
	if cfg.correlationID == "" {
		cfg.correlationID = cfg.id
	}

	return &BaseEvent[T]{
		Meta: Metadata{
			EventID:       cfg.id,
			EventType:     eventType,
			EventSource:   source,
			CorrelationID: cfg.correlationID,
			CausationID:   cfg.causationID,
			Timestamp:     cfg.timestamp,
		},
		Payload: payload,
	}
}

// NewFromParent creates a new event caused by a parent event.
// It automatically inherits the correlation ID and sets causation ID.
func NewFromParent[T any](
	parent Event,
	eventType string,
	source string,
	payload T,
	opts ...EventOption,
) *BaseEvent[T] {
	// Prepend parent correlation options (can be overridden by opts)
	parentOpts := []EventOption{
		WithCorrelationID(parent.CorrelationID()),
		WithCausationID(parent.ID()),
	}
	allOpts := append(parentOpts, opts...)

	return New(eventType, source, payload, allOpts...)
}

// NewAny creates a new event with an untyped (any) payload.
// This is a convenience function when you don't need type-safe payload access.
func NewAny(
	eventType string,
	source string,
	payload any,
	opts ...EventOption,
) *BaseEvent[any] {
	return New(eventType, source, payload, opts...)
}

// Handler processes events and optionally returns derived events.
// Derived events are how one pipeline stage feeds the next: the routing
// loop publishes them on the handler's behalf, so handlers never enqueue
// directly and can never deadlock against a full queue.
type Handler interface {
	// Handle processes an event and returns any derived events.
	Handle(ctx context.Context, evt Event) ([]Event, error)

	// Name identifies the handler in logs and audit records.
	Name() string
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc struct {
	// ID is the handler identity used in logs.
	ID string

	// Fn is the handler body.
	Fn func(ctx context.Context, evt Event) ([]Event, error)
}

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, evt Event) ([]Event, error) {
	return f.Fn(ctx, evt)
}

// Name implements Handler.
func (f HandlerFunc) Name() string {
	if f.ID == "" {
		return "anonymous"
	}
	return f.ID
}

// TypedHandler wraps a function handling a specific payload type.
func TypedHandler[T any](
	name string,
	fn func(ctx context.Context, payload T, meta Metadata) ([]Event, error),
) Handler {
	return &typedHandler[T]{
		name: name,
		fn:   fn,
	}
}

type typedHandler[T any] struct {
	name string
	fn   func(ctx context.Context, payload T, meta Metadata) ([]Event, error)
}

func (h *typedHandler[T]) Handle(ctx context.Context, evt Event) ([]Event, error) {
	// Try to extract typed data
	var payload T

	switch d := evt.Data().(type) {
	case T:
		payload = d
	case map[string]any:
		// JSON unmarshal path
		bytes, err := json.Marshal(d)
		if err != nil {
			return nil, &EventError{
				Event:   evt,
				Handler: h.name,
				Message: "failed to marshal event data",
				Err:     err,
			}
		}
		if err := json.Unmarshal(bytes, &payload); err != nil {
			return nil, &EventError{
				Event:   evt,
				Handler: h.name,
				Message: "failed to unmarshal event data to expected type",
				Err:     err,
			}
		}
	default:
		return nil, &EventError{
			Event:   evt,
			Handler: h.name,
			Message: "unexpected payload type",
		}
	}

	// Extract metadata
	meta := Metadata{
		EventID:       evt.ID(),
		EventType:     evt.Type(),
		EventSource:   evt.Source(),
		CorrelationID: evt.CorrelationID(),
		CausationID:   evt.CausationID(),
		Timestamp:     evt.Timestamp(),
	}

	return h.fn(ctx, payload, meta)
}

func (h *typedHandler[T]) Name() string {
	return h.name
}
