package event

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Schema defines one event kind in the pipeline's closed set.
type Schema struct {
	// Type is the event kind (e.g., "bar.closed").
	Type string

	// Source is the component expected to produce it (e.g., "feed").
	Source string

	// Description explains the event's purpose.
	Description string

	// PayloadType is the expected Go type for the payload.
	// Used for runtime type checking. Nil disables the check.
	PayloadType any

	// Validator is an optional custom validation function.
	Validator func(Event) error
}

// Validate checks if an event conforms to this schema.
func (s *Schema) Validate(evt Event) error {
	if evt.Type() != s.Type {
		return fmt.Errorf("event type mismatch: expected %s, got %s", s.Type, evt.Type())
	}

	if s.PayloadType != nil && evt.Data() != nil {
		want := reflect.TypeOf(s.PayloadType)
		got := reflect.TypeOf(evt.Data())
		if want != got {
			return fmt.Errorf("payload type mismatch for %s: expected %s, got %s",
				s.Type, want, got)
		}
	}

	if s.Validator != nil {
		if err := s.Validator(evt); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
	}

	return nil
}

// Registry manages the closed set of event kinds.
//
// Publishing an event whose type is not registered is a programming
// error and is rejected loudly, never silently absorbed.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*Schema
}

// NewRegistry creates an empty event kind registry.
func NewRegistry() *Registry {
	return &Registry{
		schemas: make(map[string]*Schema),
	}
}

// Register adds a schema to the registry.
// Registering the same type twice is an error.
func (r *Registry) Register(schema *Schema) error {
	if schema == nil || schema.Type == "" {
		return fmt.Errorf("schema must have a non-empty type")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.schemas[schema.Type]; exists {
		return fmt.Errorf("event type already registered: %s", schema.Type)
	}

	r.schemas[schema.Type] = schema
	return nil
}

// MustRegister registers a schema and panics on error.
// Intended for package-level setup of the fixed event set.
func (r *Registry) MustRegister(schema *Schema) {
	if err := r.Register(schema); err != nil {
		panic(fmt.Sprintf("event: %v", err))
	}
}

// Lookup returns the schema for an event type.
func (r *Registry) Lookup(eventType string) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.schemas[eventType]
	return s, ok
}

// Validate checks an event against its registered schema.
// An unknown event type is an error.
func (r *Registry) Validate(evt Event) error {
	r.mu.RLock()
	schema, ok := r.schemas[evt.Type()]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("unknown event type: %s", evt.Type())
	}

	return schema.Validate(evt)
}

// Types returns all registered event types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.schemas))
	for t := range r.schemas {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
