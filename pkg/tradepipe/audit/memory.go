package audit

import (
	"context"
	"sync"
)

// MemorySink is an in-memory audit sink for testing.
// Entries are lost when the process exits.
type MemorySink struct {
	mu      sync.RWMutex
	entries []Entry
	closed  bool
}

// NewMemorySink creates a new in-memory audit sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Record implements Sink.
func (m *MemorySink) Record(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrSinkClosed
	}

	m.entries = append(m.entries, e)
	return nil
}

// Entries returns a copy of all recorded entries, oldest first.
func (m *MemorySink) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// ByKind returns recorded entries of one kind, oldest first.
func (m *MemorySink) ByKind(kind Kind) []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Entry
	for _, e := range m.entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Close implements Sink.
func (m *MemorySink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}
