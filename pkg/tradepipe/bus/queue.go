// Package bus implements the event routing core: bounded FIFO queues with
// per-queue overflow policies, and the Router that dispatches dequeued
// events to subscribed handlers.
//
// The pipeline runs on three queues with distinct priority classes:
//
//   - data: high-volume market data where the latest value matters; a full
//     queue discards the incoming event after a bounded wait (counted, not
//     an error).
//   - signal: trading signals that must not be silently lost; a full queue
//     fails the publish with ErrSaturated after a bounded wait.
//   - order: financially consequential events; a publish blocks until space
//     frees up or the caller's context is cancelled. Never dropped.
//
// Queues are buffered channels - they are the only synchronization
// primitive shared between producers and the processing loops.
package bus

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/randalmurphal/tradepipe/pkg/tradepipe/event"
)

// OverflowPolicy determines what happens when an enqueue cannot proceed
// because the queue is full.
type OverflowPolicy int

const (
	// OverflowDrop waits up to EnqueueTimeout, then discards the incoming
	// event and increments the queue's drop counter. The caller is not
	// blocked indefinitely and sees no error.
	OverflowDrop OverflowPolicy = iota

	// OverflowReject waits up to EnqueueTimeout, then fails the publish
	// with ErrSaturated. Saturation is an operational condition the
	// caller must see, never a silent loss.
	OverflowReject

	// OverflowBlock suspends the publish until space is available or the
	// caller's context is cancelled. The only policy with unbounded wait.
	OverflowBlock
)

// String returns the policy name.
func (p OverflowPolicy) String() string {
	switch p {
	case OverflowDrop:
		return "drop"
	case OverflowReject:
		return "reject"
	case OverflowBlock:
		return "block"
	default:
		return "unknown"
	}
}

// ParsePolicy converts a policy name ("drop", "reject", "block") into
// an OverflowPolicy. Used when queue sets come from config files.
func ParsePolicy(s string) (OverflowPolicy, error) {
	switch s {
	case "drop":
		return OverflowDrop, nil
	case "reject":
		return OverflowReject, nil
	case "block":
		return OverflowBlock, nil
	default:
		return 0, fmt.Errorf("unknown overflow policy %q", s)
	}
}

// Outcome is the result of a publish attempt.
// An explicit outcome type keeps "expected drop" distinct from real
// failures, which are reported through the error return.
type Outcome int

const (
	// Delivered means the event was enqueued in FIFO order.
	Delivered Outcome = iota

	// Dropped means the event was discarded under the drop policy.
	Dropped
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case Dropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Sentinel errors for publish and lifecycle operations.
var (
	// ErrUnknownQueue indicates a publish to a queue name the router was
	// not configured with. A programming error, reported loudly.
	ErrUnknownQueue = errors.New("unknown queue name")

	// ErrSaturated indicates a must-process queue stayed full past its
	// enqueue timeout.
	ErrSaturated = errors.New("queue saturated")

	// ErrAlreadyRunning indicates Start was called on a running router.
	ErrAlreadyRunning = errors.New("router already running")

	// ErrNotRunning indicates Stop or Drain on a router that never started.
	ErrNotRunning = errors.New("router not running")

	// ErrDrainTimeout indicates one or more queues failed to empty before
	// the drain deadline.
	ErrDrainTimeout = errors.New("drain timeout")
)

// QueueConfig declares one bounded queue.
type QueueConfig struct {
	// Name identifies the queue in Publish calls and stats.
	Name string

	// Capacity is the queue bound. Must be positive.
	Capacity int

	// Policy is the overflow behavior when the queue is full.
	Policy OverflowPolicy

	// EnqueueTimeout bounds the wait under the drop and reject policies.
	// Ignored by OverflowBlock.
	EnqueueTimeout time.Duration
}

// QueueStats is a point-in-time snapshot of one queue.
type QueueStats struct {
	Name     string `json:"name"`
	Size     int    `json:"size"`
	Capacity int    `json:"capacity"`
	Drops    int64  `json:"drops"`
}

// queue is a bounded FIFO channel of events with an overflow policy.
// Created once at router construction, drained (not destroyed) at shutdown.
type queue struct {
	name    string
	policy  OverflowPolicy
	timeout time.Duration
	ch      chan event.Event

	// drops counts events discarded under the drop policy. Monotonically
	// non-decreasing for the router's lifetime.
	drops atomic.Int64

	// pending counts events enqueued but not yet fully handled, so a
	// drain can tell "buffer empty" apart from "all work finished".
	pending atomic.Int64
}

func newQueue(cfg QueueConfig) (*queue, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("queue name must not be empty")
	}
	if cfg.Capacity <= 0 {
		return nil, fmt.Errorf("queue %s: capacity must be positive, got %d", cfg.Name, cfg.Capacity)
	}
	if cfg.Policy != OverflowBlock && cfg.EnqueueTimeout < 0 {
		return nil, fmt.Errorf("queue %s: enqueue timeout must not be negative", cfg.Name)
	}
	return &queue{
		name:    cfg.Name,
		policy:  cfg.Policy,
		timeout: cfg.EnqueueTimeout,
		ch:      make(chan event.Event, cfg.Capacity),
	}, nil
}

// enqueue applies the queue's overflow policy.
func (q *queue) enqueue(ctx context.Context, evt event.Event) (Outcome, error) {
	// Fast path: space available.
	select {
	case q.ch <- evt:
		q.pending.Add(1)
		return Delivered, nil
	default:
	}

	switch q.policy {
	case OverflowBlock:
		select {
		case q.ch <- evt:
			q.pending.Add(1)
			return Delivered, nil
		case <-ctx.Done():
			return Dropped, fmt.Errorf("queue %s: blocking publish interrupted: %w", q.name, ctx.Err())
		}

	case OverflowDrop:
		if !q.waitForSpace(ctx, evt) {
			q.drops.Add(1)
			return Dropped, nil
		}
		return Delivered, nil

	case OverflowReject:
		if !q.waitForSpace(ctx, evt) {
			return Dropped, fmt.Errorf("queue %s: %w after %v", q.name, ErrSaturated, q.timeout)
		}
		return Delivered, nil

	default:
		return Dropped, fmt.Errorf("queue %s: unknown overflow policy %d", q.name, q.policy)
	}
}

// waitForSpace waits up to the enqueue timeout for room.
// Reports whether the event was enqueued.
func (q *queue) waitForSpace(ctx context.Context, evt event.Event) bool {
	if q.timeout <= 0 {
		return false
	}

	timer := time.NewTimer(q.timeout)
	defer timer.Stop()

	select {
	case q.ch <- evt:
		q.pending.Add(1)
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// markDone records that a dequeued event finished dispatch.
func (q *queue) markDone() {
	q.pending.Add(-1)
}

// drained reports whether no events are buffered or in flight.
func (q *queue) drained() bool {
	return q.pending.Load() == 0
}

// critical reports whether undelivered contents are financially
// consequential. Block-policy queues are the never-drop class.
func (q *queue) critical() bool {
	return q.policy == OverflowBlock
}

// lossy reports whether the queue carries best-effort work. Handler
// failures on a lossy queue are recoverable; on the others they are
// operationally significant.
func (q *queue) lossy() bool {
	return q.policy == OverflowDrop
}

// stats returns a live snapshot.
func (q *queue) stats() QueueStats {
	return QueueStats{
		Name:     q.name,
		Size:     len(q.ch),
		Capacity: cap(q.ch),
		Drops:    q.drops.Load(),
	}
}
