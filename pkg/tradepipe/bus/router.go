package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/randalmurphal/tradepipe/pkg/tradepipe/event"
	"github.com/randalmurphal/tradepipe/pkg/tradepipe/observability"
)

// RouterConfig configures the event router.
type RouterConfig struct {
	// Queues declares the fixed queue set. At least one is required;
	// names must be unique.
	Queues []QueueConfig

	// Registry optionally validates published events against the closed
	// set of event kinds. Publishing an unregistered type fails loudly.
	Registry *event.Registry

	// Logger receives structured notifications for every lifecycle
	// transition, drop, saturation failure, and handler failure.
	// Nil disables logging.
	Logger *slog.Logger

	// Metrics records publish outcomes and dispatch latency.
	// Default: NoopMetrics.
	Metrics observability.MetricsRecorder

	// Spans traces each dispatch. Default: NoopSpanManager.
	Spans observability.SpanManager

	// OnDrop is called when an event is discarded under the drop policy.
	OnDrop func(evt event.Event, queueName string)

	// OnSaturated is called when a publish is rejected because a
	// must-process queue stayed full past its timeout.
	OnSaturated func(evt event.Event, queueName string)

	// OnHandlerError is called when a handler fails or panics.
	// Dispatch continues regardless.
	OnHandlerError func(evt event.Event, queueName, handler string, err error)

	// DrainInterval is how often Drain re-checks queue emptiness.
	// Default: 10ms.
	DrainInterval time.Duration
}

// DefaultDrainInterval is the emptiness re-check period during Drain.
const DefaultDrainInterval = 10 * time.Millisecond

// Router owns the subscriber registry and the queue set. It runs one
// processing loop per queue and dispatches dequeued events to handlers
// in registration order.
type Router struct {
	cfg     RouterConfig
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager

	queues    map[string]*queue
	queueSeq  []string // declared order, for stats
	routes    map[string]string

	// subs is mutated only before Start; the hot dispatch path reads the
	// immutable table snapshot taken at Start, so loops need no lock.
	mu    sync.Mutex
	subs  map[string][]event.Handler
	table map[string][]event.Handler

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRouter creates a router with its full queue set. Queues live for the
// router's entire lifetime; they are drained, not destroyed, at shutdown.
func NewRouter(cfg RouterConfig) (*Router, error) {
	if len(cfg.Queues) == 0 {
		return nil, fmt.Errorf("router requires at least one queue")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NoopMetrics{}
	}
	if cfg.Spans == nil {
		cfg.Spans = observability.NoopSpanManager{}
	}
	if cfg.DrainInterval <= 0 {
		cfg.DrainInterval = DefaultDrainInterval
	}

	r := &Router{
		cfg:     cfg,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		spans:   cfg.Spans,
		queues:  make(map[string]*queue, len(cfg.Queues)),
		routes:  make(map[string]string),
		subs:    make(map[string][]event.Handler),
	}

	for _, qc := range cfg.Queues {
		if _, dup := r.queues[qc.Name]; dup {
			return nil, fmt.Errorf("duplicate queue name: %s", qc.Name)
		}
		q, err := newQueue(qc)
		if err != nil {
			return nil, err
		}
		r.queues[qc.Name] = q
		r.queueSeq = append(r.queueSeq, qc.Name)
	}

	return r, nil
}

// Subscribe appends a handler for an event type. Registration order is
// dispatch order. Handlers must be registered before Start: the running
// loops read an immutable snapshot, so later registrations are rejected
// with a warning rather than racing the hot path.
func (r *Router) Subscribe(eventType string, h event.Handler) {
	if h == nil {
		return
	}
	if r.running.Load() {
		if r.logger != nil {
			r.logger.Warn("subscribe ignored: router already running",
				slog.String("event_type", eventType),
				slog.String("handler", h.Name()),
			)
		}
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[eventType] = append(r.subs[eventType], h)
}

// RouteTo declares the target queue for derived events of the given type.
// Processing loops publish handler-derived events through this table, so
// handlers never enqueue directly.
func (r *Router) RouteTo(eventType, queueName string) error {
	if _, ok := r.queues[queueName]; !ok {
		return fmt.Errorf("route %s: %w: %s", eventType, ErrUnknownQueue, queueName)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[eventType] = queueName
	return nil
}

// Publish enqueues an event onto the named queue, applying that queue's
// overflow policy. The returned Outcome distinguishes a counted drop
// (Dropped, nil) from delivery; saturation and configuration problems are
// errors.
func (r *Router) Publish(ctx context.Context, evt event.Event, queueName string) (Outcome, error) {
	q, ok := r.queues[queueName]
	if !ok {
		return Dropped, fmt.Errorf("publish %s: %w: %s", evt.Type(), ErrUnknownQueue, queueName)
	}

	if r.cfg.Registry != nil {
		if err := r.cfg.Registry.Validate(evt); err != nil {
			return Dropped, fmt.Errorf("publish to %s: %w", queueName, err)
		}
	}

	outcome, err := q.enqueue(ctx, evt)
	switch {
	case err != nil:
		if errors.Is(err, ErrSaturated) {
			observability.LogQueueSaturated(r.logger, q.name, evt.Type(), q.timeout)
			r.metrics.RecordPublish(ctx, q.name, "saturated")
			if r.cfg.OnSaturated != nil {
				r.cfg.OnSaturated(evt, q.name)
			}
		} else {
			r.metrics.RecordPublish(ctx, q.name, "failed")
		}
	case outcome == Dropped:
		observability.LogQueueDrop(r.logger, q.name, evt.Type(), evt.ID(), q.drops.Load())
		r.metrics.RecordPublish(ctx, q.name, "dropped")
		if r.cfg.OnDrop != nil {
			r.cfg.OnDrop(evt, q.name)
		}
	default:
		r.metrics.RecordPublish(ctx, q.name, "delivered")
	}
	return outcome, err
}

// Start launches one processing loop per queue. The loops run until Stop
// or cancellation of ctx.
func (r *Router) Start(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	// Freeze the subscriber registry so dispatch needs no lock. cancel
	// is published under the same lock so a concurrent Stop never reads
	// a stale value.
	loopCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.table = make(map[string][]event.Handler, len(r.subs))
	for t, hs := range r.subs {
		r.table[t] = append([]event.Handler(nil), hs...)
	}
	r.cancel = cancel
	r.mu.Unlock()

	for _, name := range r.queueSeq {
		q := r.queues[name]
		r.wg.Add(1)
		go r.runLoop(loopCtx, q)
	}

	observability.LogRouterStart(r.logger, r.queueSeq)
	return nil
}

// Stop halts all processing loops cooperatively and waits for them to
// exit. Idempotent: a second call is a no-op.
func (r *Router) Stop() {
	if !r.running.CompareAndSwap(true, false) {
		return
	}

	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	// cancel is nil only when Stop outraced a concurrent Start; there
	// are no loops to interrupt yet.
	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
	observability.LogRouterStop(r.logger)
}

// Drain waits until every queue is empty and all in-flight dispatches have
// finished, or until ctx is done. On timeout it reports the undrained
// queues, calling out the critical (never-drop) queues whose contents
// represent undelivered consequential events. Shutdown proceeds either way.
func (r *Router) Drain(ctx context.Context) error {
	start := time.Now()
	ticker := time.NewTicker(r.cfg.DrainInterval)
	defer ticker.Stop()

	for {
		if r.allDrained() {
			observability.LogDrainComplete(r.logger, time.Since(start))
			return nil
		}

		select {
		case <-ctx.Done():
			return r.drainTimeoutError()
		case <-ticker.C:
		}
	}
}

func (r *Router) allDrained() bool {
	for _, q := range r.queues {
		if !q.drained() {
			return false
		}
	}
	return true
}

func (r *Router) drainTimeoutError() error {
	var stuck, criticalStuck []string
	for _, name := range r.queueSeq {
		q := r.queues[name]
		if q.drained() {
			continue
		}
		remaining := int(q.pending.Load())
		observability.LogDrainTimeout(r.logger, q.name, remaining, q.critical())
		if q.critical() {
			criticalStuck = append(criticalStuck, fmt.Sprintf("%s(%d undelivered)", q.name, remaining))
		} else {
			stuck = append(stuck, fmt.Sprintf("%s(%d)", q.name, remaining))
		}
	}

	if len(criticalStuck) > 0 {
		return fmt.Errorf("%w: critical queues not empty: %s; others: %s",
			ErrDrainTimeout, strings.Join(criticalStuck, ", "), strings.Join(stuck, ", "))
	}
	return fmt.Errorf("%w: queues not empty: %s", ErrDrainTimeout, strings.Join(stuck, ", "))
}

// Stats returns a live snapshot of every queue in declared order.
func (r *Router) Stats() []QueueStats {
	out := make([]QueueStats, 0, len(r.queueSeq))
	for _, name := range r.queueSeq {
		out = append(out, r.queues[name].stats())
	}
	return out
}

// QueueNames returns the configured queue names in declared order.
func (r *Router) QueueNames() []string {
	return append([]string(nil), r.queueSeq...)
}

// runLoop is the per-queue processing loop. It blocks on the queue channel
// (context cancellation interrupts the wait, no polling) and dispatches
// each event to the subscribed handlers sequentially.
func (r *Router) runLoop(ctx context.Context, q *queue) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-q.ch:
			r.metrics.RecordQueueDepth(ctx, q.name, int64(len(q.ch)))
			r.dispatch(ctx, q, evt)
			q.markDone()
		}
	}
}

// dispatch invokes every handler registered for the event's type, in
// registration order, sequentially. A handler failure or panic is logged
// with the event type and handler identity and never stops subsequent
// handlers or events. Derived events are published to their routed queues
// on the handler's behalf.
func (r *Router) dispatch(ctx context.Context, q *queue, evt event.Event) {
	start := time.Now()
	dctx, span := r.spans.StartDispatchSpan(ctx, q.name, evt.Type(), evt.ID())

	handlers := r.table[evt.Type()]
	failures := 0
	var firstErr error

	for _, h := range handlers {
		derived, err := r.invoke(dctx, q, h, evt)
		if err != nil {
			failures++
			if firstErr == nil {
				firstErr = err
			}
			observability.LogHandlerError(r.logger, q.name, evt.Type(), evt.ID(), h.Name(), err, q.lossy())
			if r.cfg.OnHandlerError != nil {
				r.cfg.OnHandlerError(evt, q.name, h.Name(), err)
			}
			continue
		}

		for _, d := range derived {
			r.publishDerived(dctx, q, d)
		}
	}

	elapsed := time.Since(start)
	r.metrics.RecordDispatch(dctx, q.name, evt.Type(), elapsed, failures)
	r.spans.EndSpanWithError(span, firstErr)
	observability.LogDispatch(r.logger, q.name, evt.Type(), len(handlers),
		float64(elapsed.Microseconds())/1000.0)
}

// invoke runs one handler with panic isolation.
func (r *Router) invoke(ctx context.Context, q *queue, h event.Handler, evt event.Event) (derived []event.Event, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			observability.LogHandlerPanic(r.logger, q.name, evt.Type(), h.Name(), rec)
			derived = nil
			err = fmt.Errorf("handler %s panicked: %v", h.Name(), rec)
		}
	}()

	return h.Handle(ctx, evt)
}

// publishDerived forwards a handler-derived event to its routed queue.
// A missing route is a configuration error, logged loudly. A saturated
// forward is already surfaced through OnSaturated inside Publish; other
// forward failures go through OnHandlerError so the audit trail can
// reconstruct what was lost.
func (r *Router) publishDerived(ctx context.Context, from *queue, evt event.Event) {
	r.mu.Lock()
	target, ok := r.routes[evt.Type()]
	r.mu.Unlock()

	if !ok {
		if r.logger != nil {
			r.logger.Error("no route for derived event",
				slog.String("from_queue", from.name),
				slog.String("event_type", evt.Type()),
				slog.String("event_id", evt.ID()),
			)
		}
		return
	}

	if _, err := r.Publish(ctx, evt, target); err != nil && !errors.Is(err, ErrSaturated) {
		if r.cfg.OnHandlerError != nil {
			r.cfg.OnHandlerError(evt, target, "router.forward", err)
		}
	}
}
