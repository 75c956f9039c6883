package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/randalmurphal/tradepipe/pkg/tradepipe/audit"
	"github.com/randalmurphal/tradepipe/pkg/tradepipe/bus"
	"github.com/randalmurphal/tradepipe/pkg/tradepipe/event"
	"github.com/randalmurphal/tradepipe/pkg/tradepipe/market"
	"github.com/randalmurphal/tradepipe/pkg/tradepipe/observability"
)

// Options configures the orchestrator's infrastructure. Collaborators
// are passed to New separately.
type Options struct {
	// Queues declares the pipeline's queue set. Default: DefaultQueues().
	Queues []bus.QueueConfig

	// Logger receives structured events from the router and lifecycle
	// transitions. Nil disables logging.
	Logger *slog.Logger

	// Metrics records publish outcomes and dispatch latency.
	Metrics observability.MetricsRecorder

	// Spans traces dispatches.
	Spans observability.SpanManager

	// Audit persists drops, saturation, handler failures, and lifecycle
	// transitions. Nil disables auditing. The caller owns the sink's
	// lifetime.
	Audit audit.Sink

	// DrainTimeout bounds the shutdown drain. Default: 5s.
	DrainTimeout time.Duration

	// DrainInterval is forwarded to the router.
	DrainInterval time.Duration
}

// DefaultDrainTimeout bounds queue draining during Shutdown.
const DefaultDrainTimeout = 5 * time.Second

// DefaultQueues returns the standard three-queue set: lossy market data,
// saturating signals, and never-dropped orders.
func DefaultQueues() []bus.QueueConfig {
	return []bus.QueueConfig{
		{Name: market.QueueData, Capacity: 256, Policy: bus.OverflowDrop, EnqueueTimeout: 50 * time.Millisecond},
		{Name: market.QueueSignal, Capacity: 64, Policy: bus.OverflowReject, EnqueueTimeout: 250 * time.Millisecond},
		{Name: market.QueueOrder, Capacity: 16, Policy: bus.OverflowBlock},
	}
}

// Orchestrator wires the collaborators to the router and drives the run
// lifecycle: New -> Init -> Start -> Shutdown. Each transition is a CAS
// on the state, so concurrent Shutdown calls collapse into one.
type Orchestrator struct {
	opts Options

	newFeed  FeedFactory
	strategy Strategy
	sizer    Sizer
	executor Executor

	registry *event.Registry
	router   *bus.Router
	feed     Feed

	state    atomic.Int32
	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	doneOnce sync.Once
}

// New creates an orchestrator in StateCreated. All four collaborators
// are required.
func New(newFeed FeedFactory, strategy Strategy, sizer Sizer, executor Executor, opts Options) (*Orchestrator, error) {
	if newFeed == nil {
		return nil, fmt.Errorf("pipeline: feed factory is required")
	}
	if strategy == nil {
		return nil, fmt.Errorf("pipeline: strategy is required")
	}
	if sizer == nil {
		return nil, fmt.Errorf("pipeline: sizer is required")
	}
	if executor == nil {
		return nil, fmt.Errorf("pipeline: executor is required")
	}

	if len(opts.Queues) == 0 {
		opts.Queues = DefaultQueues()
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = DefaultDrainTimeout
	}

	o := &Orchestrator{
		opts:     opts,
		newFeed:  newFeed,
		strategy: strategy,
		sizer:    sizer,
		executor: executor,
		done:     make(chan struct{}),
	}
	o.state.Store(int32(StateCreated))
	return o, nil
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// Router exposes the underlying router for publishing and stats. Nil
// before Init.
func (o *Orchestrator) Router() *bus.Router {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.router
}

// Stats snapshots the queue set. Nil before Init.
func (o *Orchestrator) Stats() []bus.QueueStats {
	r := o.Router()
	if r == nil {
		return nil
	}
	return r.Stats()
}

// Init builds the registry, the router, and the feed, and wires the
// collaborators as handlers. Valid only in StateCreated.
func (o *Orchestrator) Init() error {
	if !o.transition(StateCreated, StateInitialized) {
		return fmt.Errorf("init from %s: %w", o.State(), ErrInvalidState)
	}

	registry := buildRegistry()

	router, err := bus.NewRouter(bus.RouterConfig{
		Queues:         o.opts.Queues,
		Registry:       registry,
		Logger:         o.opts.Logger,
		Metrics:        o.opts.Metrics,
		Spans:          o.opts.Spans,
		OnDrop:         o.onDrop,
		OnSaturated:    o.onSaturated,
		OnHandlerError: o.onHandlerError,
		DrainInterval:  o.opts.DrainInterval,
	})
	if err != nil {
		o.fail()
		return fmt.Errorf("build router: %w", err)
	}

	o.subscribe(router)
	if err := o.wireRoutes(router); err != nil {
		o.fail()
		return err
	}

	feed, err := o.newFeed(func(ctx context.Context, evt event.Event) error {
		_, err := router.Publish(ctx, evt, market.QueueData)
		return err
	})
	if err != nil {
		o.fail()
		return fmt.Errorf("build feed: %w", err)
	}

	o.mu.Lock()
	o.registry = registry
	o.router = router
	o.feed = feed
	o.mu.Unlock()
	return nil
}

// Start launches the processing loops and the feed. Valid only in
// StateInitialized. The loops deliberately detach from ctx's
// cancellation (values carry over) so that a cancelled run can still
// drain its queues; Shutdown is the only way to stop the pipeline.
func (o *Orchestrator) Start(ctx context.Context) error {
	if !o.transition(StateInitialized, StateRunning) {
		return fmt.Errorf("start from %s: %w", o.State(), ErrInvalidState)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	o.mu.Lock()
	o.cancel = cancel
	router, feed := o.router, o.feed
	o.mu.Unlock()

	if err := router.Start(runCtx); err != nil {
		cancel()
		o.fail()
		return fmt.Errorf("start router: %w", err)
	}

	if err := feed.Start(runCtx); err != nil {
		router.Stop()
		cancel()
		o.fail()
		return fmt.Errorf("start feed: %w", err)
	}

	return nil
}

// Run starts the pipeline and blocks until ctx is cancelled, then
// performs an orderly shutdown. A convenience wrapper over Start and
// Shutdown for command-line entry points.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), o.opts.DrainTimeout+time.Second)
	defer cancel()
	return o.Shutdown(shutdownCtx)
}

// Shutdown stops the pipeline in order: feed first, then a bounded
// drain, then the processing loops. Idempotent; concurrent callers past
// the first wait for the same shutdown to finish.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	if !o.transition(StateRunning, StateStopping) {
		// A pipeline that was built but never started has nothing to
		// drain; stop it directly.
		if o.transition(StateInitialized, StateStopped) {
			o.doneOnce.Do(func() { close(o.done) })
			return nil
		}
		switch o.State() {
		case StateStopping, StateStopped:
			if o.opts.Logger != nil {
				o.opts.Logger.Debug("shutdown already requested",
					slog.String("state", o.State().String()),
				)
			}
			<-o.done
			return nil
		default:
			return fmt.Errorf("shutdown from %s: %w", o.State(), ErrInvalidState)
		}
	}
	defer o.doneOnce.Do(func() { close(o.done) })

	o.mu.Lock()
	router, feed, cancel := o.router, o.feed, o.cancel
	o.mu.Unlock()

	var firstErr error

	if err := feed.Stop(ctx); err != nil {
		firstErr = fmt.Errorf("stop feed: %w", err)
	}

	drainCtx, drainCancel := context.WithTimeout(ctx, o.opts.DrainTimeout)
	if err := router.Drain(drainCtx); err != nil {
		o.record(audit.Entry{
			At:     time.Now(),
			Kind:   audit.KindDrainTimeout,
			Detail: err.Error(),
		})
		if firstErr == nil {
			firstErr = err
		}
	}
	drainCancel()

	router.Stop()
	if cancel != nil {
		cancel()
	}

	o.transition(StateStopping, StateStopped)
	return firstErr
}

// fail moves the orchestrator straight to StateStopped after a setup
// error, releasing anyone waiting in Shutdown.
func (o *Orchestrator) fail() {
	o.state.Store(int32(StateStopped))
	o.doneOnce.Do(func() { close(o.done) })
}

// transition performs a CAS between lifecycle states and records the
// change when it succeeds.
func (o *Orchestrator) transition(from, to State) bool {
	if !o.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	observability.LogLifecycle(o.opts.Logger, from.String(), to.String())
	o.record(audit.Entry{
		At:     time.Now(),
		Kind:   audit.KindLifecycle,
		Detail: fmt.Sprintf("%s -> %s", from, to),
	})
	return true
}

// subscribe registers the collaborator bridge handlers. Bars feed the
// strategy, signals feed the sizer, orders feed the executor, and
// execution reports are logged. Handlers return derived events rather
// than publishing, so a slow downstream queue can never deadlock a
// processing loop.
func (o *Orchestrator) subscribe(router *bus.Router) {
	logger := o.opts.Logger

	router.Subscribe(market.EventBarClosed, event.TypedHandler(o.strategy.Name(),
		func(ctx context.Context, bar market.Bar, meta event.Metadata) ([]event.Event, error) {
			sig, err := o.strategy.Evaluate(ctx, bar)
			if err != nil {
				return nil, fmt.Errorf("evaluate bar: %w", err)
			}
			if sig == nil {
				return nil, nil
			}
			evt := event.New(market.EventSignalGenerated, "strategy", *sig,
				event.WithCorrelationID(meta.CorrelationID),
				event.WithCausationID(meta.EventID))
			return []event.Event{evt}, nil
		}))

	router.Subscribe(market.EventSignalGenerated, event.TypedHandler("sizer",
		func(ctx context.Context, sig market.Signal, meta event.Metadata) ([]event.Event, error) {
			qty, err := o.sizer.Size(ctx, sig)
			if err != nil {
				return nil, fmt.Errorf("size signal: %w", err)
			}
			if qty <= 0 {
				return nil, nil
			}
			order := market.NewOrder(sig, qty, meta.EventID)
			evt := event.New(market.EventOrderRequested, "sizer", order,
				event.WithCorrelationID(meta.CorrelationID),
				event.WithCausationID(meta.EventID))
			return []event.Event{evt}, nil
		}))

	router.Subscribe(market.EventOrderRequested, event.TypedHandler("executor",
		func(ctx context.Context, order market.Order, meta event.Metadata) ([]event.Event, error) {
			report, err := o.executor.Execute(ctx, order)
			if err != nil {
				return nil, fmt.Errorf("execute order %s: %w", order.ID, err)
			}
			evt := event.New(market.EventOrderExecuted, "executor", report,
				event.WithCorrelationID(meta.CorrelationID),
				event.WithCausationID(meta.EventID))
			return []event.Event{evt}, nil
		}))

	router.Subscribe(market.EventOrderExecuted, event.TypedHandler("report",
		func(_ context.Context, report market.Report, meta event.Metadata) ([]event.Event, error) {
			if logger != nil {
				logger.Info("order executed",
					slog.String("order_id", report.OrderID),
					slog.String("symbol", report.Symbol),
					slog.String("status", string(report.Status)),
					slog.Float64("filled_qty", report.FilledQty),
					slog.Float64("avg_price", report.AvgPrice),
					slog.String("correlation_id", meta.CorrelationID),
				)
			}
			return nil, nil
		}))
}

// wireRoutes maps derived event kinds to their target queues.
func (o *Orchestrator) wireRoutes(router *bus.Router) error {
	routes := map[string]string{
		market.EventSignalGenerated: market.QueueSignal,
		market.EventOrderRequested:  market.QueueOrder,
		market.EventOrderExecuted:   market.QueueOrder,
	}
	for eventType, queueName := range routes {
		if err := router.RouteTo(eventType, queueName); err != nil {
			return fmt.Errorf("route %s: %w", eventType, err)
		}
	}
	return nil
}

func (o *Orchestrator) onDrop(evt event.Event, queueName string) {
	o.record(audit.Entry{
		At:        time.Now(),
		Kind:      audit.KindDrop,
		Queue:     queueName,
		EventType: evt.Type(),
		EventID:   evt.ID(),
	})
}

func (o *Orchestrator) onSaturated(evt event.Event, queueName string) {
	o.record(audit.Entry{
		At:        time.Now(),
		Kind:      audit.KindSaturation,
		Queue:     queueName,
		EventType: evt.Type(),
		EventID:   evt.ID(),
	})
}

func (o *Orchestrator) onHandlerError(evt event.Event, queueName, handler string, err error) {
	o.record(audit.Entry{
		At:        time.Now(),
		Kind:      audit.KindHandlerError,
		Queue:     queueName,
		EventType: evt.Type(),
		EventID:   evt.ID(),
		Handler:   handler,
		Detail:    err.Error(),
	})
}

// record writes an audit entry, swallowing sink errors after logging
// them. Auditing must never interfere with the pipeline itself.
func (o *Orchestrator) record(e audit.Entry) {
	if o.opts.Audit == nil {
		return
	}
	if err := o.opts.Audit.Record(context.Background(), e); err != nil && o.opts.Logger != nil {
		o.opts.Logger.Warn("audit record failed",
			slog.String("kind", string(e.Kind)),
			slog.String("error", err.Error()),
		)
	}
}

// buildRegistry declares the pipeline's closed event set.
func buildRegistry() *event.Registry {
	r := event.NewRegistry()
	r.MustRegister(&event.Schema{
		Type:        market.EventBarClosed,
		Source:      "feed",
		Description: "a completed OHLCV bar",
		PayloadType: market.Bar{},
	})
	r.MustRegister(&event.Schema{
		Type:        market.EventSignalGenerated,
		Source:      "strategy",
		Description: "a trading decision derived from market data",
		PayloadType: market.Signal{},
	})
	r.MustRegister(&event.Schema{
		Type:        market.EventOrderRequested,
		Source:      "sizer",
		Description: "a sized order awaiting execution",
		PayloadType: market.Order{},
	})
	r.MustRegister(&event.Schema{
		Type:        market.EventOrderExecuted,
		Source:      "executor",
		Description: "the terminal outcome of an order",
		PayloadType: market.Report{},
	})
	return r
}
