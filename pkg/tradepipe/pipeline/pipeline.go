// Package pipeline assembles the trading agent: it owns the router, the
// event registry, and the four collaborators (feed, strategy, sizer,
// executor), and drives them through an explicit lifecycle.
//
// Collaborators never touch queues directly. The feed publishes through
// an injected closure; everything downstream reacts to dispatched events
// and hands derived events back to the routing loop.
package pipeline

import (
	"context"

	"github.com/randalmurphal/tradepipe/pkg/tradepipe/event"
	"github.com/randalmurphal/tradepipe/pkg/tradepipe/market"
)

// Feed produces market data events for the duration of a run. Start
// returns once production is scheduled; Stop halts production and waits
// for in-flight publishes, bounded by ctx.
type Feed interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// FeedFactory builds a feed around the pipeline's publish path. The
// orchestrator calls it during Init, once the router exists.
type FeedFactory func(publish func(ctx context.Context, evt event.Event) error) (Feed, error)

// Strategy turns completed bars into trading decisions. Returning a nil
// signal means no action for this bar.
type Strategy interface {
	Evaluate(ctx context.Context, bar market.Bar) (*market.Signal, error)
	Name() string
}

// Sizer converts a signal into an order quantity. A zero quantity skips
// the signal.
type Sizer interface {
	Size(ctx context.Context, sig market.Signal) (float64, error)
}

// Executor submits an order and reports the outcome. Implementations
// own their retry behavior; Execute returns once the order reached a
// terminal state or submission failed outright.
type Executor interface {
	Execute(ctx context.Context, order market.Order) (market.Report, error)
}
