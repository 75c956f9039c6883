// Package feed provides the reference market data collaborator: a
// simulated feed that emits completed bars on a fixed interval.
//
// Real venue ingestion (WebSocket/REST) is deliberately out of scope;
// any component satisfying the pipeline's Feed contract can replace the
// simulator.
package feed

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/randalmurphal/tradepipe/pkg/tradepipe/event"
	"github.com/randalmurphal/tradepipe/pkg/tradepipe/market"
)

// PublishFunc delivers a bar event into the pipeline. The orchestrator
// injects a closure that targets the data queue, so the feed never
// touches queue names.
type PublishFunc func(ctx context.Context, evt event.Event) error

// Config tunes the simulated feed.
type Config struct {
	// Symbol is the instrument to generate bars for.
	Symbol string

	// Interval between bars. Default: 1s.
	Interval time.Duration

	// StartPrice seeds the random walk. Default: 100.
	StartPrice float64

	// Volatility scales the per-bar price step as a fraction of price.
	// Default: 0.002.
	Volatility float64
}

// DefaultConfig provides reasonable defaults for examples and tests.
var DefaultConfig = Config{
	Symbol:     "BTC-USD",
	Interval:   1 * time.Second,
	StartPrice: 100,
	Volatility: 0.002,
}

// Simulated generates random-walk bars and pushes them into the pipeline.
type Simulated struct {
	cfg     Config
	publish PublishFunc

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewSimulated creates a simulated feed. publish must not be nil.
func NewSimulated(cfg Config, publish PublishFunc) (*Simulated, error) {
	if publish == nil {
		return nil, errors.New("feed requires a publish function")
	}
	if cfg.Symbol == "" {
		cfg.Symbol = DefaultConfig.Symbol
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig.Interval
	}
	if cfg.StartPrice <= 0 {
		cfg.StartPrice = DefaultConfig.StartPrice
	}
	if cfg.Volatility <= 0 {
		cfg.Volatility = DefaultConfig.Volatility
	}
	return &Simulated{cfg: cfg, publish: publish}, nil
}

// Start begins emitting bars. It returns once the feed goroutine is
// scheduled; bars flow until Stop or ctx cancellation.
func (f *Simulated) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.started {
		return errors.New("feed already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.done = make(chan struct{})
	f.started = true

	go f.run(runCtx)
	return nil
}

// Stop halts bar generation and waits for the feed goroutine to exit,
// bounded by ctx.
func (f *Simulated) Stop(ctx context.Context) error {
	f.mu.Lock()
	if !f.started {
		f.mu.Unlock()
		return nil
	}
	f.started = false
	cancel := f.cancel
	done := f.done
	f.mu.Unlock()

	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("feed stop: %w", ctx.Err())
	}
}

func (f *Simulated) run(ctx context.Context) {
	defer close(f.done)

	ticker := time.NewTicker(f.cfg.Interval)
	defer ticker.Stop()

	price := f.cfg.StartPrice
	barStart := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			bar, next := f.nextBar(price, barStart, now)
			price = next
			barStart = now

			evt := event.New(market.EventBarClosed, "feed", bar)
			// Publish failures are the router's concern (drops are
			// counted there); the feed only stops on cancellation.
			_ = f.publish(ctx, evt)
		}
	}
}

// nextBar advances the random walk and returns the completed bar along
// with the closing price to seed the next one.
func (f *Simulated) nextBar(open float64, start, end time.Time) (market.Bar, float64) {
	step := open * f.cfg.Volatility
	close := open + step*(rand.Float64()*2-1)
	high := open + step*rand.Float64()
	low := open - step*rand.Float64()
	if close > high {
		high = close
	}
	if close < low {
		low = close
	}

	bar := market.Bar{
		Symbol: f.cfg.Symbol,
		Open:   open,
		High:   high,
		Low:    low,
		Close:  close,
		Volume: 1 + rand.Float64()*100,
		Start:  start,
		End:    end,
	}
	return bar, close
}
