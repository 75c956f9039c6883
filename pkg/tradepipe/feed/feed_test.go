package feed_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/randalmurphal/tradepipe/pkg/tradepipe/event"
	"github.com/randalmurphal/tradepipe/pkg/tradepipe/feed"
	"github.com/randalmurphal/tradepipe/pkg/tradepipe/market"
)

func TestSimulatedFeedPublishesBars(t *testing.T) {
	var mu sync.Mutex
	var bars []market.Bar

	f, err := feed.NewSimulated(feed.Config{
		Symbol:     "BTC-USD",
		Interval:   5 * time.Millisecond,
		StartPrice: 100,
		Volatility: 0.01,
	}, func(_ context.Context, evt event.Event) error {
		if evt.Type() != market.EventBarClosed {
			t.Errorf("unexpected event type %s", evt.Type())
		}
		bar, ok := evt.Data().(market.Bar)
		if !ok {
			t.Errorf("unexpected payload %T", evt.Data())
			return nil
		}
		mu.Lock()
		bars = append(bars, bar)
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err := f.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(bars)
		mu.Unlock()
		if n >= 3 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := f.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(bars) < 3 {
		t.Fatalf("expected at least 3 bars, got %d", len(bars))
	}
	for i, b := range bars {
		if b.Symbol != "BTC-USD" {
			t.Errorf("bar %d: wrong symbol %s", i, b.Symbol)
		}
		if b.High < b.Open || b.High < b.Close {
			t.Errorf("bar %d: high below open/close: %+v", i, b)
		}
		if b.Low > b.Open || b.Low > b.Close {
			t.Errorf("bar %d: low above open/close: %+v", i, b)
		}
	}
	// Consecutive bars chain: each opens at the previous close.
	for i := 1; i < len(bars); i++ {
		if bars[i].Open != bars[i-1].Close {
			t.Errorf("bar %d does not open at previous close", i)
		}
	}
}

func TestSimulatedFeedLifecycle(t *testing.T) {
	f, err := feed.NewSimulated(feed.DefaultConfig, func(context.Context, event.Event) error {
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	// Stop before start is a no-op.
	if err := f.Stop(context.Background()); err != nil {
		t.Fatalf("stop before start: %v", err)
	}

	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := f.Start(context.Background()); err == nil {
		t.Fatal("expected error for double start")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := f.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestSimulatedFeedRequiresPublish(t *testing.T) {
	if _, err := feed.NewSimulated(feed.DefaultConfig, nil); err == nil {
		t.Fatal("expected error for nil publish function")
	}
}
