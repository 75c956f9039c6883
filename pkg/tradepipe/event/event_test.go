package event_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/randalmurphal/tradepipe/pkg/tradepipe/event"
)

type tick struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

func TestNewEvent(t *testing.T) {
	evt := event.New("bar.closed", "feed", tick{Symbol: "BTC-USD", Price: 100.5})

	if evt.Type() != "bar.closed" {
		t.Errorf("expected type bar.closed, got %s", evt.Type())
	}
	if evt.Source() != "feed" {
		t.Errorf("expected source feed, got %s", evt.Source())
	}
	if evt.ID() == "" {
		t.Error("expected generated event ID")
	}
	// A root event correlates to itself.
	if evt.CorrelationID() != evt.ID() {
		t.Errorf("expected correlation %s, got %s", evt.ID(), evt.CorrelationID())
	}
	if evt.CausationID() != "" {
		t.Errorf("expected empty causation for root event, got %s", evt.CausationID())
	}
	if evt.Timestamp().IsZero() {
		t.Error("expected non-zero timestamp")
	}

	data := evt.TypedData()
	if data.Symbol != "BTC-USD" || data.Price != 100.5 {
		t.Errorf("payload mismatch: %+v", data)
	}
}

func TestNewEventOptions(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	evt := event.New("bar.closed", "feed", tick{},
		event.WithEventID("evt-1"),
		event.WithCorrelationID("corr-1"),
		event.WithCausationID("cause-1"),
		event.WithTimestamp(at),
	)

	if evt.ID() != "evt-1" {
		t.Errorf("expected evt-1, got %s", evt.ID())
	}
	if evt.CorrelationID() != "corr-1" {
		t.Errorf("expected corr-1, got %s", evt.CorrelationID())
	}
	if evt.CausationID() != "cause-1" {
		t.Errorf("expected cause-1, got %s", evt.CausationID())
	}
	if !evt.Timestamp().Equal(at) {
		t.Errorf("expected %v, got %v", at, evt.Timestamp())
	}
}

func TestNewFromParent(t *testing.T) {
	parent := event.New("bar.closed", "feed", tick{Symbol: "BTC-USD"})
	child := event.NewFromParent(parent, "signal.generated", "strategy", tick{Symbol: "BTC-USD"})

	if child.CorrelationID() != parent.CorrelationID() {
		t.Errorf("child must inherit correlation: got %s, want %s",
			child.CorrelationID(), parent.CorrelationID())
	}
	if child.CausationID() != parent.ID() {
		t.Errorf("child causation must be parent ID: got %s, want %s",
			child.CausationID(), parent.ID())
	}
	if child.ID() == parent.ID() {
		t.Error("child must get its own ID")
	}
}

func TestEventJSONRoundTrip(t *testing.T) {
	evt := event.New("bar.closed", "feed", tick{Symbol: "ETH-USD", Price: 42})

	raw, err := json.Marshal(evt)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded event.BaseEvent[tick]
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded.ID() != evt.ID() || decoded.Type() != evt.Type() {
		t.Errorf("metadata lost in round trip: %+v", decoded.Meta)
	}
	if decoded.TypedData() != evt.TypedData() {
		t.Errorf("payload lost in round trip: %+v", decoded.TypedData())
	}
}

func TestHandlerFuncName(t *testing.T) {
	named := event.HandlerFunc{ID: "executor", Fn: func(context.Context, event.Event) ([]event.Event, error) {
		return nil, nil
	}}
	if named.Name() != "executor" {
		t.Errorf("expected executor, got %s", named.Name())
	}

	anon := event.HandlerFunc{Fn: func(context.Context, event.Event) ([]event.Event, error) {
		return nil, nil
	}}
	if anon.Name() != "anonymous" {
		t.Errorf("expected anonymous, got %s", anon.Name())
	}
}

func TestTypedHandler(t *testing.T) {
	h := event.TypedHandler("pricer", func(_ context.Context, payload tick, meta event.Metadata) ([]event.Event, error) {
		if payload.Symbol != "BTC-USD" {
			return nil, errors.New("wrong payload")
		}
		if meta.EventType != "bar.closed" {
			return nil, errors.New("wrong metadata")
		}
		return nil, nil
	})

	if h.Name() != "pricer" {
		t.Errorf("expected pricer, got %s", h.Name())
	}

	evt := event.New("bar.closed", "feed", tick{Symbol: "BTC-USD"})
	if _, err := h.Handle(context.Background(), evt); err != nil {
		t.Fatalf("handle: %v", err)
	}
}

func TestTypedHandlerRejectsWrongPayload(t *testing.T) {
	h := event.TypedHandler("pricer", func(_ context.Context, payload tick, _ event.Metadata) ([]event.Event, error) {
		return nil, nil
	})

	evt := event.NewAny("bar.closed", "feed", 12345)
	if _, err := h.Handle(context.Background(), evt); err == nil {
		t.Fatal("expected error for incompatible payload type")
	}
}
