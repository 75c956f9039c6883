// Package market defines the domain payloads carried through the pipeline:
// completed bars from the data feed, signals derived by a strategy, and
// orders with their execution reports. The routing core treats all of
// these as opaque payloads.
package market

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event kinds carried on the pipeline queues.
const (
	EventBarClosed       = "bar.closed"
	EventSignalGenerated = "signal.generated"
	EventOrderRequested  = "order.requested"
	EventOrderExecuted   = "order.executed"
)

// Queue names for the three pipeline stages.
const (
	QueueData   = "data"
	QueueSignal = "signal"
	QueueOrder  = "order"
)

// Bar is a completed OHLCV market bar.
type Bar struct {
	Symbol string    `json:"symbol"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

// Side is the direction of a signal or order.
type Side string

// Side constants.
const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Signal is a trading decision derived from market data.
type Signal struct {
	Symbol string `json:"symbol"`

	// Side is the direction to trade.
	Side Side `json:"side"`

	// Confidence in [0, 1]; sizing collaborators may scale exposure by it.
	Confidence float64 `json:"confidence"`

	// Price is the reference price the signal was derived at.
	Price float64 `json:"price"`

	// Reason is a human-readable explanation (e.g., "fast MA crossed above slow MA").
	Reason string `json:"reason,omitempty"`

	At time.Time `json:"at"`
}

// Order is a sized request handed to the execution collaborator.
type Order struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	Qty        float64   `json:"qty"`
	LimitPrice float64   `json:"limit_price,omitempty"`
	SignalID   string    `json:"signal_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewOrder builds an order from a signal and a sized quantity.
func NewOrder(sig Signal, qty float64, signalID string) Order {
	return Order{
		ID:         uuid.New().String(),
		Symbol:     sig.Symbol,
		Side:       sig.Side,
		Qty:        qty,
		LimitPrice: sig.Price,
		SignalID:   signalID,
		CreatedAt:  time.Now(),
	}
}

// ReportStatus is the outcome of an execution attempt.
type ReportStatus string

// Execution outcomes.
const (
	StatusFilled   ReportStatus = "filled"
	StatusPartial  ReportStatus = "partial"
	StatusRejected ReportStatus = "rejected"
)

// Report describes the result of executing an order.
type Report struct {
	OrderID   string       `json:"order_id"`
	Symbol    string       `json:"symbol"`
	Status    ReportStatus `json:"status"`
	FilledQty float64      `json:"filled_qty"`
	AvgPrice  float64      `json:"avg_price"`
	Reason    string       `json:"reason,omitempty"`
	At        time.Time    `json:"at"`
}

// Validate checks basic order sanity before execution.
func (o Order) Validate() error {
	if o.Symbol == "" {
		return fmt.Errorf("order %s: empty symbol", o.ID)
	}
	if o.Side != SideLong && o.Side != SideShort {
		return fmt.Errorf("order %s: invalid side %q", o.ID, o.Side)
	}
	if o.Qty <= 0 {
		return fmt.Errorf("order %s: non-positive quantity %f", o.ID, o.Qty)
	}
	return nil
}
