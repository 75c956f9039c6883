// Package execution provides the reference order-execution collaborators:
// a paper executor that simulates fills with slippage and occasional
// transient venue failures, and a fixed-fraction position sizer.
package execution

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	tperrors "github.com/randalmurphal/tradepipe/pkg/tradepipe/errors"
	"github.com/randalmurphal/tradepipe/pkg/tradepipe/market"
)

// ErrVenueUnavailable simulates a transient venue outage.
var ErrVenueUnavailable = errors.New("venue unavailable")

// PaperConfig tunes the simulated executor.
type PaperConfig struct {
	// SlippageBps is the fill slippage in basis points of the limit price.
	SlippageBps float64

	// TransientRate is the probability in [0, 1] of a transient venue
	// failure per attempt. Retries absorb these.
	TransientRate float64

	// RejectRate is the probability in [0, 1] of a permanent rejection.
	RejectRate float64

	// Latency simulates venue round-trip time per attempt.
	Latency time.Duration

	// Retry governs attempts against transient failures.
	Retry tperrors.RetryConfig
}

// DefaultPaperConfig provides defaults for examples and tests.
var DefaultPaperConfig = PaperConfig{
	SlippageBps:   2,
	TransientRate: 0.05,
	RejectRate:    0.01,
	Latency:       5 * time.Millisecond,
	Retry:         tperrors.DefaultRetry,
}

// Paper is a simulated executor. It fills orders at the limit price
// adjusted for slippage and retries transient venue failures internally,
// so callers see a single Execute outcome per order.
type Paper struct {
	cfg PaperConfig
}

// NewPaper creates a paper executor.
func NewPaper(cfg PaperConfig) *Paper {
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultPaperConfig.Retry
	}
	return &Paper{cfg: cfg}
}

// Execute validates and fills the order. Rejections surface as a
// StatusRejected report with a nil error; only transport-level failures
// (all retries exhausted, context cancelled) return an error.
func (p *Paper) Execute(ctx context.Context, order market.Order) (market.Report, error) {
	if err := order.Validate(); err != nil {
		return market.Report{}, tperrors.Permanent(err, "execution.validate")
	}

	res := tperrors.WithRetryContext(ctx, p.cfg.Retry, func(ctx context.Context) (market.Report, error) {
		return p.attempt(ctx, order)
	})
	if res.Err != nil {
		return market.Report{}, fmt.Errorf("execute order %s after %d attempts: %w", order.ID, res.Attempts, res.Err)
	}
	return res.Value, nil
}

func (p *Paper) attempt(ctx context.Context, order market.Order) (market.Report, error) {
	if p.cfg.Latency > 0 {
		timer := time.NewTimer(p.cfg.Latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return market.Report{}, ctx.Err()
		case <-timer.C:
		}
	}

	if rand.Float64() < p.cfg.TransientRate {
		return market.Report{}, tperrors.Transient(ErrVenueUnavailable, "execution.submit")
	}

	now := time.Now()
	if rand.Float64() < p.cfg.RejectRate {
		return market.Report{
			OrderID: order.ID,
			Symbol:  order.Symbol,
			Status:  market.StatusRejected,
			Reason:  "rejected by venue risk checks",
			At:      now,
		}, nil
	}

	return market.Report{
		OrderID:   order.ID,
		Symbol:    order.Symbol,
		Status:    market.StatusFilled,
		FilledQty: order.Qty,
		AvgPrice:  p.fillPrice(order),
		At:        now,
	}, nil
}

// fillPrice applies slippage against the order direction.
func (p *Paper) fillPrice(order market.Order) float64 {
	slip := order.LimitPrice * p.cfg.SlippageBps / 10000
	if order.Side == market.SideLong {
		return order.LimitPrice + slip
	}
	return order.LimitPrice - slip
}
