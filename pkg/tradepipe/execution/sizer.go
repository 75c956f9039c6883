package execution

import (
	"context"
	"fmt"

	"github.com/randalmurphal/tradepipe/pkg/tradepipe/market"
)

// FixedFraction sizes every order as a fixed fraction of a notional
// equity figure, scaled by signal confidence.
type FixedFraction struct {
	// Equity is the notional account value to size against.
	Equity float64

	// Fraction of equity to commit per trade, in (0, 1].
	Fraction float64
}

// NewFixedFraction creates a fixed-fraction sizer.
func NewFixedFraction(equity, fraction float64) (*FixedFraction, error) {
	if equity <= 0 {
		return nil, fmt.Errorf("equity must be positive, got %v", equity)
	}
	if fraction <= 0 || fraction > 1 {
		return nil, fmt.Errorf("fraction must be in (0, 1], got %v", fraction)
	}
	return &FixedFraction{Equity: equity, Fraction: fraction}, nil
}

// Size returns the quantity to trade for the signal. A zero quantity
// means the signal should be skipped.
func (s *FixedFraction) Size(ctx context.Context, sig market.Signal) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if sig.Price <= 0 {
		return 0, fmt.Errorf("signal for %s has non-positive price %v", sig.Symbol, sig.Price)
	}

	notional := s.Equity * s.Fraction
	if sig.Confidence > 0 {
		notional *= sig.Confidence
	}
	return notional / sig.Price, nil
}
