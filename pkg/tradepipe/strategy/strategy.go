// Package strategy provides the reference signal-generation collaborator:
// a moving-average crossover over the incoming bar stream. Strategies
// return at most one signal per bar; returning nil means no action.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/randalmurphal/tradepipe/pkg/tradepipe/market"
)

// Crossover emits a long signal when the fast moving average crosses
// above the slow one, and a short signal on the opposite cross. It is
// safe for concurrent use, though the pipeline evaluates bars
// sequentially per queue.
type Crossover struct {
	fastN int
	slowN int

	mu      sync.Mutex
	prices  []float64
	lastPos int // -1 fast below slow, +1 fast above, 0 unknown
}

// NewCrossover creates a crossover strategy with the given window
// lengths. fast must be shorter than slow.
func NewCrossover(fast, slow int) (*Crossover, error) {
	if fast <= 0 || slow <= 0 {
		return nil, errors.New("crossover windows must be positive")
	}
	if fast >= slow {
		return nil, fmt.Errorf("fast window %d must be shorter than slow window %d", fast, slow)
	}
	return &Crossover{fastN: fast, slowN: slow}, nil
}

// Evaluate feeds one completed bar into the strategy. It returns a
// signal only on a crossover, nil otherwise.
func (s *Crossover) Evaluate(ctx context.Context, bar market.Bar) (*market.Signal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if bar.Close <= 0 {
		return nil, fmt.Errorf("bar for %s has non-positive close %v", bar.Symbol, bar.Close)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.prices = append(s.prices, bar.Close)
	if len(s.prices) > s.slowN {
		s.prices = s.prices[len(s.prices)-s.slowN:]
	}
	if len(s.prices) < s.slowN {
		return nil, nil
	}

	fast := mean(s.prices[len(s.prices)-s.fastN:])
	slow := mean(s.prices)

	pos := 0
	switch {
	case fast > slow:
		pos = 1
	case fast < slow:
		pos = -1
	}

	prev := s.lastPos
	s.lastPos = pos

	// A signal requires an actual cross, not just the first position we see.
	if prev == 0 || pos == 0 || pos == prev {
		return nil, nil
	}

	side := market.SideLong
	reason := "fast MA crossed above slow MA"
	if pos < 0 {
		side = market.SideShort
		reason = "fast MA crossed below slow MA"
	}

	return &market.Signal{
		Symbol:     bar.Symbol,
		Side:       side,
		Confidence: confidence(fast, slow),
		Price:      bar.Close,
		Reason:     reason,
		At:         time.Now(),
	}, nil
}

// Name identifies the strategy in logs and handler registration.
func (s *Crossover) Name() string {
	return fmt.Sprintf("crossover(%d,%d)", s.fastN, s.slowN)
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// confidence maps the relative MA spread into [0, 1], saturating at a
// 1% spread.
func confidence(fast, slow float64) float64 {
	if slow == 0 {
		return 0
	}
	spread := fast - slow
	if spread < 0 {
		spread = -spread
	}
	c := spread / slow * 100
	if c > 1 {
		c = 1
	}
	return c
}
