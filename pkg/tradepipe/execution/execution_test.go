package execution_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	tperrors "github.com/randalmurphal/tradepipe/pkg/tradepipe/errors"
	"github.com/randalmurphal/tradepipe/pkg/tradepipe/execution"
	"github.com/randalmurphal/tradepipe/pkg/tradepipe/market"
)

func testOrder(side market.Side) market.Order {
	sig := market.Signal{
		Symbol: "BTC-USD",
		Side:   side,
		Price:  100,
		At:     time.Now(),
	}
	return market.NewOrder(sig, 0.5, "sig-1")
}

func deterministic() execution.PaperConfig {
	return execution.PaperConfig{
		SlippageBps:   10,
		TransientRate: 0,
		RejectRate:    0,
		Latency:       0,
		Retry:         tperrors.NoRetry,
	}
}

func TestPaperFillsWithSlippage(t *testing.T) {
	exec := execution.NewPaper(deterministic())

	report, err := exec.Execute(context.Background(), testOrder(market.SideLong))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if report.Status != market.StatusFilled {
		t.Fatalf("expected filled, got %s", report.Status)
	}
	if report.FilledQty != 0.5 {
		t.Errorf("expected qty 0.5, got %v", report.FilledQty)
	}
	// 10 bps above the 100 limit for a long.
	if math.Abs(report.AvgPrice-100.1) > 1e-9 {
		t.Errorf("expected avg price 100.1, got %v", report.AvgPrice)
	}

	report, err = exec.Execute(context.Background(), testOrder(market.SideShort))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if math.Abs(report.AvgPrice-99.9) > 1e-9 {
		t.Errorf("expected avg price 99.9 for short, got %v", report.AvgPrice)
	}
}

func TestPaperRejectsInvalidOrder(t *testing.T) {
	exec := execution.NewPaper(deterministic())

	bad := testOrder(market.SideLong)
	bad.Qty = -1
	if _, err := exec.Execute(context.Background(), bad); err == nil {
		t.Fatal("expected validation error")
	}

	bad = testOrder(market.SideLong)
	bad.Symbol = ""
	if _, err := exec.Execute(context.Background(), bad); err == nil {
		t.Fatal("expected validation error for empty symbol")
	}
}

func TestPaperRetriesTransientFailures(t *testing.T) {
	// Force failures on every attempt; retries must exhaust and surface
	// the venue error.
	cfg := deterministic()
	cfg.TransientRate = 1
	cfg.Retry = tperrors.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		BackoffFactor:  2.0,
	}
	exec := execution.NewPaper(cfg)

	_, err := exec.Execute(context.Background(), testOrder(market.SideLong))
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !errors.Is(err, execution.ErrVenueUnavailable) {
		t.Errorf("expected ErrVenueUnavailable in chain, got %v", err)
	}
}

func TestPaperVenueRejection(t *testing.T) {
	cfg := deterministic()
	cfg.RejectRate = 1
	exec := execution.NewPaper(cfg)

	report, err := exec.Execute(context.Background(), testOrder(market.SideLong))
	if err != nil {
		t.Fatalf("rejection is an outcome, not an error: %v", err)
	}
	if report.Status != market.StatusRejected {
		t.Errorf("expected rejected, got %s", report.Status)
	}
	if report.FilledQty != 0 {
		t.Errorf("rejected order must have zero fill, got %v", report.FilledQty)
	}
}

func TestPaperRespectsContext(t *testing.T) {
	cfg := deterministic()
	cfg.Latency = time.Second
	exec := execution.NewPaper(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := exec.Execute(ctx, testOrder(market.SideLong))
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestFixedFractionSizer(t *testing.T) {
	sizer, err := execution.NewFixedFraction(10000, 0.02)
	if err != nil {
		t.Fatal(err)
	}

	sig := market.Signal{Symbol: "BTC-USD", Side: market.SideLong, Price: 100, Confidence: 1}
	qty, err := sizer.Size(context.Background(), sig)
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	// 2% of 10000 at price 100.
	if qty != 2 {
		t.Errorf("expected qty 2, got %v", qty)
	}

	// Confidence scales exposure down.
	sig.Confidence = 0.5
	qty, err = sizer.Size(context.Background(), sig)
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	if qty != 1 {
		t.Errorf("expected qty 1 at half confidence, got %v", qty)
	}

	sig.Price = 0
	if _, err := sizer.Size(context.Background(), sig); err == nil {
		t.Error("expected error for non-positive price")
	}
}

func TestFixedFractionValidation(t *testing.T) {
	if _, err := execution.NewFixedFraction(0, 0.1); err == nil {
		t.Error("expected error for zero equity")
	}
	if _, err := execution.NewFixedFraction(1000, 0); err == nil {
		t.Error("expected error for zero fraction")
	}
	if _, err := execution.NewFixedFraction(1000, 1.5); err == nil {
		t.Error("expected error for fraction above 1")
	}
}
