// Package builtins provides built-in strategy implementations that ship with
// the tradesim platform.
package builtins

import (
	"context"
	"fmt"

	"tradesim/internal/domain"
	"tradesim/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*SMACross)(nil)

// SMACross implements a simple moving average crossover strategy. It emits a
// notional buy when the short-period SMA crosses above the long-period SMA,
// and a notional sell when it crosses below.
//
// Recognized params: "short", "long" (periods, in bars) and "notional"
// (currency value per trade).
type SMACross struct {
	shortPeriod int
	longPeriod  int
	notional    float64
}

// NewSMACross creates a SMACross with the given default periods and trade
// notional.
func NewSMACross(short, long int, notional float64) *SMACross {
	return &SMACross{
		shortPeriod: short,
		longPeriod:  long,
		notional:    notional,
	}
}

// Name returns "sma-cross".
func (s *SMACross) Name() string {
	return "sma-cross"
}

// Generate walks each symbol's bars and emits SameDayClose signals on SMA
// crossovers. Nothing is emitted until the long window has filled.
func (s *SMACross) Generate(ctx context.Context, series *domain.PriceSeries, params map[string]float64) ([]domain.Signal, error) {
	short := s.shortPeriod
	long := s.longPeriod
	notional := s.notional
	if v, ok := params["short"]; ok {
		short = int(v)
	}
	if v, ok := params["long"]; ok {
		long = int(v)
	}
	if v, ok := params["notional"]; ok {
		notional = v
	}
	if short <= 0 || long <= 0 || short >= long {
		return nil, fmt.Errorf("sma-cross: periods must satisfy 0 < short < long, got short=%d long=%d", short, long)
	}
	if notional <= 0 {
		return nil, fmt.Errorf("sma-cross: notional must be positive, got %v", notional)
	}

	var signals []domain.Signal
	for _, symbol := range series.Symbols() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		signals = append(signals, s.scanSymbol(symbol, series.Bars(symbol), short, long, notional)...)
	}
	return signals, nil
}

func (s *SMACross) scanSymbol(symbol string, bars []domain.Bar, short, long int, notional float64) []domain.Signal {
	if len(bars) <= long {
		return nil
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	var signals []domain.Signal
	prevAbove := sma(closes, long-1, short) > sma(closes, long-1, long)
	for i := long; i < len(bars); i++ {
		above := sma(closes, i, short) > sma(closes, i, long)
		if above != prevAbove {
			amount := notional
			if !above {
				amount = -notional
			}
			signals = append(signals, domain.Signal{
				Date:   bars[i].Date,
				Symbol: symbol,
				Kind:   domain.NotionalAmount,
				Amount: amount,
				Timing: domain.SameDayClose,
			})
		}
		prevAbove = above
	}
	return signals
}

// sma returns the mean of the n closes ending at index i inclusive.
func sma(closes []float64, i, n int) float64 {
	var sum float64
	for j := i - n + 1; j <= i; j++ {
		sum += closes[j]
	}
	return sum / float64(n)
}
