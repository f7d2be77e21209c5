// Package domain defines the core value types shared across the tradesim
// platform: daily bars, trading signals, executed fills, and portfolio
// snapshots.
package domain

import "time"

// Bar is one trading day's OHLCV data for a single symbol.
type Bar struct {
	Symbol string
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// SignalKind selects how a signal's Amount is interpreted.
type SignalKind string

const (
	// NotionalAmount sizes the trade by currency value: the engine buys or
	// sells floor(|amount| / execution price) shares.
	NotionalAmount SignalKind = "notional"

	// ShareCount sizes the trade by share count: floor(|amount|) shares.
	ShareCount SignalKind = "shares"
)

// ExecutionTiming selects the price a signal executes at.
type ExecutionTiming string

const (
	// SameDayClose executes at the closing price of the signal's own day.
	SameDayClose ExecutionTiming = "close"

	// NextDayOpen executes at the opening price of the next trading day.
	NextDayOpen ExecutionTiming = "next_open"
)

// Signal is a strategy-issued instruction to buy (Amount > 0) or sell
// (Amount < 0). Signals are immutable once emitted; sizing and portfolio
// constraints are applied later by the execution engine.
type Signal struct {
	Date   time.Time
	Symbol string // empty in single-symbol runs
	Kind   SignalKind
	Amount float64
	Timing ExecutionTiming
}

// Side is the direction of an executed trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Fill is the realized outcome of successfully executing one signal. A
// rejected or zero-size attempt produces no Fill at all.
type Fill struct {
	SignalDate    time.Time
	ExecutionDate time.Time
	Symbol        string
	Side          Side
	Price         float64 // execution price
	SignalPrice   float64 // reference price at signal time; 0 if unknown
	Size          int64   // shares, always > 0
	Value         float64 // Size * Price, before commission
	Commission    float64
	Timing        ExecutionTiming
}

// DailySnapshot records the portfolio at the end of one trading day. The
// append-only sequence of snapshots forms the equity curve.
type DailySnapshot struct {
	Date        time.Time
	Cash        float64
	Positions   map[string]int64   // symbol → shares held, all > 0
	StockValue  map[string]float64 // symbol → shares * valuation close
	TotalEquity float64            // Cash + sum of StockValue
}

// DateOnly truncates t to midnight UTC, keeping the calendar date as
// displayed regardless of the source time zone. Bars and signals are matched
// on this normalized form.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
