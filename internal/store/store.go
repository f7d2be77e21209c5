// Package store defines storage for daily bar data and persisted backtest
// run records.
package store

import (
	"context"
	"encoding/json"
	"time"

	"tradesim/internal/domain"
)

// BarStore persists and retrieves daily OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars, merging with any already stored.
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol within [start, end].
	ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols with stored bars.
	ListSymbols(ctx context.Context) ([]string, error)
}

// Run is one persisted backtest run: identifying parameters, headline
// metrics for listing, and the full result payload for retrieval.
type Run struct {
	ID             string          `json:"id"`
	CreatedAt      time.Time       `json:"createdAt"`
	Strategy       string          `json:"strategy,omitempty"`
	Symbols        []string        `json:"symbols"`
	StartDate      time.Time       `json:"startDate"`
	EndDate        time.Time       `json:"endDate"`
	InitialCash    float64         `json:"initialCash"`
	CommissionRate float64         `json:"commissionRate"`
	TotalReturnPct float64         `json:"totalReturnPct"`
	MaxDrawdownPct float64         `json:"maxDrawdownPct"`
	SharpeRatio    float64         `json:"sharpeRatio"`
	TradeCount     int             `json:"tradeCount"`
	Result         json.RawMessage `json:"result,omitempty"`
}

// RunStore persists and retrieves backtest run records.
type RunStore interface {
	// SaveRun inserts a run record. The caller assigns the ID.
	SaveRun(ctx context.Context, run *Run) error

	// GetRun retrieves a run by ID, including its full result payload.
	// It returns ErrRunNotFound if no run has that ID.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns the most recent runs, newest first, up to limit.
	// Result payloads are omitted from the listing.
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}
