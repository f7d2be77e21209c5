package backtest

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"tradesim/internal/domain"
)

// reconTolerance is the maximum acceptable absolute difference, in currency
// units, between reported total equity and cash plus recomputed stock value.
const reconTolerance = 1e-2

// Accountant is the sole writer of portfolio state. It applies fills,
// values held positions into daily snapshots, and enforces the accounting
// invariants: cash never negative, positions never negative, and equity
// reconciling to within tolerance.
type Accountant struct {
	initialCash float64
	cash        float64
	positions   map[string]int64
	log         *slog.Logger
}

// NewAccountant creates an Accountant holding initialCash and no positions.
func NewAccountant(initialCash float64, log *slog.Logger) *Accountant {
	if log == nil {
		log = slog.Default()
	}
	return &Accountant{
		initialCash: initialCash,
		cash:        initialCash,
		positions:   make(map[string]int64),
		log:         log,
	}
}

// Cash returns the current cash balance.
func (a *Accountant) Cash() float64 { return a.cash }

// InitialCash returns the starting capital of the run.
func (a *Accountant) InitialCash() float64 { return a.initialCash }

// Shares returns the share count currently held for symbol.
func (a *Accountant) Shares(symbol string) int64 { return a.positions[symbol] }

// OpenPositions returns the number of symbols with a non-zero holding.
func (a *Accountant) OpenPositions() int {
	n := 0
	for _, shares := range a.positions {
		if shares > 0 {
			n++
		}
	}
	return n
}

// Apply mutates cash and positions according to f. It returns an
// ErrIntegrity-wrapped error if the fill would drive cash or a position
// negative; the executor sizes fills so that a violation here is a bug, not
// a user-input condition.
func (a *Accountant) Apply(f *domain.Fill) error {
	switch f.Side {
	case domain.SideBuy:
		total := f.Value + f.Commission
		if a.cash-total < -reconTolerance {
			return fmt.Errorf("%w: buy of %d %s would drive cash negative (%.4f - %.4f)",
				ErrIntegrity, f.Size, f.Symbol, a.cash, total)
		}
		a.cash -= total
		a.positions[f.Symbol] += f.Size
	case domain.SideSell:
		held := a.positions[f.Symbol]
		if f.Size > held {
			return fmt.Errorf("%w: sell of %d %s exceeds held %d", ErrIntegrity, f.Size, f.Symbol, held)
		}
		a.cash += f.Value - f.Commission
		a.positions[f.Symbol] -= f.Size
		if a.positions[f.Symbol] == 0 {
			delete(a.positions, f.Symbol)
		}
	default:
		return fmt.Errorf("%w: unknown fill side %q", ErrIntegrity, f.Side)
	}
	return nil
}

// Snapshot values every held position at date's close and returns the day's
// portfolio snapshot. A symbol without a bar on date is valued at its most
// recent prior close; a symbol with no prior bar at all contributes zero for
// the day. Snapshot validates the reconciliation invariant before returning.
func (a *Accountant) Snapshot(date time.Time, series *domain.PriceSeries) (domain.DailySnapshot, error) {
	if a.cash < -reconTolerance {
		return domain.DailySnapshot{}, fmt.Errorf("%w: negative cash %.4f on %s",
			ErrIntegrity, a.cash, date.Format("2006-01-02"))
	}

	positions := make(map[string]int64, len(a.positions))
	stockValue := make(map[string]float64, len(a.positions))
	total := a.cash

	for symbol, shares := range a.positions {
		if shares < 0 {
			return domain.DailySnapshot{}, fmt.Errorf("%w: negative position %d in %s on %s",
				ErrIntegrity, shares, symbol, date.Format("2006-01-02"))
		}
		positions[symbol] = shares

		var close float64
		if bar, ok := series.Bar(symbol, date); ok {
			close = bar.Close
		} else if last, ok := series.LastCloseBefore(symbol, date); ok {
			close = last
			a.log.Warn("no bar for held symbol, valuing at last known close",
				"symbol", symbol, "date", date.Format("2006-01-02"), "close", close)
		} else {
			a.log.Error("held symbol has no price history up to date, valuing at zero",
				"symbol", symbol, "date", date.Format("2006-01-02"))
			stockValue[symbol] = 0
			continue
		}
		if close <= 0 {
			return domain.DailySnapshot{}, fmt.Errorf("%w: non-positive close %v for %s on %s",
				ErrIntegrity, close, symbol, date.Format("2006-01-02"))
		}
		v := float64(shares) * close
		stockValue[symbol] = v
		total += v
	}

	// Reconcile: recompute the sum independently of the accumulation above.
	var sum float64
	for _, v := range stockValue {
		sum += v
	}
	if diff := math.Abs(total - a.cash - sum); diff > reconTolerance {
		return domain.DailySnapshot{}, fmt.Errorf("%w: equity reconciliation off by %.6f on %s",
			ErrIntegrity, diff, date.Format("2006-01-02"))
	}

	return domain.DailySnapshot{
		Date:        date,
		Cash:        a.cash,
		Positions:   positions,
		StockValue:  stockValue,
		TotalEquity: total,
	}, nil
}
