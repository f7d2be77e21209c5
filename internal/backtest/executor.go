package backtest

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"tradesim/internal/domain"
)

// Constraints restrict portfolio-mode executions. Zero values mean
// unconstrained.
type Constraints struct {
	// MaxConcurrentPositions caps how many symbols may hold shares at once.
	// A buy that would open a position beyond the cap is rejected; adding to
	// an existing position is always allowed.
	MaxConcurrentPositions int `json:"maxConcurrentPositions,omitempty" yaml:"max_concurrent_positions"`

	// ReserveCashPct is the percentage of initial capital that must remain
	// unspent. A buy that would breach the floor is shrunk to the largest
	// size that respects it, or rejected if no size fits.
	ReserveCashPct float64 `json:"reserveCashPct,omitempty" yaml:"reserve_cash_pct"`
}

// Executor converts one signal and one quoted price into at most one Fill,
// applying sizing rules and portfolio constraints against the accountant's
// current state. A rejected attempt returns (nil, nil): the signal is simply
// not filled and the run continues.
type Executor struct {
	commissionRate float64
	constraints    Constraints
	acct           *Accountant
	log            *slog.Logger
}

// NewExecutor creates an Executor trading against acct.
func NewExecutor(acct *Accountant, commissionRate float64, constraints Constraints, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{
		commissionRate: commissionRate,
		constraints:    constraints,
		acct:           acct,
		log:            log,
	}
}

// Attempt executes sig at quoted, using reference as the signal's reference
// price for slippage reporting. It returns the applied Fill, or (nil, nil)
// when the signal is rejected by sizing or constraints. A non-positive
// quoted price is a fatal data-integrity error, never clamped.
func (e *Executor) Attempt(sig domain.Signal, execDate time.Time, quoted, reference float64, timing domain.ExecutionTiming) (*domain.Fill, error) {
	if sig.Amount == 0 {
		return nil, nil
	}
	if quoted <= 0 {
		return nil, fmt.Errorf("%w: non-positive execution price %v for %s on %s",
			ErrIntegrity, quoted, sig.Symbol, execDate.Format("2006-01-02"))
	}

	size := desiredShares(sig, quoted)
	if sig.Amount > 0 {
		return e.buy(sig, execDate, quoted, reference, timing, size)
	}
	return e.sell(sig, execDate, quoted, reference, timing, size)
}

// desiredShares computes the raw share count before constraints: notional
// amounts divide by the execution price, share counts are taken as-is. All
// counts truncate toward zero, never round.
func desiredShares(sig domain.Signal, price float64) int64 {
	abs := math.Abs(sig.Amount)
	if sig.Kind == domain.NotionalAmount {
		return int64(abs / price)
	}
	return int64(abs)
}

func (e *Executor) buy(sig domain.Signal, execDate time.Time, price, reference float64, timing domain.ExecutionTiming, size int64) (*domain.Fill, error) {
	if size <= 0 {
		return nil, nil
	}

	// Opening a new position counts against the concurrent-position cap.
	if limit := e.constraints.MaxConcurrentPositions; limit > 0 && e.acct.Shares(sig.Symbol) == 0 {
		if e.acct.OpenPositions() >= limit {
			e.log.Debug("buy rejected by position cap",
				"symbol", sig.Symbol, "open", e.acct.OpenPositions(), "cap", limit)
			return nil, nil
		}
	}

	cost := float64(size) * price
	total := cost * (1 + e.commissionRate)

	if pct := e.constraints.ReserveCashPct; pct > 0 {
		minCash := e.acct.InitialCash() * pct / 100
		if e.acct.Cash()-total < minCash {
			spendable := e.acct.Cash() - minCash
			size = int64(spendable / (price * (1 + e.commissionRate)))
			if size <= 0 {
				e.log.Debug("buy rejected by reserve cash floor",
					"symbol", sig.Symbol, "minCash", minCash, "cash", e.acct.Cash())
				return nil, nil
			}
			cost = float64(size) * price
			total = cost * (1 + e.commissionRate)
		}
	}

	// No partial fills on plain insufficiency: either the full (possibly
	// reserve-shrunk) size is affordable or the signal is not filled.
	if total > e.acct.Cash() {
		return nil, nil
	}

	fill := &domain.Fill{
		SignalDate:    domain.DateOnly(sig.Date),
		ExecutionDate: domain.DateOnly(execDate),
		Symbol:        sig.Symbol,
		Side:          domain.SideBuy,
		Price:         price,
		SignalPrice:   reference,
		Size:          size,
		Value:         cost,
		Commission:    cost * e.commissionRate,
		Timing:        timing,
	}
	if err := e.acct.Apply(fill); err != nil {
		return nil, err
	}
	return fill, nil
}

func (e *Executor) sell(sig domain.Signal, execDate time.Time, price, reference float64, timing domain.ExecutionTiming, size int64) (*domain.Fill, error) {
	// No shorting: never sell more than held.
	if held := e.acct.Shares(sig.Symbol); size > held {
		size = held
	}
	if size <= 0 {
		return nil, nil
	}

	value := float64(size) * price
	fill := &domain.Fill{
		SignalDate:    domain.DateOnly(sig.Date),
		ExecutionDate: domain.DateOnly(execDate),
		Symbol:        sig.Symbol,
		Side:          domain.SideSell,
		Price:         price,
		SignalPrice:   reference,
		Size:          size,
		Value:         value,
		Commission:    value * e.commissionRate,
		Timing:        timing,
	}
	if err := e.acct.Apply(fill); err != nil {
		return nil, err
	}
	return fill, nil
}
