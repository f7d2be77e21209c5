package backtest

import (
	"fmt"
	"log/slog"
	"time"

	"tradesim/internal/domain"
)

// Default run parameters. They are applied at the request boundaries (HTTP
// API, exec CLI) when a field is absent; the Runner itself takes Config
// literally, so a zero commission rate means free trading.
const (
	DefaultInitialCash    = 100000.0
	DefaultCommissionRate = 0.001
)

// Config holds the per-run simulation parameters.
type Config struct {
	InitialCash    float64     `json:"initialCash" yaml:"initial_cash"`
	CommissionRate float64     `json:"commission" yaml:"commission_rate"`
	Constraints    Constraints `json:"constraints" yaml:"constraints"`
}

// Result is the complete outcome of one backtest run.
type Result struct {
	Fills       []domain.Fill
	EquityCurve []domain.DailySnapshot
	Metrics     Metrics

	// SkippedSignals counts NextDayOpen signals dated to the final trading
	// day, which have no following open to execute at.
	SkippedSignals int

	// PerSymbol holds per-symbol equity curves and trade metrics. Populated
	// only for portfolio (multi-symbol) runs.
	PerSymbol map[string]*SymbolResult
}

// SymbolPoint is one day of a single symbol's contribution to the portfolio.
type SymbolPoint struct {
	Date       time.Time
	Shares     int64
	StockValue float64
}

// SymbolResult is one symbol's slice of a portfolio run.
type SymbolResult struct {
	EquityCurve []SymbolPoint
	Metrics     Metrics
}

// Runner replays signals against a price series, day by day in ascending
// date order. Each Runner invocation owns its portfolio state exclusively;
// concurrent runs require independent Run calls, never a shared one.
type Runner struct {
	cfg Config
	log *slog.Logger
}

// NewRunner creates a Runner with cfg.
func NewRunner(cfg Config, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{cfg: cfg, log: log}
}

// Run validates signals against series and replays them. It returns a fatal
// error only for invalid input or a data-integrity violation; constraint
// rejections and scheduling non-events are absorbed into the result.
func (r *Runner) Run(series *domain.PriceSeries, signals []domain.Signal) (*Result, error) {
	if series == nil || series.Len() == 0 {
		return nil, fmt.Errorf("backtest: empty price series")
	}
	if r.cfg.InitialCash < 0 {
		return nil, fmt.Errorf("backtest: negative initial cash %v", r.cfg.InitialCash)
	}
	if r.cfg.CommissionRate < 0 {
		return nil, fmt.Errorf("backtest: negative commission rate %v", r.cfg.CommissionRate)
	}

	signals, err := normalizeSignals(series, signals)
	if err != nil {
		return nil, err
	}

	symbols := series.Symbols()
	portfolio := len(symbols) > 1
	calendar := series.Calendar()

	sched := NewScheduler(signals)
	acct := NewAccountant(r.cfg.InitialCash, r.log)
	exec := NewExecutor(acct, r.cfg.CommissionRate, r.cfg.Constraints, r.log)

	res := &Result{}

	var prevDate time.Time
	havePrev := false
	for _, day := range calendar {
		// Previous day's NextDayOpen signals execute at today's open, with
		// the previous close as the reference price.
		if havePrev {
			for _, symbol := range symbols {
				sigs := sched.NextDay(prevDate, symbol)
				if len(sigs) == 0 {
					continue
				}
				bar, ok := series.Bar(symbol, day)
				if !ok {
					r.log.Warn("symbol has no bar on execution day, dropping next-open signals",
						"symbol", symbol, "signalDate", prevDate.Format("2006-01-02"),
						"executionDate", day.Format("2006-01-02"), "count", len(sigs))
					continue
				}
				reference, _ := series.LastCloseBefore(symbol, day)
				for _, sig := range sigs {
					fill, err := exec.Attempt(sig, day, bar.Open, reference, domain.NextDayOpen)
					if err != nil {
						return nil, err
					}
					if fill != nil {
						res.Fills = append(res.Fills, *fill)
					}
				}
			}
		}

		// Today's SameDayClose signals execute at today's close, which is
		// also their own reference price.
		for _, symbol := range symbols {
			sigs := sched.SameDay(day, symbol)
			if len(sigs) == 0 {
				continue
			}
			bar, ok := series.Bar(symbol, day)
			if !ok {
				// The symbol does not trade on this calendar date; the
				// signals are never retrieved again.
				continue
			}
			for _, sig := range sigs {
				fill, err := exec.Attempt(sig, day, bar.Close, bar.Close, domain.SameDayClose)
				if err != nil {
					return nil, err
				}
				if fill != nil {
					res.Fills = append(res.Fills, *fill)
				}
			}
		}

		snap, err := acct.Snapshot(day, series)
		if err != nil {
			return nil, err
		}
		res.EquityCurve = append(res.EquityCurve, snap)

		prevDate = day
		havePrev = true
	}

	// NextDayOpen signals on the final day have no next open; they are
	// counted, not executed.
	res.SkippedSignals = sched.NextDayCountOn(prevDate)
	if res.SkippedSignals > 0 {
		r.log.Warn("next-open signals on last trading day were skipped", "count", res.SkippedSignals)
	}

	res.Metrics = ComputeMetrics(res.EquityCurve, res.Fills, r.cfg.InitialCash)
	if portfolio {
		res.PerSymbol = perSymbolResults(res, symbols)
	}
	return res, nil
}

// normalizeSignals validates the boundary contract: recognized kind and
// timing (empty timing defaults to SameDayClose), a usable amount, and — in
// portfolio mode — a symbol present in the series. Single-symbol runs
// resolve an empty signal symbol to the series' only symbol.
func normalizeSignals(series *domain.PriceSeries, signals []domain.Signal) ([]domain.Signal, error) {
	symbols := series.Symbols()
	single := ""
	if len(symbols) == 1 {
		single = symbols[0]
	}

	out := make([]domain.Signal, 0, len(signals))
	for i, sig := range signals {
		switch sig.Kind {
		case domain.NotionalAmount, domain.ShareCount:
		default:
			return nil, fmt.Errorf("backtest: signal %d has unknown kind %q", i, sig.Kind)
		}
		switch sig.Timing {
		case domain.SameDayClose, domain.NextDayOpen:
		case "":
			sig.Timing = domain.SameDayClose
		default:
			return nil, fmt.Errorf("backtest: signal %d has unknown execution timing %q", i, sig.Timing)
		}
		if sig.Amount != sig.Amount { // NaN
			return nil, fmt.Errorf("backtest: signal %d has no usable amount", i)
		}
		if sig.Date.IsZero() {
			return nil, fmt.Errorf("backtest: signal %d has no date", i)
		}
		if sig.Symbol == "" {
			if single == "" {
				return nil, fmt.Errorf("backtest: signal %d has no symbol in a portfolio run", i)
			}
			sig.Symbol = single
		} else if !series.HasSymbol(sig.Symbol) {
			return nil, fmt.Errorf("backtest: signal %d references unknown symbol %q", i, sig.Symbol)
		}
		out = append(out, sig)
	}
	return out, nil
}

// perSymbolResults splits a portfolio run into per-symbol equity curves and
// trade metrics. Pairing is already per-symbol, so filtering the fill ledger
// by symbol preserves every pairing.
func perSymbolResults(res *Result, symbols []string) map[string]*SymbolResult {
	out := make(map[string]*SymbolResult, len(symbols))
	for _, symbol := range symbols {
		sr := &SymbolResult{}

		var symFills []domain.Fill
		for _, f := range res.Fills {
			if f.Symbol == symbol {
				symFills = append(symFills, f)
			}
		}

		for _, snap := range res.EquityCurve {
			sr.EquityCurve = append(sr.EquityCurve, SymbolPoint{
				Date:       snap.Date,
				Shares:     snap.Positions[symbol],
				StockValue: snap.StockValue[symbol],
			})
		}

		// Per-symbol metrics cover the trade ledger only: equity-curve
		// ratios describe the whole portfolio and are left zero here.
		var m Metrics
		fillTradeStats(&m, symFills)
		fillSlippageStats(&m, symFills)
		sr.Metrics = m

		out[symbol] = sr
	}
	return out
}
