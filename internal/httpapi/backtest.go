package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"tradesim/internal/backtest"
	"tradesim/internal/domain"
	"tradesim/internal/store"
	"tradesim/internal/strategy"
)

// RequestError marks a failure caused by the request itself rather than the
// engine. Handlers map it to a 400; everything else is a 500.
type RequestError struct {
	msg string
}

func (e *RequestError) Error() string { return e.msg }

// NewRequestError wraps msg as a request-caused failure.
func NewRequestError(msg string) *RequestError {
	return &RequestError{msg: msg}
}

func reqErrorf(format string, args ...any) error {
	return &RequestError{msg: fmt.Sprintf(format, args...)}
}

// ExecuteBacktest resolves a wire request into price data and signals, runs
// the engine, and builds the success envelope. bars and registry may be nil
// when the request carries inline data and inline signals.
func ExecuteBacktest(
	ctx context.Context,
	req *BacktestRequest,
	bars store.BarStore,
	registry *strategy.Registry,
	defaults backtest.Config,
	log *slog.Logger,
) (*BacktestResponse, error) {
	series, err := buildSeries(ctx, req, bars)
	if err != nil {
		return nil, err
	}

	signals, err := resolveSignals(ctx, req, series, registry)
	if err != nil {
		return nil, err
	}

	cfg := backtest.Config{
		InitialCash:    defaults.InitialCash,
		CommissionRate: defaults.CommissionRate,
		Constraints:    req.Constraints,
	}
	if req.InitialCash != nil {
		cfg.InitialCash = *req.InitialCash
	}
	if req.Commission != nil {
		cfg.CommissionRate = *req.Commission
	}

	res, err := backtest.NewRunner(cfg, log).Run(series, signals)
	if err != nil {
		// Non-integrity runner errors describe invalid input.
		if !errors.Is(err, backtest.ErrIntegrity) {
			return nil, &RequestError{msg: err.Error()}
		}
		return nil, err
	}
	return ToBacktestResponse(res, len(series.Symbols()) > 1), nil
}

// buildSeries assembles the price series from exactly one of the request's
// three data sources.
func buildSeries(ctx context.Context, req *BacktestRequest, bars store.BarStore) (*domain.PriceSeries, error) {
	sources := 0
	if len(req.Data) > 0 {
		sources++
	}
	if len(req.Series) > 0 {
		sources++
	}
	if len(req.Symbols) > 0 && len(req.Data) == 0 {
		sources++
	}
	if sources == 0 {
		return nil, reqErrorf("no price data: provide data, series, or symbols")
	}
	if sources > 1 {
		return nil, reqErrorf("ambiguous price data: provide only one of data, series, or symbols")
	}

	series := domain.NewPriceSeries()

	switch {
	case len(req.Data) > 0:
		symbol := "DATA"
		if len(req.Symbols) == 1 {
			symbol = req.Symbols[0]
		}
		converted, err := ToBars(symbol, req.Data)
		if err != nil {
			return nil, &RequestError{msg: err.Error()}
		}
		if err := series.Add(symbol, converted); err != nil {
			return nil, &RequestError{msg: err.Error()}
		}

	case len(req.Series) > 0:
		// Deterministic insertion order, for stable error messages.
		symbols := make([]string, 0, len(req.Series))
		for symbol := range req.Series {
			symbols = append(symbols, symbol)
		}
		sort.Strings(symbols)
		for _, symbol := range symbols {
			converted, err := ToBars(symbol, req.Series[symbol])
			if err != nil {
				return nil, &RequestError{msg: err.Error()}
			}
			if err := series.Add(symbol, converted); err != nil {
				return nil, &RequestError{msg: err.Error()}
			}
		}

	default:
		if bars == nil {
			return nil, reqErrorf("no bar store configured; provide inline data")
		}
		if req.StartDate == "" || req.EndDate == "" {
			return nil, reqErrorf("startDate and endDate are required with symbols")
		}
		start, err := parseWireDate(req.StartDate)
		if err != nil {
			return nil, &RequestError{msg: err.Error()}
		}
		end, err := parseWireDate(req.EndDate)
		if err != nil {
			return nil, &RequestError{msg: err.Error()}
		}
		for _, symbol := range req.Symbols {
			stored, err := bars.ReadBars(ctx, symbol, start, end)
			if err != nil {
				return nil, fmt.Errorf("reading bars for %s: %w", symbol, err)
			}
			if len(stored) == 0 {
				return nil, reqErrorf("no stored bars for %s in [%s, %s]", symbol, req.StartDate, req.EndDate)
			}
			if err := series.Add(symbol, stored); err != nil {
				return nil, &RequestError{msg: err.Error()}
			}
		}
	}

	return series, nil
}

// resolveSignals returns the request's inline signals, or generates them
// from the named strategy.
func resolveSignals(ctx context.Context, req *BacktestRequest, series *domain.PriceSeries, registry *strategy.Registry) ([]domain.Signal, error) {
	if len(req.Signals) > 0 && req.Strategy != "" {
		return nil, reqErrorf("provide either signals or a strategy, not both")
	}

	if req.Strategy != "" {
		if registry == nil {
			return nil, reqErrorf("no strategy registry configured")
		}
		strat, ok := registry.Get(req.Strategy)
		if !ok {
			return nil, reqErrorf("unknown strategy %q", req.Strategy)
		}
		signals, err := strat.Generate(ctx, series, req.Parameters)
		if err != nil {
			return nil, fmt.Errorf("strategy %s: %w", req.Strategy, err)
		}
		return signals, nil
	}

	if len(req.Signals) == 0 {
		return nil, reqErrorf("no signals: provide signals or a strategy")
	}
	signals, err := ToSignals(req.Signals)
	if err != nil {
		return nil, &RequestError{msg: err.Error()}
	}
	return signals, nil
}
