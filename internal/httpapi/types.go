package httpapi

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"tradesim/internal/backtest"
	"tradesim/internal/domain"
)

// ---------------------------------------------------------------------------
// Request types
// ---------------------------------------------------------------------------

// BarJSON is one OHLCV row on the wire.
type BarJSON struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume,omitempty"`
}

// SignalJSON is one trading signal on the wire. Type is "notional" or
// "shares" (the short forms "v" and "a" are accepted for compatibility);
// execution is "close" or "next_open" and defaults to "close" when absent.
type SignalJSON struct {
	Date      string  `json:"date"`
	Symbol    string  `json:"symbol,omitempty"`
	Type      string  `json:"type"`
	Amount    float64 `json:"amount"`
	Execution string  `json:"execution,omitempty"`
}

// BacktestRequest is the body of POST /api/backtest. Price data comes from
// exactly one of Data (single symbol), Series (portfolio), or Symbols plus a
// date range loaded from the bar store. Signals come either inline or from a
// registered strategy.
type BacktestRequest struct {
	Data   []BarJSON            `json:"data,omitempty"`
	Series map[string][]BarJSON `json:"series,omitempty"`

	Symbols   []string `json:"symbols,omitempty"`
	StartDate string   `json:"startDate,omitempty"`
	EndDate   string   `json:"endDate,omitempty"`

	Signals    []SignalJSON       `json:"signals,omitempty"`
	Strategy   string             `json:"strategy,omitempty"`
	Parameters map[string]float64 `json:"parameters,omitempty"`

	InitialCash *float64             `json:"initialCash,omitempty"`
	Commission  *float64             `json:"commission,omitempty"`
	Constraints backtest.Constraints `json:"constraints"`
}

// ---------------------------------------------------------------------------
// Response types
// ---------------------------------------------------------------------------

// jsonNumber marshals like a float64 but renders non-finite values as null,
// which encoding/json otherwise rejects.
type jsonNumber float64

func (n jsonNumber) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

// MetricsJSON is the wire form of backtest.Metrics. ProfitFactor can be
// infinite (no losing trades) and is null in that case.
type MetricsJSON struct {
	TotalReturn    float64 `json:"totalReturn"`
	TotalReturnPct float64 `json:"totalReturnPct"`
	FinalValue     float64 `json:"finalValue"`
	InitialValue   float64 `json:"initialValue"`

	MaxDrawdown    float64 `json:"maxDrawdown"`
	MaxDrawdownPct float64 `json:"maxDrawdownPct"`

	SharpeRatio  float64 `json:"sharpeRatio"`
	SortinoRatio float64 `json:"sortinoRatio"`
	CalmarRatio  float64 `json:"calmarRatio"`

	WinRate      float64    `json:"winRate"`
	AvgWin       float64    `json:"avgWin"`
	AvgLoss      float64    `json:"avgLoss"`
	ProfitFactor jsonNumber `json:"profitFactor"`
	TradeCount   int        `json:"tradeCount"`
	WonTrades    int        `json:"wonTrades"`
	LostTrades   int        `json:"lostTrades"`

	AvgSlippagePct    float64 `json:"avgSlippagePct"`
	TotalSlippageCost float64 `json:"totalSlippageCost"`
	SameDayTrades     int     `json:"sameDayTrades"`
	NextOpenTrades    int     `json:"nextOpenTrades"`
}

// EquityPointJSON is one day of the equity curve. Shares and StockValue sum
// across symbols; per-symbol detail is in Positions for portfolio runs.
type EquityPointJSON struct {
	Date       string           `json:"date"`
	Value      float64          `json:"value"`
	Cash       float64          `json:"cash"`
	Shares     int64            `json:"shares"`
	StockValue float64          `json:"stock_value"`
	Positions  map[string]int64 `json:"positions,omitempty"`
}

// TradeMarkerJSON is one executed trade, formatted for charting.
type TradeMarkerJSON struct {
	SignalDate    string  `json:"signal_date"`
	ExecutionDate string  `json:"execution_date"`
	Date          string  `json:"date"` // same as execution_date, kept for compatibility
	Symbol        string  `json:"symbol,omitempty"`
	Type          string  `json:"type"`
	Price         float64 `json:"price"`
	SignalPrice   float64 `json:"signal_price"`
	Size          int64   `json:"size"`
	Value         float64 `json:"value"`
	Commission    float64 `json:"commission"`
	ExecutionMode string  `json:"execution_mode"`
}

// SymbolPointJSON is one day of a single symbol's portfolio contribution.
type SymbolPointJSON struct {
	Date       string  `json:"date"`
	Shares     int64   `json:"shares"`
	StockValue float64 `json:"stock_value"`
}

// SymbolResultJSON is one symbol's slice of a portfolio result.
type SymbolResultJSON struct {
	EquityCurve []SymbolPointJSON `json:"equityCurve"`
	Metrics     MetricsJSON       `json:"metrics"`
}

// BacktestResponse is the success envelope of POST /api/backtest.
type BacktestResponse struct {
	Success        bool                         `json:"success"`
	RunID          string                       `json:"runId,omitempty"`
	Metrics        MetricsJSON                  `json:"metrics"`
	EquityCurve    []EquityPointJSON            `json:"equityCurve"`
	TradeMarkers   []TradeMarkerJSON            `json:"tradeMarkers"`
	SkippedSignals int                          `json:"skippedSignals"`
	PerSymbol      map[string]*SymbolResultJSON `json:"perSymbol,omitempty"`
}

// ErrorResponse is the failure envelope shared by all endpoints.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Type    string `json:"type"`
}

// ---------------------------------------------------------------------------
// Wire conversions
// ---------------------------------------------------------------------------

const wireDate = "2006-01-02"

// ToBars converts wire bars into domain bars. Dates accept either plain
// dates or RFC 3339 timestamps.
func ToBars(symbol string, in []BarJSON) ([]domain.Bar, error) {
	bars := make([]domain.Bar, 0, len(in))
	for i, b := range in {
		d, err := parseWireDate(b.Date)
		if err != nil {
			return nil, fmt.Errorf("bar %d for %s: %w", i, symbol, err)
		}
		bars = append(bars, domain.Bar{
			Symbol: symbol,
			Date:   d,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		})
	}
	return bars, nil
}

// ToSignals converts wire signals into domain signals, mapping the legacy
// short type names.
func ToSignals(in []SignalJSON) ([]domain.Signal, error) {
	signals := make([]domain.Signal, 0, len(in))
	for i, s := range in {
		d, err := parseWireDate(s.Date)
		if err != nil {
			return nil, fmt.Errorf("signal %d: %w", i, err)
		}

		var kind domain.SignalKind
		switch s.Type {
		case "notional", "v":
			kind = domain.NotionalAmount
		case "shares", "a":
			kind = domain.ShareCount
		default:
			return nil, fmt.Errorf("signal %d has unknown type %q", i, s.Type)
		}

		signals = append(signals, domain.Signal{
			Date:   d,
			Symbol: s.Symbol,
			Kind:   kind,
			Amount: s.Amount,
			Timing: domain.ExecutionTiming(s.Execution),
		})
	}
	return signals, nil
}

func parseWireDate(s string) (time.Time, error) {
	if t, err := time.Parse(wireDate, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return domain.DateOnly(t), nil
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

// ToMetricsJSON converts engine metrics to their wire form.
func ToMetricsJSON(m backtest.Metrics) MetricsJSON {
	return MetricsJSON{
		TotalReturn:    m.TotalReturn,
		TotalReturnPct: m.TotalReturnPct,
		FinalValue:     m.FinalValue,
		InitialValue:   m.InitialValue,

		MaxDrawdown:    m.MaxDrawdown,
		MaxDrawdownPct: m.MaxDrawdownPct,

		SharpeRatio:  m.SharpeRatio,
		SortinoRatio: m.SortinoRatio,
		CalmarRatio:  m.CalmarRatio,

		WinRate:      m.WinRate,
		AvgWin:       m.AvgWin,
		AvgLoss:      m.AvgLoss,
		ProfitFactor: jsonNumber(m.ProfitFactor),
		TradeCount:   m.TradeCount,
		WonTrades:    m.WonTrades,
		LostTrades:   m.LostTrades,

		AvgSlippagePct:    m.AvgSlippagePct,
		TotalSlippageCost: m.TotalSlippageCost,
		SameDayTrades:     m.SameDayFills,
		NextOpenTrades:    m.NextOpenFills,
	}
}

// ToBacktestResponse converts a run result into the success envelope.
// portfolio controls whether per-symbol position maps are included in the
// equity curve.
func ToBacktestResponse(res *backtest.Result, portfolio bool) *BacktestResponse {
	resp := &BacktestResponse{
		Success:        true,
		Metrics:        ToMetricsJSON(res.Metrics),
		EquityCurve:    make([]EquityPointJSON, 0, len(res.EquityCurve)),
		TradeMarkers:   make([]TradeMarkerJSON, 0, len(res.Fills)),
		SkippedSignals: res.SkippedSignals,
	}

	for _, snap := range res.EquityCurve {
		var shares int64
		for _, s := range snap.Positions {
			shares += s
		}
		var stockValue float64
		for _, v := range snap.StockValue {
			stockValue += v
		}
		p := EquityPointJSON{
			Date:       snap.Date.Format(wireDate),
			Value:      snap.TotalEquity,
			Cash:       snap.Cash,
			Shares:     shares,
			StockValue: stockValue,
		}
		if portfolio {
			p.Positions = snap.Positions
		}
		resp.EquityCurve = append(resp.EquityCurve, p)
	}

	for _, f := range res.Fills {
		m := TradeMarkerJSON{
			SignalDate:    f.SignalDate.Format(wireDate),
			ExecutionDate: f.ExecutionDate.Format(wireDate),
			Date:          f.ExecutionDate.Format(wireDate),
			Type:          string(f.Side),
			Price:         f.Price,
			SignalPrice:   f.SignalPrice,
			Size:          f.Size,
			Value:         f.Value,
			Commission:    f.Commission,
			ExecutionMode: string(f.Timing),
		}
		if portfolio {
			m.Symbol = f.Symbol
		}
		resp.TradeMarkers = append(resp.TradeMarkers, m)
	}

	if res.PerSymbol != nil {
		resp.PerSymbol = make(map[string]*SymbolResultJSON, len(res.PerSymbol))
		for symbol, sr := range res.PerSymbol {
			out := &SymbolResultJSON{
				EquityCurve: make([]SymbolPointJSON, 0, len(sr.EquityCurve)),
				Metrics:     ToMetricsJSON(sr.Metrics),
			}
			for _, p := range sr.EquityCurve {
				out.EquityCurve = append(out.EquityCurve, SymbolPointJSON{
					Date:       p.Date.Format(wireDate),
					Shares:     p.Shares,
					StockValue: p.StockValue,
				})
			}
			resp.PerSymbol[symbol] = out
		}
	}
	return resp
}
