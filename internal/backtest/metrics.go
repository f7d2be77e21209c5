package backtest

import (
	"math"

	"tradesim/internal/domain"
)

// tradingDaysPerYear is the annualization factor for daily returns.
const tradingDaysPerYear = 252

// Metrics is the performance report derived from a finished run's equity
// curve and fill ledger. It is computed once, after the day loop ends.
type Metrics struct {
	TotalReturn    float64 `json:"totalReturn"`
	TotalReturnPct float64 `json:"totalReturnPct"`
	FinalValue     float64 `json:"finalValue"`
	InitialValue   float64 `json:"initialValue"`

	// MaxDrawdownPct is the largest running-peak drawdown in percent;
	// MaxDrawdown is the absolute amount of that same drawdown (not
	// necessarily the largest absolute drawdown).
	MaxDrawdown    float64 `json:"maxDrawdown"`
	MaxDrawdownPct float64 `json:"maxDrawdownPct"`

	SharpeRatio  float64 `json:"sharpeRatio"`
	SortinoRatio float64 `json:"sortinoRatio"`
	CalmarRatio  float64 `json:"calmarRatio"`

	// Trade stats from FIFO pairing of sells against prior buys, per symbol.
	// TradeCount counts completed (paired) round trips, not fills.
	WinRate      float64 `json:"winRate"`
	AvgWin       float64 `json:"avgWin"`
	AvgLoss      float64 `json:"avgLoss"`
	ProfitFactor float64 `json:"profitFactor"` // +Inf when losses are zero and wins exist
	TradeCount   int     `json:"tradeCount"`
	WonTrades    int     `json:"wonTrades"`
	LostTrades   int     `json:"lostTrades"`

	AvgSlippagePct    float64 `json:"avgSlippagePct"`
	TotalSlippageCost float64 `json:"totalSlippageCost"`
	SameDayFills      int     `json:"sameDayTrades"`
	NextOpenFills     int     `json:"nextOpenTrades"`
}

// ComputeMetrics reduces the equity curve and fill ledger into a Metrics
// report. It is a pure function: it never touches portfolio state.
func ComputeMetrics(curve []domain.DailySnapshot, fills []domain.Fill, initialCash float64) Metrics {
	m := Metrics{InitialValue: initialCash}
	if len(curve) == 0 {
		return m
	}

	m.FinalValue = curve[len(curve)-1].TotalEquity
	m.TotalReturn = m.FinalValue - initialCash
	if initialCash > 0 {
		m.TotalReturnPct = m.TotalReturn / initialCash * 100
	}

	// Daily simple returns; days following a non-positive equity are skipped.
	var returns []float64
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].TotalEquity
		if prev > 0 {
			returns = append(returns, (curve[i].TotalEquity-prev)/prev)
		}
	}

	// Running-peak drawdown, keeping the percentage-maximizing observation.
	peak := initialCash
	for _, snap := range curve {
		v := snap.TotalEquity
		if v > peak {
			peak = v
		}
		dd := peak - v
		var ddPct float64
		if peak > 0 {
			ddPct = dd / peak * 100
		}
		if ddPct > m.MaxDrawdownPct {
			m.MaxDrawdownPct = ddPct
			m.MaxDrawdown = dd
		}
	}

	if len(returns) > 0 {
		mean := meanOf(returns)
		std := popStdDev(returns)
		if std > 0 {
			m.SharpeRatio = mean * math.Sqrt(tradingDaysPerYear) / std
		}

		var downside []float64
		for _, r := range returns {
			if r < 0 {
				downside = append(downside, r)
			}
		}
		if len(downside) > 0 {
			if dstd := popStdDev(downside); dstd > 0 {
				m.SortinoRatio = mean * math.Sqrt(tradingDaysPerYear) / dstd
			}
		}
	}

	annualReturnPct := m.TotalReturnPct * tradingDaysPerYear / float64(len(curve))
	if m.MaxDrawdownPct > 0 {
		m.CalmarRatio = annualReturnPct / m.MaxDrawdownPct
	}

	fillTradeStats(&m, fills)
	fillSlippageStats(&m, fills)
	return m
}

// tradePair is one completed round trip: a sell matched against the oldest
// unmatched buy of the same symbol.
type tradePair struct {
	sell float64
	buy  float64
}

// pairTrades matches sells FIFO against prior buy prices, per symbol.
// Sells with no unmatched prior buy are left unpaired. Reordering fills of
// unrelated symbols cannot change a symbol's pairing.
func pairTrades(fills []domain.Fill) []tradePair {
	queues := make(map[string][]float64)
	var pairs []tradePair
	for _, f := range fills {
		switch f.Side {
		case domain.SideBuy:
			queues[f.Symbol] = append(queues[f.Symbol], f.Price)
		case domain.SideSell:
			q := queues[f.Symbol]
			if len(q) == 0 {
				continue
			}
			pairs = append(pairs, tradePair{sell: f.Price, buy: q[0]})
			queues[f.Symbol] = q[1:]
		}
	}
	return pairs
}

func fillTradeStats(m *Metrics, fills []domain.Fill) {
	pairs := pairTrades(fills)
	m.TradeCount = len(pairs)
	if len(pairs) == 0 {
		return
	}

	var wins, losses []float64
	for _, p := range pairs {
		diff := p.sell - p.buy
		if diff > 0 {
			wins = append(wins, diff)
		} else {
			losses = append(losses, diff)
		}
	}
	m.WonTrades = len(wins)
	m.LostTrades = len(losses)
	m.WinRate = float64(m.WonTrades) / float64(m.TradeCount) * 100

	var totalWon, totalLost float64
	if len(wins) > 0 {
		m.AvgWin = meanOf(wins)
		totalWon = sumOf(wins)
	}
	if len(losses) > 0 {
		m.AvgLoss = math.Abs(meanOf(losses))
		totalLost = math.Abs(sumOf(losses))
	}

	switch {
	case totalLost > 0:
		m.ProfitFactor = totalWon / totalLost
	case totalWon > 0:
		m.ProfitFactor = math.Inf(1)
	}
}

func fillSlippageStats(m *Metrics, fills []domain.Fill) {
	var slippages []float64
	for _, f := range fills {
		if f.Timing == domain.SameDayClose {
			m.SameDayFills++
		} else {
			m.NextOpenFills++
		}
		if f.SignalPrice > 0 {
			slippages = append(slippages, (f.Price-f.SignalPrice)/f.SignalPrice*100)
			m.TotalSlippageCost += math.Abs(f.Price-f.SignalPrice) * float64(f.Size)
		}
	}
	if len(slippages) > 0 {
		m.AvgSlippagePct = meanOf(slippages)
	}
}

func sumOf(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s
}

func meanOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return sumOf(xs) / float64(len(xs))
}

// popStdDev is the population standard deviation (divide by n, not n-1).
func popStdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	mean := meanOf(xs)
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}
