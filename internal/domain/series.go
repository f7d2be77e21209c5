package domain

import (
	"fmt"
	"sort"
	"time"
)

// PriceSeries is the read-only price substrate a backtest walks: per-symbol
// daily bars in ascending date order, plus the union calendar of every date
// any symbol traded on. Bars are validated on insertion; a non-positive open
// or close is rejected as corrupted data rather than skipped.
type PriceSeries struct {
	symbols  []string // sorted
	bars     map[string][]Bar
	index    map[string]map[int64]int // symbol → unix date → bar index
	calendar []time.Time
	calDirty bool
}

// NewPriceSeries creates an empty PriceSeries.
func NewPriceSeries() *PriceSeries {
	return &PriceSeries{
		bars:  make(map[string][]Bar),
		index: make(map[string]map[int64]int),
	}
}

// Add inserts one symbol's bars. Dates are normalized to midnight UTC and
// sorted ascending; duplicate dates keep the later record. Add returns an
// error if any bar has a non-positive open or close price.
func (s *PriceSeries) Add(symbol string, bars []Bar) error {
	if symbol == "" {
		return fmt.Errorf("price series: empty symbol")
	}
	if len(bars) == 0 {
		return fmt.Errorf("price series: no bars for %s", symbol)
	}

	byDate := make(map[int64]Bar, len(bars))
	for _, b := range bars {
		if b.Open <= 0 || b.Close <= 0 {
			return fmt.Errorf("price series: %s %s has non-positive price (open=%v close=%v)",
				symbol, DateOnly(b.Date).Format("2006-01-02"), b.Open, b.Close)
		}
		b.Symbol = symbol
		b.Date = DateOnly(b.Date)
		byDate[b.Date.Unix()] = b
	}

	sorted := make([]Bar, 0, len(byDate))
	for _, b := range byDate {
		sorted = append(sorted, b)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	if _, exists := s.bars[symbol]; !exists {
		s.symbols = append(s.symbols, symbol)
		sort.Strings(s.symbols)
	}
	s.bars[symbol] = sorted

	idx := make(map[int64]int, len(sorted))
	for i, b := range sorted {
		idx[b.Date.Unix()] = i
	}
	s.index[symbol] = idx
	s.calDirty = true
	return nil
}

// Symbols returns all symbols in sorted order.
func (s *PriceSeries) Symbols() []string {
	return s.symbols
}

// HasSymbol reports whether the series contains bars for symbol.
func (s *PriceSeries) HasSymbol(symbol string) bool {
	_, ok := s.bars[symbol]
	return ok
}

// Bars returns symbol's bars in ascending date order. The returned slice
// must not be modified.
func (s *PriceSeries) Bars(symbol string) []Bar {
	return s.bars[symbol]
}

// Bar returns the bar for symbol on date, if one exists.
func (s *PriceSeries) Bar(symbol string, date time.Time) (Bar, bool) {
	idx, ok := s.index[symbol]
	if !ok {
		return Bar{}, false
	}
	i, ok := idx[DateOnly(date).Unix()]
	if !ok {
		return Bar{}, false
	}
	return s.bars[symbol][i], true
}

// LastCloseBefore returns symbol's most recent closing price strictly before
// date. It reports false if the symbol has no bar earlier than date.
func (s *PriceSeries) LastCloseBefore(symbol string, date time.Time) (float64, bool) {
	bars := s.bars[symbol]
	d := DateOnly(date)
	// First bar index at or after d.
	i := sort.Search(len(bars), func(i int) bool { return !bars[i].Date.Before(d) })
	if i == 0 {
		return 0, false
	}
	return bars[i-1].Close, true
}

// Calendar returns the union of all symbols' trading dates, ascending.
func (s *PriceSeries) Calendar() []time.Time {
	if s.calDirty {
		seen := make(map[int64]time.Time)
		for _, bars := range s.bars {
			for _, b := range bars {
				seen[b.Date.Unix()] = b.Date
			}
		}
		cal := make([]time.Time, 0, len(seen))
		for _, d := range seen {
			cal = append(cal, d)
		}
		sort.Slice(cal, func(i, j int) bool { return cal[i].Before(cal[j]) })
		s.calendar = cal
		s.calDirty = false
	}
	return s.calendar
}

// Len returns the number of dates in the union calendar.
func (s *PriceSeries) Len() int {
	return len(s.Calendar())
}
