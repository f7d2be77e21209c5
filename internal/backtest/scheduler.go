package backtest

import (
	"time"

	"tradesim/internal/domain"
)

// schedKey buckets signals by normalized date and symbol.
type schedKey struct {
	date   int64 // unix seconds at midnight UTC
	symbol string
}

// Scheduler partitions validated signals into two lookup indices, one per
// execution timing, so the day loop can retrieve a day's signals in O(1).
// Within a bucket, signals keep their original relative order. Signals keyed
// to dates that never appear in the price series are simply never retrieved.
type Scheduler struct {
	sameDay map[schedKey][]domain.Signal
	nextDay map[schedKey][]domain.Signal
}

// NewScheduler builds a Scheduler from signals. Signals must already be
// validated (known kind and timing, resolved symbol).
func NewScheduler(signals []domain.Signal) *Scheduler {
	s := &Scheduler{
		sameDay: make(map[schedKey][]domain.Signal),
		nextDay: make(map[schedKey][]domain.Signal),
	}
	for _, sig := range signals {
		k := schedKey{date: domain.DateOnly(sig.Date).Unix(), symbol: sig.Symbol}
		switch sig.Timing {
		case domain.NextDayOpen:
			s.nextDay[k] = append(s.nextDay[k], sig)
		default:
			s.sameDay[k] = append(s.sameDay[k], sig)
		}
	}
	return s
}

// SameDay returns the SameDayClose signals keyed to (date, symbol).
func (s *Scheduler) SameDay(date time.Time, symbol string) []domain.Signal {
	return s.sameDay[schedKey{date: domain.DateOnly(date).Unix(), symbol: symbol}]
}

// NextDay returns the NextDayOpen signals keyed to (date, symbol).
func (s *Scheduler) NextDay(date time.Time, symbol string) []domain.Signal {
	return s.nextDay[schedKey{date: domain.DateOnly(date).Unix(), symbol: symbol}]
}

// NextDayCountOn returns how many NextDayOpen signals are keyed to date
// across all symbols. The runner uses it to report signals dated to the last
// trading day, which have no following open to execute at.
func (s *Scheduler) NextDayCountOn(date time.Time) int {
	d := domain.DateOnly(date).Unix()
	n := 0
	for k, sigs := range s.nextDay {
		if k.date == d {
			n += len(sigs)
		}
	}
	return n
}
