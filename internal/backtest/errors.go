// Package backtest implements the signal-replay simulation engine: a
// scheduler that buckets signals by execution day, an executor that turns
// signals into fills under sizing and portfolio constraints, an accountant
// that owns cash and positions, and the metrics computed from the resulting
// equity curve and trade ledger.
package backtest

import "errors"

// ErrIntegrity marks fatal data-integrity failures: a non-positive price used
// for execution or valuation, negative cash, a negative share position, or an
// equity reconciliation mismatch beyond tolerance. These indicate corrupted
// input or an engine bug and abort the run; callers distinguish them with
// errors.Is. Constraint rejections (insufficient cash, reserve floor,
// position cap) are not errors at all — the signal is simply not filled.
var ErrIntegrity = errors.New("data integrity violation")
