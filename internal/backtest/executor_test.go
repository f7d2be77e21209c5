package backtest

import (
	"testing"

	"tradesim/internal/domain"
)

func buySignal(symbol string, kind domain.SignalKind, amount float64) domain.Signal {
	return domain.Signal{Date: day("2024-01-01"), Symbol: symbol, Kind: kind, Amount: amount, Timing: domain.SameDayClose}
}

func TestExecutorReserveCashShrinksBuy(t *testing.T) {
	// initialCash=1000, reserve 50% → min cash 500. A notional buy of 800 at
	// price 10 would leave 200; it must shrink to 50 shares costing 500.
	acct := NewAccountant(1000, nil)
	exec := NewExecutor(acct, 0, Constraints{ReserveCashPct: 50}, nil)

	fill, err := exec.Attempt(buySignal("A", domain.NotionalAmount, 800), day("2024-01-01"), 10, 10, domain.SameDayClose)
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	if fill == nil {
		t.Fatal("buy was rejected, want shrunk fill")
	}
	if fill.Size != 50 {
		t.Errorf("size = %d, want 50", fill.Size)
	}
	if acct.Cash() != 500 {
		t.Errorf("cash = %v, want 500", acct.Cash())
	}
}

func TestExecutorReserveCashRejectsWhenNothingFits(t *testing.T) {
	acct := NewAccountant(1000, nil)
	exec := NewExecutor(acct, 0, Constraints{ReserveCashPct: 100}, nil)

	fill, err := exec.Attempt(buySignal("A", domain.NotionalAmount, 500), day("2024-01-01"), 10, 10, domain.SameDayClose)
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	if fill != nil {
		t.Fatalf("got fill %+v, want rejection: entire capital is reserved", fill)
	}
	if acct.Cash() != 1000 {
		t.Errorf("cash = %v, want untouched 1000", acct.Cash())
	}
}

func TestExecutorMaxConcurrentPositions(t *testing.T) {
	acct := NewAccountant(10000, nil)
	exec := NewExecutor(acct, 0, Constraints{MaxConcurrentPositions: 1}, nil)

	// Open position in A.
	if fill, err := exec.Attempt(buySignal("A", domain.ShareCount, 10), day("2024-01-01"), 10, 10, domain.SameDayClose); err != nil || fill == nil {
		t.Fatalf("opening buy failed: fill=%v err=%v", fill, err)
	}

	// A new symbol is rejected by the cap.
	fill, err := exec.Attempt(buySignal("B", domain.ShareCount, 10), day("2024-01-01"), 10, 10, domain.SameDayClose)
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	if fill != nil {
		t.Errorf("buy of new symbol B filled despite cap, fill=%+v", fill)
	}

	// Adding to the existing position is still allowed.
	fill, err = exec.Attempt(buySignal("A", domain.ShareCount, 5), day("2024-01-01"), 10, 10, domain.SameDayClose)
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	if fill == nil || fill.Size != 5 {
		t.Errorf("add-on buy to A = %+v, want 5 shares", fill)
	}
}

func TestExecutorSellCappedAtHeld(t *testing.T) {
	acct := NewAccountant(1000, nil)
	exec := NewExecutor(acct, 0, Constraints{}, nil)

	if _, err := exec.Attempt(buySignal("A", domain.ShareCount, 7), day("2024-01-01"), 10, 10, domain.SameDayClose); err != nil {
		t.Fatal(err)
	}

	fill, err := exec.Attempt(buySignal("A", domain.ShareCount, -100), day("2024-01-02"), 12, 12, domain.SameDayClose)
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	if fill == nil || fill.Size != 7 {
		t.Fatalf("sell fill = %+v, want capped at 7 held shares", fill)
	}
	if got := acct.Shares("A"); got != 0 {
		t.Errorf("shares after sell = %d, want 0", got)
	}
}

func TestExecutorSellNothingHeldRejected(t *testing.T) {
	acct := NewAccountant(1000, nil)
	exec := NewExecutor(acct, 0, Constraints{}, nil)

	fill, err := exec.Attempt(buySignal("A", domain.ShareCount, -5), day("2024-01-01"), 10, 10, domain.SameDayClose)
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	if fill != nil {
		t.Errorf("sell with no position produced fill %+v", fill)
	}
}

func TestExecutorInsufficientCashRejectsWhole(t *testing.T) {
	// No partial fill: 15 shares at 10 need 150, only 100 available.
	acct := NewAccountant(100, nil)
	exec := NewExecutor(acct, 0, Constraints{}, nil)

	fill, err := exec.Attempt(buySignal("A", domain.ShareCount, 15), day("2024-01-01"), 10, 10, domain.SameDayClose)
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	if fill != nil {
		t.Errorf("underfunded buy produced fill %+v, want full rejection", fill)
	}
	if acct.Cash() != 100 {
		t.Errorf("cash = %v, want untouched 100", acct.Cash())
	}
}

func TestExecutorZeroAmountIsNoOp(t *testing.T) {
	acct := NewAccountant(1000, nil)
	exec := NewExecutor(acct, 0, Constraints{}, nil)

	fill, err := exec.Attempt(buySignal("A", domain.NotionalAmount, 0), day("2024-01-01"), 10, 10, domain.SameDayClose)
	if err != nil || fill != nil {
		t.Fatalf("zero-amount signal: fill=%v err=%v, want nil/nil", fill, err)
	}
}

func TestExecutorCommissionMonotonicity(t *testing.T) {
	// With a reserve floor active, a higher commission rate can only shrink
	// (never grow) the share count for a fixed notional buy.
	prev := int64(1 << 62)
	for _, rate := range []float64{0, 0.001, 0.01, 0.05, 0.25} {
		acct := NewAccountant(1000, nil)
		exec := NewExecutor(acct, rate, Constraints{ReserveCashPct: 50}, nil)

		fill, err := exec.Attempt(buySignal("A", domain.NotionalAmount, 900), day("2024-01-01"), 10, 10, domain.SameDayClose)
		if err != nil {
			t.Fatalf("rate %v: %v", rate, err)
		}
		if fill == nil {
			t.Fatalf("rate %v: buy rejected", rate)
		}
		if fill.Size > prev {
			t.Errorf("rate %v: size %d exceeds size %d at lower rate", rate, fill.Size, prev)
		}
		prev = fill.Size
	}
}

func TestExecutorCommissionApplied(t *testing.T) {
	acct := NewAccountant(1000, nil)
	exec := NewExecutor(acct, 0.01, Constraints{}, nil)

	fill, err := exec.Attempt(buySignal("A", domain.ShareCount, 10), day("2024-01-01"), 10, 10, domain.SameDayClose)
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	if fill.Commission != 1 { // 100 * 0.01
		t.Errorf("commission = %v, want 1", fill.Commission)
	}
	if acct.Cash() != 899 { // 1000 - 100*1.01
		t.Errorf("cash = %v, want 899", acct.Cash())
	}

	sell, err := exec.Attempt(buySignal("A", domain.ShareCount, -10), day("2024-01-02"), 10, 10, domain.SameDayClose)
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	if got := acct.Cash(); got != 899+99 { // proceeds 100 * (1-0.01)
		t.Errorf("cash after sell = %v, want 998", got)
	}
	if sell.Commission != 1 {
		t.Errorf("sell commission = %v, want 1", sell.Commission)
	}
}

func TestDesiredSharesTruncatesTowardZero(t *testing.T) {
	cases := []struct {
		kind   domain.SignalKind
		amount float64
		price  float64
		want   int64
	}{
		{domain.NotionalAmount, 99.99, 10, 9},
		{domain.NotionalAmount, -99.99, 10, 9},
		{domain.ShareCount, 7.9, 3, 7},
		{domain.ShareCount, -7.9, 3, 7},
	}
	for _, tc := range cases {
		sig := domain.Signal{Kind: tc.kind, Amount: tc.amount}
		if got := desiredShares(sig, tc.price); got != tc.want {
			t.Errorf("desiredShares(%v %v @ %v) = %d, want %d", tc.kind, tc.amount, tc.price, got, tc.want)
		}
	}
}
