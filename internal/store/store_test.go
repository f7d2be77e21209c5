package store

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"tradesim/internal/domain"
)

func TestParquetStorePath(t *testing.T) {
	ps := NewParquetStore("/data")

	got := ps.barPath("aapl", 2024)
	want := filepath.Join("/data", "daily", "AAPL", "2024.parquet")
	if got != want {
		t.Errorf("barPath mismatch:\n  got  %s\n  want %s", got, want)
	}
}

func TestParquetStoreWriteReadBars(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	bars := []domain.Bar{
		{
			Symbol: "AAPL",
			Date:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			Open:   185.0, High: 186.5, Low: 184.0, Close: 185.5,
			Volume: 50000000,
		},
		{
			Symbol: "AAPL",
			Date:   time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
			Open:   185.5, High: 187.0, Low: 185.0, Close: 186.0,
			Volume: 45000000,
		},
	}

	if err := ps.WriteBars(ctx, bars); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	got, err := ps.ReadBars(ctx, "AAPL", start, end)
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadBars returned %d bars, want 2", len(got))
	}
	if got[0].Close != 185.5 {
		t.Errorf("first bar Close = %v, want 185.5", got[0].Close)
	}
	if got[1].Close != 186.0 {
		t.Errorf("second bar Close = %v, want 186.0", got[1].Close)
	}
}

func TestParquetStoreMergeBars(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	bars1 := []domain.Bar{
		{
			Symbol: "MSFT",
			Date:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			Open:   400.0, High: 405.0, Low: 399.0, Close: 403.0,
			Volume: 30000000,
		},
	}
	if err := ps.WriteBars(ctx, bars1); err != nil {
		t.Fatalf("WriteBars (first): %v", err)
	}

	// Second write for same symbol+year merges with the first; the repeated
	// 2024-03-01 date is replaced by the incoming record.
	bars2 := []domain.Bar{
		{
			Symbol: "MSFT",
			Date:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			Open:   400.0, High: 406.0, Low: 399.0, Close: 404.0,
			Volume: 31000000,
		},
		{
			Symbol: "MSFT",
			Date:   time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
			Open:   403.0, High: 410.0, Low: 402.0, Close: 408.0,
			Volume: 35000000,
		},
	}
	if err := ps.WriteBars(ctx, bars2); err != nil {
		t.Fatalf("WriteBars (second): %v", err)
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	got, err := ps.ReadBars(ctx, "MSFT", start, end)
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadBars returned %d bars after merge, want 2", len(got))
	}
	if got[0].Close != 404.0 {
		t.Errorf("merged bar Close = %v, want the rewritten 404.0", got[0].Close)
	}
}

func TestParquetStoreListSymbols(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	bars := []domain.Bar{
		{Symbol: "AAPL", Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Open: 185.0, High: 186.0, Low: 184.0, Close: 185.5, Volume: 50000000},
		{Symbol: "GOOGL", Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Open: 140.0, High: 141.0, Low: 139.0, Close: 140.5, Volume: 20000000},
	}
	if err := ps.WriteBars(ctx, bars); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	symbols, err := ps.ListSymbols(ctx)
	if err != nil {
		t.Fatalf("ListSymbols: %v", err)
	}
	if len(symbols) != 2 || symbols[0] != "AAPL" || symbols[1] != "GOOGL" {
		t.Errorf("ListSymbols = %v, want [AAPL GOOGL]", symbols)
	}
}

func TestSQLiteStoreSaveGetListRuns(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	result := json.RawMessage(`{"metrics":{"totalReturn":500}}`)
	run := &Run{
		ID:             "run-1",
		CreatedAt:      time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Strategy:       "sma_cross",
		Symbols:        []string{"AAPL", "MSFT"},
		StartDate:      time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC),
		InitialCash:    100000,
		CommissionRate: 0.001,
		TotalReturnPct: 0.5,
		MaxDrawdownPct: 2.5,
		SharpeRatio:    1.1,
		TradeCount:     12,
		Result:         result,
	}
	if err := s.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Strategy != "sma_cross" || got.TradeCount != 12 {
		t.Errorf("GetRun = %+v", got)
	}
	if len(got.Symbols) != 2 || got.Symbols[1] != "MSFT" {
		t.Errorf("GetRun symbols = %v", got.Symbols)
	}
	if got.StartDate.Format("2006-01-02") != "2024-01-02" {
		t.Errorf("GetRun start date = %v", got.StartDate)
	}
	if string(got.Result) != string(result) {
		t.Errorf("GetRun result = %s", got.Result)
	}

	// A second, later run should list first.
	run2 := &Run{ID: "run-2", CreatedAt: time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC)}
	if err := s.SaveRun(ctx, run2); err != nil {
		t.Fatalf("SaveRun (second): %v", err)
	}

	runs, err := s.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("ListRuns returned %d runs, want 2", len(runs))
	}
	if runs[0].ID != "run-2" || runs[1].ID != "run-1" {
		t.Errorf("ListRuns order = [%s %s], want newest first", runs[0].ID, runs[1].ID)
	}
	if len(runs[0].Result) != 0 {
		t.Errorf("ListRuns should omit result payloads, got %d bytes", len(runs[0].Result))
	}
}

func TestSQLiteStoreGetRunNotFound(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()

	if _, err := s.GetRun(context.Background(), "nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetRun(nope) = %v, want ErrRunNotFound", err)
	}
}

func TestSQLiteStoreRejectsEmptyID(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()

	if err := s.SaveRun(context.Background(), &Run{}); err == nil {
		t.Error("SaveRun accepted a run without an ID")
	}
}
