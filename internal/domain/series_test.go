package domain

import (
	"testing"
	"time"
)

func d(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func bar(date string, open, close float64) Bar {
	return Bar{Date: d(date), Open: open, High: close + 1, Low: open - 1, Close: close}
}

func TestSeriesAddSortsAndNormalizes(t *testing.T) {
	s := NewPriceSeries()
	err := s.Add("A", []Bar{
		{Date: d("2024-01-03").Add(15 * time.Hour), Open: 3, High: 4, Low: 2, Close: 3},
		bar("2024-01-01", 1, 1),
		bar("2024-01-02", 2, 2),
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	bars := s.Bars("A")
	if len(bars) != 3 {
		t.Fatalf("got %d bars, want 3", len(bars))
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i-1].Date.Before(bars[i].Date) {
			t.Errorf("bars not in ascending date order: %v then %v", bars[i-1].Date, bars[i].Date)
		}
	}
	if got := bars[2].Date; got.Hour() != 0 || got.Format("2006-01-02") != "2024-01-03" {
		t.Errorf("intraday timestamp not normalized: %v", got)
	}
	for _, b := range bars {
		if b.Symbol != "A" {
			t.Errorf("bar symbol = %q, want A", b.Symbol)
		}
	}
}

func TestSeriesAddDuplicateDateKeepsLater(t *testing.T) {
	s := NewPriceSeries()
	err := s.Add("A", []Bar{
		bar("2024-01-01", 10, 10),
		bar("2024-01-01", 10, 99),
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	b, ok := s.Bar("A", d("2024-01-01"))
	if !ok || b.Close != 99 {
		t.Errorf("duplicate date bar = %+v (ok=%v), want the later record with close 99", b, ok)
	}
}

func TestSeriesAddRejectsNonPositivePrices(t *testing.T) {
	cases := []struct {
		name string
		b    Bar
	}{
		{"zero open", Bar{Date: d("2024-01-01"), Open: 0, Close: 10}},
		{"zero close", Bar{Date: d("2024-01-01"), Open: 10, Close: 0}},
		{"negative close", Bar{Date: d("2024-01-01"), Open: 10, Close: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewPriceSeries()
			if err := s.Add("A", []Bar{tc.b}); err == nil {
				t.Errorf("Add accepted %+v", tc.b)
			}
		})
	}
}

func TestSeriesAddRejectsEmptyInput(t *testing.T) {
	s := NewPriceSeries()
	if err := s.Add("", []Bar{bar("2024-01-01", 1, 1)}); err == nil {
		t.Error("Add accepted empty symbol")
	}
	if err := s.Add("A", nil); err == nil {
		t.Error("Add accepted nil bars")
	}
}

func TestSeriesLastCloseBefore(t *testing.T) {
	s := NewPriceSeries()
	if err := s.Add("A", []Bar{
		bar("2024-01-01", 10, 11),
		bar("2024-01-03", 12, 13),
	}); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		date string
		want float64
		ok   bool
	}{
		{"2024-01-01", 0, false}, // strictly before: nothing precedes the first bar
		{"2024-01-02", 11, true},
		{"2024-01-03", 11, true},
		{"2024-01-04", 13, true},
	}
	for _, tc := range cases {
		got, ok := s.LastCloseBefore("A", d(tc.date))
		if ok != tc.ok || got != tc.want {
			t.Errorf("LastCloseBefore(%s) = (%v, %v), want (%v, %v)", tc.date, got, ok, tc.want, tc.ok)
		}
	}
}

func TestSeriesCalendarUnion(t *testing.T) {
	s := NewPriceSeries()
	if err := s.Add("A", []Bar{bar("2024-01-01", 1, 1), bar("2024-01-03", 1, 1)}); err != nil {
		t.Fatal(err)
	}
	if err := s.Add("B", []Bar{bar("2024-01-02", 1, 1), bar("2024-01-03", 1, 1)}); err != nil {
		t.Fatal(err)
	}

	cal := s.Calendar()
	want := []string{"2024-01-01", "2024-01-02", "2024-01-03"}
	if len(cal) != len(want) {
		t.Fatalf("calendar has %d dates, want %d", len(cal), len(want))
	}
	for i, w := range want {
		if cal[i].Format("2006-01-02") != w {
			t.Errorf("calendar[%d] = %v, want %s", i, cal[i], w)
		}
	}
	if s.Len() != 3 {
		t.Errorf("Len = %d, want 3", s.Len())
	}

	// Adding more bars invalidates the cached calendar.
	if err := s.Add("C", []Bar{bar("2024-01-04", 1, 1)}); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 4 {
		t.Errorf("Len after add = %d, want 4", s.Len())
	}
}

func TestSeriesSymbolsSorted(t *testing.T) {
	s := NewPriceSeries()
	for _, sym := range []string{"MSFT", "AAPL", "GOOG"} {
		if err := s.Add(sym, []Bar{bar("2024-01-01", 1, 1)}); err != nil {
			t.Fatal(err)
		}
	}
	got := s.Symbols()
	want := []string{"AAPL", "GOOG", "MSFT"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Symbols = %v, want %v", got, want)
		}
	}
	if !s.HasSymbol("AAPL") || s.HasSymbol("TSLA") {
		t.Error("HasSymbol gave wrong answers")
	}
}
