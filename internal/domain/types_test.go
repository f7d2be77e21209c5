package domain

import (
	"testing"
	"time"
)

func TestDateOnly(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	cases := []struct {
		name string
		in   time.Time
		want string
	}{
		{"already midnight utc", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), "2024-03-15"},
		{"midday utc", time.Date(2024, 3, 15, 14, 30, 45, 999, time.UTC), "2024-03-15"},
		{"non-utc keeps displayed date", time.Date(2024, 3, 15, 22, 0, 0, 0, loc), "2024-03-15"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DateOnly(tc.in)
			if got.Format("2006-01-02") != tc.want {
				t.Errorf("DateOnly(%v) = %v, want date %s", tc.in, got, tc.want)
			}
			if got.Location() != time.UTC {
				t.Errorf("DateOnly(%v) location = %v, want UTC", tc.in, got.Location())
			}
			h, m, s := got.Clock()
			if h != 0 || m != 0 || s != 0 || got.Nanosecond() != 0 {
				t.Errorf("DateOnly(%v) = %v, want midnight", tc.in, got)
			}
		})
	}
}

func TestSignalKindValues(t *testing.T) {
	if NotionalAmount != "notional" || ShareCount != "shares" {
		t.Errorf("signal kind wire values changed: %q, %q", NotionalAmount, ShareCount)
	}
	if SameDayClose != "close" || NextDayOpen != "next_open" {
		t.Errorf("execution timing wire values changed: %q, %q", SameDayClose, NextDayOpen)
	}
}
