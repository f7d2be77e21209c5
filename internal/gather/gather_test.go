package gather

import (
	"context"
	"testing"
)

func TestDailyBarGathererValidatesInput(t *testing.T) {
	g := NewDailyBarGatherer("k", "s", "", nil, nil, "2020-01-01", 100, 200)
	if err := g.Run(context.Background()); err == nil {
		t.Error("Run should fail with no symbols configured")
	}

	g = NewDailyBarGatherer("k", "s", "", nil, []string{"AAPL"}, "not-a-date", 100, 200)
	if err := g.Run(context.Background()); err == nil {
		t.Error("Run should fail with an unparseable start date")
	}
}

func TestDailyBarGathererName(t *testing.T) {
	g := NewDailyBarGatherer("k", "s", "", nil, []string{"AAPL"}, "2020-01-01", 100, 200)
	if g.Name() != "daily-bars" {
		t.Errorf("Name = %q", g.Name())
	}
}
