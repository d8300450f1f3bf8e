package domain

import (
	"testing"
	"time"
)

func TestCandleTime(t *testing.T) {
	c := Candle{Timestamp: 1704153600000} // 2024-01-02 00:00:00 UTC
	want := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	if got := c.Time(); !got.Equal(want) {
		t.Errorf("Candle.Time() = %v, want %v", got, want)
	}
}

func TestPositionEquity(t *testing.T) {
	tests := []struct {
		name  string
		pos   Position
		price float64
		want  float64
	}{
		{"all cash", Position{Cash: 10000}, 50, 10000},
		{"cash and asset", Position{Cash: 500, Quantity: 10}, 50, 1000},
		{"all asset", Position{Quantity: 2.5}, 100, 250},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pos.Equity(tt.price); got != tt.want {
				t.Errorf("Equity(%v) = %v, want %v", tt.price, got, tt.want)
			}
		})
	}
}

func TestPositionFlat(t *testing.T) {
	if !(Position{Cash: 100}).Flat() {
		t.Error("position with zero quantity should be flat")
	}
	if (Position{Quantity: 0.001}).Flat() {
		t.Error("position with quantity should not be flat")
	}
}

func TestAdviceConstructors(t *testing.T) {
	if a := Hold(); a.Action != ActionNone {
		t.Errorf("Hold().Action = %q, want %q", a.Action, ActionNone)
	}

	a := BuyAll("golden cross")
	if a.Action != ActionBuy || !a.All || a.Reason != "golden cross" {
		t.Errorf("BuyAll() = %+v, want buy-all with reason", a)
	}

	a = Buy(2.5, "dip")
	if a.Action != ActionBuy || a.All || a.Size != 2.5 {
		t.Errorf("Buy(2.5) = %+v, want sized buy", a)
	}

	a = SellAll("death cross")
	if a.Action != ActionSell || !a.All {
		t.Errorf("SellAll() = %+v, want sell-all", a)
	}

	a = Sell(1.0, "trim")
	if a.Action != ActionSell || a.All || a.Size != 1.0 {
		t.Errorf("Sell(1.0) = %+v, want sized sell", a)
	}
}
