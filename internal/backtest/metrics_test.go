package backtest

import (
	"math"
	"testing"

	"hindsight/internal/domain"
)

func curve(values ...float64) []domain.EquitySample {
	samples := make([]domain.EquitySample, len(values))
	for i, v := range values {
		samples[i] = domain.EquitySample{Timestamp: int64(i), Equity: v}
	}
	return samples
}

func sellTrade(pnl float64) domain.Trade {
	return domain.Trade{Side: domain.SideSell, RealizedPnL: pnl}
}

func TestMaxDrawdownKnownCurve(t *testing.T) {
	// Peak 120, deepest trough 80: drawdown 40/120.
	m := computeMetrics(100, curve(100, 120, 90, 110, 80), nil, 252)
	approx(t, "max drawdown", m.MaxDrawdown, 40.0/120.0)
}

func TestMaxDrawdownZeroOnRisingCurve(t *testing.T) {
	m := computeMetrics(100, curve(100, 105, 110, 120), nil, 252)
	approx(t, "max drawdown", m.MaxDrawdown, 0)
}

func TestProfitFactorCases(t *testing.T) {
	t.Run("no sells", func(t *testing.T) {
		m := computeMetrics(100, curve(100), nil, 252)
		approx(t, "profit factor", m.ProfitFactor, 0)
		approx(t, "win rate", m.WinRate, 0)
	})

	t.Run("profits only", func(t *testing.T) {
		m := computeMetrics(100, curve(100), []domain.Trade{sellTrade(30)}, 252)
		if !math.IsInf(m.ProfitFactor, 1) {
			t.Errorf("profit factor = %v, want +Inf", m.ProfitFactor)
		}
	})

	t.Run("losses only", func(t *testing.T) {
		m := computeMetrics(100, curve(100), []domain.Trade{sellTrade(-30)}, 252)
		approx(t, "profit factor", m.ProfitFactor, 0)
	})

	t.Run("mixed", func(t *testing.T) {
		m := computeMetrics(100, curve(100), []domain.Trade{sellTrade(30), sellTrade(-10)}, 252)
		approx(t, "profit factor", m.ProfitFactor, 3)
	})

	t.Run("buys ignored", func(t *testing.T) {
		trades := []domain.Trade{
			{Side: domain.SideBuy},
			sellTrade(10),
		}
		m := computeMetrics(100, curve(100), trades, 252)
		approx(t, "win rate", m.WinRate, 1)
	})
}

func TestWinRateCountsBreakevenAsLoss(t *testing.T) {
	trades := []domain.Trade{sellTrade(5), sellTrade(8), sellTrade(-3), sellTrade(0)}
	m := computeMetrics(100, curve(100), trades, 252)
	approx(t, "win rate", m.WinRate, 0.5)
}

func TestSharpeNeedsTwoReturns(t *testing.T) {
	m := computeMetrics(100, curve(100, 110), nil, 252)
	approx(t, "sharpe", m.SharpeRatio, 0)
}

func TestSharpeZeroOnConstantReturns(t *testing.T) {
	// Returns 0.1 and 0.1: zero variance.
	m := computeMetrics(100, curve(100, 110, 121), nil, 252)
	approx(t, "sharpe", m.SharpeRatio, 0)
}

func TestSharpeKnownValue(t *testing.T) {
	// Returns 0.1 and 0.05.
	m := computeMetrics(100, curve(100, 110, 115.5), nil, 252)

	mean := 0.075
	sd := math.Sqrt((math.Pow(0.1-mean, 2) + math.Pow(0.05-mean, 2)) / 1)
	want := mean / sd * math.Sqrt(252)
	if math.Abs(m.SharpeRatio-want) > 1e-6 {
		t.Errorf("sharpe = %v, want %v", m.SharpeRatio, want)
	}
}

func TestROIFromFinalEquity(t *testing.T) {
	m := computeMetrics(10000, curve(10000, 11000, 12000), nil, 252)
	approx(t, "roi", m.ROI, 0.2)
}

func TestMetricsOnEmptyCurve(t *testing.T) {
	m := computeMetrics(10000, nil, nil, 252)
	approx(t, "roi", m.ROI, 0)
	approx(t, "max drawdown", m.MaxDrawdown, 0)
	approx(t, "sharpe", m.SharpeRatio, 0)
}
