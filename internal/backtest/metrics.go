package backtest

import (
	"math"

	"hindsight/internal/domain"
)

// computeMetrics derives the summary statistics from a finished (or
// partially finished) run. All passes are single forward scans in slice
// order so repeated runs produce identical floats.
func computeMetrics(initialBalance float64, curve []domain.EquitySample, trades []domain.Trade, annualization float64) domain.Metrics {
	final := initialBalance
	if len(curve) > 0 {
		final = curve[len(curve)-1].Equity
	}

	m := domain.Metrics{
		ROI:          (final - initialBalance) / initialBalance,
		MaxDrawdown:  maxDrawdown(curve),
		SharpeRatio:  sharpe(curve, annualization),
		ProfitFactor: 0,
	}

	var sells, wins int
	var grossProfit, grossLoss float64
	for _, t := range trades {
		if t.Side != domain.SideSell {
			continue
		}
		sells++
		switch {
		case t.RealizedPnL > 0:
			wins++
			grossProfit += t.RealizedPnL
		case t.RealizedPnL < 0:
			grossLoss += -t.RealizedPnL
		}
	}
	if sells > 0 {
		m.WinRate = float64(wins) / float64(sells)
	}
	switch {
	case grossLoss > 0:
		m.ProfitFactor = grossProfit / grossLoss
	case grossProfit > 0:
		// No losing trades: +Inf sentinel, mapped to null at the JSON
		// boundary.
		m.ProfitFactor = math.Inf(1)
	}
	return m
}

// maxDrawdown returns the largest peak-to-trough decline as a fraction of
// the running peak.
func maxDrawdown(curve []domain.EquitySample) float64 {
	var peak, maxDD float64
	for _, s := range curve {
		if s.Equity > peak {
			peak = s.Equity
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - s.Equity) / peak; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// sharpe computes mean over sample standard deviation of per-candle returns,
// scaled by the square root of the annualization factor. Returns 0 when
// fewer than two returns exist or the variance is zero.
func sharpe(curve []domain.EquitySample, annualization float64) float64 {
	var returns []float64
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev <= 0 {
			continue
		}
		returns = append(returns, (curve[i].Equity-prev)/prev)
	}
	if len(returns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var sq float64
	for _, r := range returns {
		d := r - mean
		sq += d * d
	}
	variance := sq / float64(len(returns)-1)
	if variance == 0 {
		return 0
	}
	return mean / math.Sqrt(variance) * math.Sqrt(annualization)
}
