package candle

import "hindsight/internal/domain"

const (
	// syntheticBase is 2024-01-01T00:00:00Z in epoch milliseconds.
	syntheticBase = int64(1704067200000)

	// syntheticStep is one day in milliseconds.
	syntheticStep = int64(86400000)
)

// Synthetic generates n daily candles whose closes ramp linearly from start
// by step per candle. Each open is the previous close, so the series always
// passes Validate. Output is fully deterministic.
func Synthetic(n int, start, step float64) []domain.Candle {
	candles := make([]domain.Candle, 0, n)
	open := start
	for i := 0; i < n; i++ {
		close := start + step*float64(i)
		c := domain.Candle{
			Timestamp: syntheticBase + int64(i)*syntheticStep,
			Open:      open,
			High:      max(open, close),
			Low:       min(open, close),
			Close:     close,
			Volume:    1000,
		}
		candles = append(candles, c)
		open = close
	}
	return candles
}
