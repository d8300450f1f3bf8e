package candle

import (
	"errors"
	"fmt"
	"math"

	"hindsight/internal/domain"
)

// ErrInvalidSeries rejects a candle series that violates the shape or
// ordering rules. The wrapped message names the first offending index.
var ErrInvalidSeries = errors.New("invalid candle series")

// Validate checks a candle series against the rules every consumer assumes:
// non-empty, all values finite, low <= open,close <= high, volume not
// negative, timestamps non-decreasing, and duplicate timestamps only when
// the whole candle repeats.
func Validate(candles []domain.Candle) error {
	if len(candles) == 0 {
		return fmt.Errorf("%w: empty series", ErrInvalidSeries)
	}

	for i, c := range candles {
		for _, v := range [5]float64{c.Open, c.High, c.Low, c.Close, c.Volume} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: non-finite value at index %d (timestamp %d)", ErrInvalidSeries, i, c.Timestamp)
			}
		}
		if c.Low > c.Open || c.Low > c.Close || c.High < c.Open || c.High < c.Close {
			return fmt.Errorf("%w: price range violated at index %d (timestamp %d): low=%v open=%v close=%v high=%v",
				ErrInvalidSeries, i, c.Timestamp, c.Low, c.Open, c.Close, c.High)
		}
		if c.Volume < 0 {
			return fmt.Errorf("%w: negative volume at index %d (timestamp %d)", ErrInvalidSeries, i, c.Timestamp)
		}

		if i == 0 {
			continue
		}
		prev := candles[i-1]
		switch {
		case c.Timestamp < prev.Timestamp:
			return fmt.Errorf("%w: timestamps out of order at index %d (%d after %d)",
				ErrInvalidSeries, i, c.Timestamp, prev.Timestamp)
		case c.Timestamp == prev.Timestamp && c != prev:
			return fmt.Errorf("%w: duplicate timestamp %d with differing prices at index %d",
				ErrInvalidSeries, c.Timestamp, i)
		}
	}
	return nil
}
