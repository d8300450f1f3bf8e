// Package strategy defines the Strategy interface for trading strategies,
// the per-run Setup and per-candle Tick values the orchestrator feeds them,
// and a Registry for managing multiple strategy implementations.
package strategy

import (
	"context"
	"math/rand"

	"hindsight/internal/domain"
	"hindsight/internal/indicator"
)

// Strategy is the fixed lifecycle every trading strategy implements. Init
// runs exactly once before the first candle; OnCandle runs once per candle,
// in order, never concurrently, never re-entrantly for the same run.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// Init performs one-time setup: reading parameters and registering the
	// indicators the strategy needs. An error aborts the run before any
	// simulation occurs.
	Init(ctx context.Context, setup *Setup) error

	// OnCandle evaluates the current candle and returns trading advice.
	// Returning domain.Hold() means no action.
	OnCandle(ctx context.Context, tick *Tick) (domain.Advice, error)
}

// Setup carries everything a strategy may use during Init. Indicator
// registration is only possible here; the engine seals before the first
// candle.
type Setup struct {
	// Params holds the strategy's free-form configuration.
	Params Params

	// Indicators accepts indicator registrations via Add.
	Indicators *indicator.Engine

	// Rand is the run's seeded random source. Strategies needing randomness
	// must draw from it so runs stay reproducible.
	Rand *rand.Rand
}

// Tick is the read-only view of one candle step handed to OnCandle.
type Tick struct {
	// Index is the zero-based position of the candle in the series.
	Index int

	// Candle is the candle being evaluated.
	Candle domain.Candle

	// History holds the series up to and including the current candle.
	// Strategies must treat it as read-only.
	History []domain.Candle

	// Indicators exposes readings computed from candles up to and including
	// the current one.
	Indicators indicator.View
}

// Params is a strategy's free-form configuration, typically decoded from
// YAML or JSON.
type Params map[string]any

// Int returns the integer value for key, or def when the key is missing or
// not numeric. JSON and YAML decoders may deliver numbers as int, int64, or
// float64.
func (p Params) Int(key string, def int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// Float returns the float value for key, or def when the key is missing or
// not numeric.
func (p Params) Float(key string, def float64) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return def
	}
}

// String returns the string value for key, or def when the key is missing
// or not a string.
func (p Params) String(key string, def string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return def
}
