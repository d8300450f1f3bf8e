// Package indicator implements streaming technical indicators computed one
// candle at a time: simple and exponential moving averages, the relative
// strength index, and crossover detection between indicator pairs.
//
// Every indicator has a warm-up period. Until enough closes have been
// observed, Value reports ready == false and the reading must not be used.
package indicator

import "errors"

// ErrInvalidInput reports a non-finite close price reaching the engine.
// Fatal to the run.
var ErrInvalidInput = errors.New("invalid indicator input")

// Kind identifies an indicator family.
type Kind string

const (
	KindSMA Kind = "sma"
	KindEMA Kind = "ema"
	KindRSI Kind = "rsi"
)

// Indicator is a streaming calculator over candle closes. Implementations
// are pure with respect to their own accumulated state: the same sequence
// of inputs always yields the same sequence of outputs.
type Indicator interface {
	// Name returns the indicator identity, e.g. "sma(20)".
	Name() string

	// Update feeds the next close price. Inputs are validated by the Engine
	// before they reach individual indicators.
	Update(close float64)

	// Value returns the current reading and whether the warm-up period has
	// completed. Readings taken before warm-up carry no meaning.
	Value() (float64, bool)
}
