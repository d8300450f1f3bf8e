package indicator

import "fmt"

// Compile-time interface check.
var _ Indicator = (*EMA)(nil)

// EMA is an exponential moving average with smoothing factor 2/(period+1).
// The first period closes seed the initial value as a simple average.
type EMA struct {
	period int
	alpha  float64
	sum    float64 // seed accumulator
	seen   int
	value  float64
	ready  bool
}

// NewEMA creates an exponential moving average. Panics if period < 1;
// callers going through Engine.Add get an error instead.
func NewEMA(period int) *EMA {
	if period < 1 {
		panic("indicator: period must be at least 1")
	}
	return &EMA{period: period, alpha: 2.0 / float64(period+1)}
}

// Name returns "ema(<period>)".
func (e *EMA) Name() string { return fmt.Sprintf("ema(%d)", e.period) }

// Update feeds the next close.
func (e *EMA) Update(close float64) {
	if !e.ready {
		e.sum += close
		e.seen++
		if e.seen == e.period {
			e.value = e.sum / float64(e.period)
			e.ready = true
		}
		return
	}
	e.value = close*e.alpha + e.value*(1-e.alpha)
}

// Value returns the current average once the seed window has completed.
func (e *EMA) Value() (float64, bool) {
	if !e.ready {
		return 0, false
	}
	return e.value, true
}
