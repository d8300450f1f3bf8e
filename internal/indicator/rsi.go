package indicator

import "fmt"

// Compile-time interface check.
var _ Indicator = (*RSI)(nil)

// RSI is the relative strength index: Wilder-smoothed average gain over
// average loss, scaled to [0, 100]. It warms up after period deltas, which
// takes period+1 closes.
type RSI struct {
	period  int
	prev    float64
	hasPrev bool
	deltas  int
	sumGain float64 // accumulation phase only
	sumLoss float64
	avgGain float64
	avgLoss float64
}

// NewRSI creates a relative strength index. Panics if period < 1; callers
// going through Engine.Add get an error instead.
func NewRSI(period int) *RSI {
	if period < 1 {
		panic("indicator: period must be at least 1")
	}
	return &RSI{period: period}
}

// Name returns "rsi(<period>)".
func (r *RSI) Name() string { return fmt.Sprintf("rsi(%d)", r.period) }

// Update feeds the next close. The first period deltas are averaged
// directly; afterwards Wilder smoothing applies:
// avg = (avgPrev*(period-1) + current) / period.
func (r *RSI) Update(close float64) {
	if !r.hasPrev {
		r.prev = close
		r.hasPrev = true
		return
	}
	delta := close - r.prev
	r.prev = close

	var gain, loss float64
	if delta > 0 {
		gain = delta
	} else {
		loss = -delta
	}

	r.deltas++
	switch {
	case r.deltas < r.period:
		r.sumGain += gain
		r.sumLoss += loss
	case r.deltas == r.period:
		r.avgGain = (r.sumGain + gain) / float64(r.period)
		r.avgLoss = (r.sumLoss + loss) / float64(r.period)
	default:
		p := float64(r.period)
		r.avgGain = (r.avgGain*(p-1) + gain) / p
		r.avgLoss = (r.avgLoss*(p-1) + loss) / p
	}
}

// Value returns the index in [0, 100]. A zero average loss yields 100,
// never a division by zero.
func (r *RSI) Value() (float64, bool) {
	if r.deltas < r.period {
		return 0, false
	}
	if r.avgLoss == 0 {
		return 100, true
	}
	rs := r.avgGain / r.avgLoss
	return 100 - 100/(1+rs), true
}
