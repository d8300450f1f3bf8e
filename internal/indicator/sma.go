package indicator

import "fmt"

// Compile-time interface check.
var _ Indicator = (*SMA)(nil)

// SMA is a simple moving average over the last period closes, held in a
// fixed-capacity ring buffer.
type SMA struct {
	period int
	buf    []float64
	next   int // ring write index; once full, also the oldest element
	count  int // values observed, capped at period
}

// NewSMA creates a simple moving average. Panics if period < 1; callers
// going through Engine.Add get an error instead.
func NewSMA(period int) *SMA {
	if period < 1 {
		panic("indicator: period must be at least 1")
	}
	return &SMA{period: period, buf: make([]float64, period)}
}

// Name returns "sma(<period>)".
func (s *SMA) Name() string { return fmt.Sprintf("sma(%d)", s.period) }

// Update pushes the next close, evicting the oldest once the window is full.
func (s *SMA) Update(close float64) {
	s.buf[s.next] = close
	s.next = (s.next + 1) % s.period
	if s.count < s.period {
		s.count++
	}
}

// Value returns the arithmetic mean of the window. The sum runs oldest to
// newest so the rounding order is identical on every run.
func (s *SMA) Value() (float64, bool) {
	if s.count < s.period {
		return 0, false
	}
	sum := 0.0
	for i := 0; i < s.period; i++ {
		sum += s.buf[(s.next+i)%s.period]
	}
	return sum / float64(s.period), true
}
