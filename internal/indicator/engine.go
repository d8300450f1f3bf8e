package indicator

import (
	"fmt"
	"math"

	"hindsight/internal/domain"
)

// View is the read-only facade handed to strategies during evaluation.
// Readings always reflect candles up to and including the current one.
type View interface {
	// SMA returns the simple moving average reading for the period.
	SMA(period int) (float64, bool)

	// EMA returns the exponential moving average reading for the period.
	EMA(period int) (float64, bool)

	// RSI returns the relative strength index reading for the period.
	RSI(period int) (float64, bool)

	// BullishCross reports whether the fast line of the given kind crossed
	// above the slow line at the current candle.
	BullishCross(kind Kind, fast, slow int) bool

	// BearishCross reports whether the fast line of the given kind crossed
	// below the slow line at the current candle.
	BearishCross(kind Kind, fast, slow int) bool
}

// Compile-time interface check.
var _ View = (*Engine)(nil)

// reading is one indicator output at one candle.
type reading struct {
	value float64
	ready bool
}

// Engine owns a set of streaming indicators, updates all of them once per
// candle in registration order, and keeps the one-step history needed for
// crossover detection.
//
// Registration closes at the first Update (or an explicit Seal), so a
// strategy cannot introduce look-ahead by adding indicators mid-run.
type Engine struct {
	order  []string
	byName map[string]Indicator
	prev   map[string]reading
	curr   map[string]reading
	sealed bool
}

// NewEngine creates an empty indicator engine.
func NewEngine() *Engine {
	return &Engine{
		byName: make(map[string]Indicator),
		prev:   make(map[string]reading),
		curr:   make(map[string]reading),
	}
}

// Add registers an indicator of the given kind and period. Registering the
// same kind and period twice is a no-op. Add fails once the engine is
// sealed.
func (e *Engine) Add(kind Kind, period int) error {
	if e.sealed {
		return fmt.Errorf("engine sealed: indicators must be registered during strategy init")
	}
	if period < 1 {
		return fmt.Errorf("indicator period must be at least 1, got %d", period)
	}
	name := key(kind, period)
	if _, ok := e.byName[name]; ok {
		return nil
	}

	var ind Indicator
	switch kind {
	case KindSMA:
		ind = NewSMA(period)
	case KindEMA:
		ind = NewEMA(period)
	case KindRSI:
		ind = NewRSI(period)
	default:
		return fmt.Errorf("unknown indicator kind %q", kind)
	}

	e.order = append(e.order, name)
	e.byName[name] = ind
	return nil
}

// Seal closes registration. The orchestrator calls this after strategy
// init; Update also seals implicitly.
func (e *Engine) Seal() { e.sealed = true }

// Len returns the number of registered indicators.
func (e *Engine) Len() int { return len(e.order) }

// Update feeds the candle close to every registered indicator, in
// registration order, and rotates the crossover history. A non-finite
// close fails with ErrInvalidInput.
func (e *Engine) Update(c domain.Candle) error {
	if math.IsNaN(c.Close) || math.IsInf(c.Close, 0) {
		return fmt.Errorf("%w: close=%v", ErrInvalidInput, c.Close)
	}
	e.sealed = true
	for _, name := range e.order {
		ind := e.byName[name]
		e.prev[name] = e.curr[name]
		ind.Update(c.Close)
		v, ok := ind.Value()
		e.curr[name] = reading{value: v, ready: ok}
	}
	return nil
}

// SMA returns the current simple moving average reading for the period.
func (e *Engine) SMA(period int) (float64, bool) { return e.current(KindSMA, period) }

// EMA returns the current exponential moving average reading for the period.
func (e *Engine) EMA(period int) (float64, bool) { return e.current(KindEMA, period) }

// RSI returns the current relative strength index reading for the period.
func (e *Engine) RSI(period int) (float64, bool) { return e.current(KindRSI, period) }

// BullishCross reports whether the fast line crossed above the slow line at
// the current candle. No crossover is reported unless both lines were also
// ready at the previous candle.
func (e *Engine) BullishCross(kind Kind, fast, slow int) bool {
	pf, cf, okFast := e.pair(kind, fast)
	ps, cs, okSlow := e.pair(kind, slow)
	if !okFast || !okSlow {
		return false
	}
	return pf <= ps && cf > cs
}

// BearishCross reports whether the fast line crossed below the slow line at
// the current candle.
func (e *Engine) BearishCross(kind Kind, fast, slow int) bool {
	pf, cf, okFast := e.pair(kind, fast)
	ps, cs, okSlow := e.pair(kind, slow)
	if !okFast || !okSlow {
		return false
	}
	return pf >= ps && cf < cs
}

// current returns the reading computed at the current candle.
func (e *Engine) current(kind Kind, period int) (float64, bool) {
	r, ok := e.curr[key(kind, period)]
	if !ok || !r.ready {
		return 0, false
	}
	return r.value, true
}

// pair returns the previous and current readings for one line, and whether
// both are ready.
func (e *Engine) pair(kind Kind, period int) (prev, curr float64, ok bool) {
	name := key(kind, period)
	p, hasPrev := e.prev[name]
	c, hasCurr := e.curr[name]
	if !hasPrev || !hasCurr || !p.ready || !c.ready {
		return 0, 0, false
	}
	return p.value, c.value, true
}

func key(kind Kind, period int) string {
	return fmt.Sprintf("%s(%d)", kind, period)
}
