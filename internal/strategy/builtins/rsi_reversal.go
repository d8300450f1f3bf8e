package builtins

import (
	"context"
	"fmt"

	"hindsight/internal/domain"
	"hindsight/internal/indicator"
	"hindsight/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*RSIReversal)(nil)

// RSIReversal trades mean reversion on the relative strength index. It buys
// the full balance when the RSI drops below the oversold level while flat,
// and liquidates when the RSI rises above the overbought level while holding.
// Position state is gated internally so a level that stays breached does not
// re-trigger.
//
// Parameters:
//
//	period:     RSI period (default 14)
//	oversold:   buy when RSI falls below this level (default 30)
//	overbought: sell when RSI rises above this level (default 70)
type RSIReversal struct {
	period     int
	oversold   float64
	overbought float64

	inPosition bool
}

// Name returns "rsi-reversal".
func (s *RSIReversal) Name() string { return "rsi-reversal" }

// Init reads the parameters and registers the RSI.
func (s *RSIReversal) Init(_ context.Context, setup *strategy.Setup) error {
	s.period = setup.Params.Int("period", 14)
	s.oversold = setup.Params.Float("oversold", 30)
	s.overbought = setup.Params.Float("overbought", 70)
	if s.period < 1 {
		return fmt.Errorf("period must be >= 1, got %d", s.period)
	}
	if s.oversold < 0 || s.overbought > 100 || s.oversold >= s.overbought {
		return fmt.Errorf("levels must satisfy 0 <= oversold < overbought <= 100, got oversold=%v overbought=%v", s.oversold, s.overbought)
	}
	s.inPosition = false
	return setup.Indicators.Add(indicator.KindRSI, s.period)
}

// OnCandle buys when the RSI is oversold and the strategy is flat, sells
// when it is overbought and the strategy holds a position, and holds
// otherwise.
func (s *RSIReversal) OnCandle(_ context.Context, tick *strategy.Tick) (domain.Advice, error) {
	rsi, ok := tick.Indicators.RSI(s.period)
	if !ok {
		return domain.Hold(), nil
	}

	switch {
	case rsi < s.oversold && !s.inPosition:
		s.inPosition = true
		return domain.BuyAll(fmt.Sprintf("rsi(%d)=%.1f below %.1f", s.period, rsi, s.oversold)), nil
	case rsi > s.overbought && s.inPosition:
		s.inPosition = false
		return domain.SellAll(fmt.Sprintf("rsi(%d)=%.1f above %.1f", s.period, rsi, s.overbought)), nil
	}
	return domain.Hold(), nil
}
