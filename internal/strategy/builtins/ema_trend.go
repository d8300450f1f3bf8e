package builtins

import (
	"context"
	"fmt"

	"hindsight/internal/domain"
	"hindsight/internal/indicator"
	"hindsight/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*EMATrend)(nil)

// EMATrend follows exponential moving average crossovers with protective
// exits. It enters on a bullish EMA crossover and leaves on a bearish
// crossover, a stop loss, or a take profit, whichever fires first. Entry and
// exit levels are tracked from the close the strategy signalled on.
//
// Parameters:
//
//	fast:        fast EMA period (default 12)
//	slow:        slow EMA period (default 26)
//	stop_loss:   exit when close falls this fraction below entry (default 0.05)
//	take_profit: exit when close rises this fraction above entry (default 0.10)
type EMATrend struct {
	fast       int
	slow       int
	stopLoss   float64
	takeProfit float64

	inPosition bool
	entryClose float64
}

// Name returns "ema-trend".
func (s *EMATrend) Name() string { return "ema-trend" }

// Init reads the parameters and registers both exponential averages.
func (s *EMATrend) Init(_ context.Context, setup *strategy.Setup) error {
	s.fast = setup.Params.Int("fast", 12)
	s.slow = setup.Params.Int("slow", 26)
	s.stopLoss = setup.Params.Float("stop_loss", 0.05)
	s.takeProfit = setup.Params.Float("take_profit", 0.10)
	if s.fast < 1 {
		return fmt.Errorf("fast period must be >= 1, got %d", s.fast)
	}
	if s.slow <= s.fast {
		return fmt.Errorf("slow period must exceed fast period, got fast=%d slow=%d", s.fast, s.slow)
	}
	if s.stopLoss < 0 || s.stopLoss >= 1 {
		return fmt.Errorf("stop_loss must be in [0, 1), got %v", s.stopLoss)
	}
	if s.takeProfit < 0 {
		return fmt.Errorf("take_profit must be >= 0, got %v", s.takeProfit)
	}
	s.inPosition = false
	s.entryClose = 0
	if err := setup.Indicators.Add(indicator.KindEMA, s.fast); err != nil {
		return err
	}
	return setup.Indicators.Add(indicator.KindEMA, s.slow)
}

// OnCandle enters on a bullish crossover and exits on stop loss, take profit,
// or a bearish crossover. Exits are checked before entries so a position is
// never held through a stop.
func (s *EMATrend) OnCandle(_ context.Context, tick *strategy.Tick) (domain.Advice, error) {
	close := tick.Candle.Close

	if s.inPosition {
		switch {
		case s.stopLoss > 0 && close <= s.entryClose*(1-s.stopLoss):
			s.inPosition = false
			return domain.SellAll(fmt.Sprintf("stop loss at %.4f (entry %.4f)", close, s.entryClose)), nil
		case s.takeProfit > 0 && close >= s.entryClose*(1+s.takeProfit):
			s.inPosition = false
			return domain.SellAll(fmt.Sprintf("take profit at %.4f (entry %.4f)", close, s.entryClose)), nil
		case tick.Indicators.BearishCross(indicator.KindEMA, s.fast, s.slow):
			s.inPosition = false
			return domain.SellAll(fmt.Sprintf("ema(%d) crossed below ema(%d)", s.fast, s.slow)), nil
		}
		return domain.Hold(), nil
	}

	if tick.Indicators.BullishCross(indicator.KindEMA, s.fast, s.slow) {
		s.inPosition = true
		s.entryClose = close
		return domain.BuyAll(fmt.Sprintf("ema(%d) crossed above ema(%d)", s.fast, s.slow)), nil
	}
	return domain.Hold(), nil
}
