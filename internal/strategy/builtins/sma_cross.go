package builtins

import (
	"context"
	"fmt"

	"hindsight/internal/domain"
	"hindsight/internal/indicator"
	"hindsight/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*SMACross)(nil)

// SMACross trades simple moving average crossovers. It buys the full balance
// when the fast SMA crosses above the slow SMA and sells the full position
// when it crosses back below.
//
// Parameters:
//
//	fast: fast SMA period (default 10)
//	slow: slow SMA period (default 30)
type SMACross struct {
	fast int
	slow int
}

// Name returns "sma-cross".
func (s *SMACross) Name() string { return "sma-cross" }

// Init reads the period parameters and registers both moving averages.
func (s *SMACross) Init(_ context.Context, setup *strategy.Setup) error {
	s.fast = setup.Params.Int("fast", 10)
	s.slow = setup.Params.Int("slow", 30)
	if s.fast < 1 {
		return fmt.Errorf("fast period must be >= 1, got %d", s.fast)
	}
	if s.slow <= s.fast {
		return fmt.Errorf("slow period must exceed fast period, got fast=%d slow=%d", s.fast, s.slow)
	}
	if err := setup.Indicators.Add(indicator.KindSMA, s.fast); err != nil {
		return err
	}
	return setup.Indicators.Add(indicator.KindSMA, s.slow)
}

// OnCandle emits a buy-all on a bullish crossover and a sell-all on a bearish
// one. Until both averages have warmed up it holds.
func (s *SMACross) OnCandle(_ context.Context, tick *strategy.Tick) (domain.Advice, error) {
	switch {
	case tick.Indicators.BullishCross(indicator.KindSMA, s.fast, s.slow):
		return domain.BuyAll(fmt.Sprintf("sma(%d) crossed above sma(%d)", s.fast, s.slow)), nil
	case tick.Indicators.BearishCross(indicator.KindSMA, s.fast, s.slow):
		return domain.SellAll(fmt.Sprintf("sma(%d) crossed below sma(%d)", s.fast, s.slow)), nil
	}
	return domain.Hold(), nil
}
