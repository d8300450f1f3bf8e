// Package builtins provides the built-in strategy implementations that ship
// with hindsight. Each strategy registers the indicators it needs during Init
// and emits advices from indicator readings; none of them touches the
// portfolio directly.
package builtins

import "hindsight/internal/strategy"

// Register adds every built-in strategy to the registry.
func Register(r *strategy.Registry) error {
	factories := map[string]strategy.Factory{
		"sma-cross":    func() strategy.Strategy { return &SMACross{} },
		"ema-trend":    func() strategy.Strategy { return &EMATrend{} },
		"rsi-reversal": func() strategy.Strategy { return &RSIReversal{} },
	}
	for name, f := range factories {
		if err := r.Register(name, f); err != nil {
			return err
		}
	}
	return nil
}
