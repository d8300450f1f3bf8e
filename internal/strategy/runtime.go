package strategy

import (
	"context"
	"errors"
	"fmt"

	"hindsight/internal/domain"
)

// Sentinel errors for the two lifecycle phases. Both wrap the underlying
// cause; check with errors.Is.
var (
	// ErrInit marks a failure in a strategy's Init, including panics.
	ErrInit = errors.New("strategy init failed")

	// ErrEvaluation marks a failure in a strategy's OnCandle, including
	// panics. The orchestrator recovers these into diagnostics unless strict
	// mode is set.
	ErrEvaluation = errors.New("strategy evaluation failed")
)

// SafeInit runs the strategy's Init, converting panics and errors into
// ErrInit-wrapped errors.
func SafeInit(ctx context.Context, s Strategy, setup *Setup) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: strategy %q panicked: %v", ErrInit, s.Name(), r)
		}
	}()

	if initErr := s.Init(ctx, setup); initErr != nil {
		return fmt.Errorf("%w: strategy %q: %w", ErrInit, s.Name(), initErr)
	}
	return nil
}

// SafeEvaluate runs the strategy's OnCandle, converting panics and errors
// into ErrEvaluation-wrapped errors. On failure the returned advice is
// domain.Hold().
func SafeEvaluate(ctx context.Context, s Strategy, tick *Tick) (advice domain.Advice, err error) {
	defer func() {
		if r := recover(); r != nil {
			advice = domain.Hold()
			err = fmt.Errorf("%w: strategy %q panicked at candle %d: %v", ErrEvaluation, s.Name(), tick.Index, r)
		}
	}()

	advice, evalErr := s.OnCandle(ctx, tick)
	if evalErr != nil {
		return domain.Hold(), fmt.Errorf("%w: strategy %q at candle %d: %w", ErrEvaluation, s.Name(), tick.Index, evalErr)
	}
	return advice, nil
}
