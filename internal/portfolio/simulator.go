// Package portfolio simulates order execution against candle closes. It
// models a single-asset long-only account with proportional commission and
// adverse slippage, and turns strategy advice into filled trades.
package portfolio

import (
	"errors"
	"fmt"

	"hindsight/internal/domain"
)

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

var (
	// ErrInsufficientFunds rejects a sized buy whose full cost exceeds the
	// available cash. Recorded as a diagnostic by the orchestrator.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientPosition rejects a sized sell against a flat position.
	// Recorded as a diagnostic by the orchestrator.
	ErrInsufficientPosition = errors.New("insufficient position")

	// ErrInvariant signals that cash or quantity went negative. This is a
	// bug in the simulator, not bad input, and aborts the run.
	ErrInvariant = errors.New("portfolio invariant violated")
)

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

// Config holds the account parameters for a simulated portfolio.
type Config struct {
	// InitialBalance is the starting cash. Must be positive.
	InitialBalance float64

	// CommissionRate is charged on every fill as a fraction of notional,
	// in [0, 1).
	CommissionRate float64

	// SlippageRate shifts the fill price against the trader as a fraction
	// of the close, in [0, 1).
	SlippageRate float64

	// MinLot is the smallest quantity a buy-all may fill. A computed
	// quantity below it is treated as zero and the order becomes a no-op.
	MinLot float64
}

// Validate checks the configuration ranges.
func (c Config) Validate() error {
	if c.InitialBalance <= 0 {
		return fmt.Errorf("initial balance must be positive, got %v", c.InitialBalance)
	}
	if c.CommissionRate < 0 || c.CommissionRate >= 1 {
		return fmt.Errorf("commission rate must be in [0, 1), got %v", c.CommissionRate)
	}
	if c.SlippageRate < 0 || c.SlippageRate >= 1 {
		return fmt.Errorf("slippage rate must be in [0, 1), got %v", c.SlippageRate)
	}
	if c.MinLot < 0 {
		return fmt.Errorf("min lot must be >= 0, got %v", c.MinLot)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Simulator
// ---------------------------------------------------------------------------

// Simulator executes advice against candle closes and tracks the resulting
// position. It is not safe for concurrent use; each run owns its own
// instance.
type Simulator struct {
	cfg Config
	pos domain.Position
}

// NewSimulator creates a simulator funded with the configured balance.
func NewSimulator(cfg Config) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid portfolio config: %w", err)
	}
	return &Simulator{
		cfg: cfg,
		pos: domain.Position{Cash: cfg.InitialBalance},
	}, nil
}

// Position returns a copy of the current bookkeeping state.
func (s *Simulator) Position() domain.Position { return s.pos }

// Equity returns the account value marked at the given price.
func (s *Simulator) Equity(price float64) float64 { return s.pos.Equity(price) }

// Apply executes one advice against the candle's close. It returns the
// resulting trade, or nil when the advice produced no fill. Rejections
// surface as ErrInsufficientFunds or ErrInsufficientPosition; both leave
// the position untouched.
func (s *Simulator) Apply(advice domain.Advice, candle domain.Candle) (*domain.Trade, error) {
	switch advice.Action {
	case domain.ActionNone:
		return nil, nil
	case domain.ActionBuy:
		return s.buy(advice, candle)
	case domain.ActionSell:
		return s.sell(advice, candle)
	default:
		return nil, fmt.Errorf("unknown advice action %q", advice.Action)
	}
}

func (s *Simulator) buy(advice domain.Advice, candle domain.Candle) (*domain.Trade, error) {
	fill := candle.Close * (1 + s.cfg.SlippageRate)

	var quantity float64
	if advice.All {
		if s.pos.Cash <= 0 {
			return nil, nil
		}
		quantity = (s.pos.Cash * (1 - s.cfg.CommissionRate)) / fill
		if quantity <= 0 || quantity < s.cfg.MinLot {
			return nil, nil
		}
	} else {
		if advice.Size <= 0 {
			return nil, nil
		}
		quantity = advice.Size
	}

	notional := quantity * fill
	commission := s.cfg.CommissionRate * notional
	cost := notional + commission

	if advice.All {
		// Float rounding can push the computed cost a hair past cash.
		if cost > s.pos.Cash {
			cost = s.pos.Cash
		}
	} else if cost > s.pos.Cash {
		return nil, fmt.Errorf("%w: order costs %.4f, cash is %.4f", ErrInsufficientFunds, cost, s.pos.Cash)
	}

	held := s.pos.Quantity
	if held == 0 {
		s.pos.EntryPrice = fill
	} else {
		s.pos.EntryPrice = (held*s.pos.EntryPrice + quantity*fill) / (held + quantity)
	}
	s.pos.Cash -= cost
	s.pos.Quantity += quantity

	if err := s.check(); err != nil {
		return nil, err
	}
	return &domain.Trade{
		Timestamp:  candle.Timestamp,
		Side:       domain.SideBuy,
		Price:      fill,
		Quantity:   quantity,
		Commission: commission,
		Slippage:   quantity * candle.Close * s.cfg.SlippageRate,
	}, nil
}

func (s *Simulator) sell(advice domain.Advice, candle domain.Candle) (*domain.Trade, error) {
	held := s.pos.Quantity

	var quantity float64
	if advice.All {
		if held == 0 {
			return nil, nil
		}
		quantity = held
	} else {
		if held == 0 {
			return nil, fmt.Errorf("%w: sized sell of %v against a flat position", ErrInsufficientPosition, advice.Size)
		}
		if advice.Size <= 0 {
			return nil, nil
		}
		quantity = min(advice.Size, held)
	}

	fill := candle.Close * (1 - s.cfg.SlippageRate)
	notional := quantity * fill
	commission := s.cfg.CommissionRate * notional
	proceeds := notional - commission
	realized := proceeds - quantity*s.pos.EntryPrice

	s.pos.Cash += proceeds
	s.pos.Quantity -= quantity
	if s.pos.Quantity == 0 {
		s.pos.EntryPrice = 0
	}

	if err := s.check(); err != nil {
		return nil, err
	}
	return &domain.Trade{
		Timestamp:   candle.Timestamp,
		Side:        domain.SideSell,
		Price:       fill,
		Quantity:    quantity,
		Commission:  commission,
		Slippage:    quantity * candle.Close * s.cfg.SlippageRate,
		RealizedPnL: realized,
	}, nil
}

func (s *Simulator) check() error {
	if s.pos.Cash < 0 || s.pos.Quantity < 0 {
		return fmt.Errorf("%w: cash=%v quantity=%v", ErrInvariant, s.pos.Cash, s.pos.Quantity)
	}
	return nil
}
