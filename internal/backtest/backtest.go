// Package backtest drives the candle replay loop: indicators update, the
// strategy evaluates, advice applies to the simulated portfolio, and an
// equity sample is taken, strictly in that order for every candle. The
// orchestrator owns nothing shared between runs, so independent runs can
// execute concurrently.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"

	"hindsight/internal/candle"
	"hindsight/internal/domain"
	"hindsight/internal/indicator"
	"hindsight/internal/portfolio"
	"hindsight/internal/strategy"
)

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

// Fatal error classes, re-exported from their owning packages so callers
// can classify failures with a single import. Rejected orders and recovered
// evaluation errors are not here: they accumulate as result diagnostics.
var (
	ErrInvalidSeries = candle.ErrInvalidSeries
	ErrStrategyInit  = strategy.ErrInit
	ErrStrategyEval  = strategy.ErrEvaluation
	ErrInvalidInput  = indicator.ErrInvalidInput
	ErrInvariant     = portfolio.ErrInvariant
)

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

// defaultAnnualization assumes daily candles over a trading year.
const defaultAnnualization = 252

// Config holds the per-run parameters.
type Config struct {
	// InitialBalance is the starting cash. Must be positive.
	InitialBalance float64

	// CommissionRate and SlippageRate are fractions in [0, 1).
	CommissionRate float64
	SlippageRate   float64

	// MinLot suppresses buy-all fills below this quantity.
	MinLot float64

	// Params are passed to the strategy's Init.
	Params strategy.Params

	// Strict aborts the run on a strategy evaluation error instead of
	// recording a diagnostic and holding.
	Strict bool

	// Annualization is the number of candle periods per year used for the
	// Sharpe ratio. Zero selects the daily default of 252.
	Annualization float64

	// Seed feeds the random source handed to the strategy. Runs with equal
	// seeds and inputs are identical.
	Seed int64
}

// Validate checks the configuration ranges.
func (c Config) Validate() error {
	if err := c.portfolio().Validate(); err != nil {
		return err
	}
	if c.Annualization < 0 {
		return fmt.Errorf("annualization must be >= 0, got %v", c.Annualization)
	}
	return nil
}

func (c Config) portfolio() portfolio.Config {
	return portfolio.Config{
		InitialBalance: c.InitialBalance,
		CommissionRate: c.CommissionRate,
		SlippageRate:   c.SlippageRate,
		MinLot:         c.MinLot,
	}
}

func (c Config) annualization() float64 {
	if c.Annualization > 0 {
		return c.Annualization
	}
	return defaultAnnualization
}

// ---------------------------------------------------------------------------
// Backtester
// ---------------------------------------------------------------------------

// ProgressFunc reports replay progress after each processed candle.
type ProgressFunc func(done, total int)

// Option configures a Backtester.
type Option func(*Backtester)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backtester) { b.logger = logger }
}

// WithObserver subscribes an observer to trade and report events. May be
// given multiple times; observers are notified in registration order.
func WithObserver(o Observer) Option {
	return func(b *Backtester) { b.observers = append(b.observers, o) }
}

// WithProgress sets a per-candle progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(b *Backtester) { b.progress = fn }
}

// Backtester replays candle series against strategies. It holds no per-run
// state: every Run builds a fresh indicator engine and simulator, so one
// Backtester may serve concurrent runs.
type Backtester struct {
	logger    *slog.Logger
	observers []Observer
	progress  ProgressFunc
}

// New creates a Backtester with the given options.
func New(opts ...Option) *Backtester {
	b := &Backtester{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run replays the candle series against the strategy and returns the
// aggregated result.
//
// Fatal failures (invalid series, init errors, non-finite closes, simulator
// invariant violations, evaluation errors under Strict) return a nil result
// and an error naming the candle where they occurred. Rejected orders and
// recovered evaluation errors become result diagnostics. Cancellation via
// ctx is not an error: the partial result carries StatusCancelled.
func (b *Backtester) Run(ctx context.Context, candles []domain.Candle, strat strategy.Strategy, cfg Config) (*domain.Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid backtest config: %w", err)
	}
	if err := candle.Validate(candles); err != nil {
		return nil, err
	}

	engine := indicator.NewEngine()
	sim, err := portfolio.NewSimulator(cfg.portfolio())
	if err != nil {
		return nil, err
	}

	setup := &strategy.Setup{
		Params:     cfg.Params,
		Indicators: engine,
		Rand:       rand.New(rand.NewSource(cfg.Seed)),
	}
	if err := strategy.SafeInit(ctx, strat, setup); err != nil {
		return nil, err
	}
	engine.Seal()

	b.logger.Info("backtest starting",
		"strategy", strat.Name(),
		"candles", len(candles),
		"indicators", engine.Len(),
		"initialBalance", cfg.InitialBalance)

	result := &domain.Result{
		Status:         domain.StatusCompleted,
		InitialBalance: cfg.InitialBalance,
	}

	total := len(candles)
loop:
	for i, c := range candles {
		// Cooperative cancellation, checked between candles.
		select {
		case <-ctx.Done():
			result.Status = domain.StatusCancelled
			b.logger.Warn("backtest cancelled", "processed", i, "total", total)
			break loop
		default:
		}

		if err := engine.Update(c); err != nil {
			return nil, errAt(i, c, err)
		}

		tick := &strategy.Tick{
			Index:      i,
			Candle:     c,
			History:    candles[:i+1],
			Indicators: engine,
		}
		advice, err := strategy.SafeEvaluate(ctx, strat, tick)
		if err != nil {
			if cfg.Strict {
				return nil, errAt(i, c, err)
			}
			result.Diagnostics = append(result.Diagnostics, diagnostic(i, c, domain.DiagStrategyError, err))
			b.logger.Warn("strategy error recovered", "candle", i, "error", err)
		}

		trade, err := sim.Apply(advice, c)
		switch {
		case err == nil:
		case errors.Is(err, portfolio.ErrInsufficientFunds):
			result.Diagnostics = append(result.Diagnostics, diagnostic(i, c, domain.DiagInsufficientFunds, err))
			b.logger.Debug("order rejected", "candle", i, "reason", err)
		case errors.Is(err, portfolio.ErrInsufficientPosition):
			result.Diagnostics = append(result.Diagnostics, diagnostic(i, c, domain.DiagInsufficientPosition, err))
			b.logger.Debug("order rejected", "candle", i, "reason", err)
		default:
			return nil, errAt(i, c, err)
		}

		if trade != nil {
			result.Trades = append(result.Trades, *trade)
			b.notifyTrade(*trade)
			b.logger.Debug("trade executed",
				"candle", i,
				"side", trade.Side,
				"price", trade.Price,
				"quantity", trade.Quantity,
				"realizedPnL", trade.RealizedPnL)
		}

		result.EquityCurve = append(result.EquityCurve, domain.EquitySample{
			Timestamp: c.Timestamp,
			Equity:    sim.Equity(c.Close),
		})
		result.Candles = i + 1

		if b.progress != nil {
			b.progress(i+1, total)
		}
	}

	result.FinalEquity = cfg.InitialBalance
	if n := len(result.EquityCurve); n > 0 {
		result.FinalEquity = result.EquityCurve[n-1].Equity
	}
	result.Metrics = computeMetrics(cfg.InitialBalance, result.EquityCurve, result.Trades, cfg.annualization())

	b.logger.Info("backtest finished",
		"status", result.Status,
		"trades", len(result.Trades),
		"diagnostics", len(result.Diagnostics),
		"finalEquity", result.FinalEquity,
		"roi", result.Metrics.ROI)

	b.notifyReport(result)
	return result, nil
}

func (b *Backtester) notifyTrade(trade domain.Trade) {
	for _, o := range b.observers {
		o.OnTrade(trade)
	}
}

func (b *Backtester) notifyReport(result *domain.Result) {
	for _, o := range b.observers {
		o.OnReport(result)
	}
}

// errAt wraps a fatal error with the candle where it occurred.
func errAt(index int, c domain.Candle, err error) error {
	return fmt.Errorf("candle %d (timestamp %d): %w", index, c.Timestamp, err)
}

func diagnostic(index int, c domain.Candle, kind domain.DiagnosticKind, err error) domain.Diagnostic {
	return domain.Diagnostic{
		CandleIndex: index,
		Timestamp:   c.Timestamp,
		Kind:        kind,
		Message:     err.Error(),
	}
}
