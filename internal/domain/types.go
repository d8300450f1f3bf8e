// Package domain defines the core value types of the backtesting engine:
// candles, advice, positions, trades, equity samples, and run results.
package domain

import "time"

// ---------------------------------------------------------------------------
// Candles
// ---------------------------------------------------------------------------

// Candle is a single OHLCV sample for a fixed time interval. Timestamp is
// Unix milliseconds. Series are ordered by timestamp, non-decreasing.
type Candle struct {
	Timestamp int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Time returns the candle timestamp as a time.Time in UTC.
func (c Candle) Time() time.Time {
	return time.UnixMilli(c.Timestamp).UTC()
}

// ---------------------------------------------------------------------------
// Advice
// ---------------------------------------------------------------------------

// Action identifies a strategy's trading intent for one candle.
type Action string

const (
	ActionNone Action = "none"
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// Advice is the trading intent a strategy emits for the current candle. It
// is transient: consumed immediately by the portfolio simulator, never
// persisted.
type Advice struct {
	Action Action

	// Size is the quantity for sized orders. Ignored when All is set.
	Size float64

	// All commits the entire cash balance (buy) or position (sell).
	All bool

	// Reason is an optional human-readable explanation.
	Reason string

	// Confidence is an optional score in [0, 1]. Zero means unscored.
	Confidence float64
}

// Hold returns the no-action advice.
func Hold() Advice { return Advice{Action: ActionNone} }

// BuyAll returns advice to commit the entire cash balance.
func BuyAll(reason string) Advice {
	return Advice{Action: ActionBuy, All: true, Reason: reason}
}

// Buy returns advice to buy the given quantity.
func Buy(size float64, reason string) Advice {
	return Advice{Action: ActionBuy, Size: size, Reason: reason}
}

// SellAll returns advice to liquidate the entire position.
func SellAll(reason string) Advice {
	return Advice{Action: ActionSell, All: true, Reason: reason}
}

// Sell returns advice to sell the given quantity.
func Sell(size float64, reason string) Advice {
	return Advice{Action: ActionSell, Size: size, Reason: reason}
}

// ---------------------------------------------------------------------------
// Position and trades
// ---------------------------------------------------------------------------

// Position is the simulator's bookkeeping state: available cash, the held
// asset quantity, and the average entry price of the open position. Cash
// and Quantity are never negative (no shorting, no margin).
type Position struct {
	Cash       float64
	Quantity   float64
	EntryPrice float64 // average cost basis; zero when flat
}

// Equity returns the mark-to-market account value at the given price.
func (p Position) Equity(price float64) float64 {
	return p.Cash + p.Quantity*price
}

// Flat reports whether no position is held.
func (p Position) Flat() bool { return p.Quantity == 0 }

// Side identifies the direction of an executed trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Trade is one executed fill, appended to the run's trade ledger and never
// mutated afterwards.
type Trade struct {
	Timestamp  int64
	Side       Side
	Price      float64 // effective fill price, slippage included
	Quantity   float64
	Commission float64
	Slippage   float64 // cash cost of slippage versus the candle close

	// RealizedPnL is the profit or loss locked in by a sell, net of
	// commission and slippage. Always zero for buys.
	RealizedPnL float64
}

// EquitySample is one point of the equity curve: account value marked at a
// candle's close, after that candle's advice was applied.
type EquitySample struct {
	Timestamp int64
	Equity    float64
}

// ---------------------------------------------------------------------------
// Results
// ---------------------------------------------------------------------------

// Status marks how a run ended.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// DiagnosticKind classifies non-fatal events recorded during a run.
type DiagnosticKind string

const (
	DiagInsufficientFunds    DiagnosticKind = "insufficient_funds"
	DiagInsufficientPosition DiagnosticKind = "insufficient_position"
	DiagStrategyError        DiagnosticKind = "strategy_error"
)

// Diagnostic records a non-fatal event (a rejected order, a recovered
// strategy error) together with the candle at which it occurred.
type Diagnostic struct {
	CandleIndex int
	Timestamp   int64
	Kind        DiagnosticKind
	Message     string
}

// Metrics are the summary statistics computed over a finished run.
type Metrics struct {
	ROI         float64
	MaxDrawdown float64
	WinRate     float64

	// ProfitFactor is gross profit over absolute gross loss across sell
	// trades. +Inf when there are profitable sells and no losing ones.
	ProfitFactor float64

	SharpeRatio float64
}

// Result is the terminal aggregate of one backtest run, immutable once
// returned.
type Result struct {
	Status         Status
	Trades         []Trade
	EquityCurve    []EquitySample
	Metrics        Metrics
	Diagnostics    []Diagnostic
	InitialBalance float64
	FinalEquity    float64
	Candles        int // candles processed; short of the input when cancelled
}
