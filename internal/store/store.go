// Package store persists candle series and backtest runs. Candles live in
// year-partitioned Parquet files; finished runs and their trade ledgers live
// in SQLite.
package store

import (
	"context"
	"errors"
	"time"

	"hindsight/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// CandleStore persists and retrieves candle series by symbol.
type CandleStore interface {
	// WriteCandles persists a batch of candles for a symbol, merging with
	// any candles already stored.
	WriteCandles(ctx context.Context, symbol string, candles []domain.Candle) error

	// ReadCandles returns the stored candles for a symbol within
	// [from, to], ordered by timestamp.
	ReadCandles(ctx context.Context, symbol string, from, to time.Time) ([]domain.Candle, error)

	// ListSymbols returns all symbols with stored candles, sorted.
	ListSymbols(ctx context.Context) ([]string, error)
}

// RunStore persists finished backtest runs.
type RunStore interface {
	// SaveRun persists a run and its trade ledger. A missing ID is
	// assigned; a zero CreatedAt is set to the current time.
	SaveRun(ctx context.Context, rec *RunRecord) error

	// GetRun retrieves a run by ID, without its trades. Returns
	// ErrNotFound when no such run exists.
	GetRun(ctx context.Context, id string) (*RunRecord, error)

	// ListRuns returns the most recent runs, newest first, without their
	// trades. A non-positive limit selects a default page size.
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)

	// GetTrades returns the trade ledger of a run in execution order.
	// Returns ErrNotFound when no such run exists.
	GetTrades(ctx context.Context, id string) ([]domain.Trade, error)
}

// RunRecord is the persisted form of one backtest run. Trades is populated
// by the caller for SaveRun and left nil by GetRun and ListRuns; use
// GetTrades to load the ledger.
type RunRecord struct {
	ID             string
	Strategy       string
	Symbol         string
	Status         domain.Status
	CreatedAt      time.Time
	InitialBalance float64
	FinalEquity    float64
	Candles        int
	Metrics        domain.Metrics
	Diagnostics    int
	Trades         []domain.Trade
}
