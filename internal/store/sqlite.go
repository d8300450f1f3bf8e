package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"hindsight/internal/domain"
)

// Compile-time interface check.
var _ RunStore = (*SQLiteStore)(nil)

// defaultListLimit bounds ListRuns when the caller passes no limit.
const defaultListLimit = 50

// SQLiteStore implements RunStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies the
// schema, and returns a ready-to-use store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %s: %w", dbPath, err)
	}
	// The driver serializes access; a single connection avoids lock churn.
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func createTables(db *sql.DB) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		strategy TEXT NOT NULL,
		symbol TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		initial_balance REAL NOT NULL,
		final_equity REAL NOT NULL,
		candles INTEGER NOT NULL,
		roi REAL NOT NULL,
		max_drawdown REAL NOT NULL,
		win_rate REAL NOT NULL,
		profit_factor REAL,
		sharpe_ratio REAL NOT NULL,
		diagnostics INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);

	CREATE TABLE IF NOT EXISTS trades (
		run_id TEXT NOT NULL REFERENCES runs(id),
		seq INTEGER NOT NULL,
		timestamp INTEGER NOT NULL,
		side TEXT NOT NULL,
		price REAL NOT NULL,
		quantity REAL NOT NULL,
		commission REAL NOT NULL,
		slippage REAL NOT NULL,
		realized_pnl REAL NOT NULL,
		PRIMARY KEY (run_id, seq)
	);`
	_, err := db.Exec(schema)
	return err
}

// SaveRun inserts the run and its trades in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, rec *RunRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, strategy, symbol, status, created_at, initial_balance, final_equity,
		 candles, roi, max_drawdown, win_rate, profit_factor, sharpe_ratio, diagnostics)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Strategy, rec.Symbol, string(rec.Status), rec.CreatedAt.UnixMilli(),
		rec.InitialBalance, rec.FinalEquity, rec.Candles,
		rec.Metrics.ROI, rec.Metrics.MaxDrawdown, rec.Metrics.WinRate,
		nullableFloat(rec.Metrics.ProfitFactor), rec.Metrics.SharpeRatio, rec.Diagnostics)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", rec.ID, err)
	}

	for i, t := range rec.Trades {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO trades
			(run_id, seq, timestamp, side, price, quantity, commission, slippage, realized_pnl)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, i, t.Timestamp, string(t.Side), t.Price, t.Quantity,
			t.Commission, t.Slippage, t.RealizedPnL)
		if err != nil {
			return fmt.Errorf("inserting trade %d of run %s: %w", i, rec.ID, err)
		}
	}
	return tx.Commit()
}

// GetRun retrieves one run by ID, without its trades.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, strategy, symbol, status, created_at, initial_balance, final_equity,
		       candles, roi, max_drawdown, win_rate, profit_factor, sharpe_ratio, diagnostics
		FROM runs WHERE id = ?`, id)

	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading run %s: %w", id, err)
	}
	return rec, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, strategy, symbol, status, created_at, initial_balance, final_equity,
		       candles, roi, max_drawdown, win_rate, profit_factor, sharpe_ratio, diagnostics
		FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var recs []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

// GetTrades returns the trade ledger of a run in execution order.
func (s *SQLiteStore) GetTrades(ctx context.Context, id string) ([]domain.Trade, error) {
	if _, err := s.GetRun(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, side, price, quantity, commission, slippage, realized_pnl
		FROM trades WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("reading trades of run %s: %w", id, err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var side string
		if err := rows.Scan(&t.Timestamp, &side, &t.Price, &t.Quantity, &t.Commission, &t.Slippage, &t.RealizedPnL); err != nil {
			return nil, fmt.Errorf("scanning trade: %w", err)
		}
		t.Side = domain.Side(side)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*RunRecord, error) {
	var rec RunRecord
	var status string
	var createdAt int64
	var profitFactor sql.NullFloat64

	err := s.Scan(&rec.ID, &rec.Strategy, &rec.Symbol, &status, &createdAt,
		&rec.InitialBalance, &rec.FinalEquity, &rec.Candles,
		&rec.Metrics.ROI, &rec.Metrics.MaxDrawdown, &rec.Metrics.WinRate,
		&profitFactor, &rec.Metrics.SharpeRatio, &rec.Diagnostics)
	if err != nil {
		return nil, err
	}

	rec.Status = domain.Status(status)
	rec.CreatedAt = time.UnixMilli(createdAt).UTC()
	if profitFactor.Valid {
		rec.Metrics.ProfitFactor = profitFactor.Float64
	} else {
		// NULL restores the +Inf sentinel for runs with no losing trades.
		rec.Metrics.ProfitFactor = math.Inf(1)
	}
	return &rec, nil
}

// nullableFloat maps non-finite values to NULL; REAL columns cannot hold
// +Inf.
func nullableFloat(v float64) sql.NullFloat64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}
