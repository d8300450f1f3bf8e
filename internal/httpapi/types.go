// Package httpapi provides the HTTP REST API for running backtests and
// browsing stored runs.
package httpapi

import (
	"encoding/json"
	"time"

	"hindsight/internal/domain"
	"hindsight/internal/report"
	"hindsight/internal/store"
)

// CandleJSON is one OHLCV row in a backtest request. Timestamp is epoch
// milliseconds UTC.
type CandleJSON struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// StrategySpec names a registered strategy and its parameters.
type StrategySpec struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params,omitempty"`
}

// RunConfigJSON carries per-request overrides of the server's backtest
// defaults. Fields absent from the request keep their configured values.
type RunConfigJSON struct {
	InitialBalance float64 `json:"initialBalance"`
	CommissionRate float64 `json:"commissionRate"`
	SlippageRate   float64 `json:"slippageRate"`
	MinLot         float64 `json:"minLot"`
	Annualization  float64 `json:"annualization"`
	Strict         bool    `json:"strict"`
	Seed           int64   `json:"seed"`
}

// BacktestRequest is the body of POST /api/v1/backtest. Candle data comes
// from the first source present: inline rows via Candles, raw CSV content
// via CandlesCSV, or the candle store via Symbol with an optional From/To
// date range (YYYY-MM-DD, inclusive).
type BacktestRequest struct {
	Candles    []CandleJSON    `json:"candles,omitempty"`
	CandlesCSV string          `json:"candlesCsv,omitempty"`
	Symbol     string          `json:"symbol,omitempty"`
	From       string          `json:"from,omitempty"`
	To         string          `json:"to,omitempty"`
	Strategy   StrategySpec    `json:"strategy"`
	Config     json.RawMessage `json:"config,omitempty"`
	// Save persists the finished run to the run store.
	Save bool `json:"save,omitempty"`
}

// BacktestResponse is the body returned by POST /api/v1/backtest.
type BacktestResponse struct {
	RunID    string `json:"runId,omitempty"`
	Strategy string `json:"strategy"`
	Symbol   string `json:"symbol,omitempty"`
	report.Payload
}

// RunJSON summarizes a stored run.
type RunJSON struct {
	ID             string         `json:"id"`
	Strategy       string         `json:"strategy"`
	Symbol         string         `json:"symbol,omitempty"`
	Status         string         `json:"status"`
	CreatedAt      time.Time      `json:"createdAt"`
	InitialBalance float64        `json:"initialBalance"`
	FinalEquity    float64        `json:"finalEquity"`
	Candles        int            `json:"candles"`
	Metrics        report.Metrics `json:"metrics"`
	Diagnostics    int            `json:"diagnostics"`
}

// RunsResponse lists stored runs, newest first.
type RunsResponse struct {
	Runs []RunJSON `json:"runs"`
}

// TradesResponse holds the trades of a stored run in fill order.
type TradesResponse struct {
	RunID  string         `json:"runId"`
	Trades []report.Trade `json:"trades"`
}

// StrategiesResponse lists registered strategy names.
type StrategiesResponse struct {
	Strategies []string `json:"strategies"`
}

// HealthResponse is the health check body.
type HealthResponse struct {
	Status string `json:"status"`
}

// toCandles converts request candles to domain candles.
func toCandles(in []CandleJSON) []domain.Candle {
	out := make([]domain.Candle, len(in))
	for i, c := range in {
		out[i] = domain.Candle{
			Timestamp: c.Timestamp,
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
		}
	}
	return out
}

// fromRunRecord converts a stored run to its JSON form.
func fromRunRecord(rec store.RunRecord) RunJSON {
	return RunJSON{
		ID:             rec.ID,
		Strategy:       rec.Strategy,
		Symbol:         rec.Symbol,
		Status:         string(rec.Status),
		CreatedAt:      rec.CreatedAt,
		InitialBalance: rec.InitialBalance,
		FinalEquity:    rec.FinalEquity,
		Candles:        rec.Candles,
		Metrics:        report.FromMetrics(rec.Metrics),
		Diagnostics:    rec.Diagnostics,
	}
}
