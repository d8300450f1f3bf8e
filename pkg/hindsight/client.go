// Package hindsight provides a Go client for the hindsight-server API.
package hindsight

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Client talks to a hindsight-server instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a new hindsight API client.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// ---------------------------------------------------------------------------
// Wire types
// ---------------------------------------------------------------------------

// Candle is one OHLCV row. Timestamp is epoch milliseconds UTC.
type Candle struct {
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

// RunConfig overrides the server's backtest defaults. Nil fields keep the
// server-side values.
type RunConfig struct {
	InitialBalance *float64 `json:"initialBalance,omitempty"`
	CommissionRate *float64 `json:"commissionRate,omitempty"`
	SlippageRate   *float64 `json:"slippageRate,omitempty"`
	MinLot         *float64 `json:"minLot,omitempty"`
	Annualization  *float64 `json:"annualization,omitempty"`
	Strict         *bool    `json:"strict,omitempty"`
	Seed           *int64   `json:"seed,omitempty"`
}

// Float64 returns a pointer to v, for optional RunConfig fields.
func Float64(v float64) *float64 { return &v }

// Bool returns a pointer to v, for optional RunConfig fields.
func Bool(v bool) *bool { return &v }

// Int64 returns a pointer to v, for optional RunConfig fields.
func Int64(v int64) *int64 { return &v }

// BacktestRequest asks the server to run a backtest. Candle data comes from
// the first source present: inline rows via Candles, raw CSV content via
// CandlesCSV, or the server's candle store via Symbol with an optional
// From/To date range (YYYY-MM-DD, inclusive).
type BacktestRequest struct {
	Candles    []Candle     `json:"candles,omitempty"`
	CandlesCSV string       `json:"candlesCsv,omitempty"`
	Symbol     string       `json:"symbol,omitempty"`
	From       string       `json:"from,omitempty"`
	To         string       `json:"to,omitempty"`
	Strategy   StrategySpec `json:"strategy"`
	Config     *RunConfig   `json:"config,omitempty"`
	Save       bool         `json:"save,omitempty"`
}

// Trade is one executed fill.
type Trade struct {
	Timestamp   int64   `json:"timestamp"`
	Side        string  `json:"side"`
	Price       float64 `json:"price"`
	Quantity    float64 `json:"quantity"`
	Commission  float64 `json:"commission"`
	Slippage    float64 `json:"slippage"`
	RealizedPnL float64 `json:"realizedPnl"`
}

// Sample is one equity curve point.
type Sample struct {
	Timestamp int64   `json:"timestamp"`
	Equity    float64 `json:"equity"`
}

// Summary aggregates the headline numbers of a run.
type Summary struct {
	TotalTrades      int     `json:"totalTrades"`
	ProfitableTrades int     `json:"profitableTrades"`
	TotalProfit      float64 `json:"totalProfit"`
	MaxDrawdown      float64 `json:"maxDrawdown"`
	ROI              float64 `json:"roi"`
}

// Metrics holds the performance metrics of a run. ProfitFactor is nil when
// the run had no losing trades.
type Metrics struct {
	ROI          float64  `json:"roi"`
	MaxDrawdown  float64  `json:"maxDrawdown"`
	WinRate      float64  `json:"winRate"`
	ProfitFactor *float64 `json:"profitFactor"`
	SharpeRatio  float64  `json:"sharpeRatio"`
}

// Diagnostic is one non-fatal event recorded during a run.
type Diagnostic struct {
	CandleIndex int    `json:"candleIndex"`
	Timestamp   int64  `json:"timestamp"`
	Kind        string `json:"kind"`
	Message     string `json:"message"`
}

// BacktestResult is the outcome of a backtest run.
type BacktestResult struct {
	RunID       string       `json:"runId,omitempty"`
	Strategy    string       `json:"strategy"`
	Symbol      string       `json:"symbol,omitempty"`
	Status      string       `json:"status"`
	Trades      []Trade      `json:"trades"`
	Equity      []Sample     `json:"equity"`
	Summary     Summary      `json:"summary"`
	Metrics     Metrics      `json:"metrics"`
	Diagnostics []Diagnostic `json:"diagnostics"`

	InitialBalance float64 `json:"initialBalance"`
	FinalEquity    float64 `json:"finalEquity"`
	Candles        int     `json:"candles"`
}

// Run summarizes a stored run.
type Run struct {
	ID             string    `json:"id"`
	Strategy       string    `json:"strategy"`
	Symbol         string    `json:"symbol,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
	InitialBalance float64   `json:"initialBalance"`
	FinalEquity    float64   `json:"finalEquity"`
	Candles        int       `json:"candles"`
	Metrics        Metrics   `json:"metrics"`
	Diagnostics    int       `json:"diagnostics"`
}

// ---------------------------------------------------------------------------
// API methods
// ---------------------------------------------------------------------------

// Health checks that the server is reachable.
func (c *Client) Health(ctx context.Context) error {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.get(ctx, "/api/v1/health", &resp); err != nil {
		return err
	}
	if resp.Status != "ok" {
		return fmt.Errorf("unexpected health status %q", resp.Status)
	}
	return nil
}

// Strategies lists the strategy names registered on the server.
func (c *Client) Strategies(ctx context.Context) ([]string, error) {
	var resp struct {
		Strategies []string `json:"strategies"`
	}
	if err := c.get(ctx, "/api/v1/strategies", &resp); err != nil {
		return nil, err
	}
	return resp.Strategies, nil
}

// RunBacktest runs a backtest on the server and returns the full result.
func (c *Client) RunBacktest(ctx context.Context, req BacktestRequest) (*BacktestResult, error) {
	var result BacktestResult
	if err := c.post(ctx, "/api/v1/backtest", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetRun fetches a stored run summary by ID.
func (c *Client) GetRun(ctx context.Context, id string) (*Run, error) {
	var run Run
	if err := c.get(ctx, "/api/v1/runs/"+id, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns lists stored runs, newest first. A limit of zero uses the server
// default.
func (c *Client) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	path := "/api/v1/runs"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp struct {
		Runs []Run `json:"runs"`
	}
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Runs, nil
}

// GetTrades fetches the trades of a stored run in fill order.
func (c *Client) GetTrades(ctx context.Context, id string) ([]Trade, error) {
	var resp struct {
		Trades []Trade `json:"trades"`
	}
	if err := c.get(ctx, "/api/v1/runs/"+id+"/trades", &resp); err != nil {
		return nil, err
	}
	return resp.Trades, nil
}

// ---------------------------------------------------------------------------
// HTTP plumbing
// ---------------------------------------------------------------------------

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		msg := resp.Status
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
