// Package report renders backtest results for external consumers: a JSON
// payload shared by the HTTP API and the CLI, and a plain-text summary for
// terminals. The domain types stay free of serialization concerns.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"hindsight/internal/domain"
)

// Payload is the wire form of a backtest result.
type Payload struct {
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

// Summary aggregates the headline numbers.
type Summary struct {
	TotalTrades      int     `json:"totalTrades"`
	ProfitableTrades int     `json:"profitableTrades"`
	TotalProfit      float64 `json:"totalProfit"`
	MaxDrawdown      float64 `json:"maxDrawdown"`
	ROI              float64 `json:"roi"`
}

// Metrics mirrors domain.Metrics. ProfitFactor is a pointer so the +Inf
// sentinel (no losing trades) marshals as null instead of breaking
// encoding/json.
type Metrics struct {
	ROI          float64  `json:"roi"`
	MaxDrawdown  float64  `json:"maxDrawdown"`
	WinRate      float64  `json:"winRate"`
	ProfitFactor *float64 `json:"profitFactor"`
	SharpeRatio  float64  `json:"sharpeRatio"`
}

// Diagnostic is one non-fatal event recorded during the run.
type Diagnostic struct {
	CandleIndex int    `json:"candleIndex"`
	Timestamp   int64  `json:"timestamp"`
	Kind        string `json:"kind"`
	Message     string `json:"message"`
}

// FromResult converts a run result into its wire form. Slices are always
// non-nil so the JSON carries [] rather than null.
func FromResult(result *domain.Result) *Payload {
	p := &Payload{
		Status:         string(result.Status),
		Trades:         FromTrades(result.Trades),
		Equity:         make([]Sample, 0, len(result.EquityCurve)),
		Diagnostics:    make([]Diagnostic, 0, len(result.Diagnostics)),
		InitialBalance: result.InitialBalance,
		FinalEquity:    result.FinalEquity,
		Candles:        result.Candles,
	}

	var wins int
	var profit float64
	for _, t := range result.Trades {
		if t.Side == domain.SideSell {
			profit += t.RealizedPnL
			if t.RealizedPnL > 0 {
				wins++
			}
		}
	}
	for _, s := range result.EquityCurve {
		p.Equity = append(p.Equity, Sample{Timestamp: s.Timestamp, Equity: s.Equity})
	}
	for _, d := range result.Diagnostics {
		p.Diagnostics = append(p.Diagnostics, Diagnostic{
			CandleIndex: d.CandleIndex,
			Timestamp:   d.Timestamp,
			Kind:        string(d.Kind),
			Message:     d.Message,
		})
	}

	p.Summary = Summary{
		TotalTrades:      len(result.Trades),
		ProfitableTrades: wins,
		TotalProfit:      profit,
		MaxDrawdown:      result.Metrics.MaxDrawdown,
		ROI:              result.Metrics.ROI,
	}
	p.Metrics = FromMetrics(result.Metrics)
	return p
}

// FromTrades converts domain trades into their wire form. The result is
// always non-nil.
func FromTrades(trades []domain.Trade) []Trade {
	out := make([]Trade, 0, len(trades))
	for _, t := range trades {
		out = append(out, Trade{
			Timestamp:   t.Timestamp,
			Side:        string(t.Side),
			Price:       t.Price,
			Quantity:    t.Quantity,
			Commission:  t.Commission,
			Slippage:    t.Slippage,
			RealizedPnL: t.RealizedPnL,
		})
	}
	return out
}

// FromMetrics converts domain metrics into their wire form.
func FromMetrics(m domain.Metrics) Metrics {
	return Metrics{
		ROI:          m.ROI,
		MaxDrawdown:  m.MaxDrawdown,
		WinRate:      m.WinRate,
		ProfitFactor: finiteOrNil(m.ProfitFactor),
		SharpeRatio:  m.SharpeRatio,
	}
}

// WriteJSON writes the indented JSON form.
func (p *Payload) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

// WriteText writes a human-readable summary.
func (p *Payload) WriteText(w io.Writer) error {
	pf := "n/a"
	if p.Metrics.ProfitFactor != nil {
		pf = fmt.Sprintf("%.2f", *p.Metrics.ProfitFactor)
	}

	_, err := fmt.Fprintf(w, `Backtest %s
  Candles:         %d
  Trades:          %d (%d profitable)
  Initial balance: %.2f
  Final equity:    %.2f
  Total profit:    %.2f
  ROI:             %.2f%%
  Max drawdown:    %.2f%%
  Win rate:        %.2f%%
  Profit factor:   %s
  Sharpe ratio:    %.2f
  Diagnostics:     %d
`,
		p.Status,
		p.Candles,
		p.Summary.TotalTrades, p.Summary.ProfitableTrades,
		p.InitialBalance,
		p.FinalEquity,
		p.Summary.TotalProfit,
		p.Metrics.ROI*100,
		p.Metrics.MaxDrawdown*100,
		p.Metrics.WinRate*100,
		pf,
		p.Metrics.SharpeRatio,
		len(p.Diagnostics))
	return err
}

// finiteOrNil drops values encoding/json cannot represent.
func finiteOrNil(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}
