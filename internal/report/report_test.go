package report

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"hindsight/internal/domain"
)

func sampleResult() *domain.Result {
	return &domain.Result{
		Status: domain.StatusCompleted,
		Trades: []domain.Trade{
			{Timestamp: 1, Side: domain.SideBuy, Price: 100, Quantity: 10, Commission: 1},
			{Timestamp: 2, Side: domain.SideSell, Price: 120, Quantity: 10, Commission: 1.2, RealizedPnL: 197.8},
			{Timestamp: 3, Side: domain.SideBuy, Price: 110, Quantity: 5, Commission: 0.5},
			{Timestamp: 4, Side: domain.SideSell, Price: 105, Quantity: 5, Commission: 0.5, RealizedPnL: -26},
		},
		EquityCurve: []domain.EquitySample{
			{Timestamp: 1, Equity: 10000},
			{Timestamp: 2, Equity: 10197.8},
		},
		Metrics: domain.Metrics{
			ROI:          0.017,
			MaxDrawdown:  0.01,
			WinRate:      0.5,
			ProfitFactor: 7.6,
			SharpeRatio:  0.9,
		},
		Diagnostics: []domain.Diagnostic{
			{CandleIndex: 5, Timestamp: 6, Kind: domain.DiagInsufficientFunds, Message: "too big"},
		},
		InitialBalance: 10000,
		FinalEquity:    10171.8,
		Candles:        10,
	}
}

func TestFromResult(t *testing.T) {
	p := FromResult(sampleResult())

	if p.Status != "completed" {
		t.Errorf("status = %q", p.Status)
	}
	if p.Summary.TotalTrades != 4 {
		t.Errorf("totalTrades = %d, want 4", p.Summary.TotalTrades)
	}
	if p.Summary.ProfitableTrades != 1 {
		t.Errorf("profitableTrades = %d, want 1", p.Summary.ProfitableTrades)
	}
	if got, want := p.Summary.TotalProfit, 197.8-26; math.Abs(got-want) > 1e-9 {
		t.Errorf("totalProfit = %v, want %v", got, want)
	}
	if p.Metrics.ProfitFactor == nil || *p.Metrics.ProfitFactor != 7.6 {
		t.Errorf("profitFactor = %v, want 7.6", p.Metrics.ProfitFactor)
	}
	if len(p.Diagnostics) != 1 || p.Diagnostics[0].Kind != "insufficient_funds" {
		t.Errorf("diagnostics = %+v", p.Diagnostics)
	}
}

func TestInfiniteProfitFactorMarshalsAsNull(t *testing.T) {
	result := sampleResult()
	result.Metrics.ProfitFactor = math.Inf(1)

	var buf bytes.Buffer
	if err := FromResult(result).WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if !strings.Contains(buf.String(), `"profitFactor": null`) {
		t.Errorf("JSON should carry a null profit factor:\n%s", buf.String())
	}

	// The payload must round-trip through encoding/json without error.
	var decoded Payload
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Metrics.ProfitFactor != nil {
		t.Errorf("decoded profitFactor = %v, want nil", decoded.Metrics.ProfitFactor)
	}
}

func TestEmptyResultMarshalsEmptyArrays(t *testing.T) {
	result := &domain.Result{
		Status:         domain.StatusCompleted,
		InitialBalance: 1000,
		FinalEquity:    1000,
	}

	var buf bytes.Buffer
	if err := FromResult(result).WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	s := buf.String()
	for _, field := range []string{`"trades": []`, `"equity": []`, `"diagnostics": []`} {
		if !strings.Contains(s, field) {
			t.Errorf("JSON should contain %s:\n%s", field, s)
		}
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	if err := FromResult(sampleResult()).WriteText(&buf); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"Backtest completed",
		"Trades:          4 (1 profitable)",
		"Final equity:    10171.80",
		"Profit factor:   7.60",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteTextInfiniteProfitFactor(t *testing.T) {
	result := sampleResult()
	result.Metrics.ProfitFactor = math.Inf(1)

	var buf bytes.Buffer
	if err := FromResult(result).WriteText(&buf); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	if !strings.Contains(buf.String(), "Profit factor:   n/a") {
		t.Errorf("text output should print n/a for a non-finite profit factor:\n%s", buf.String())
	}
}
