package fetch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"golang.org/x/time/rate"

	"hindsight/internal/domain"
)

// fakeBarsClient records requested batches and serves canned bars.
type fakeBarsClient struct {
	bars    map[string][]marketdata.Bar
	batches [][]string
	// failures counts down; while positive, calls return an error.
	failures int
}

func (f *fakeBarsClient) GetMultiBars(symbols []string, _ marketdata.GetBarsRequest) (map[string][]marketdata.Bar, error) {
	f.batches = append(f.batches, append([]string(nil), symbols...))
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("upstream unavailable")
	}
	out := make(map[string][]marketdata.Bar)
	for _, sym := range symbols {
		if bars, ok := f.bars[sym]; ok {
			out[sym] = bars
		}
	}
	return out, nil
}

// fakeCandleStore records WriteCandles calls.
type fakeCandleStore struct {
	written  map[string][]domain.Candle
	writeErr error
}

func newFakeCandleStore() *fakeCandleStore {
	return &fakeCandleStore{written: make(map[string][]domain.Candle)}
}

func (f *fakeCandleStore) WriteCandles(_ context.Context, symbol string, candles []domain.Candle) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written[symbol] = append(f.written[symbol], candles...)
	return nil
}

func (f *fakeCandleStore) ReadCandles(context.Context, string, time.Time, time.Time) ([]domain.Candle, error) {
	return nil, nil
}

func (f *fakeCandleStore) ListSymbols(context.Context) ([]string, error) {
	return nil, nil
}

func newTestFetcher(client barsClient, s *fakeCandleStore, batch int) *Fetcher {
	return &Fetcher{
		client:     client,
		store:      s,
		limiter:    rate.NewLimiter(rate.Inf, 1),
		batch:      batch,
		retryDelay: 0,
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func bar(day int, close float64) marketdata.Bar {
	return marketdata.Bar{
		Timestamp: time.Date(2024, 1, day, 5, 0, 0, 0, time.UTC),
		Open:      close - 1,
		High:      close + 1,
		Low:       close - 2,
		Close:     close,
		Volume:    1000,
	}
}

func TestFetchWritesCandlesPerSymbol(t *testing.T) {
	client := &fakeBarsClient{bars: map[string][]marketdata.Bar{
		"AAPL": {bar(2, 185), bar(3, 186)},
		"MSFT": {bar(2, 390)},
	}}
	storeFake := newFakeCandleStore()
	f := newTestFetcher(client, storeFake, 10)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

	written, err := f.Fetch(context.Background(), []string{" aapl ", "msft", "NONE"}, start, end)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}

	if written["AAPL"] != 2 || written["MSFT"] != 1 {
		t.Errorf("written = %v, want AAPL:2 MSFT:1", written)
	}
	if _, ok := written["NONE"]; ok {
		t.Errorf("symbol with no data should be absent from result, got %v", written)
	}

	got := storeFake.written["AAPL"]
	if len(got) != 2 {
		t.Fatalf("store received %d AAPL candles, want 2", len(got))
	}
	wantTS := time.Date(2024, 1, 2, 5, 0, 0, 0, time.UTC).UnixMilli()
	if got[0].Timestamp != wantTS {
		t.Errorf("candle timestamp = %d, want %d", got[0].Timestamp, wantTS)
	}
	if got[0].Close != 185 || got[0].Volume != 1000 {
		t.Errorf("candle = %+v, want close 185 volume 1000", got[0])
	}
}

func TestFetchBatchesSymbols(t *testing.T) {
	client := &fakeBarsClient{}
	f := newTestFetcher(client, newFakeCandleStore(), 2)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	_, err := f.Fetch(context.Background(), []string{"A", "B", "C", "D", "E"}, start, end)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}

	if len(client.batches) != 3 {
		t.Fatalf("client saw %d batches, want 3", len(client.batches))
	}
	wantBatches := [][]string{{"A", "B"}, {"C", "D"}, {"E"}}
	for i, want := range wantBatches {
		got := client.batches[i]
		if len(got) != len(want) {
			t.Fatalf("batch %d = %v, want %v", i, got, want)
		}
		for j := range want {
			if got[j] != want[j] {
				t.Errorf("batch %d = %v, want %v", i, got, want)
				break
			}
		}
	}
}

func TestFetchRetriesTransientErrors(t *testing.T) {
	client := &fakeBarsClient{
		bars:     map[string][]marketdata.Bar{"AAPL": {bar(2, 185)}},
		failures: 2,
	}
	storeFake := newFakeCandleStore()
	f := newTestFetcher(client, storeFake, 10)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 5)

	written, err := f.Fetch(context.Background(), []string{"AAPL"}, start, end)
	if err != nil {
		t.Fatalf("Fetch returned error after retries: %v", err)
	}
	if written["AAPL"] != 1 {
		t.Errorf("written = %v, want AAPL:1", written)
	}
	if len(client.batches) != 3 {
		t.Errorf("client called %d times, want 3 (two failures, one success)", len(client.batches))
	}
}

func TestFetchGivesUpAfterRetriesExhausted(t *testing.T) {
	client := &fakeBarsClient{failures: 10}
	f := newTestFetcher(client, newFakeCandleStore(), 10)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 5)

	_, err := f.Fetch(context.Background(), []string{"AAPL"}, start, end)
	if err == nil {
		t.Fatal("Fetch succeeded, want error after retries exhausted")
	}
	if !strings.Contains(err.Error(), "fetching batch 1/1") {
		t.Errorf("error = %v, want batch position in message", err)
	}
}

func TestFetchPropagatesStoreError(t *testing.T) {
	client := &fakeBarsClient{bars: map[string][]marketdata.Bar{"AAPL": {bar(2, 185)}}}
	storeFake := newFakeCandleStore()
	storeFake.writeErr = errors.New("disk full")
	f := newTestFetcher(client, storeFake, 10)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 5)

	_, err := f.Fetch(context.Background(), []string{"AAPL"}, start, end)
	if err == nil {
		t.Fatal("Fetch succeeded, want store error")
	}
	if !strings.Contains(err.Error(), "writing AAPL") {
		t.Errorf("error = %v, want symbol in message", err)
	}
}

func TestFetchValidatesArguments(t *testing.T) {
	f := newTestFetcher(&fakeBarsClient{}, newFakeCandleStore(), 10)

	start := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

	if _, err := f.Fetch(context.Background(), nil, start, start.AddDate(0, 0, 1)); err == nil {
		t.Error("Fetch with no symbols succeeded, want error")
	}
	if _, err := f.Fetch(context.Background(), []string{"AAPL"}, start, start.AddDate(0, 0, -1)); err == nil {
		t.Error("Fetch with end before start succeeded, want error")
	}
}
