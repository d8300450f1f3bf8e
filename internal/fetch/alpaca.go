// Package fetch downloads daily OHLCV candles from the Alpaca market-data
// API and persists them to the candle store.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"golang.org/x/time/rate"

	"hindsight/internal/domain"
	"hindsight/internal/store"
	"hindsight/internal/util"
)

const (
	defaultBatchSize = 200
	retryAttempts    = 3
	retryBaseDelay   = time.Second
)

// barsClient is the slice of the Alpaca market-data client the fetcher uses.
type barsClient interface {
	GetMultiBars(symbols []string, req marketdata.GetBarsRequest) (map[string][]marketdata.Bar, error)
}

var _ barsClient = (*marketdata.Client)(nil)

// Config holds Alpaca credentials and fetch tuning.
type Config struct {
	APIKey    string
	APISecret string
	// DataURL overrides the market-data endpoint when non-empty.
	DataURL string
	// BatchSize is the number of symbols requested per API call.
	BatchSize int
	// RateLimitPerMin caps API calls per minute. Zero or negative means
	// no limit.
	RateLimitPerMin int
}

// Fetcher retrieves daily candles for explicit symbol lists.
type Fetcher struct {
	client     barsClient
	store      store.CandleStore
	limiter    *rate.Limiter
	batch      int
	retryDelay time.Duration
	log        *slog.Logger
}

// New creates a Fetcher writing to s. The logger may be nil, in which case
// the default slog logger is used.
func New(cfg Config, s store.CandleStore, logger *slog.Logger) *Fetcher {
	opts := marketdata.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
	}
	if cfg.DataURL != "" {
		opts.BaseURL = cfg.DataURL
	}

	limit := rate.Inf
	if cfg.RateLimitPerMin > 0 {
		limit = rate.Limit(float64(cfg.RateLimitPerMin) / 60.0)
	}

	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Fetcher{
		client:     marketdata.NewClient(opts),
		store:      s,
		limiter:    rate.NewLimiter(limit, 1),
		batch:      batch,
		retryDelay: retryBaseDelay,
		log:        logger.With("component", "fetch"),
	}
}

// Fetch downloads daily candles for the given symbols between start and end
// (inclusive) and writes them to the store. It returns the number of candles
// written per symbol; symbols with no data are absent from the result.
func (f *Fetcher) Fetch(ctx context.Context, symbols []string, start, end time.Time) (map[string]int, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols given")
	}
	if end.Before(start) {
		return nil, fmt.Errorf("end %s before start %s", end.Format("2006-01-02"), start.Format("2006-01-02"))
	}

	normalized := make([]string, len(symbols))
	for i, sym := range symbols {
		normalized[i] = strings.ToUpper(strings.TrimSpace(sym))
	}

	totalBatches := (len(normalized) + f.batch - 1) / f.batch
	f.log.Info("fetch starting",
		"symbols", len(normalized),
		"batches", totalBatches,
		"start", start.Format("2006-01-02"),
		"end", end.Format("2006-01-02"),
	)

	written := make(map[string]int)
	for i := 0; i < len(normalized); i += f.batch {
		batch := normalized[i:min(i+f.batch, len(normalized))]

		if err := f.limiter.Wait(ctx); err != nil {
			return written, err
		}

		var bars map[string][]marketdata.Bar
		err := util.Retry(ctx, retryAttempts, f.retryDelay, func() error {
			var err error
			bars, err = f.client.GetMultiBars(batch, marketdata.GetBarsRequest{
				TimeFrame: marketdata.OneDay,
				Start:     start,
				End:       end,
				Feed:      "sip",
			})
			return err
		})
		if err != nil {
			return written, fmt.Errorf("fetching batch %d/%d: %w", i/f.batch+1, totalBatches, err)
		}

		// Walk the batch slice rather than the response map so writes
		// happen in a stable order.
		for _, sym := range batch {
			alpacaBars := bars[sym]
			if len(alpacaBars) == 0 {
				continue
			}
			candles := toCandles(alpacaBars)
			if err := f.store.WriteCandles(ctx, sym, candles); err != nil {
				return written, fmt.Errorf("writing %s: %w", sym, err)
			}
			written[sym] = len(candles)
		}

		f.log.Info("batch done",
			"batch", fmt.Sprintf("%d/%d", i/f.batch+1, totalBatches),
			"hits", len(bars),
		)
	}

	return written, nil
}

// toCandles converts Alpaca bars to domain candles with epoch-millisecond
// timestamps.
func toCandles(bars []marketdata.Bar) []domain.Candle {
	candles := make([]domain.Candle, len(bars))
	for i, b := range bars {
		candles[i] = domain.Candle{
			Timestamp: b.Timestamp.UnixMilli(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    float64(b.Volume),
		}
	}
	return candles
}
