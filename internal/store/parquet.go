package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"hindsight/internal/domain"
)

// Compile-time interface check.
var _ CandleStore = (*ParquetStore)(nil)

// ParquetStore implements CandleStore using Parquet files on disk, one file
// per symbol and year.
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a ParquetStore rooted at the given data directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// candleRecord is the Parquet schema for candle data.
type candleRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    float64 `parquet:"volume"`
}

// WriteCandles writes candles to Parquet files organized by symbol and year:
//
//	<DataDir>/candles/<SYMBOL>/<YYYY>.parquet
//
// Candles already on disk are kept; duplicated timestamps prefer the
// incoming batch.
func (s *ParquetStore) WriteCandles(_ context.Context, symbol string, candles []domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	symbol = strings.ToUpper(symbol)

	groups := make(map[int][]candleRecord)
	for _, c := range candles {
		year := time.UnixMilli(c.Timestamp).UTC().Year()
		groups[year] = append(groups[year], candleRecord{
			Symbol:    symbol,
			Timestamp: c.Timestamp,
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
		})
	}

	for year, records := range groups {
		path := s.candlePath(symbol, year)

		// Merge with whatever is already stored for this year.
		existing, _ := readParquetFile[candleRecord](path)
		merged := mergeCandleRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing candles for %s/%d: %w", symbol, year, err)
		}
	}
	return nil
}

// ReadCandles reads stored candles for the symbol within [from, to].
func (s *ParquetStore) ReadCandles(_ context.Context, symbol string, from, to time.Time) ([]domain.Candle, error) {
	symbol = strings.ToUpper(symbol)

	var candles []domain.Candle
	for year := from.Year(); year <= to.Year(); year++ {
		records, err := readParquetFile[candleRecord](s.candlePath(symbol, year))
		if err != nil {
			// No file for this year.
			continue
		}
		for _, r := range records {
			ts := time.UnixMilli(r.Timestamp).UTC()
			if ts.Before(from) || ts.After(to) {
				continue
			}
			candles = append(candles, domain.Candle{
				Timestamp: r.Timestamp,
				Open:      r.Open,
				High:      r.High,
				Low:       r.Low,
				Close:     r.Close,
				Volume:    r.Volume,
			})
		}
	}
	return candles, nil
}

// ListSymbols lists all symbols with stored candles.
func (s *ParquetStore) ListSymbols(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.DataDir, "candles"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var symbols []string
	for _, e := range entries {
		if e.IsDir() {
			symbols = append(symbols, e.Name())
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// candlePath returns the file path for one symbol+year partition.
func (s *ParquetStore) candlePath(symbol string, year int) string {
	return filepath.Join(s.DataDir, "candles", symbol, fmt.Sprintf("%d.parquet", year))
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergeCandleRecords deduplicates records by timestamp, preferring incoming
// over existing, and sorts by timestamp.
func mergeCandleRecords(existing, incoming []candleRecord) []candleRecord {
	seen := make(map[int64]candleRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.Timestamp] = r
	}
	for _, r := range incoming {
		seen[r.Timestamp] = r
	}

	merged := make([]candleRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
