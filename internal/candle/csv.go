// Package candle provides candle series I/O and validation: a CSV codec for
// import/export, the series validator shared by the orchestrator and the
// importers, and a synthetic generator for tests and demos.
package candle

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"hindsight/internal/domain"
)

// csvHeader is the column order the codec reads and writes.
var csvHeader = []string{"timestamp", "open", "high", "low", "close", "volume"}

// ReadFile reads a candle series from a CSV file.
func ReadFile(path string) ([]domain.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening CSV %s: %w", path, err)
	}
	defer f.Close()

	candles, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading CSV %s: %w", path, err)
	}
	return candles, nil
}

// Read parses candles from CSV rows of
// timestamp,open,high,low,close,volume. A leading header row is skipped.
// Timestamps may be epoch milliseconds, RFC3339, or YYYY-MM-DD dates.
// Malformed rows fail with their row number.
func Read(r io.Reader) ([]domain.Candle, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	var candles []domain.Candle
	row := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row+1, err)
		}
		row++

		// A first row whose timestamp does not parse is a header.
		if row == 1 {
			if _, err := parseTimestamp(record[0]); err != nil {
				continue
			}
		}

		c, err := parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		candles = append(candles, c)
	}
	return candles, nil
}

// WriteFile writes a candle series to a CSV file, replacing any existing
// content.
func WriteFile(path string, candles []domain.Candle) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating CSV %s: %w", path, err)
	}
	defer f.Close()

	if err := Write(f, candles); err != nil {
		return fmt.Errorf("writing CSV %s: %w", path, err)
	}
	return nil
}

// Write writes candles as CSV with a header row. Timestamps are epoch
// milliseconds.
func Write(w io.Writer, candles []domain.Candle) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, c := range candles {
		record := []string{
			strconv.FormatInt(c.Timestamp, 10),
			formatPrice(c.Open),
			formatPrice(c.High),
			formatPrice(c.Low),
			formatPrice(c.Close),
			formatPrice(c.Volume),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func parseRecord(record []string) (domain.Candle, error) {
	if len(record) != len(csvHeader) {
		return domain.Candle{}, fmt.Errorf("expected %d fields, got %d", len(csvHeader), len(record))
	}

	ts, err := parseTimestamp(record[0])
	if err != nil {
		return domain.Candle{}, fmt.Errorf("parsing timestamp %q: %w", record[0], err)
	}

	fields := make([]float64, 5)
	for i, name := range csvHeader[1:] {
		v, err := strconv.ParseFloat(strings.TrimSpace(record[i+1]), 64)
		if err != nil {
			return domain.Candle{}, fmt.Errorf("parsing %s %q: %w", name, record[i+1], err)
		}
		fields[i] = v
	}

	return domain.Candle{
		Timestamp: ts,
		Open:      fields[0],
		High:      fields[1],
		Low:       fields[2],
		Close:     fields[3],
		Volume:    fields[4],
	}, nil
}

// parseTimestamp accepts epoch milliseconds, RFC3339, or YYYY-MM-DD (UTC
// midnight).
func parseTimestamp(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UnixMilli(), nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UnixMilli(), nil
	}
	return 0, fmt.Errorf("unrecognized timestamp format %q", s)
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
