package artifact

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"market-pipeline/internal/domain"
)

var cleanHeader = []string{"date", "ticker", "open", "high", "low", "close", "adj_close", "volume"}

// WriteClean serializes validated bars to the run's clean artifact.
// Floats use the shortest representation that round-trips exactly.
func (s *Store) WriteClean(runID string, bars []*domain.PriceBar) (string, error) {
	path := s.CleanPath(runID)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create clean artifact: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(cleanHeader); err != nil {
		return "", fmt.Errorf("write clean header: %w", err)
	}

	for _, b := range bars {
		volume := ""
		if b.Volume != nil {
			volume = strconv.FormatInt(*b.Volume, 10)
		}
		row := []string{
			b.DateString(),
			b.Ticker,
			formatFloat(b.Open),
			formatFloat(b.High),
			formatFloat(b.Low),
			formatFloat(b.Close),
			formatFloat(b.AdjClose),
			volume,
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("write clean row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush clean artifact: %w", err)
	}
	return path, nil
}

// ReadClean loads a clean artifact back into bars.
// Returns ErrNotFound if the file is missing.
func (s *Store) ReadClean(path string) ([]*domain.PriceBar, error) {
	f, err := open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read clean artifact: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	var bars []*domain.PriceBar
	for i, rec := range records[1:] {
		if len(rec) != len(cleanHeader) {
			return nil, fmt.Errorf("clean artifact row %d: expected %d fields, got %d",
				i+1, len(cleanHeader), len(rec))
		}
		date, err := time.ParseInLocation(domain.DateLayout, rec[0], time.UTC)
		if err != nil {
			return nil, fmt.Errorf("clean artifact row %d: parse date %q: %w", i+1, rec[0], err)
		}
		b := &domain.PriceBar{Ticker: rec[1], Date: date}
		if b.Open, err = strconv.ParseFloat(rec[2], 64); err != nil {
			return nil, fmt.Errorf("clean artifact row %d: parse open: %w", i+1, err)
		}
		if b.High, err = strconv.ParseFloat(rec[3], 64); err != nil {
			return nil, fmt.Errorf("clean artifact row %d: parse high: %w", i+1, err)
		}
		if b.Low, err = strconv.ParseFloat(rec[4], 64); err != nil {
			return nil, fmt.Errorf("clean artifact row %d: parse low: %w", i+1, err)
		}
		if b.Close, err = strconv.ParseFloat(rec[5], 64); err != nil {
			return nil, fmt.Errorf("clean artifact row %d: parse close: %w", i+1, err)
		}
		if b.AdjClose, err = strconv.ParseFloat(rec[6], 64); err != nil {
			return nil, fmt.Errorf("clean artifact row %d: parse adj_close: %w", i+1, err)
		}
		if rec[7] != "" {
			v, err := strconv.ParseInt(rec[7], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("clean artifact row %d: parse volume: %w", i+1, err)
			}
			b.Volume = &v
		}
		bars = append(bars, b)
	}
	return bars, nil
}

// formatFloat renders v with the shortest string that parses back to
// the same float64.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
