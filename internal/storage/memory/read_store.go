package memory

import (
	"context"
	"errors"

	"market-pipeline/internal/domain"
	"market-pipeline/internal/storage"
)

// ReadStore is an in-memory implementation of storage.ReadStore,
// joining the bar and factor stores on (ticker, date).
type ReadStore struct {
	bars    *BarStore
	factors *FactorStore
}

// NewReadStore creates a ReadStore over existing memory stores.
func NewReadStore(bars *BarStore, factors *FactorStore) *ReadStore {
	return &ReadStore{bars: bars, factors: factors}
}

// Compile-time interface check.
var _ storage.ReadStore = (*ReadStore)(nil)

// Tickers returns the distinct tickers present, sorted ASC.
func (s *ReadStore) Tickers(ctx context.Context) ([]string, error) {
	return s.bars.Tickers(ctx)
}

// PricesWithFactors inner-joins price and factor rows for one ticker.
func (s *ReadStore) PricesWithFactors(ctx context.Context, ticker string) ([]*domain.PricePoint, error) {
	factors, err := s.factors.GetByTicker(ctx, ticker)
	if err != nil {
		return nil, err
	}

	var out []*domain.PricePoint
	for _, f := range factors {
		b, err := s.bars.GetByKey(ctx, ticker, f.Date)
		if errors.Is(err, storage.ErrNotFound) {
			continue // inner join: factor without a price row is dropped
		}
		if err != nil {
			return nil, err
		}
		out = append(out, &domain.PricePoint{
			Date:           b.Date,
			Open:           b.Open,
			High:           b.High,
			Low:            b.Low,
			Close:          b.Close,
			Volume:         b.Volume,
			SMA20:          f.SMA20,
			BollingerUpper: f.BollingerUpper,
			BollingerLower: f.BollingerLower,
			RSI14:          f.RSI14,
			DailyReturn:    f.DailyReturn,
			LogReturn:      f.LogReturn,
			Volatility20d:  f.Volatility20d,
		})
	}
	return out, nil
}
