package postgres

import (
	"context"
	"fmt"

	"market-pipeline/internal/domain"
	"market-pipeline/internal/storage"
)

// ReadStore implements storage.ReadStore using PostgreSQL. It serves
// the read API with a single join query per request.
type ReadStore struct {
	pool *Pool
	bars *BarStore
}

// NewReadStore creates a new ReadStore.
func NewReadStore(pool *Pool) *ReadStore {
	return &ReadStore{pool: pool, bars: NewBarStore(pool)}
}

// Compile-time interface check.
var _ storage.ReadStore = (*ReadStore)(nil)

// Tickers returns the distinct tickers present, sorted ASC.
func (s *ReadStore) Tickers(ctx context.Context) ([]string, error) {
	return s.bars.Tickers(ctx)
}

// PricesWithFactors inner-joins price and factor rows for one ticker.
func (s *ReadStore) PricesWithFactors(ctx context.Context, ticker string) ([]*domain.PricePoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT
			r.date, r.open, r.high, r.low, r.close, r.volume,
			f.sma_20, f.bollinger_upper, f.bollinger_lower,
			f.rsi_14, f.daily_return, f.log_return, f.volatility_20d
		FROM raw.price_ohlcv r
		INNER JOIN analytics.factors f
			ON r.date = f.date AND r.ticker = f.ticker
		WHERE r.ticker = $1
		ORDER BY r.date ASC
	`, ticker)
	if err != nil {
		return nil, fmt.Errorf("get prices with factors: %w", err)
	}
	defer rows.Close()

	var out []*domain.PricePoint
	for rows.Next() {
		var p domain.PricePoint
		err := rows.Scan(
			&p.Date,
			&p.Open,
			&p.High,
			&p.Low,
			&p.Close,
			&p.Volume,
			&p.SMA20,
			&p.BollingerUpper,
			&p.BollingerLower,
			&p.RSI14,
			&p.DailyReturn,
			&p.LogReturn,
			&p.Volatility20d,
		)
		if err != nil {
			return nil, fmt.Errorf("scan price point: %w", err)
		}
		p.Date = domain.Day(p.Date)
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price points: %w", err)
	}
	return out, nil
}
