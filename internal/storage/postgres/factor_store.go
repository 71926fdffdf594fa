package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"market-pipeline/internal/domain"
	"market-pipeline/internal/storage"
)

// FactorStore implements storage.FactorStore using PostgreSQL.
// ReplaceAll builds the new snapshot in a rebuild table and swaps it in
// with a transactional rename, so readers never see a half-built table.
type FactorStore struct {
	pool *Pool
}

// NewFactorStore creates a new FactorStore.
func NewFactorStore(pool *Pool) *FactorStore {
	return &FactorStore{pool: pool}
}

// Compile-time interface check.
var _ storage.FactorStore = (*FactorStore)(nil)

// ReplaceAll atomically replaces analytics.factors with the given rows.
func (s *FactorStore) ReplaceAll(ctx context.Context, rows []*domain.FactorRow) error {
	tx, err := s.pool.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// A rebuild table left over from a crashed run is stale by definition.
	if _, err := tx.Exec(ctx, `DROP TABLE IF EXISTS analytics.factors_rebuild`); err != nil {
		return fmt.Errorf("drop stale rebuild table: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`CREATE TABLE analytics.factors_rebuild (LIKE analytics.factors INCLUDING ALL)`); err != nil {
		return fmt.Errorf("create rebuild table: %w", err)
	}

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO analytics.factors_rebuild
				(ticker, date, close, sma_20, bollinger_upper, bollinger_lower,
				 daily_return, log_return, volatility_20d, rsi_14)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, r.Ticker, r.Date, r.Close, r.SMA20, r.BollingerUpper, r.BollingerLower,
			r.DailyReturn, r.LogReturn, r.Volatility20d, r.RSI14)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("fill rebuild table: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `DROP TABLE analytics.factors`); err != nil {
		return fmt.Errorf("drop previous factors: %w", err)
	}
	if _, err := tx.Exec(ctx, `ALTER TABLE analytics.factors_rebuild RENAME TO factors`); err != nil {
		return fmt.Errorf("swap in rebuilt factors: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit factor replace: %w", err)
	}
	return nil
}

// GetByTicker returns the factor rows for a ticker, date ASC.
func (s *FactorStore) GetByTicker(ctx context.Context, ticker string) ([]*domain.FactorRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ticker, date, close, sma_20, bollinger_upper, bollinger_lower,
		       daily_return, log_return, volatility_20d, rsi_14
		FROM analytics.factors
		WHERE ticker = $1
		ORDER BY date ASC
	`, ticker)
	if err != nil {
		return nil, fmt.Errorf("get factors by ticker: %w", err)
	}
	defer rows.Close()

	var out []*domain.FactorRow
	for rows.Next() {
		var r domain.FactorRow
		err := rows.Scan(
			&r.Ticker,
			&r.Date,
			&r.Close,
			&r.SMA20,
			&r.BollingerUpper,
			&r.BollingerLower,
			&r.DailyReturn,
			&r.LogReturn,
			&r.Volatility20d,
			&r.RSI14,
		)
		if err != nil {
			return nil, fmt.Errorf("scan factor row: %w", err)
		}
		r.Date = domain.Day(r.Date)
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate factor rows: %w", err)
	}
	return out, nil
}
