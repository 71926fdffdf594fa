package clickhouse

import (
	"context"
	"fmt"
	"time"

	"market-pipeline/internal/domain"
	"market-pipeline/internal/storage"
)

// FactorStore implements storage.FactorStore using ClickHouse. The
// rebuilt snapshot is filled into a shadow table and swapped in with
// EXCHANGE TABLES, which is atomic under the Atomic database engine.
type FactorStore struct {
	conn *Conn
}

// NewFactorStore creates a new FactorStore.
func NewFactorStore(conn *Conn) *FactorStore {
	return &FactorStore{conn: conn}
}

// Compile-time interface check.
var _ storage.FactorStore = (*FactorStore)(nil)

const createFactorsDDL = `
	CREATE TABLE IF NOT EXISTS %s (
		ticker          String,
		date            Date,
		close           Float64,
		sma_20          Nullable(Float64),
		bollinger_upper Nullable(Float64),
		bollinger_lower Nullable(Float64),
		daily_return    Nullable(Float64),
		log_return      Nullable(Float64),
		volatility_20d  Nullable(Float64),
		rsi_14          Nullable(Float64)
	) ENGINE = MergeTree()
	ORDER BY (ticker, date)
`

// EnsureTable creates the factors table if it does not exist yet.
func (s *FactorStore) EnsureTable(ctx context.Context) error {
	if err := s.conn.Exec(ctx, fmt.Sprintf(createFactorsDDL, "factors")); err != nil {
		return fmt.Errorf("create factors table: %w", err)
	}
	return nil
}

// ReplaceAll atomically replaces the factors table with the given rows.
func (s *FactorStore) ReplaceAll(ctx context.Context, rows []*domain.FactorRow) error {
	if err := s.EnsureTable(ctx); err != nil {
		return err
	}

	if err := s.conn.Exec(ctx, "DROP TABLE IF EXISTS factors_rebuild"); err != nil {
		return fmt.Errorf("drop stale rebuild table: %w", err)
	}
	if err := s.conn.Exec(ctx, fmt.Sprintf(createFactorsDDL, "factors_rebuild")); err != nil {
		return fmt.Errorf("create rebuild table: %w", err)
	}

	if len(rows) > 0 {
		batch, err := s.conn.PrepareBatch(ctx, `
			INSERT INTO factors_rebuild (
				ticker, date, close, sma_20, bollinger_upper, bollinger_lower,
				daily_return, log_return, volatility_20d, rsi_14
			)
		`)
		if err != nil {
			return fmt.Errorf("prepare batch: %w", err)
		}
		for _, r := range rows {
			err = batch.Append(
				r.Ticker, r.Date, r.Close, r.SMA20, r.BollingerUpper, r.BollingerLower,
				r.DailyReturn, r.LogReturn, r.Volatility20d, r.RSI14,
			)
			if err != nil {
				return fmt.Errorf("append to batch: %w", err)
			}
		}
		if err := batch.Send(); err != nil {
			return fmt.Errorf("send batch: %w", err)
		}
	}

	if err := s.conn.Exec(ctx, "EXCHANGE TABLES factors AND factors_rebuild"); err != nil {
		return fmt.Errorf("swap in rebuilt factors: %w", err)
	}
	if err := s.conn.Exec(ctx, "DROP TABLE IF EXISTS factors_rebuild"); err != nil {
		return fmt.Errorf("drop previous factors: %w", err)
	}
	return nil
}

// GetByTicker returns the factor rows for a ticker, date ASC.
func (s *FactorStore) GetByTicker(ctx context.Context, ticker string) ([]*domain.FactorRow, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT ticker, date, close, sma_20, bollinger_upper, bollinger_lower,
		       daily_return, log_return, volatility_20d, rsi_14
		FROM factors
		WHERE ticker = ?
		ORDER BY date ASC
	`, ticker)
	if err != nil {
		return nil, fmt.Errorf("get factors by ticker: %w", err)
	}
	defer rows.Close()

	var out []*domain.FactorRow
	for rows.Next() {
		var r domain.FactorRow
		var d time.Time
		err := rows.Scan(
			&r.Ticker, &d, &r.Close, &r.SMA20, &r.BollingerUpper, &r.BollingerLower,
			&r.DailyReturn, &r.LogReturn, &r.Volatility20d, &r.RSI14,
		)
		if err != nil {
			return nil, fmt.Errorf("scan factor row: %w", err)
		}
		r.Date = domain.Day(d)
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate factor rows: %w", err)
	}
	return out, nil
}
