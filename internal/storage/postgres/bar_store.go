package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"market-pipeline/internal/domain"
	"market-pipeline/internal/storage"
)

// BarStore implements storage.BarStore using PostgreSQL.
type BarStore struct {
	pool *Pool
}

// NewBarStore creates a new BarStore.
func NewBarStore(pool *Pool) *BarStore {
	return &BarStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

const upsertBarSQL = `
	INSERT INTO raw.price_ohlcv
		(ticker, date, open, high, low, close, adj_close, volume, load_ts)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
	ON CONFLICT (ticker, date) DO UPDATE SET
		open = EXCLUDED.open,
		high = EXCLUDED.high,
		low = EXCLUDED.low,
		close = EXCLUDED.close,
		adj_close = EXCLUDED.adj_close,
		volume = EXCLUDED.volume,
		load_ts = now()
`

const upsertCursorSQL = `
	INSERT INTO system.state (key, value_text, updated_at)
	VALUES ($1, $2, now())
	ON CONFLICT (key) DO UPDATE
	SET value_text = EXCLUDED.value_text, updated_at = EXCLUDED.updated_at
`

// LoadBatch upserts all bars and advances the cursor to the batch's
// max(date) in a single transaction.
func (s *BarStore) LoadBatch(ctx context.Context, bars []*domain.PriceBar) (time.Time, error) {
	if len(bars) == 0 {
		return time.Time{}, storage.ErrInvalidInput
	}

	tx, err := s.pool.begin(ctx)
	if err != nil {
		return time.Time{}, err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	var maxDate time.Time
	for _, b := range bars {
		batch.Queue(upsertBarSQL,
			b.Ticker, b.Date, b.Open, b.High, b.Low, b.Close, b.AdjClose, b.Volume)
		if b.Date.After(maxDate) {
			maxDate = b.Date
		}
	}
	batch.Queue(upsertCursorSQL, storage.CursorKey, maxDate.Format(domain.DateLayout))

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return time.Time{}, fmt.Errorf("load batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return time.Time{}, fmt.Errorf("commit load batch: %w", err)
	}
	return maxDate, nil
}

// InsertMissing inserts bars additively with ON CONFLICT DO NOTHING.
// All inserts share one commit.
func (s *BarStore) InsertMissing(ctx context.Context, bars []*domain.PriceBar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}

	tx, err := s.pool.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO raw.price_ohlcv
			(ticker, date, open, high, low, close, adj_close, volume, load_ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (ticker, date) DO NOTHING
	`

	var inserted int
	for _, b := range bars {
		tag, err := tx.Exec(ctx, query,
			b.Ticker, b.Date, b.Open, b.High, b.Low, b.Close, b.AdjClose, b.Volume)
		if err != nil {
			return 0, fmt.Errorf("insert missing bar %s/%s: %w", b.Ticker, b.DateString(), err)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit repairs: %w", err)
	}
	return inserted, nil
}

// Tickers returns the distinct tickers present, sorted ASC.
func (s *BarStore) Tickers(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT ticker FROM raw.price_ohlcv ORDER BY ticker ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tickers: %w", err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan ticker: %w", err)
		}
		tickers = append(tickers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tickers: %w", err)
	}
	return tickers, nil
}

// Dates returns the trading dates present for a ticker, sorted ASC.
func (s *BarStore) Dates(ctx context.Context, ticker string) ([]time.Time, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT date FROM raw.price_ohlcv WHERE ticker = $1 ORDER BY date ASC`, ticker)
	if err != nil {
		return nil, fmt.Errorf("list dates for %s: %w", ticker, err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		dates = append(dates, domain.Day(d))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dates: %w", err)
	}
	return dates, nil
}

// GetByKey retrieves one bar. Returns ErrNotFound if not present.
func (s *BarStore) GetByKey(ctx context.Context, ticker string, date time.Time) (*domain.PriceBar, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT ticker, date, open, high, low, close, adj_close, volume, load_ts
		FROM raw.price_ohlcv
		WHERE ticker = $1 AND date = $2
	`, ticker, date)

	b, err := scanBar(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get bar by key: %w", err)
	}
	return b, nil
}

// AllOrdered returns the full history ordered by date ASC, ticker ASC.
func (s *BarStore) AllOrdered(ctx context.Context) ([]*domain.PriceBar, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ticker, date, open, high, low, close, adj_close, volume, load_ts
		FROM raw.price_ohlcv
		ORDER BY date ASC, ticker ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("get all bars: %w", err)
	}
	defer rows.Close()

	var bars []*domain.PriceBar
	for rows.Next() {
		b, err := scanBar(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bar row: %w", err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bar rows: %w", err)
	}
	return bars, nil
}

// scanBar scans a single row into a PriceBar.
func scanBar(row pgx.Row) (*domain.PriceBar, error) {
	var b domain.PriceBar
	err := row.Scan(
		&b.Ticker,
		&b.Date,
		&b.Open,
		&b.High,
		&b.Low,
		&b.Close,
		&b.AdjClose,
		&b.Volume,
		&b.LoadTs,
	)
	if err != nil {
		return nil, err
	}
	b.Date = domain.Day(b.Date)
	return &b, nil
}
