package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-pipeline/internal/domain"
	"market-pipeline/internal/storage"
)

func TestBarStore_LoadBatchAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBarStore(pool)

	cursor, err := store.LoadBatch(ctx, []*domain.PriceBar{
		testBar(t, "SPY", "2024-01-10", 470),
		testBar(t, "SPY", "2024-01-12", 472),
		testBar(t, "AAPL", "2024-01-11", 186),
	})
	require.NoError(t, err)
	assert.Equal(t, testDay(t, "2024-01-12"), cursor)

	got, err := store.GetByKey(ctx, "SPY", testDay(t, "2024-01-10"))
	require.NoError(t, err)
	assert.Equal(t, "SPY", got.Ticker)
	assert.InDelta(t, 470, got.Close, 0.0001)
	assert.InDelta(t, 469.9, got.AdjClose, 0.0001)
	require.NotNil(t, got.Volume)
	assert.EqualValues(t, 1000, *got.Volume)
	assert.False(t, got.LoadTs.IsZero())
}

func TestBarStore_LoadBatchAdvancesCursorTransactionally(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBarStore(pool)
	state := NewStateStore(pool)

	_, ok, err := state.LastLoadedDate(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "cursor must start unset")

	_, err = store.LoadBatch(ctx, []*domain.PriceBar{testBar(t, "SPY", "2024-01-10", 470)})
	require.NoError(t, err)

	cursor, ok, err := state.LastLoadedDate(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, testDay(t, "2024-01-10"), cursor)
}

func TestBarStore_LoadBatchUpsertsOnConflict(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBarStore(pool)

	_, err := store.LoadBatch(ctx, []*domain.PriceBar{testBar(t, "SPY", "2024-01-10", 470)})
	require.NoError(t, err)
	_, err = store.LoadBatch(ctx, []*domain.PriceBar{testBar(t, "SPY", "2024-01-10", 475)})
	require.NoError(t, err)

	all, err := store.AllOrdered(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1, "upsert must not duplicate the key")
	assert.InDelta(t, 475, all[0].Close, 0.0001)
}

func TestBarStore_InsertMissing(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBarStore(pool)

	_, err := store.LoadBatch(ctx, []*domain.PriceBar{testBar(t, "AAPL", "2024-01-10", 185)})
	require.NoError(t, err)

	inserted, err := store.InsertMissing(ctx, []*domain.PriceBar{
		testBar(t, "AAPL", "2024-01-10", 999),
		testBar(t, "AAPL", "2024-01-11", 186),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)

	got, err := store.GetByKey(ctx, "AAPL", testDay(t, "2024-01-10"))
	require.NoError(t, err)
	assert.InDelta(t, 185, got.Close, 0.0001, "existing row must not be overwritten")
}

func TestBarStore_GetByKeyNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBarStore(pool)
	_, err := store.GetByKey(context.Background(), "SPY", testDay(t, "2024-01-10"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestBarStore_TickersAndDates(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBarStore(pool)

	_, err := store.LoadBatch(ctx, []*domain.PriceBar{
		testBar(t, "SPY", "2024-01-12", 472),
		testBar(t, "AAPL", "2024-01-10", 185),
		testBar(t, "SPY", "2024-01-10", 470),
	})
	require.NoError(t, err)

	tickers, err := store.Tickers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "SPY"}, tickers)

	dates, err := store.Dates(ctx, "SPY")
	require.NoError(t, err)
	require.Len(t, dates, 2)
	assert.Equal(t, testDay(t, "2024-01-10"), dates[0])
	assert.Equal(t, testDay(t, "2024-01-12"), dates[1])
}

func TestBarStore_RejectsNonPositiveClose(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	bad := testBar(t, "SPY", "2024-01-10", 470)
	bad.Close = -1

	_, err := NewBarStore(pool).LoadBatch(context.Background(), []*domain.PriceBar{bad})
	assert.Error(t, err, "schema CHECK constraint must reject close <= 0")
}
