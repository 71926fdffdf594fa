package normalize

import (
	"context"
	"errors"
	"testing"

	"market-pipeline/internal/artifact"
	"market-pipeline/internal/domain"
)

func newFixture(t *testing.T) (*Normalizer, *artifact.Store) {
	t.Helper()
	store, err := artifact.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("artifact store: %v", err)
	}
	return New(store, nil), store
}

// writeRaw persists a wide table and returns its path.
func writeRaw(t *testing.T, store *artifact.Store, table *domain.WideTable) string {
	t.Helper()
	path, err := store.WriteRaw("test-run", table)
	if err != nil {
		t.Fatalf("write raw: %v", err)
	}
	return path
}

func fullColumn(ticker, metric string, cells ...string) domain.WideColumn {
	return domain.WideColumn{Ticker: ticker, Metric: metric, Cells: cells}
}

func TestNormalizer_PivotsTwoTickers(t *testing.T) {
	n, store := newFixture(t)
	path := writeRaw(t, store, &domain.WideTable{
		Dates: []string{"2024-01-10", "2024-01-11"},
		Columns: []domain.WideColumn{
			fullColumn("SPY", "Open", "470", "471"),
			fullColumn("SPY", "Close", "471", "472"),
			fullColumn("SPY", "Adj Close", "470.5", "471.5"),
			fullColumn("SPY", "Volume", "1000", "1100"),
			fullColumn("AAPL", "Open", "185", "186"),
			fullColumn("AAPL", "Close", "186", "187"),
			fullColumn("AAPL", "Adj Close", "185.9", "186.9"),
			fullColumn("AAPL", "Volume", "2000", "2100"),
		},
	})

	res, err := n.Run(context.Background(), "test-run", path)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Rows != 4 {
		t.Fatalf("rows = %d, want 4 (2 dates x 2 tickers)", res.Rows)
	}
	if res.Dropped != 0 {
		t.Errorf("dropped = %d, want 0", res.Dropped)
	}

	bars, err := store.ReadClean(res.CleanPath)
	if err != nil {
		t.Fatalf("read clean: %v", err)
	}
	if len(bars) != 4 {
		t.Fatalf("clean rows = %d, want 4", len(bars))
	}

	// Spot-check one cell survived the pivot with its value intact.
	var found bool
	for _, b := range bars {
		if b.Ticker == "AAPL" && b.DateString() == "2024-01-11" {
			found = true
			if b.Close != 187 || b.AdjClose != 186.9 {
				t.Errorf("AAPL 2024-01-11: close=%v adj=%v", b.Close, b.AdjClose)
			}
			if b.Volume == nil || *b.Volume != 2100 {
				t.Errorf("AAPL 2024-01-11 volume = %v, want 2100", b.Volume)
			}
		}
	}
	if !found {
		t.Error("AAPL 2024-01-11 missing from clean output")
	}
}

func TestNormalizer_CaseInsensitiveColumnNames(t *testing.T) {
	n, store := newFixture(t)
	path := writeRaw(t, store, &domain.WideTable{
		Dates: []string{"2024-01-10"},
		Columns: []domain.WideColumn{
			fullColumn("SPY", "OPEN", "470"),
			fullColumn("SPY", "close", "471"),
			fullColumn("SPY", "Adj close", "470.5"),
		},
	})

	res, err := n.Run(context.Background(), "test-run", path)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Rows != 1 {
		t.Fatalf("rows = %d, want 1", res.Rows)
	}

	bars, _ := store.ReadClean(res.CleanPath)
	if bars[0].AdjClose != 470.5 {
		t.Errorf("adj_close = %v; case variant was not recognized", bars[0].AdjClose)
	}
}

func TestNormalizer_SynthesizesAdjCloseFromClose(t *testing.T) {
	n, store := newFixture(t)
	path := writeRaw(t, store, &domain.WideTable{
		Dates: []string{"2024-01-10"},
		Columns: []domain.WideColumn{
			fullColumn("SPY", "Open", "470"),
			fullColumn("SPY", "Close", "471"),
		},
	})

	res, err := n.Run(context.Background(), "test-run", path)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	bars, _ := store.ReadClean(res.CleanPath)
	if len(bars) != 1 {
		t.Fatalf("clean rows = %d, want 1", len(bars))
	}
	if bars[0].AdjClose != 471 {
		t.Errorf("adj_close = %v, want close value 471 when the column is absent", bars[0].AdjClose)
	}
}

func TestNormalizer_MissingCloseEverywhere(t *testing.T) {
	n, store := newFixture(t)
	path := writeRaw(t, store, &domain.WideTable{
		Dates: []string{"2024-01-10"},
		Columns: []domain.WideColumn{
			fullColumn("SPY", "Open", "470"),
			fullColumn("SPY", "Volume", "1000"),
		},
	})

	_, err := n.Run(context.Background(), "test-run", path)
	if !errors.Is(err, ErrMissingRequiredColumn) {
		t.Errorf("expected ErrMissingRequiredColumn, got %v", err)
	}
}

func TestNormalizer_MetricFirstNestingIsMalformed(t *testing.T) {
	n, store := newFixture(t)
	// Levels swapped: outer row holds metrics, inner row tickers.
	path := writeRaw(t, store, &domain.WideTable{
		Dates: []string{"2024-01-10"},
		Columns: []domain.WideColumn{
			{Ticker: "Close", Metric: "SPY", Cells: []string{"471"}},
			{Ticker: "Close", Metric: "AAPL", Cells: []string{"186"}},
		},
	})

	_, err := n.Run(context.Background(), "test-run", path)
	if !errors.Is(err, ErrMalformedInput) {
		t.Errorf("expected ErrMalformedInput, got %v", err)
	}
}

func TestNormalizer_UnknownMetricIsMalformed(t *testing.T) {
	n, store := newFixture(t)
	path := writeRaw(t, store, &domain.WideTable{
		Dates: []string{"2024-01-10"},
		Columns: []domain.WideColumn{
			fullColumn("SPY", "Close", "471"),
			fullColumn("SPY", "Sentiment", "0.8"),
		},
	})

	_, err := n.Run(context.Background(), "test-run", path)
	if !errors.Is(err, ErrMalformedInput) {
		t.Errorf("expected ErrMalformedInput, got %v", err)
	}
}

func TestNormalizer_DropRules(t *testing.T) {
	n, store := newFixture(t)
	path := writeRaw(t, store, &domain.WideTable{
		Dates: []string{"2024-01-10", "2024-01-11", "2024-01-12", "2024-01-15"},
		Columns: []domain.WideColumn{
			fullColumn("SPY", "Open", "470", "", "472", "473"),
			fullColumn("SPY", "Close", "471", "472", "", "-5"),
		},
	})

	res, err := n.Run(context.Background(), "test-run", path)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	// Only the first row survives: missing open, missing close, and
	// non-positive close are all dropped.
	if res.Rows != 1 {
		t.Errorf("rows = %d, want 1", res.Rows)
	}
	if res.Dropped != 3 {
		t.Errorf("dropped = %d, want 3", res.Dropped)
	}
}

func TestNormalizer_AllEmptyRowNotCountedAsDropped(t *testing.T) {
	n, store := newFixture(t)
	// AAPL is structurally absent on the second date (holiday for that
	// listing): every cell empty. That is not a data-quality drop.
	path := writeRaw(t, store, &domain.WideTable{
		Dates: []string{"2024-01-10", "2024-01-11"},
		Columns: []domain.WideColumn{
			fullColumn("SPY", "Open", "470", "471"),
			fullColumn("SPY", "Close", "471", "472"),
			fullColumn("AAPL", "Open", "185", ""),
			fullColumn("AAPL", "Close", "186", ""),
			fullColumn("AAPL", "Volume", "2000", ""),
		},
	})

	res, err := n.Run(context.Background(), "test-run", path)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Rows != 3 {
		t.Errorf("rows = %d, want 3", res.Rows)
	}
	if res.Dropped != 0 {
		t.Errorf("dropped = %d, want 0 (absent row is not a drop)", res.Dropped)
	}
}

func TestNormalizer_UnparseableNumberBecomesMissing(t *testing.T) {
	n, store := newFixture(t)
	path := writeRaw(t, store, &domain.WideTable{
		Dates: []string{"2024-01-10"},
		Columns: []domain.WideColumn{
			fullColumn("SPY", "Open", "470"),
			fullColumn("SPY", "Close", "N/A"),
		},
	})

	res, err := n.Run(context.Background(), "test-run", path)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	// Close coerces to missing, so the row is dropped, not fatal.
	if res.Rows != 0 || res.Dropped != 1 {
		t.Errorf("rows=%d dropped=%d, want 0/1", res.Rows, res.Dropped)
	}
}

func TestNormalizer_EmptyPathSkips(t *testing.T) {
	n, _ := newFixture(t)
	res, err := n.Run(context.Background(), "test-run", "")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !res.Skipped {
		t.Error("expected skip for empty raw path")
	}
}

func TestNormalizer_MissingArtifactIsError(t *testing.T) {
	n, _ := newFixture(t)
	_, err := n.Run(context.Background(), "test-run", "/nonexistent/raw.csv")
	if !errors.Is(err, artifact.ErrNotFound) {
		t.Errorf("expected artifact.ErrNotFound, got %v", err)
	}
}
