package domain

// Provider metric names as they appear in the raw wide payload.
// The Normalizer maps these (case-insensitively) to the canonical
// lowercase column set.
const (
	MetricOpen     = "Open"
	MetricHigh     = "High"
	MetricLow      = "Low"
	MetricClose    = "Close"
	MetricAdjClose = "Adj Close"
	MetricVolume   = "Volume"
)

// WideMetrics is the provider column order within each ticker group.
var WideMetrics = []string{
	MetricOpen, MetricHigh, MetricLow, MetricClose, MetricAdjClose, MetricVolume,
}

// WideColumn is one (ticker, metric) column of a wide payload.
// Cells are kept as raw strings: numeric coercion is the Normalizer's
// job, and unparseable vendor values must survive the artifact
// round-trip untouched.
type WideColumn struct {
	Ticker string
	Metric string
	Cells  []string
}

// WideTable is the raw multi-ticker payload: one row per date, columns
// nested by ticker then metric. Dates are formatted with DateLayout.
type WideTable struct {
	Dates   []string
	Columns []WideColumn
}

// Empty reports whether the table carries no data rows.
func (t *WideTable) Empty() bool {
	return t == nil || len(t.Dates) == 0
}

// Tickers returns the distinct tickers in column order.
func (t *WideTable) Tickers() []string {
	var out []string
	seen := make(map[string]bool)
	for _, c := range t.Columns {
		if !seen[c.Ticker] {
			seen[c.Ticker] = true
			out = append(out, c.Ticker)
		}
	}
	return out
}
