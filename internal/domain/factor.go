package domain

import "time"

// FactorRow holds the derived indicators for one (ticker, date).
// Fully derived from PriceBar history; the whole table is recomputed
// and swapped atomically on every run, never edited in place.
//
// Nil pointer means the indicator is undefined at that date (not enough
// trailing history for the rolling window).
type FactorRow struct {
	Ticker string
	Date   time.Time
	Close  float64

	SMA20          *float64 // trailing 20-value mean of close
	BollingerUpper *float64 // sma_20 + 2*std_20
	BollingerLower *float64 // sma_20 - 2*std_20
	DailyReturn    *float64 // simple percent change of close
	LogReturn      *float64 // ln(close_t / close_{t-1})
	Volatility20d  *float64 // 20-value std of log_return * sqrt(252)
	RSI14          *float64 // 14-period relative strength index, in [0,100]
}
