package domain

import "time"

// PricePoint is one row of the read API: a price bar joined with its
// factor row. Indicator fields are nil where the rolling window has not
// filled yet.
type PricePoint struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume *int64

	SMA20          *float64
	BollingerUpper *float64
	BollingerLower *float64
	RSI14          *float64
	DailyReturn    *float64
	LogReturn      *float64
	Volatility20d  *float64
}
