package domain

import "time"

// DateLayout is the canonical calendar-date format used in artifacts,
// storage and the read API. Dates never carry a time component.
const DateLayout = "2006-01-02"

// PriceBar is one ticker's OHLCV for one calendar date.
// Uniquely identified by (Ticker, Date); persisted in raw.price_ohlcv.
type PriceBar struct {
	Ticker   string
	Date     time.Time // midnight UTC
	Open     float64
	High     float64
	Low      float64
	Close    float64 // must be > 0 for every stored bar
	AdjClose float64
	Volume   *int64 // nullable: some vendors omit volume
	LoadTs   time.Time
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DateString formats the bar's date in the canonical layout.
func (b *PriceBar) DateString() string {
	return b.Date.Format(DateLayout)
}
