// Package factors derives rolling technical indicators from stored
// price history and publishes them as an atomically swapped snapshot.
package factors

import (
	"math"
	"sort"
	"time"

	"market-pipeline/internal/domain"
)

const (
	smaWindow  = 20
	volWindow  = 20
	rsiWindow  = 14
	bollingerK = 2.0

	// Trading days per year, used to annualize daily volatility.
	annualization = 252
)

// Compute derives the full indicator table from price history. Bars
// are grouped per ticker before any rolling window is applied, so one
// ticker's values never bleed into another's. Output is ordered ticker
// ASC, date ASC with one row per input bar.
func Compute(bars []*domain.PriceBar) []*domain.FactorRow {
	byTicker := make(map[string][]*domain.PriceBar)
	for _, b := range bars {
		byTicker[b.Ticker] = append(byTicker[b.Ticker], b)
	}

	tickers := make([]string, 0, len(byTicker))
	for t := range byTicker {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	var rows []*domain.FactorRow
	for _, t := range tickers {
		series := byTicker[t]
		sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
		rows = append(rows, computeSeries(t, series)...)
	}
	return rows
}

// computeSeries derives indicators for one ticker's date-ordered bars.
func computeSeries(ticker string, series []*domain.PriceBar) []*domain.FactorRow {
	n := len(series)
	closes := make([]float64, n)
	dates := make([]time.Time, n)
	for i, b := range series {
		closes[i] = b.Close
		dates[i] = b.Date
	}

	logReturns := make([]*float64, n)
	rows := make([]*domain.FactorRow, n)
	for i := 0; i < n; i++ {
		row := &domain.FactorRow{Ticker: ticker, Date: dates[i], Close: closes[i]}

		if sma, std, ok := rollingMeanStd(closes, i, smaWindow); ok {
			upper := sma + bollingerK*std
			lower := sma - bollingerK*std
			row.SMA20 = &sma
			row.BollingerUpper = &upper
			row.BollingerLower = &lower
		}

		if i > 0 && closes[i-1] != 0 {
			daily := closes[i]/closes[i-1] - 1
			lr := math.Log(closes[i] / closes[i-1])
			row.DailyReturn = &daily
			row.LogReturn = &lr
			logReturns[i] = &lr
		}

		if vol, ok := rollingVolatility(logReturns, i, volWindow); ok {
			row.Volatility20d = &vol
		}

		if rsi, ok := rsiAt(closes, i, rsiWindow); ok {
			row.RSI14 = &rsi
		}

		rows[i] = row
	}
	return rows
}

// rollingMeanStd returns the trailing-window mean and sample standard
// deviation of values ending at index i. ok is false until the window
// is full.
func rollingMeanStd(values []float64, i, window int) (mean, std float64, ok bool) {
	if i+1 < window {
		return 0, 0, false
	}
	w := values[i+1-window : i+1]

	var sum float64
	for _, v := range w {
		sum += v
	}
	mean = sum / float64(window)

	var ss float64
	for _, v := range w {
		d := v - mean
		ss += d * d
	}
	std = math.Sqrt(ss / float64(window-1))
	return mean, std, true
}

// rollingVolatility annualizes the sample std of the trailing window of
// log returns ending at index i. Requires a full window of defined
// returns, so the first defined value lands one row after SMA does.
func rollingVolatility(logReturns []*float64, i, window int) (float64, bool) {
	if i+1 < window {
		return 0, false
	}
	w := make([]float64, 0, window)
	for _, r := range logReturns[i+1-window : i+1] {
		if r == nil {
			return 0, false
		}
		w = append(w, *r)
	}

	var sum float64
	for _, v := range w {
		sum += v
	}
	mean := sum / float64(window)

	var ss float64
	for _, v := range w {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss/float64(window-1)) * math.Sqrt(annualization), true
}

// rsiAt computes the simple-mean RSI over the trailing window of close
// deltas ending at index i. Needs window+1 closes. When the window has
// no losses the index saturates at 100.
func rsiAt(closes []float64, i, window int) (float64, bool) {
	if i < window {
		return 0, false
	}

	var gains, losses float64
	for j := i - window + 1; j <= i; j++ {
		delta := closes[j] - closes[j-1]
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}
	avgGain := gains / float64(window)
	avgLoss := losses / float64(window)

	if avgLoss == 0 {
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}
