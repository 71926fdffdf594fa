package factors

import (
	"math"
	"testing"
	"time"

	"market-pipeline/internal/domain"
)

func day(base time.Time, offset int) time.Time {
	return base.AddDate(0, 0, offset)
}

// series builds one ticker's date-ordered bars from closes.
func series(ticker string, closes []float64) []*domain.PriceBar {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]*domain.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = &domain.PriceBar{
			Ticker:   ticker,
			Date:     day(base, i),
			Open:     c,
			High:     c,
			Low:      c,
			Close:    c,
			AdjClose: c,
		}
	}
	return bars
}

func constantCloses(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func risingCloses(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestCompute_WindowWarmup(t *testing.T) {
	rows := Compute(series("AAPL", risingCloses(30, 100, 1)))
	if len(rows) != 30 {
		t.Fatalf("expected 30 rows, got %d", len(rows))
	}

	// SMA and Bollinger defined from the 20th value (index 19).
	for i := 0; i < 19; i++ {
		if rows[i].SMA20 != nil {
			t.Errorf("row %d: SMA20 defined before window fills", i)
		}
		if rows[i].BollingerUpper != nil || rows[i].BollingerLower != nil {
			t.Errorf("row %d: Bollinger defined before window fills", i)
		}
	}
	if rows[19].SMA20 == nil {
		t.Fatal("row 19: SMA20 should be defined")
	}

	// Returns undefined on the first row only.
	if rows[0].DailyReturn != nil || rows[0].LogReturn != nil {
		t.Error("row 0: returns must be undefined")
	}
	if rows[1].DailyReturn == nil || rows[1].LogReturn == nil {
		t.Error("row 1: returns should be defined")
	}

	// Volatility needs 20 defined log returns, so index 20 is first.
	if rows[19].Volatility20d != nil {
		t.Error("row 19: volatility defined too early")
	}
	if rows[20].Volatility20d == nil {
		t.Error("row 20: volatility should be defined")
	}

	// RSI needs 14 deltas, so index 14 is first.
	if rows[13].RSI14 != nil {
		t.Error("row 13: RSI defined too early")
	}
	if rows[14].RSI14 == nil {
		t.Error("row 14: RSI should be defined")
	}
}

func TestCompute_SMAAndBollingerValues(t *testing.T) {
	rows := Compute(series("AAPL", constantCloses(25, 50)))

	r := rows[19]
	if r.SMA20 == nil || *r.SMA20 != 50 {
		t.Fatalf("SMA20 = %v, want 50", r.SMA20)
	}
	// Constant series: std is 0, bands collapse onto the mean.
	if *r.BollingerUpper != 50 || *r.BollingerLower != 50 {
		t.Errorf("bands = [%v, %v], want both 50", *r.BollingerLower, *r.BollingerUpper)
	}
}

func TestCompute_BollingerUsesSampleStd(t *testing.T) {
	closes := risingCloses(20, 1, 1) // 1..20
	rows := Compute(series("AAPL", closes))

	r := rows[19]
	if r.SMA20 == nil {
		t.Fatal("SMA20 undefined")
	}
	if *r.SMA20 != 10.5 {
		t.Errorf("SMA20 = %v, want 10.5", *r.SMA20)
	}

	// Sample std of 1..20 is sqrt(35) ≈ 5.9161.
	wantStd := math.Sqrt(35)
	gotStd := (*r.BollingerUpper - *r.SMA20) / 2
	if math.Abs(gotStd-wantStd) > 1e-9 {
		t.Errorf("std = %v, want %v (sample, not population)", gotStd, wantStd)
	}
}

func TestCompute_Returns(t *testing.T) {
	rows := Compute(series("AAPL", []float64{100, 110}))

	r := rows[1]
	if r.DailyReturn == nil || math.Abs(*r.DailyReturn-0.1) > 1e-12 {
		t.Errorf("DailyReturn = %v, want 0.1", r.DailyReturn)
	}
	want := math.Log(1.1)
	if r.LogReturn == nil || math.Abs(*r.LogReturn-want) > 1e-12 {
		t.Errorf("LogReturn = %v, want %v", r.LogReturn, want)
	}
}

func TestCompute_RSIBounds(t *testing.T) {
	closes := make([]float64, 40)
	v := 100.0
	for i := range closes {
		// Alternate gains and losses.
		if i%2 == 0 {
			v += 3
		} else {
			v -= 2
		}
		closes[i] = v
	}

	rows := Compute(series("AAPL", closes))
	for i, r := range rows {
		if r.RSI14 == nil {
			continue
		}
		if *r.RSI14 < 0 || *r.RSI14 > 100 {
			t.Errorf("row %d: RSI = %v, out of [0, 100]", i, *r.RSI14)
		}
	}
}

func TestCompute_RSISaturatesOnAllGains(t *testing.T) {
	rows := Compute(series("AAPL", risingCloses(20, 100, 1)))
	r := rows[14]
	if r.RSI14 == nil || *r.RSI14 != 100 {
		t.Errorf("RSI14 = %v, want 100 when the window has no losses", r.RSI14)
	}
}

func TestCompute_RSIKnownValue(t *testing.T) {
	// 14 deltas: 7 gains of +2, 7 losses of -1.
	closes := make([]float64, 15)
	v := 100.0
	closes[0] = v
	for i := 1; i < 15; i++ {
		if i%2 == 1 {
			v += 2
		} else {
			v -= 1
		}
		closes[i] = v
	}

	rows := Compute(series("AAPL", closes))
	r := rows[14]
	if r.RSI14 == nil {
		t.Fatal("RSI14 undefined")
	}
	// avgGain = 14/14 = 1, avgLoss = 7/14 = 0.5, RS = 2, RSI = 100 - 100/3.
	want := 100 - 100.0/3
	if math.Abs(*r.RSI14-want) > 1e-9 {
		t.Errorf("RSI14 = %v, want %v", *r.RSI14, want)
	}
}

func TestCompute_TickerIsolation(t *testing.T) {
	// Two tickers with wildly different levels: if rolling windows
	// leaked across tickers, returns at group boundaries would spike.
	var bars []*domain.PriceBar
	bars = append(bars, series("AAPL", constantCloses(25, 100))...)
	bars = append(bars, series("ZVZZT", constantCloses(25, 100000))...)

	rows := Compute(bars)
	if len(rows) != 50 {
		t.Fatalf("expected 50 rows, got %d", len(rows))
	}

	// Output is grouped ticker ASC; ZVZZT starts at index 25 and its
	// first row must look like a series start, not a continuation.
	first := rows[25]
	if first.Ticker != "ZVZZT" {
		t.Fatalf("row 25 ticker = %s, want ZVZZT", first.Ticker)
	}
	if first.DailyReturn != nil || first.LogReturn != nil {
		t.Error("first row of second ticker has returns; windows leaked across tickers")
	}
	if first.SMA20 != nil || first.RSI14 != nil {
		t.Error("first row of second ticker has rolling indicators; windows leaked across tickers")
	}
}

func TestCompute_UnsortedInput(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := []*domain.PriceBar{
		{Ticker: "AAPL", Date: day(base, 1), Close: 110, Open: 110, AdjClose: 110},
		{Ticker: "AAPL", Date: day(base, 0), Close: 100, Open: 100, AdjClose: 100},
	}

	rows := Compute(bars)
	if !rows[0].Date.Equal(day(base, 0)) {
		t.Fatal("rows not sorted by date")
	}
	if rows[1].DailyReturn == nil || math.Abs(*rows[1].DailyReturn-0.1) > 1e-12 {
		t.Errorf("DailyReturn = %v, want 0.1 after sorting", rows[1].DailyReturn)
	}
}

func TestCompute_EmptyInput(t *testing.T) {
	if rows := Compute(nil); len(rows) != 0 {
		t.Errorf("expected no rows for empty input, got %d", len(rows))
	}
}
