package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"market-pipeline/internal/domain"
)

// Default configuration values.
const (
	DefaultBaseURL = "https://query1.finance.yahoo.com"
	DefaultTimeout = 30 * time.Second
)

// YahooClient implements Client against the Yahoo Finance chart API.
type YahooClient struct {
	baseURL string
	client  *http.Client
}

// YahooOption configures YahooClient.
type YahooOption func(*YahooClient)

// WithBaseURL overrides the API base URL (used by tests).
func WithBaseURL(u string) YahooOption {
	return func(c *YahooClient) { c.baseURL = u }
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) YahooOption {
	return func(c *YahooClient) { c.client.Timeout = d }
}

// NewYahooClient creates a chart-API client.
func NewYahooClient(opts ...YahooOption) *YahooClient {
	c := &YahooClient{
		baseURL: DefaultBaseURL,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface check.
var _ Client = (*YahooClient)(nil)

// chartResponse mirrors the chart API payload. Quote arrays use float
// pointers because the vendor emits JSON null for missing values.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// symbolSeries is one symbol's daily data keyed by date string.
type symbolSeries struct {
	dates  []string
	cells  map[string]map[string]string // date -> metric -> cell
	hasAdj bool                         // provider returned adjusted closes
}

// FetchDaily fetches [start, end) daily bars for every symbol and
// assembles them into a single wide table over the union of dates.
func (c *YahooClient) FetchDaily(ctx context.Context, symbols []string, start, end time.Time) (*domain.WideTable, error) {
	series := make(map[string]*symbolSeries, len(symbols))
	dateSet := make(map[string]bool)

	for _, symbol := range symbols {
		s, err := c.fetchSeries(ctx, symbol, start, end)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", symbol, err)
		}
		series[symbol] = s
		for _, d := range s.dates {
			dateSet[d] = true
		}
	}

	dates := make([]string, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	table := &domain.WideTable{Dates: dates}
	for _, symbol := range symbols {
		s := series[symbol]
		for _, metric := range domain.WideMetrics {
			// The chart API omits adjusted closes on some windows; an
			// absent column lets the Normalizer apply its documented
			// close-as-adj_close fallback.
			if metric == domain.MetricAdjClose && !s.hasAdj {
				continue
			}
			col := domain.WideColumn{Ticker: symbol, Metric: metric, Cells: make([]string, len(dates))}
			for i, d := range dates {
				if row, ok := s.cells[d]; ok {
					col.Cells[i] = row[metric]
				}
			}
			table.Columns = append(table.Columns, col)
		}
	}
	return table, nil
}

// FetchSingle fetches one symbol's bar for one date. Returns nil when
// the provider has no data for that day.
func (c *YahooClient) FetchSingle(ctx context.Context, symbol string, date time.Time) (*domain.PriceBar, error) {
	day := domain.Day(date)
	s, err := c.fetchSeries(ctx, symbol, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", symbol, err)
	}

	want := day.Format(domain.DateLayout)
	row, ok := s.cells[want]
	if !ok {
		return nil, nil
	}

	bar := &domain.PriceBar{Ticker: symbol, Date: day}
	if bar.Open, err = strconv.ParseFloat(row[domain.MetricOpen], 64); err != nil {
		return nil, fmt.Errorf("parse open for %s on %s: %w", symbol, want, err)
	}
	if bar.High, err = strconv.ParseFloat(row[domain.MetricHigh], 64); err != nil {
		return nil, fmt.Errorf("parse high for %s on %s: %w", symbol, want, err)
	}
	if bar.Low, err = strconv.ParseFloat(row[domain.MetricLow], 64); err != nil {
		return nil, fmt.Errorf("parse low for %s on %s: %w", symbol, want, err)
	}
	if bar.Close, err = strconv.ParseFloat(row[domain.MetricClose], 64); err != nil {
		return nil, fmt.Errorf("parse close for %s on %s: %w", symbol, want, err)
	}
	// Vendors do not always return an adjusted close for point lookups.
	if cell := row[domain.MetricAdjClose]; cell != "" {
		if bar.AdjClose, err = strconv.ParseFloat(cell, 64); err != nil {
			return nil, fmt.Errorf("parse adj_close for %s on %s: %w", symbol, want, err)
		}
	} else {
		bar.AdjClose = bar.Close
	}
	if cell := row[domain.MetricVolume]; cell != "" {
		v, err := strconv.ParseInt(cell, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse volume for %s on %s: %w", symbol, want, err)
		}
		bar.Volume = &v
	}
	return bar, nil
}

// fetchSeries calls the chart endpoint for one symbol and converts the
// response to date-keyed string cells.
func (c *YahooClient) fetchSeries(ctx context.Context, symbol string, start, end time.Time) (*symbolSeries, error) {
	url := fmt.Sprintf("%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=1d&events=div%%2Csplit",
		c.baseURL, symbol, start.Unix(), end.Unix())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var parsed chartResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if parsed.Chart.Error != nil {
		return nil, fmt.Errorf("provider error: %s (%s)",
			parsed.Chart.Error.Description, parsed.Chart.Error.Code)
	}

	s := &symbolSeries{cells: make(map[string]map[string]string)}
	if len(parsed.Chart.Result) == 0 {
		return s, nil
	}
	result := parsed.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return s, nil
	}
	quote := result.Indicators.Quote[0]

	var adjClose []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adjClose = result.Indicators.AdjClose[0].AdjClose
		s.hasAdj = len(adjClose) > 0
	}

	for i, ts := range result.Timestamp {
		date := time.Unix(ts, 0).UTC().Format(domain.DateLayout)
		row := map[string]string{
			domain.MetricOpen:   formatCell(at(quote.Open, i)),
			domain.MetricHigh:   formatCell(at(quote.High, i)),
			domain.MetricLow:    formatCell(at(quote.Low, i)),
			domain.MetricClose:  formatCell(at(quote.Close, i)),
			domain.MetricVolume: formatVolume(quote.Volume, i),
		}
		if adj := at(adjClose, i); adj != nil {
			row[domain.MetricAdjClose] = formatCell(adj)
		}
		s.dates = append(s.dates, date)
		s.cells[date] = row
	}
	return s, nil
}

func at(values []*float64, i int) *float64 {
	if i < len(values) {
		return values[i]
	}
	return nil
}

func formatCell(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

func formatVolume(values []*int64, i int) string {
	if i >= len(values) || values[i] == nil {
		return ""
	}
	return strconv.FormatInt(*values[i], 10)
}
