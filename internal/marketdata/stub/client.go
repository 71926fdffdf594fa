// Package stub provides an in-memory market-data client for tests and
// dry runs.
package stub

import (
	"context"
	"time"

	"market-pipeline/internal/domain"
	"market-pipeline/internal/marketdata"
)

// Client returns fixed in-memory data. Implements marketdata.Client.
type Client struct {
	// Daily is returned by FetchDaily; DailyErr takes precedence.
	Daily    *domain.WideTable
	DailyErr error

	// Singles holds per-symbol per-date bars for FetchSingle.
	Singles map[string]map[string]*domain.PriceBar

	// SingleErr, if set, is returned by every FetchSingle call.
	SingleErr error

	// SingleCalls records FetchSingle invocations as "SYMBOL:YYYY-MM-DD".
	SingleCalls []string
}

// Compile-time interface check.
var _ marketdata.Client = (*Client)(nil)

// NewClient creates an empty stub client.
func NewClient() *Client {
	return &Client{Singles: make(map[string]map[string]*domain.PriceBar)}
}

// AddSingle registers one bar for FetchSingle lookups.
func (c *Client) AddSingle(bar *domain.PriceBar) {
	if c.Singles[bar.Ticker] == nil {
		c.Singles[bar.Ticker] = make(map[string]*domain.PriceBar)
	}
	c.Singles[bar.Ticker][bar.DateString()] = bar
}

// FetchDaily returns the configured wide table.
func (c *Client) FetchDaily(_ context.Context, _ []string, _, _ time.Time) (*domain.WideTable, error) {
	if c.DailyErr != nil {
		return nil, c.DailyErr
	}
	if c.Daily == nil {
		return &domain.WideTable{}, nil
	}
	return c.Daily, nil
}

// FetchSingle returns the registered bar, or nil when absent.
func (c *Client) FetchSingle(_ context.Context, symbol string, date time.Time) (*domain.PriceBar, error) {
	key := domain.Day(date).Format(domain.DateLayout)
	c.SingleCalls = append(c.SingleCalls, symbol+":"+key)
	if c.SingleErr != nil {
		return nil, c.SingleErr
	}
	if bars, ok := c.Singles[symbol]; ok {
		if bar, ok := bars[key]; ok {
			barCopy := *bar
			return &barCopy, nil
		}
	}
	return nil, nil
}
