// Package rest implements the snapshot-source contract against the
// backend's HTTP API: recent signals, candle history, and the symbol
// directory used to populate the selection list.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"signalboard/internal/model"
)

// Client fetches seed data over HTTP. Implements model.SnapshotSource
// and model.SymbolDirectory.
type Client struct {
	base string
	http *http.Client
}

// New returns a client for the given base URL, e.g.
// "https://backend.example.com".
func New(baseURL string) *Client {
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

// FetchSignals returns the newest signals, newest first.
func (c *Client) FetchSignals(ctx context.Context, limit int) ([]model.Signal, error) {
	var out []model.Signal
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	if err := c.getJSON(ctx, "/api/seed/signals", q, &out); err != nil {
		return nil, fmt.Errorf("fetch signals: %w", err)
	}
	return out, nil
}

// FetchCandles returns candle history for one pair, ascending by ts.
func (c *Client) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error) {
	var out []model.Candle
	q := url.Values{
		"symbol":    {symbol},
		"timeframe": {timeframe},
		"limit":     {strconv.Itoa(limit)},
	}
	if err := c.getJSON(ctx, "/api/seed/candles", q, &out); err != nil {
		return nil, fmt.Errorf("fetch candles %s %s: %w", symbol, timeframe, err)
	}
	return out, nil
}

// ListSymbols returns the available symbols with their timeframes.
func (c *Client) ListSymbols(ctx context.Context) (map[string][]string, error) {
	out := make(map[string][]string)
	if err := c.getJSON(ctx, "/api/symbols", nil, &out); err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	return out, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, v interface{}) error {
	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", path, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
