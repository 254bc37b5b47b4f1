package model

import (
	"encoding/json"
	"time"
)

// Candle represents one OHLCV bar for a single symbol + timeframe.
// Identity is (symbol, timeframe, ts); arriving again with the same
// identity replaces the stored bar in place.
type Candle struct {
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"` // e.g. "1m", "15m", "4h"
	TS        time.Time `json:"ts"`        // bucket open time (UTC)
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Key returns the partition key for this candle's chart: "symbol:timeframe".
func (c *Candle) Key() string {
	return c.Symbol + ":" + c.Timeframe
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// PairKey builds the partition key for a (symbol, timeframe) selection.
func PairKey(symbol, timeframe string) string {
	return symbol + ":" + timeframe
}
