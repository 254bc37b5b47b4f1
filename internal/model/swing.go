package model

import "time"

// Swing point kinds.
const (
	SwingHigh = "high"
	SwingLow  = "low"
)

// SwingPoint marks a local price extremum on a chart.
// Identity is (symbol, timeframe, ts, kind).
type SwingPoint struct {
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	TS        time.Time `json:"ts"`
	Kind      string    `json:"kind"` // "high" | "low"
	Price     float64   `json:"price"`
}

// Key returns the chart partition key: "symbol:timeframe".
func (p *SwingPoint) Key() string {
	return p.Symbol + ":" + p.Timeframe
}

// Same reports whether two swing points share the same identity.
func (p *SwingPoint) Same(other SwingPoint) bool {
	return p.Symbol == other.Symbol &&
		p.Timeframe == other.Timeframe &&
		p.Kind == other.Kind &&
		p.TS.Equal(other.TS)
}
