// Package indicator provides technical indicator calculations over candle data.
//
// All transforms are pure functions: they take an ascending candle slice
// (already filtered to one symbol + timeframe) and return an ordered series.
// Insufficient input yields an empty series, never an error; callers treat
// empty as "not yet renderable".
package indicator

import (
	"time"

	"signalboard/internal/model"
)

// Point is one (time, value) sample of a derived series.
type Point struct {
	TS    time.Time `json:"ts"`
	Value float64   `json:"value"`
}

// Series is an ordered sequence of indicator points.
type Series []Point

func closes(candles []model.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
