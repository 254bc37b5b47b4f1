// Package view derives presentation-ready orderings over store
// contents: filtering, multi-key sorting, distance scoring, and the
// "fixed order" freeze used while a user inspects a live list.
package view

import "math"

// Proximity classes for a signal's distance score.
const (
	ProximityNear        = "near"     // within 1%
	ProximityModerate    = "moderate" // within 3%
	ProximityFar         = "far"
	ProximityUnavailable = "n/a" // no usable quote
)

// Score returns the distance of the live price from the signal's entry,
// as a percentage of the live price. A missing, zero, or negative input
// yields +Inf so that unscorable signals sort last.
func Score(currentPrice, entryPrice float64) float64 {
	if currentPrice <= 0 || entryPrice <= 0 {
		return math.Inf(1)
	}
	return math.Abs(currentPrice-entryPrice) / currentPrice * 100
}

// Classify maps a score to its presentation bucket. The thresholds are
// a display concern but are fixed here so every consumer agrees.
func Classify(score float64) string {
	switch {
	case math.IsInf(score, 1):
		return ProximityUnavailable
	case score <= 1:
		return ProximityNear
	case score <= 3:
		return ProximityModerate
	default:
		return ProximityFar
	}
}
