package indicator

import (
	"time"

	"signalboard/internal/model"
)

// ZigZagConfig holds the swing-detection parameters.
type ZigZagConfig struct {
	Depth     int     // trailing window length in bars
	Deviation float64 // minimum deviation, in ticks
	Backstep  int     // minimum bars between opposite-polarity points
	MinTick   float64 // instrument tick size; deviation threshold = Deviation*MinTick
	PruneRate float64 // drop swings moving less than this fraction; 0 disables
}

// DefaultZigZag reproduces the chart's stock parameters. MinTick is a
// plain default, not derived per instrument; override it for
// low-priced assets.
func DefaultZigZag() ZigZagConfig {
	return ZigZagConfig{Depth: 12, Deviation: 5, Backstep: 2, MinTick: 0.01}
}

// SwingMark is one confirmed alternating extremum.
type SwingMark struct {
	TS     time.Time `json:"ts"`
	Price  float64   `json:"price"`
	IsHigh bool      `json:"is_high"`
	Label  string    `json:"label,omitempty"` // HH/LH/HL/LL vs the prior same-kind mark

	idx int // source bar index, used for backstep spacing
}

// ZigZag detects alternating swing highs and lows.
//
// A bar is a high candidate when its high is the extreme of the trailing
// window ending at that bar (no lookahead) and exceeds the window's low
// bound by more than Deviation*MinTick; low candidates mirror that.
// Candidates are then filtered to strictly alternate: a same-polarity
// candidate replaces the last mark only when more extreme, and a polarity
// flip must be at least Backstep bars after the previous mark.
func ZigZag(candles []model.Candle, cfg ZigZagConfig) []SwingMark {
	if cfg.Depth < 1 || len(candles) < cfg.Depth+1 {
		return nil
	}
	threshold := cfg.Deviation * cfg.MinTick

	var marks []SwingMark
	for i := cfg.Depth; i < len(candles); i++ {
		lo, hi := windowBounds(candles, i-cfg.Depth, i)

		if candles[i].High >= hi && candles[i].High-lo > threshold {
			marks = accept(marks, SwingMark{
				TS:     candles[i].TS,
				Price:  candles[i].High,
				IsHigh: true,
				idx:    i,
			}, cfg.Backstep)
		}
		if candles[i].Low <= lo && hi-candles[i].Low > threshold {
			marks = accept(marks, SwingMark{
				TS:     candles[i].TS,
				Price:  candles[i].Low,
				IsHigh: false,
				idx:    i,
			}, cfg.Backstep)
		}
	}

	if cfg.PruneRate > 0 {
		marks = prune(marks, cfg.PruneRate)
	}
	label(marks)
	return marks
}

// windowBounds returns the lowest low and highest high of candles[from..to].
func windowBounds(candles []model.Candle, from, to int) (lo, hi float64) {
	lo, hi = candles[from].Low, candles[from].High
	for i := from + 1; i <= to; i++ {
		if candles[i].Low < lo {
			lo = candles[i].Low
		}
		if candles[i].High > hi {
			hi = candles[i].High
		}
	}
	return lo, hi
}

// accept enforces strict alternation and backstep spacing.
func accept(marks []SwingMark, cand SwingMark, backstep int) []SwingMark {
	if len(marks) == 0 {
		return append(marks, cand)
	}
	last := &marks[len(marks)-1]

	if last.IsHigh == cand.IsHigh {
		// Same polarity: keep only the more extreme point.
		if (cand.IsHigh && cand.Price > last.Price) ||
			(!cand.IsHigh && cand.Price < last.Price) {
			*last = cand
		}
		return marks
	}

	if cand.idx-last.idx < backstep {
		return marks
	}
	return append(marks, cand)
}

// prune drops marks whose move from the previous kept mark is below the
// rate, then restores alternation by merging same-polarity neighbours.
func prune(marks []SwingMark, rate float64) []SwingMark {
	if len(marks) == 0 {
		return marks
	}
	kept := []SwingMark{marks[0]}
	for _, m := range marks[1:] {
		prev := kept[len(kept)-1]
		if prev.Price > 0 {
			move := m.Price - prev.Price
			if move < 0 {
				move = -move
			}
			if move/prev.Price <= rate {
				continue
			}
		}
		kept = accept(kept, m, 0)
	}
	return kept
}

// label assigns HH/LH/HL/LL against the previous mark of the same kind.
func label(marks []SwingMark) {
	var prevHigh, prevLow *SwingMark
	for i := range marks {
		m := &marks[i]
		if m.IsHigh {
			if prevHigh != nil {
				if m.Price > prevHigh.Price {
					m.Label = "HH"
				} else {
					m.Label = "LH"
				}
			}
			prevHigh = m
		} else {
			if prevLow != nil {
				if m.Price < prevLow.Price {
					m.Label = "LL"
				} else {
					m.Label = "HL"
				}
			}
			prevLow = m
		}
	}
}
