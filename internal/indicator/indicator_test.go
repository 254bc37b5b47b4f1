package indicator

import (
	"math"
	"testing"
	"time"

	"signalboard/internal/model"
)

var base = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

// makeCandles builds 1m candles from close prices, with highs/lows a
// tenth above/below the close.
func makeCandles(closes ...float64) []model.Candle {
	out := make([]model.Candle, len(closes))
	for i, c := range closes {
		out[i] = model.Candle{
			Symbol:    "BTCUSDT",
			Timeframe: "1m",
			TS:        base.Add(time.Duration(i) * time.Minute),
			Open:      c,
			High:      c + 0.1,
			Low:       c - 0.1,
			Close:     c,
			Volume:    1,
		}
	}
	return out
}

func TestSMA_Basic(t *testing.T) {
	s := SMA(makeCandles(1, 2, 3, 4, 5), 3)
	if len(s) != 3 {
		t.Fatalf("expected 3 points, got %d", len(s))
	}
	want := []float64{2, 3, 4}
	for i, w := range want {
		if math.Abs(s[i].Value-w) > 1e-9 {
			t.Errorf("point %d: expected %.1f, got %.4f", i, w, s[i].Value)
		}
	}
	if !s[0].TS.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("first point should sit at the third bar, got %v", s[0].TS)
	}
}

func TestSMA_InsufficientData(t *testing.T) {
	if s := SMA(makeCandles(1, 2), 3); len(s) != 0 {
		t.Errorf("expected empty series, got %d points", len(s))
	}
}

func TestEMA_SeedAndFollowOn(t *testing.T) {
	s := EMA(makeCandles(1, 2, 3, 4, 5), 3)
	if len(s) != 3 {
		t.Fatalf("expected 3 points, got %d", len(s))
	}
	// seed = mean(1,2,3) = 2 at bar 2; alpha = 0.5 thereafter
	want := []struct {
		ts    time.Time
		value float64
	}{
		{base.Add(2 * time.Minute), 2},
		{base.Add(3 * time.Minute), 3}, // 0.5*4 + 0.5*2
		{base.Add(4 * time.Minute), 4}, // 0.5*5 + 0.5*3
	}
	for i, w := range want {
		if !s[i].TS.Equal(w.ts) {
			t.Errorf("point %d: expected ts=%v, got %v", i, w.ts, s[i].TS)
		}
		if math.Abs(s[i].Value-w.value) > 1e-9 {
			t.Errorf("point %d: expected %.1f, got %.4f", i, w.value, s[i].Value)
		}
	}
}

func TestEMASet_IndependentPeriods(t *testing.T) {
	candles := makeCandles(1, 2, 3, 4, 5, 6, 7, 8)
	set := EMASet(candles, []int{3, 5, 20})
	if len(set[3]) != 6 {
		t.Errorf("expected 6 points for period 3, got %d", len(set[3]))
	}
	if len(set[5]) != 4 {
		t.Errorf("expected 4 points for period 5, got %d", len(set[5]))
	}
	if len(set[20]) != 0 {
		t.Errorf("expected empty series for period 20, got %d", len(set[20]))
	}
}

func TestRSI_NoPointWhileNoLosses(t *testing.T) {
	// Strictly rising closes: avgLoss stays exactly zero, so the ratio
	// is undefined and nothing must be emitted.
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = float64(i + 1)
	}
	if s := RSI(makeCandles(closes...), 5); len(s) != 0 {
		t.Fatalf("expected no points without losses, got %d", len(s))
	}
}

func TestRSI_FiniteAfterDownTick(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5, 6, 7, 6.5, 7.5, 8.5}
	s := RSI(makeCandles(closes...), 5)
	if len(s) == 0 {
		t.Fatal("expected points once a loss enters the average")
	}
	// First point appears at the down-tick bar (index 7).
	if !s[0].TS.Equal(base.Add(7 * time.Minute)) {
		t.Errorf("expected first point at bar 7, got %v", s[0].TS)
	}
	for _, p := range s {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) || p.Value > 100 || p.Value < 0 {
			t.Errorf("RSI out of range at %v: %v", p.TS, p.Value)
		}
	}
}

func TestRSI_InsufficientData(t *testing.T) {
	if s := RSI(makeCandles(1, 2, 3), 5); len(s) != 0 {
		t.Errorf("expected empty series, got %d points", len(s))
	}
}

func TestZigZag_FindsTurningPoints(t *testing.T) {
	candles := makeCandles(1, 2, 3, 4, 5, 4, 3, 2, 1, 2, 3, 4, 5)
	cfg := ZigZagConfig{Depth: 2, Deviation: 1, Backstep: 1, MinTick: 0.01}

	marks := ZigZag(candles, cfg)
	if len(marks) != 3 {
		t.Fatalf("expected 3 marks, got %d: %+v", len(marks), marks)
	}
	if !marks[0].IsHigh || math.Abs(marks[0].Price-5.1) > 1e-9 {
		t.Errorf("expected first mark high at 5.1, got %+v", marks[0])
	}
	if marks[1].IsHigh || math.Abs(marks[1].Price-0.9) > 1e-9 {
		t.Errorf("expected second mark low at 0.9, got %+v", marks[1])
	}
	if !marks[2].IsHigh {
		t.Errorf("expected third mark to be a high, got %+v", marks[2])
	}
}

func TestZigZag_StrictAlternation(t *testing.T) {
	// Choppy series with plenty of candidate extremes.
	closes := []float64{5, 7, 4, 8, 3, 9, 2, 10, 1, 11, 6, 12, 5, 4, 9, 3, 8, 2, 7, 1}
	marks := ZigZag(makeCandles(closes...), ZigZagConfig{Depth: 3, Deviation: 1, Backstep: 1, MinTick: 0.01})

	for i := 1; i < len(marks); i++ {
		if marks[i].IsHigh == marks[i-1].IsHigh {
			t.Fatalf("marks %d and %d share polarity: %+v", i-1, i, marks)
		}
	}
}

func TestZigZag_InsufficientData(t *testing.T) {
	if marks := ZigZag(makeCandles(1, 2, 3), DefaultZigZag()); len(marks) != 0 {
		t.Errorf("expected no marks, got %d", len(marks))
	}
}

func TestZigZag_Labels(t *testing.T) {
	// Two complete up-down cycles, second peak lower, second trough lower.
	closes := []float64{1, 2, 3, 4, 5, 4, 3, 2, 1.5, 2.5, 3.5, 4.5, 3.5, 2.5, 1.2, 0.5, 1.5, 2.5}
	marks := ZigZag(makeCandles(closes...), ZigZagConfig{Depth: 2, Deviation: 1, Backstep: 1, MinTick: 0.01})

	var highs, lows []SwingMark
	for _, m := range marks {
		if m.IsHigh {
			highs = append(highs, m)
		} else {
			lows = append(lows, m)
		}
	}
	if len(highs) < 2 || len(lows) < 2 {
		t.Fatalf("expected at least two highs and lows, got %+v", marks)
	}
	if highs[1].Label != "LH" {
		t.Errorf("expected second high labelled LH, got %q", highs[1].Label)
	}
	if lows[1].Label != "LL" {
		t.Errorf("expected second low labelled LL, got %q", lows[1].Label)
	}
}

func TestZigZag_PruneRate(t *testing.T) {
	// The middle wiggle moves ~2%, below a 5% pruning rate.
	closes := []float64{100, 110, 120, 130, 140, 139, 138, 137, 139, 141, 150, 160, 140, 120, 100, 90}
	cfg := ZigZagConfig{Depth: 2, Deviation: 1, Backstep: 1, MinTick: 0.01}

	unpruned := ZigZag(makeCandles(closes...), cfg)

	cfg.PruneRate = 0.05
	pruned := ZigZag(makeCandles(closes...), cfg)
	if len(pruned) >= len(unpruned) {
		t.Fatalf("expected pruning to drop marks: %d -> %d", len(unpruned), len(pruned))
	}
	for i := 1; i < len(pruned); i++ {
		if pruned[i].IsHigh == pruned[i-1].IsHigh {
			t.Fatalf("pruned marks lost alternation: %+v", pruned)
		}
	}
}
