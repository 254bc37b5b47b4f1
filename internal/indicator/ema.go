package indicator

import "signalboard/internal/model"

// EMA computes the exponential moving average of closes.
//
// The seed is the SMA of the first `period` closes, emitted at that bar;
// later values follow ema = alpha*close + (1-alpha)*ema_prev with
// alpha = 2/(period+1).
func EMA(candles []model.Candle, period int) Series {
	if period <= 0 || len(candles) < period {
		return nil
	}

	prices := closes(candles)

	var sum float64
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	ema := sum / float64(period)

	out := make(Series, 0, len(candles)-period+1)
	out = append(out, Point{TS: candles[period-1].TS, Value: ema})

	alpha := 2.0 / float64(period+1)
	for i := period; i < len(prices); i++ {
		ema = alpha*prices[i] + (1-alpha)*ema
		out = append(out, Point{TS: candles[i].TS, Value: ema})
	}
	return out
}

// EMASet computes several EMAs over the same candle input, keyed by
// period. Used for the 20/50/100/200 chart overlays.
func EMASet(candles []model.Candle, periods []int) map[int]Series {
	out := make(map[int]Series, len(periods))
	for _, p := range periods {
		out[p] = EMA(candles, p)
	}
	return out
}
