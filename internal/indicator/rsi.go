package indicator

import "signalboard/internal/model"

// RSI computes the Wilder-smoothed Relative Strength Index.
//
// The first averages are the simple mean of the first `period` deltas;
// each later bar updates via avg = (avg*(period-1) + current) / period.
// While avgLoss is exactly zero the ratio is undefined, so no point is
// emitted for that bar (rather than pegging the output at 100).
// Requires at least period+1 candles.
func RSI(candles []model.Candle, period int) Series {
	if period <= 0 || len(candles) < period+1 {
		return nil
	}

	prices := closes(candles)

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		delta := prices[i] - prices[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	out := make(Series, 0, len(candles)-period)
	if avgLoss != 0 {
		out = append(out, Point{TS: candles[period].TS, Value: rsiValue(avgGain, avgLoss)})
	}

	p := float64(period)
	for i := period + 1; i < len(prices); i++ {
		delta := prices[i] - prices[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p

		if avgLoss == 0 {
			continue
		}
		out = append(out, Point{TS: candles[i].TS, Value: rsiValue(avgGain, avgLoss)})
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs)
}
