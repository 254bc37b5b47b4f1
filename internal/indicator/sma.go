package indicator

import "signalboard/internal/model"

// SMA computes the simple moving average of closes over the given period,
// one output per input bar once `period` candles are available.
func SMA(candles []model.Candle, period int) Series {
	if period <= 0 || len(candles) < period {
		return nil
	}

	prices := closes(candles)
	out := make(Series, 0, len(candles)-period+1)

	var sum float64
	for i, price := range prices {
		sum += price
		if i >= period {
			sum -= prices[i-period]
		}
		if i >= period-1 {
			out = append(out, Point{TS: candles[i].TS, Value: sum / float64(period)})
		}
	}
	return out
}
