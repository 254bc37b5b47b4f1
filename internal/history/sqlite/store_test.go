package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"signalboard/internal/model"
)

func TestStore_RecordAndWarmStart(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	st, err := Open(filepath.Join(t.TempDir(), "board.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	candleCh := make(chan model.Candle, 8)
	signalCh := make(chan model.Signal, 8)

	for i := 0; i < 3; i++ {
		candleCh <- model.Candle{
			Symbol: "BTCUSDT", Timeframe: "15m",
			TS:   base.Add(time.Duration(i) * 15 * time.Minute),
			Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 10,
		}
	}
	// Same bar again with a new close; must replace, not duplicate.
	candleCh <- model.Candle{
		Symbol: "BTCUSDT", Timeframe: "15m",
		TS:   base,
		Open: 100, High: 102, Low: 99, Close: 101.5, Volume: 12,
	}
	signalCh <- model.Signal{ID: "s1", Symbol: "BTCUSDT", Timeframe: "15m", Direction: "long", TS: base, Price: 100}
	signalCh <- model.Signal{ID: "s2", Symbol: "ETHUSDT", Timeframe: "1h", Direction: "short", TS: base.Add(time.Hour), Price: 3000}
	close(candleCh)
	close(signalCh)

	st.Run(context.Background(), candleCh, signalCh)

	candles, err := st.FetchCandles(context.Background(), "BTCUSDT", "15m", 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(candles) != 3 {
		t.Fatalf("expected 3 candles after replace, got %d", len(candles))
	}
	for i := 1; i < len(candles); i++ {
		if !candles[i].TS.After(candles[i-1].TS) {
			t.Errorf("candles not ascending: %v then %v", candles[i-1].TS, candles[i].TS)
		}
	}
	if candles[0].Close != 101.5 {
		t.Errorf("replacement close not stored: %v", candles[0].Close)
	}

	sigs, err := st.FetchSignals(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(sigs) != 2 || sigs[0].ID != "s2" {
		t.Errorf("signals must come newest first: %+v", sigs)
	}
}

func TestStore_FetchLimit(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	st, err := Open(filepath.Join(t.TempDir(), "board.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	candleCh := make(chan model.Candle, 16)
	signalCh := make(chan model.Signal)
	for i := 0; i < 10; i++ {
		candleCh <- model.Candle{
			Symbol: "BTCUSDT", Timeframe: "15m",
			TS:    base.Add(time.Duration(i) * 15 * time.Minute),
			Close: float64(100 + i),
		}
	}
	close(candleCh)
	close(signalCh)
	st.Run(context.Background(), candleCh, signalCh)

	candles, err := st.FetchCandles(context.Background(), "BTCUSDT", "15m", 4)
	if err != nil {
		t.Fatal(err)
	}
	// The limit keeps the newest bars, returned ascending.
	if len(candles) != 4 || candles[0].Close != 106 || candles[3].Close != 109 {
		t.Errorf("unexpected window: %+v", candles)
	}
}
