package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"signalboard/internal/model"
)

func TestClient_FetchSignals(t *testing.T) {
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/seed/signals" {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("limit"); got != "50" {
			t.Errorf("limit not forwarded: %q", got)
		}
		json.NewEncoder(w).Encode([]model.Signal{
			{ID: "s2", Symbol: "BTCUSDT", Timeframe: "15m", Direction: "long", TS: ts.Add(time.Minute), Price: 101},
			{ID: "s1", Symbol: "BTCUSDT", Timeframe: "15m", Direction: "short", TS: ts, Price: 100},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	defer c.Close()

	sigs, err := c.FetchSignals(context.Background(), 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(sigs) != 2 || sigs[0].ID != "s2" {
		t.Errorf("unexpected signals: %+v", sigs)
	}
}

func TestClient_FetchCandles(t *testing.T) {
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("symbol") != "ETHUSDT" || q.Get("timeframe") != "1h" {
			t.Errorf("pair not forwarded: %v", q)
		}
		json.NewEncoder(w).Encode([]model.Candle{
			{Symbol: "ETHUSDT", Timeframe: "1h", TS: ts, Open: 1, High: 2, Low: 0.5, Close: 1.5},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	defer c.Close()

	candles, err := c.FetchCandles(context.Background(), "ETHUSDT", "1h", 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(candles) != 1 || candles[0].Close != 1.5 {
		t.Errorf("unexpected candles: %+v", candles)
	}
}

func TestClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL)
	defer c.Close()

	if _, err := c.FetchSignals(context.Background(), 10); err == nil {
		t.Error("expected error on 500")
	}
}

func TestClient_ListSymbols(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string][]string{
			"BTCUSDT": {"15m", "1h", "4h"},
			"ETHUSDT": {"1h"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	defer c.Close()

	syms, err := c.ListSymbols(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(syms["BTCUSDT"]) != 3 {
		t.Errorf("unexpected directory: %v", syms)
	}
}
