// cmd/feedsim is a development WebSocket feed server. Speaks the board's
// envelope protocol (subscribe handshake, candle random walk, periodic
// signals, swings, and quote updates) so the whole pipeline can run
// without a real backend.
//
// Config (env vars):
//
//	FEED_ADDR         listen address (default ":8090")
//	FEED_INTERVAL_MS  tick interval milliseconds (default "500")
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"signalboard/internal/logger"
	"signalboard/internal/model"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

type envelope struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Message   string      `json:"message,omitempty"`
	Symbol    string      `json:"symbol,omitempty"`
	Timeframe string      `json:"timeframe,omitempty"`
}

// client holds one connection's subscription and simulation state.
type client struct {
	conn *websocket.Conn

	mu        sync.Mutex
	symbol    string
	timeframe string
	tfDur     time.Duration

	price  float64
	bucket time.Time
	candle model.Candle
	seq    int
}

func main() {
	logger.Init("feedsim", slog.LevelInfo)
	addr := getEnv("FEED_ADDR", ":8090")
	intervalMs, _ := strconv.Atoi(getEnv("FEED_INTERVAL_MS", "500"))
	if intervalMs <= 0 {
		intervalMs = 500
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/stream", streamHandler(time.Duration(intervalMs)*time.Millisecond))
	mux.HandleFunc("/api/seed/signals", seedSignalsHandler)
	mux.HandleFunc("/api/seed/candles", seedCandlesHandler)
	mux.HandleFunc("/api/symbols", symbolsHandler)

	slog.Info("feedsim listening", "addr", addr, "interval_ms", intervalMs)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("feedsim stopped", "err", err)
		os.Exit(1)
	}
}

func streamHandler(interval time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("upgrade failed", "err", err)
			return
		}
		slog.Info("client connected", "remote", r.RemoteAddr)

		c := &client{conn: conn, price: 50000}
		c.send(envelope{Type: "connected", Message: "feedsim"})

		done := make(chan struct{})
		go c.readLoop(done)
		c.tickLoop(interval, done)

		conn.Close()
		slog.Info("client disconnected", "remote", r.RemoteAddr)
	}
}

// readLoop handles subscribe requests until the connection drops.
func (c *client) readLoop(done chan struct{}) {
	defer close(done)
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg model.SubscribeMsg
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Type != "subscribe" {
			c.send(envelope{Type: "error", Message: "expected subscribe"})
			continue
		}
		c.subscribe(msg.Symbol, msg.Timeframe)
		c.send(envelope{Type: "subscribed", Symbol: msg.Symbol, Timeframe: msg.Timeframe})
		slog.Info("subscribed", "symbol", msg.Symbol, "timeframe", msg.Timeframe)
	}
}

func (c *client) subscribe(symbol, timeframe string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.symbol = symbol
	c.timeframe = timeframe
	c.tfDur = parseTF(timeframe)
	c.price = basePrice(symbol)
	c.bucket = time.Time{}
}

// tickLoop drives the simulation until the reader reports a drop.
func (c *client) tickLoop(interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

func (c *client) tick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.symbol == "" {
		return
	}

	c.price = walk(c.price)
	now := time.Now().UTC()
	bucket := now.Truncate(c.tfDur)

	if !bucket.Equal(c.bucket) {
		// New bar; occasionally mark the old one as a swing.
		if !c.bucket.IsZero() && rand.Intn(4) == 0 {
			kind := model.SwingHigh
			price := c.candle.High
			if rand.Intn(2) == 0 {
				kind = model.SwingLow
				price = c.candle.Low
			}
			c.sendLocked(envelope{Type: "swing", Data: model.SwingPoint{
				Symbol: c.symbol, Timeframe: c.timeframe,
				TS: c.bucket, Kind: kind, Price: price,
			}})
		}
		c.bucket = bucket
		c.candle = model.Candle{
			Symbol: c.symbol, Timeframe: c.timeframe, TS: bucket,
			Open: c.price, High: c.price, Low: c.price, Close: c.price,
		}
	}

	if c.price > c.candle.High {
		c.candle.High = c.price
	}
	if c.price < c.candle.Low {
		c.candle.Low = c.price
	}
	c.candle.Close = c.price
	c.candle.Volume += float64(rand.Intn(10) + 1)
	c.sendLocked(envelope{Type: "candle", Data: c.candle})

	change := (rand.Float64() - 0.5) * 10
	c.sendLocked(envelope{Type: "symbol_update", Data: map[string]interface{}{
		"symbol": c.symbol, "price": c.price, "change_24h": change,
	}})

	if rand.Intn(20) == 0 {
		c.seq++
		c.sendLocked(envelope{Type: "signal", Data: c.makeSignal(now)})
	}
}

func (c *client) makeSignal(now time.Time) model.Signal {
	dir := model.DirectionLong
	slMul, tpMul := 0.99, 1.02
	if rand.Intn(2) == 0 {
		dir = model.DirectionShort
		slMul, tpMul = 1.01, 0.98
	}
	return model.Signal{
		ID:         fmt.Sprintf("sim-%d-%d", now.UnixMilli(), c.seq),
		Symbol:     c.symbol,
		Timeframe:  c.timeframe,
		Direction:  dir,
		TS:         now,
		Price:      c.price,
		Entry1:     c.price,
		SL:         c.price * slMul,
		TP1:        c.price * tpMul,
		Confluence: model.Confluence(rand.Intn(5) + 1),
	}
}

func (c *client) send(env envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendLocked(env)
}

func (c *client) sendLocked(env envelope) {
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteJSON(env); err != nil {
		slog.Debug("write failed", "err", err)
	}
}

// ---- Seed endpoints (rest snapshot source against feedsim) ----

func seedSignalsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, []model.Signal{})
}

func seedCandlesHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbol, timeframe := q.Get("symbol"), q.Get("timeframe")
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	tfDur := parseTF(timeframe)

	// A plausible random-walk history ending now.
	price := basePrice(symbol)
	end := time.Now().UTC().Truncate(tfDur)
	candles := make([]model.Candle, 0, limit)
	for i := limit - 1; i >= 0; i-- {
		open := price
		price = walk(price)
		high, low := open, price
		if high < low {
			high, low = low, high
		}
		candles = append(candles, model.Candle{
			Symbol: symbol, Timeframe: timeframe,
			TS:   end.Add(-time.Duration(i) * tfDur),
			Open: open, High: high * 1.001, Low: low * 0.999, Close: price,
			Volume: float64(rand.Intn(1000)),
		})
	}
	writeJSON(w, candles)
}

func symbolsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string][]string{
		"BTCUSDT": {"1m", "15m", "1h", "4h"},
		"ETHUSDT": {"1m", "15m", "1h", "4h"},
		"SOLUSDT": {"15m", "1h"},
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// walk applies a ±0.1% random step.
func walk(price float64) float64 {
	pct := (rand.Float64()*0.2 - 0.1) / 100
	next := price * (1 + pct)
	if next < 0.0001 {
		next = 0.0001
	}
	return next
}

func basePrice(symbol string) float64 {
	switch symbol {
	case "ETHUSDT":
		return 3000
	case "SOLUSDT":
		return 150
	default:
		return 50000
	}
}

func parseTF(tf string) time.Duration {
	if d, err := time.ParseDuration(tf); err == nil && d > 0 {
		return d
	}
	return 15 * time.Minute
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
