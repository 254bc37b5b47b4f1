// Package redisstream seeds the store from the backend's Redis
// Streams. Each signal lands on one shared stream; candles get a
// stream per (symbol, timeframe) pair, each entry carrying the JSON
// entity under the "data" field.
package redisstream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"signalboard/internal/model"
)

const signalStream = "board:signals"

func candleStream(symbol, timeframe string) string {
	return "board:candles:" + symbol + ":" + timeframe
}

// Config configures the Redis connection.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Reader implements model.SnapshotSource over Redis Streams.
type Reader struct {
	client *goredis.Client
}

// New connects and pings the server.
func New(cfg Config) (*Reader, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	slog.Info("redisstream: connected", "addr", cfg.Addr)
	return &Reader{client: client}, nil
}

// FetchSignals reads the newest entries off the signal stream.
// XREVRANGE walks the stream backwards, so the result is already
// newest-first.
func (r *Reader) FetchSignals(ctx context.Context, limit int) ([]model.Signal, error) {
	msgs, err := r.client.XRevRangeN(ctx, signalStream, "+", "-", int64(limit)).Result()
	if err != nil {
		return nil, fmt.Errorf("xrevrange %s: %w", signalStream, err)
	}

	out := make([]model.Signal, 0, len(msgs))
	for _, msg := range msgs {
		data, ok := msg.Values["data"].(string)
		if !ok {
			continue
		}
		var sig model.Signal
		if err := json.Unmarshal([]byte(data), &sig); err != nil {
			slog.Warn("redisstream: bad signal entry skipped", "id", msg.ID, "err", err)
			continue
		}
		if sig.ID == "" {
			continue
		}
		out = append(out, sig)
	}
	return out, nil
}

// FetchCandles reads the newest candles for one pair and returns them
// ascending by ts as the snapshot contract requires.
func (r *Reader) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error) {
	stream := candleStream(symbol, timeframe)
	msgs, err := r.client.XRevRangeN(ctx, stream, "+", "-", int64(limit)).Result()
	if err != nil {
		return nil, fmt.Errorf("xrevrange %s: %w", stream, err)
	}

	out := make([]model.Candle, 0, len(msgs))
	// Walk backwards to flip XREVRANGE's newest-first into ascending.
	for i := len(msgs) - 1; i >= 0; i-- {
		data, ok := msgs[i].Values["data"].(string)
		if !ok {
			continue
		}
		var c model.Candle
		if err := json.Unmarshal([]byte(data), &c); err != nil {
			slog.Warn("redisstream: bad candle entry skipped", "id", msgs[i].ID, "err", err)
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// Close closes the Redis client.
func (r *Reader) Close() error {
	return r.client.Close()
}
