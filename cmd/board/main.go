// cmd/board is the dashboard sync engine. Connects to the streaming
// backend, maintains the in-memory record store, serves derived views
// and indicators over HTTP, and records raw entities locally for warm
// restarts.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"signalboard/config"
	"signalboard/internal/api"
	"signalboard/internal/history/redisstream"
	"signalboard/internal/history/rest"
	sqlitestore "signalboard/internal/history/sqlite"
	"signalboard/internal/indicator"
	"signalboard/internal/logger"
	"signalboard/internal/metrics"
	"signalboard/internal/model"
	"signalboard/internal/session"
	"signalboard/internal/store"
	"signalboard/internal/stream"
	"signalboard/internal/view"
)

func main() {
	cfg := config.Load()
	logger.Init("board", logger.ParseLevel(cfg.LogLevel))
	slog.Info("board starting",
		"stream_url", cfg.StreamURL,
		"symbol", cfg.Symbol, "timeframe", cfg.Timeframe,
		"snapshot_source", cfg.SnapshotSource)

	prom := metrics.New()
	metrics.Serve(cfg.MetricsAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- Local recorder (always on, off the hot path) ----
	os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755)
	sq, err := sqlitestore.Open(cfg.SQLitePath)
	if err != nil {
		slog.Error("sqlite init failed", "err", err)
		os.Exit(1)
	}
	sq.OnCommit = func(d time.Duration) {
		prom.RecorderCommitDur.Observe(d.Seconds())
	}
	var recorder model.Recorder = sq
	defer recorder.Close()

	candleRec := make(chan model.Candle, 4096)
	signalRec := make(chan model.Signal, 1024)
	recorderDone := make(chan struct{})
	go func() {
		defer close(recorderDone)
		recorder.Run(ctx, candleRec, signalRec)
	}()

	// ---- Snapshot source ----
	var (
		seed model.SnapshotSource
		dir  model.SymbolDirectory
	)
	switch cfg.SnapshotSource {
	case "rest":
		c := rest.New(cfg.SnapshotURL)
		seed, dir = c, c
	case "redis":
		r, err := redisstream.New(redisstream.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			slog.Error("redis snapshot source failed", "err", err)
			os.Exit(1)
		}
		defer r.Close()
		seed = r
	case "sqlite":
		// Warm-start from what the recorder wrote last run.
		seed = sq
	case "none":
		slog.Info("snapshot seeding disabled")
	default:
		slog.Error("unknown SNAPSHOT_SOURCE", "value", cfg.SnapshotSource)
		os.Exit(1)
	}

	// ---- Store + view ----
	st := store.New(store.WithSignalCap(cfg.SignalCap))
	st.OnEvict = func() { prom.SignalsEvicted.Inc() }
	pipe := view.NewPipeline()

	// ---- Transport + session ----
	tr := stream.New(cfg.StreamURL, cfg.Symbol, cfg.Timeframe, stream.NewWSDialer())
	tr.OnReconnect = func() { prom.WSReconnects.Inc() }
	tr.OnDecodeError = func() { prom.DecodeErrors.Inc() }
	tr.OnGiveUp = func() { prom.WSGiveUps.Inc() }

	sess := session.New(session.Config{
		Store:         st,
		Feed:          tr,
		Symbol:        cfg.Symbol,
		Timeframe:     cfg.Timeframe,
		Seed:          seed,
		RecordCandles: candleRec,
		RecordSignals: signalRec,
		Metrics:       prom,
	})
	if err := sess.Start(ctx); err != nil {
		slog.Error("session start failed", "err", err)
		os.Exit(1)
	}

	// ---- HTTP API ----
	zz := indicator.ZigZagConfig{
		Depth:     cfg.ZZDepth,
		Deviation: float64(cfg.ZZDeviation),
		Backstep:  cfg.ZZBackstep,
		MinTick:   cfg.ZZMinTick,
		PruneRate: cfg.ZZPruneRate,
	}
	srv := &http.Server{
		Addr: cfg.APIAddr,
		Handler: api.New(api.Config{
			Store:     st,
			Pipe:      pipe,
			Session:   sess,
			ZigZag:    zz,
			Metrics:   prom,
			Directory: dir,
		}).Routes(),
	}
	go func() {
		slog.Info("api listening", "addr", cfg.APIAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("api server stopped", "err", err)
		}
	}()

	// ---- Graceful shutdown ----
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	srv.Shutdown(shutCtx)

	sess.Close()
	cancel()
	<-recorderDone
	slog.Info("board stopped")
}
