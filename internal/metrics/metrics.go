// Package metrics exposes Prometheus instrumentation for the sync engine.
package metrics

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the sync engine.
type Metrics struct {
	EventsTotal    *prometheus.CounterVec // labels: kind
	DecodeErrors   prometheus.Counter
	WSReconnects   prometheus.Counter
	WSGiveUps      prometheus.Counter
	StaleDropped   prometheus.Counter
	SignalsEvicted prometheus.Counter

	StoreCandles prometheus.Gauge
	StoreSignals prometheus.Gauge
	StoreSwings  prometheus.Gauge

	ViewComputeDur      prometheus.Histogram
	IndicatorComputeDur prometheus.Histogram
	SnapshotSeedDur     prometheus.Histogram

	RecorderCommitDur prometheus.Histogram
}

// New registers and returns all Prometheus metrics on the default registry.
func New() *Metrics {
	m := &Metrics{
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "board_stream_events_total",
			Help: "Streaming events accepted, by event kind",
		}, []string{"kind"}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "board_stream_decode_errors_total",
			Help: "Malformed streaming messages dropped",
		}),
		WSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "board_stream_reconnects_total",
			Help: "WebSocket reconnection attempts",
		}),
		WSGiveUps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "board_stream_giveups_total",
			Help: "Times the transport exhausted its retry budget",
		}),
		StaleDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "board_stale_events_dropped_total",
			Help: "Late events for a previous selection dropped by identity check",
		}),
		SignalsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "board_signals_evicted_total",
			Help: "Signals evicted by the recency cap",
		}),
		StoreCandles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "board_store_candles",
			Help: "Candles held for the active selection",
		}),
		StoreSignals: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "board_store_signals",
			Help: "Signals held in the recency window",
		}),
		StoreSwings: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "board_store_swings",
			Help: "Swing points held for the active selection",
		}),
		ViewComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "board_view_compute_duration_seconds",
			Help:    "Filter + multi-key sort latency",
			Buckets: prometheus.DefBuckets,
		}),
		IndicatorComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "board_indicator_compute_duration_seconds",
			Help:    "Indicator series computation latency",
			Buckets: prometheus.DefBuckets,
		}),
		SnapshotSeedDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "board_snapshot_seed_duration_seconds",
			Help:    "Initial snapshot fetch + store seed latency",
			Buckets: prometheus.DefBuckets,
		}),
		RecorderCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "board_recorder_commit_duration_seconds",
			Help:    "Local recorder batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),
	}

	prometheus.MustRegister(
		m.EventsTotal, m.DecodeErrors, m.WSReconnects, m.WSGiveUps,
		m.StaleDropped, m.SignalsEvicted,
		m.StoreCandles, m.StoreSignals, m.StoreSwings,
		m.ViewComputeDur, m.IndicatorComputeDur, m.SnapshotSeedDur,
		m.RecorderCommitDur,
	)
	return m
}

// Serve starts the /metrics HTTP endpoint. Non-blocking.
func Serve(addr string) {
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		slog.Info("metrics server listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("metrics server stopped", "err", err)
		}
	}()
}
