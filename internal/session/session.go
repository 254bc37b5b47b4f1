// Package session ties the feed transport to the record store: it
// seeds the store from a snapshot source, routes streamed events into
// store merge operations, drops late events for a previous selection,
// and handles symbol/timeframe switches.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"signalboard/internal/metrics"
	"signalboard/internal/model"
	"signalboard/internal/store"
)

// Feed is the transport surface the session drives. *stream.Transport
// satisfies it; tests use a fake.
type Feed interface {
	Start(ctx context.Context) error
	Events() <-chan model.Event
	Switch(symbol, timeframe string)
	Close()
}

// Default seed fetch limits.
const (
	seedSignalLimit = 1000
	seedCandleLimit = 500
)

// Config wires a session. Store and Feed are required; everything else
// is optional.
type Config struct {
	Store *store.RecordStore
	Feed  Feed

	Symbol    string
	Timeframe string

	// Seed, when set, provides the initial records on start and after
	// each switch.
	Seed model.SnapshotSource

	// Recorder channels. Sends never block; a full channel drops.
	RecordCandles chan<- model.Candle
	RecordSignals chan<- model.Signal

	// OnIndicator receives raw indicator payloads from the stream.
	// The sync engine itself never interprets them.
	OnIndicator func(json.RawMessage)

	Metrics *metrics.Metrics
}

// Session owns the store + transport lifecycle for one user selection.
type Session struct {
	cfg   Config
	store *store.RecordStore

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New returns an unstarted session for the configured selection.
func New(cfg Config) *Session {
	return &Session{
		cfg:   cfg,
		store: cfg.Store,
		done:  make(chan struct{}),
	}
}

// Start seeds the store, connects the feed, and begins routing events.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("session already started")
	}
	s.started = true
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	s.store.SetSelection(s.cfg.Symbol, s.cfg.Timeframe)
	s.seed(ctx, s.cfg.Symbol, s.cfg.Timeframe)

	if err := s.cfg.Feed.Start(ctx); err != nil {
		cancel()
		s.mu.Lock()
		s.started = false
		s.mu.Unlock()
		return fmt.Errorf("start feed: %w", err)
	}

	go s.run(runCtx)
	return nil
}

// Switch retargets the session to a new (symbol, timeframe) pair: the
// store is reset and re-seeded, and the feed re-subscribes. Events
// still in flight for the old pair fail the identity check and are
// dropped.
func (s *Session) Switch(ctx context.Context, symbol, timeframe string) {
	slog.Info("session: switching", "symbol", symbol, "timeframe", timeframe)
	s.store.SetSelection(symbol, timeframe)
	s.store.Reset()
	s.seed(ctx, symbol, timeframe)
	s.cfg.Feed.Switch(symbol, timeframe)
}

// Close tears down the feed and stops the routing loop.
func (s *Session) Close() {
	s.mu.Lock()
	started := s.started
	cancel := s.cancel
	s.mu.Unlock()
	if !started {
		return
	}
	s.cfg.Feed.Close()
	if cancel != nil {
		cancel()
	}
	<-s.done
}

// seed loads recent signals and candle history into the store. Seed
// failures degrade to an empty store rather than aborting the session;
// the live stream fills it in.
func (s *Session) seed(ctx context.Context, symbol, timeframe string) {
	if s.cfg.Seed == nil {
		return
	}
	start := time.Now()

	sigs, err := s.cfg.Seed.FetchSignals(ctx, seedSignalLimit)
	if err != nil {
		slog.Warn("session: signal seed failed", "err", err)
	}
	// Fetched newest-first; insert oldest-first so the store's
	// prepend ordering reproduces it.
	for i := len(sigs) - 1; i >= 0; i-- {
		s.store.AddSignal(sigs[i])
	}

	candles, err := s.cfg.Seed.FetchCandles(ctx, symbol, timeframe, seedCandleLimit)
	if err != nil {
		slog.Warn("session: candle seed failed", "err", err)
	}
	for _, c := range candles {
		s.store.UpsertCandle(c)
	}

	if m := s.cfg.Metrics; m != nil {
		m.SnapshotSeedDur.Observe(time.Since(start).Seconds())
	}
	slog.Info("session: seeded",
		"signals", len(sigs), "candles", len(candles),
		"took", time.Since(start))
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-s.cfg.Feed.Events():
			if !ok {
				return
			}
			s.handle(ev)
		}
	}
}

func (s *Session) handle(ev model.Event) {
	if m := s.cfg.Metrics; m != nil {
		m.EventsTotal.WithLabelValues(string(ev.Kind)).Inc()
	}

	switch ev.Kind {
	case model.KindCandle:
		if s.stale(ev.Candle.Symbol, ev.Candle.Timeframe) {
			return
		}
		s.store.UpsertCandle(*ev.Candle)
		recordCandle(s.cfg.RecordCandles, *ev.Candle)
		if m := s.cfg.Metrics; m != nil {
			m.StoreCandles.Set(float64(s.store.CandleCount(ev.Candle.Symbol, ev.Candle.Timeframe)))
		}

	case model.KindSwing:
		if s.stale(ev.Swing.Symbol, ev.Swing.Timeframe) {
			return
		}
		s.store.AppendSwing(*ev.Swing)
		if m := s.cfg.Metrics; m != nil {
			m.StoreSwings.Set(float64(len(s.store.Swings())))
		}

	case model.KindSignal:
		// Signals cover every symbol, not just the active selection.
		s.store.AddSignal(*ev.Signal)
		recordSignal(s.cfg.RecordSignals, *ev.Signal)
		if m := s.cfg.Metrics; m != nil {
			m.StoreSignals.Set(float64(s.store.SignalCount()))
		}

	case model.KindSymbolUpdate, model.KindMarketcap:
		s.store.UpsertQuote(*ev.Quote)

	case model.KindIndicator:
		if s.cfg.OnIndicator != nil {
			s.cfg.OnIndicator(ev.Indicator)
		}

	case model.KindConnected, model.KindSubscribed:
		slog.Info("session: feed control", "kind", ev.Kind,
			"symbol", ev.Symbol, "timeframe", ev.Timeframe)

	case model.KindError:
		slog.Warn("session: feed error", "message", ev.Message)

	default:
		slog.Debug("session: unrecognized event dropped")
	}
}

// stale reports whether an event belongs to a pair other than the
// active selection, counting the drop.
func (s *Session) stale(symbol, timeframe string) bool {
	selSym, selTF := s.store.Selection()
	if symbol == selSym && timeframe == selTF {
		return false
	}
	if m := s.cfg.Metrics; m != nil {
		m.StaleDropped.Inc()
	}
	return true
}

// Recorder sends never block; a backlogged recorder drops writes
// rather than stalling the live path.

func recordCandle(ch chan<- model.Candle, c model.Candle) {
	if ch == nil {
		return
	}
	select {
	case ch <- c:
	default:
	}
}

func recordSignal(ch chan<- model.Signal, sig model.Signal) {
	if ch == nil {
		return
	}
	select {
	case ch <- sig:
	default:
	}
}
