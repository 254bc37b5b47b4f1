// Package api exposes the engine's state over HTTP for the
// presentation layer: signals with live scoring, candles, derived
// indicator series, quotes, and the view controls (sort, filter,
// freeze, selection switch).
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"signalboard/internal/indicator"
	"signalboard/internal/metrics"
	"signalboard/internal/model"
	"signalboard/internal/session"
	"signalboard/internal/store"
	"signalboard/internal/view"
)

// Server wires the store, view pipeline, and session to HTTP handlers.
type Server struct {
	store *store.RecordStore
	pipe  *view.Pipeline
	sess  *session.Session
	zz    indicator.ZigZagConfig
	met   *metrics.Metrics
	dir   model.SymbolDirectory // optional
}

// Config for a Server. Store and Pipe are required.
type Config struct {
	Store     *store.RecordStore
	Pipe      *view.Pipeline
	Session   *session.Session
	ZigZag    indicator.ZigZagConfig
	Metrics   *metrics.Metrics
	Directory model.SymbolDirectory
}

// New builds the server.
func New(cfg Config) *Server {
	return &Server{
		store: cfg.Store,
		pipe:  cfg.Pipe,
		sess:  cfg.Session,
		zz:    cfg.ZigZag,
		met:   cfg.Metrics,
		dir:   cfg.Directory,
	}
}

// Routes returns the HTTP mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/signals", s.handleSignals)
	mux.HandleFunc("/api/candles", s.handleCandles)
	mux.HandleFunc("/api/indicators", s.handleIndicators)
	mux.HandleFunc("/api/quotes", s.handleQuotes)
	mux.HandleFunc("/api/view/freeze", s.handleFreeze)
	mux.HandleFunc("/api/view/unfreeze", s.handleUnfreeze)
	mux.HandleFunc("/api/selection", s.handleSelection)
	mux.HandleFunc("/api/symbols", s.handleSymbols)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// signalRow is one presentation-ready signal with its live score.
type signalRow struct {
	model.Signal
	Score     float64 `json:"score"`
	Proximity string  `json:"proximity"`
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := view.Filters{
		Search:    q.Get("search"),
		Direction: q.Get("direction"),
	}
	spec := parseSort(q.Get("sort"))

	start := time.Now()
	quotes := s.store.Quotes()
	ids := s.pipe.Compute(s.store.SignalIDs(), filters, spec, s.store.Signal, quotes)
	if s.met != nil {
		s.met.ViewComputeDur.Observe(time.Since(start).Seconds())
	}

	rows := make([]signalRow, 0, len(ids))
	for _, id := range ids {
		sig, ok := s.store.Signal(id)
		if !ok {
			continue
		}
		score := view.Score(0, 0) // +Inf unless a quote exists
		if quote, ok := quotes[sig.Symbol]; ok {
			score = view.Score(quote.Price, sig.EntryPrice())
		}
		rows = append(rows, signalRow{
			Signal:    sig,
			Score:     score,
			Proximity: view.Classify(score),
		})
	}

	writeJSON(w, map[string]interface{}{
		"version": s.store.Version(),
		"frozen":  s.pipe.Frozen(),
		"signals": rows,
	})
}

func (s *Server) handleCandles(w http.ResponseWriter, r *http.Request) {
	symbol, timeframe := s.store.Selection()
	if v := r.URL.Query().Get("symbol"); v != "" {
		symbol = v
	}
	if v := r.URL.Query().Get("timeframe"); v != "" {
		timeframe = v
	}
	writeJSON(w, map[string]interface{}{
		"symbol":    symbol,
		"timeframe": timeframe,
		"candles":   s.store.Candles(symbol, timeframe),
		"swings":    s.store.Swings(),
	})
}

func (s *Server) handleIndicators(w http.ResponseWriter, r *http.Request) {
	symbol, timeframe := s.store.Selection()
	candles := s.store.Candles(symbol, timeframe)

	start := time.Now()
	emas := indicator.EMASet(candles, []int{20, 50, 100, 200})
	out := map[string]interface{}{
		"symbol":    symbol,
		"timeframe": timeframe,
		"rsi14":     indicator.RSI(candles, 14),
		"ema20":     emas[20],
		"ema50":     emas[50],
		"ema100":    emas[100],
		"ema200":    emas[200],
		"zigzag":    indicator.ZigZag(candles, s.zz),
	}
	if s.met != nil {
		s.met.IndicatorComputeDur.Observe(time.Since(start).Seconds())
	}
	writeJSON(w, out)
}

func (s *Server) handleQuotes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.store.Quotes())
}

func (s *Server) handleFreeze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	spec := parseSort(r.URL.Query().Get("sort"))
	s.pipe.Freeze(s.store.SignalIDs(), spec, s.store.Signal, s.store.Quotes())
	writeJSON(w, map[string]bool{"frozen": true})
}

func (s *Server) handleUnfreeze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	s.pipe.Unfreeze()
	writeJSON(w, map[string]bool{"frozen": false})
}

func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		symbol, timeframe := s.store.Selection()
		writeJSON(w, map[string]string{"symbol": symbol, "timeframe": timeframe})
	case http.MethodPost:
		if s.sess == nil {
			http.Error(w, "no session", http.StatusServiceUnavailable)
			return
		}
		var req struct {
			Symbol    string `json:"symbol"`
			Timeframe string `json:"timeframe"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Symbol == "" || req.Timeframe == "" {
			http.Error(w, "symbol and timeframe required", http.StatusBadRequest)
			return
		}
		s.sess.Switch(r.Context(), req.Symbol, req.Timeframe)
		writeJSON(w, map[string]string{"symbol": req.Symbol, "timeframe": req.Timeframe})
	default:
		http.Error(w, "GET or POST", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	if s.dir == nil {
		writeJSON(w, map[string][]string{})
		return
	}
	syms, err := s.dir.ListSymbols(r.Context())
	if err != nil {
		slog.Warn("api: symbol directory failed", "err", err)
		http.Error(w, "symbol directory unavailable", http.StatusBadGateway)
		return
	}
	writeJSON(w, syms)
}

// parseSort turns "confluence:desc,symbol" into sort keys. Unknown
// fields are dropped; the pipeline caps the key count.
func parseSort(raw string) []view.SortKey {
	if raw == "" {
		return nil
	}
	var spec []view.SortKey
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		field, dir, _ := strings.Cut(part, ":")
		switch view.Field(field) {
		case view.FieldSwingTS, view.FieldScore, view.FieldConfluence,
			view.FieldSymbol, view.FieldEntry, view.FieldSignalTS:
			spec = append(spec, view.SortKey{
				Field: view.Field(field),
				Desc:  strings.EqualFold(dir, "desc"),
			})
		}
	}
	return spec
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("api: encode response failed", "err", err)
	}
}
