// Package store holds the canonical in-memory replica of streamed
// market data: candles, signals, swing points, and quotes.
//
// Mutations are serialized behind a single mutex so readers never
// observe a partially-applied entity. Read accessors return snapshot
// copies, safe to hand to computation running concurrently.
package store

import (
	"sort"
	"sync"

	"signalboard/internal/model"
)

// DefaultSignalCap bounds the signal recency window.
const DefaultSignalCap = 1000

// RecordStore is the single shared mutable resource of a session.
// Construct one per session with New; tests get a fresh instance each.
type RecordStore struct {
	mu sync.RWMutex

	// Active (symbol, timeframe) selection. Survives Reset.
	symbol    string
	timeframe string

	// candles[pairKey] is kept strictly ascending by TS.
	candles map[string][]model.Candle

	// signals are newest-first, capped at signalCap.
	signals   []model.Signal
	signalIdx map[string]int // id → index into signals
	signalCap int

	// latest holds the newest signal for the selected symbol,
	// consumed by chart auto-navigation.
	latest    model.Signal
	hasLatest bool

	// swings retained for the active chart only.
	swings []model.SwingPoint

	quotes map[string]model.SymbolQuote

	// version bumps on every mutation; consumers use it as an
	// invalidation key for derived views.
	version uint64

	// OnEvict is called (under the lock) when the signal cap evicts
	// an entry. Optional metrics hook.
	OnEvict func()
}

// Option configures a RecordStore.
type Option func(*RecordStore)

// WithSignalCap overrides the signal recency cap.
func WithSignalCap(n int) Option {
	return func(s *RecordStore) {
		if n > 0 {
			s.signalCap = n
		}
	}
}

// New creates an empty RecordStore.
func New(opts ...Option) *RecordStore {
	s := &RecordStore{
		candles:   make(map[string][]model.Candle),
		signalIdx: make(map[string]int),
		signalCap: DefaultSignalCap,
		quotes:    make(map[string]model.SymbolQuote),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetSelection records the active (symbol, timeframe) pair.
func (s *RecordStore) SetSelection(symbol, timeframe string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.symbol = symbol
	s.timeframe = timeframe
	s.version++
}

// Selection returns the active (symbol, timeframe) pair.
func (s *RecordStore) Selection() (symbol, timeframe string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.symbol, s.timeframe
}

// Version returns the mutation counter. Any change to store contents
// bumps it, so equal versions imply identical derived views.
func (s *RecordStore) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// UpsertCandle inserts or replaces a candle within its (symbol,
// timeframe) partition, keeping the partition strictly ascending by
// timestamp. Duplicate delivery replaces in place.
func (s *RecordStore) UpsertCandle(c model.Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := c.Key()
	part := s.candles[key]

	// Binary search for the insertion point.
	i := sort.Search(len(part), func(i int) bool {
		return !part[i].TS.Before(c.TS)
	})

	switch {
	case i < len(part) && part[i].TS.Equal(c.TS):
		part[i] = c // same identity: prefer the newer record
	case i == len(part):
		part = append(part, c)
	default:
		part = append(part, model.Candle{})
		copy(part[i+1:], part[i:])
		part[i] = c
	}
	s.candles[key] = part
	s.version++
}

// Candles returns a copy of the candle slice for one pair, ascending.
func (s *RecordStore) Candles(symbol, timeframe string) []model.Candle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	part := s.candles[model.PairKey(symbol, timeframe)]
	out := make([]model.Candle, len(part))
	copy(out, part)
	return out
}

// CandleCount returns the number of candles held for one pair.
func (s *RecordStore) CandleCount(symbol, timeframe string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.candles[model.PairKey(symbol, timeframe)])
}

// AddSignal inserts a signal at the front of the recency window.
// Re-delivery of a known id replaces in place instead of duplicating.
// When the signal's symbol matches the selection it also becomes the
// "latest signal" for chart auto-navigation.
func (s *RecordStore) AddSignal(sig model.Signal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.signalIdx[sig.ID]; ok {
		s.signals[i] = sig
	} else {
		s.signals = append([]model.Signal{sig}, s.signals...)
		if len(s.signals) > s.signalCap {
			evicted := s.signals[len(s.signals)-1]
			s.signals = s.signals[:len(s.signals)-1]
			delete(s.signalIdx, evicted.ID)
			if s.OnEvict != nil {
				s.OnEvict()
			}
		}
		s.reindexSignals()
	}

	if sig.Symbol == s.symbol {
		s.latest = sig
		s.hasLatest = true
	}
	s.version++
}

func (s *RecordStore) reindexSignals() {
	for i := range s.signals {
		s.signalIdx[s.signals[i].ID] = i
	}
}

// SignalIDs returns the ids in the recency window, newest first.
func (s *RecordStore) SignalIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.signals))
	for i := range s.signals {
		out[i] = s.signals[i].ID
	}
	return out
}

// Signal looks up one signal by id.
func (s *RecordStore) Signal(id string) (model.Signal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.signalIdx[id]
	if !ok {
		return model.Signal{}, false
	}
	return s.signals[i], true
}

// Signals returns a newest-first copy of the recency window.
func (s *RecordStore) Signals() []model.Signal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Signal, len(s.signals))
	copy(out, s.signals)
	return out
}

// SignalCount returns the recency window size.
func (s *RecordStore) SignalCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.signals)
}

// LatestSignal returns the newest signal for the selected symbol, if any.
func (s *RecordStore) LatestSignal() (model.Signal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.hasLatest
}

// AppendSwing adds a swing point and prunes the retained set to the
// swing's own (symbol, timeframe) pair, bounding memory to the active
// chart. Duplicate identity replaces in place.
func (s *RecordStore) AppendSwing(p model.SwingPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.swings[:0]
	replaced := false
	for _, existing := range s.swings {
		if existing.Key() != p.Key() {
			continue // other pair: pruned
		}
		if existing.Same(p) {
			existing = p
			replaced = true
		}
		kept = append(kept, existing)
	}
	if !replaced {
		kept = append(kept, p)
	}
	s.swings = kept
	s.version++
}

// Swings returns a copy of the retained swing points in append order.
func (s *RecordStore) Swings() []model.SwingPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.SwingPoint, len(s.swings))
	copy(out, s.swings)
	return out
}

// UpsertQuote merges a partial quote update; fields the update does not
// carry keep their prior values.
func (s *RecordStore) UpsertQuote(u model.QuoteUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.quotes[u.Symbol]
	u.ApplyTo(&q)
	s.quotes[u.Symbol] = q
	s.version++
}

// Quote returns the latest quote for a symbol.
func (s *RecordStore) Quote(symbol string) (model.SymbolQuote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[symbol]
	return q, ok
}

// Quotes returns a copy of the whole quote map.
func (s *RecordStore) Quotes() map[string]model.SymbolQuote {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.SymbolQuote, len(s.quotes))
	for k, v := range s.quotes {
		out[k] = v
	}
	return out
}

// Reset clears candles, swings, and signals. The selection and the
// quote map survive, so a returning view starts warm.
func (s *RecordStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candles = make(map[string][]model.Candle)
	s.signals = nil
	s.signalIdx = make(map[string]int)
	s.swings = nil
	s.latest = model.Signal{}
	s.hasLatest = false
	s.version++
}
