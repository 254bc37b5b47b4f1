package view

import (
	"sort"
	"strings"
	"sync"

	"signalboard/internal/model"
)

// Field identifies a sortable signal attribute.
type Field string

const (
	FieldSwingTS    Field = "swing_ts"   // max of swing-high/low instants
	FieldScore      Field = "score"      // live distance from entry
	FieldConfluence Field = "confluence" // parsed integer agreement count
	FieldSymbol     Field = "symbol"     // case-insensitive lexical
	FieldEntry      Field = "entry"      // entry1, falling back to price
	FieldSignalTS   Field = "signal_ts"
)

// MaxSortKeys bounds the multi-key comparator; extra keys are ignored.
const MaxSortKeys = 3

// SortKey is one (field, direction) pair of a sort spec.
type SortKey struct {
	Field Field `json:"field"`
	Desc  bool  `json:"desc"`
}

// Direction filter values.
const (
	DirectionAll = "all"
)

// Filters narrow the visible signal set.
type Filters struct {
	// Search matches case-insensitively as a substring of the symbol.
	Search string `json:"search"`
	// Direction is "all", "long", or "short".
	Direction string `json:"direction"`
}

// Matches reports whether a signal passes the filters.
func (f Filters) Matches(sig model.Signal) bool {
	if f.Search != "" &&
		!strings.Contains(strings.ToLower(sig.Symbol), strings.ToLower(f.Search)) {
		return false
	}
	if f.Direction != "" && f.Direction != DirectionAll && sig.Direction != f.Direction {
		return false
	}
	return true
}

// Lookup resolves a signal id against the current store snapshot.
type Lookup func(id string) (model.Signal, bool)

// Pipeline computes ordered, filtered signal id lists. It is a pure
// function of its inputs except for the freeze state: while frozen,
// renders filter the captured ordering instead of re-sorting, so rows
// never jump under the user's cursor.
type Pipeline struct {
	mu     sync.Mutex
	frozen []string
}

// NewPipeline returns an unfrozen pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// Compute returns the ordered id list for the given inputs.
//
// Given identical inputs the output is fully deterministic: the sort is
// stable, so ties keep the input order. While frozen, the spec's sort
// keys are ignored and the frozen ordering is filtered instead, so ids
// can only disappear, never move or appear.
func (p *Pipeline) Compute(ids []string, f Filters, spec []SortKey, lookup Lookup, quotes map[string]model.SymbolQuote) []string {
	p.mu.Lock()
	frozen := p.frozen
	p.mu.Unlock()

	if frozen != nil {
		return filterIDs(frozen, f, lookup)
	}

	out := filterIDs(ids, f, lookup)
	sortIDs(out, spec, lookup, quotes)
	return out
}

// Freeze captures the full ordering of ids under the given sort spec
// (unfiltered, so later filter changes can only remove rows) and holds
// it until Unfreeze.
func (p *Pipeline) Freeze(ids []string, spec []SortKey, lookup Lookup, quotes map[string]model.SymbolQuote) {
	snapshot := make([]string, len(ids))
	copy(snapshot, ids)
	sortIDs(snapshot, spec, lookup, quotes)

	p.mu.Lock()
	p.frozen = snapshot
	p.mu.Unlock()
}

// Unfreeze resumes live re-sorting.
func (p *Pipeline) Unfreeze() {
	p.mu.Lock()
	p.frozen = nil
	p.mu.Unlock()
}

// Frozen reports whether a fixed ordering is active.
func (p *Pipeline) Frozen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frozen != nil
}

func filterIDs(ids []string, f Filters, lookup Lookup) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		sig, ok := lookup(id)
		if !ok {
			continue
		}
		if f.Matches(sig) {
			out = append(out, id)
		}
	}
	return out
}

func sortIDs(ids []string, spec []SortKey, lookup Lookup, quotes map[string]model.SymbolQuote) {
	if len(spec) == 0 {
		return
	}
	if len(spec) > MaxSortKeys {
		spec = spec[:MaxSortKeys]
	}
	sort.SliceStable(ids, func(i, j int) bool {
		a, aok := lookup(ids[i])
		b, bok := lookup(ids[j])
		if !aok || !bok {
			return false
		}
		return compareSignals(a, b, spec, quotes) < 0
	})
}

// compareSignals applies the lexicographic multi-key comparator: the
// first key decides unless equal, then the second, then the third.
func compareSignals(a, b model.Signal, spec []SortKey, quotes map[string]model.SymbolQuote) int {
	for _, key := range spec {
		var c int
		if key.Field == FieldSymbol {
			c = strings.Compare(strings.ToLower(a.Symbol), strings.ToLower(b.Symbol))
		} else {
			c = compareFloat(fieldValue(a, key.Field, quotes), fieldValue(b, key.Field, quotes))
		}
		if key.Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

func fieldValue(sig model.Signal, field Field, quotes map[string]model.SymbolQuote) float64 {
	switch field {
	case FieldSwingTS:
		ts := sig.SwingTS()
		if ts.IsZero() {
			return 0
		}
		return float64(ts.UnixMilli())
	case FieldScore:
		q, ok := quotes[sig.Symbol]
		if !ok {
			return Score(0, sig.EntryPrice()) // +Inf: no live quote
		}
		return Score(q.Price, sig.EntryPrice())
	case FieldConfluence:
		return float64(sig.Confluence.Int())
	case FieldEntry:
		return sig.EntryPrice()
	case FieldSignalTS:
		if sig.TS.IsZero() {
			return 0
		}
		return float64(sig.TS.UnixMilli())
	default:
		return 0
	}
}

// compareFloat orders floats with +Inf ties treated as equal, so
// unscorable rows keep their relative input order.
func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
