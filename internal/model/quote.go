package model

// SymbolQuote holds the latest streamed quote for one symbol.
// Continuously overwritten by symbol_update / marketcap_update events.
type SymbolQuote struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Change24h float64 `json:"change_24h"`
	MarketCap float64 `json:"market_cap,omitempty"`
}

// QuoteUpdate is a partial quote: nil fields leave the stored value
// untouched on merge.
type QuoteUpdate struct {
	Symbol    string   `json:"symbol"`
	Price     *float64 `json:"price,omitempty"`
	Change24h *float64 `json:"change_24h,omitempty"`
	MarketCap *float64 `json:"market_cap,omitempty"`
}

// ApplyTo merges the update's set fields into q.
func (u *QuoteUpdate) ApplyTo(q *SymbolQuote) {
	q.Symbol = u.Symbol
	if u.Price != nil {
		q.Price = *u.Price
	}
	if u.Change24h != nil {
		q.Change24h = *u.Change24h
	}
	if u.MarketCap != nil {
		q.MarketCap = *u.MarketCap
	}
}
