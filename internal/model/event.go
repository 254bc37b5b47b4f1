package model

import (
	"encoding/json"
	"fmt"
)

// EventKind identifies a streaming message variant.
type EventKind string

// The closed set of wire event kinds. Anything else decodes to
// KindUnrecognized instead of silently matching a wrong case.
const (
	KindSignal       EventKind = "signal"
	KindCandle       EventKind = "candle"
	KindSwing        EventKind = "swing"
	KindSymbolUpdate EventKind = "symbol_update"
	KindMarketcap    EventKind = "marketcap_update"
	KindIndicator    EventKind = "indicator"
	KindConnected    EventKind = "connected"
	KindSubscribed   EventKind = "subscribed"
	KindError        EventKind = "error"
	KindUnrecognized EventKind = "unrecognized"
)

// Event is the decoded streaming envelope. Exactly one payload field is
// populated, selected by Kind.
type Event struct {
	Kind EventKind

	Signal *Signal
	Candle *Candle
	Swing  *SwingPoint
	Quote  *QuoteUpdate

	// Indicator payloads are opaque to the sync engine and passed
	// through to chart consumers as-is.
	Indicator json.RawMessage

	// Control-message fields (connected / subscribed / error).
	Message   string
	Symbol    string
	Timeframe string
}

// SubscribeMsg is the outbound subscription request.
type SubscribeMsg struct {
	Type      string `json:"type"` // always "subscribe"
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
}

// envelope is the raw wire shape before variant selection.
type envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Message   string          `json:"message"`
	Symbol    string          `json:"symbol"`
	Timeframe string          `json:"timeframe"`
}

// DecodeEvent parses one streaming message into the closed Event union.
// Unknown types yield Kind == KindUnrecognized with a nil payload; a
// malformed frame or payload returns an error so the transport can log
// and drop it without touching the store.
func DecodeEvent(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, fmt.Errorf("decode envelope: %w", err)
	}

	ev := Event{
		Message:   env.Message,
		Symbol:    env.Symbol,
		Timeframe: env.Timeframe,
	}

	switch EventKind(env.Type) {
	case KindSignal:
		var s Signal
		if err := json.Unmarshal(env.Data, &s); err != nil {
			return Event{}, fmt.Errorf("decode signal: %w", err)
		}
		if s.ID == "" {
			return Event{}, fmt.Errorf("decode signal: missing id")
		}
		ev.Kind, ev.Signal = KindSignal, &s

	case KindCandle:
		var c Candle
		if err := json.Unmarshal(env.Data, &c); err != nil {
			return Event{}, fmt.Errorf("decode candle: %w", err)
		}
		if c.Symbol == "" || c.TS.IsZero() {
			return Event{}, fmt.Errorf("decode candle: missing symbol or ts")
		}
		ev.Kind, ev.Candle = KindCandle, &c

	case KindSwing:
		var p SwingPoint
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return Event{}, fmt.Errorf("decode swing: %w", err)
		}
		if p.Kind != SwingHigh && p.Kind != SwingLow {
			return Event{}, fmt.Errorf("decode swing: bad kind %q", p.Kind)
		}
		ev.Kind, ev.Swing = KindSwing, &p

	case KindSymbolUpdate, KindMarketcap:
		var u QuoteUpdate
		if err := json.Unmarshal(env.Data, &u); err != nil {
			return Event{}, fmt.Errorf("decode quote update: %w", err)
		}
		if u.Symbol == "" {
			return Event{}, fmt.Errorf("decode quote update: missing symbol")
		}
		ev.Kind, ev.Quote = EventKind(env.Type), &u

	case KindIndicator:
		ev.Kind, ev.Indicator = KindIndicator, env.Data

	case KindConnected, KindSubscribed, KindError:
		ev.Kind = EventKind(env.Type)

	default:
		ev.Kind = KindUnrecognized
	}

	return ev, nil
}
