package model

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Direction of a trading signal.
const (
	DirectionLong  = "long"
	DirectionShort = "short"
)

// Signal is a trading signal emitted by the strategy backend.
// Identity is the opaque ID; signals are immutable once created.
type Signal struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	Direction string    `json:"direction"` // "long" | "short"
	TS        time.Time `json:"ts"`

	Price  float64 `json:"price"`            // price at signal time
	Entry1 float64 `json:"entry1,omitempty"` // suggested entry
	Entry2 float64 `json:"entry2,omitempty"` // secondary entry
	SL     float64 `json:"sl,omitempty"`     // stop loss
	TP1    float64 `json:"tp1,omitempty"`
	TP2    float64 `json:"tp2,omitempty"`
	TP3    float64 `json:"tp3,omitempty"`

	SwingHigh   float64   `json:"swing_high,omitempty"`
	SwingHighTS time.Time `json:"swing_high_ts,omitempty"`
	SwingLow    float64   `json:"swing_low,omitempty"`
	SwingLowTS  time.Time `json:"swing_low_ts,omitempty"`

	SupportLevel    float64 `json:"support_level,omitempty"`
	ResistanceLevel float64 `json:"resistance_level,omitempty"`
	RiskReward      float64 `json:"risk_reward_ratio,omitempty"`
	Confidence      float64 `json:"confidence_score,omitempty"`

	// Confluence may arrive as a JSON number or a string; non-numeric
	// values count as zero.
	Confluence Confluence `json:"confluence,omitempty"`
}

// EntryPrice returns the effective entry used for distance scoring:
// entry1 when set, otherwise the signal-time price.
func (s *Signal) EntryPrice() float64 {
	if s.Entry1 > 0 {
		return s.Entry1
	}
	return s.Price
}

// SwingTS returns the later of the swing-high and swing-low instants,
// or the zero time when the signal carries no swing data.
func (s *Signal) SwingTS() time.Time {
	if s.SwingHighTS.After(s.SwingLowTS) {
		return s.SwingHighTS
	}
	return s.SwingLowTS
}

// Confluence is an integer agreement score that tolerates string-typed
// payloads on the wire.
type Confluence int

// Int returns the numeric score; the zero value means no confluence.
func (c Confluence) Int() int { return int(c) }

func (c Confluence) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Itoa(int(c))), nil
}

func (c *Confluence) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*c = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		// Non-numeric confluence counts as zero rather than failing
		// the whole signal decode.
		*c = 0
		return nil
	}
	*c = Confluence(n)
	return nil
}

// JSON returns the JSON-encoded signal.
func (s *Signal) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}
