package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SignalDirection is the instruction carried by a trade signal.
type SignalDirection string

const (
	DirectionLong  SignalDirection = "LONG"
	DirectionShort SignalDirection = "SHORT"
	DirectionClose SignalDirection = "CLOSE"
)

// Valid reports whether d is one of the known directions.
func (d SignalDirection) Valid() bool {
	switch d {
	case DirectionLong, DirectionShort, DirectionClose:
		return true
	}
	return false
}

// ParseDirection normalizes a direction string ("long", " Short ").
func ParseDirection(s string) SignalDirection {
	return SignalDirection(strings.ToUpper(strings.TrimSpace(s)))
}

// TradeSignal is a candidate trading instruction produced by a strategy.
// It is treated as an immutable value and consumed once by the orchestrator.
type TradeSignal struct {
	ID         string          `json:"id"` // idempotency key
	Symbol     string          `json:"symbol"`
	Direction  SignalDirection `json:"direction"`
	Confidence float64         `json:"confidence"`
	Strategy   string          `json:"strategy"`
	Price      *float64        `json:"price,omitempty"`
	Quantity   *float64        `json:"quantity,omitempty"`
	StopLoss   *float64        `json:"stop_loss,omitempty"`
	TakeProfit *float64        `json:"take_profit,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Normalize fills the intake defaults: a fresh UUID when the producer did not
// supply an ID, an upper-cased symbol and direction, and a creation time.
func (s TradeSignal) Normalize(now time.Time) TradeSignal {
	if strings.TrimSpace(s.ID) == "" {
		s.ID = uuid.New().String()
	}
	s.Symbol = strings.ToUpper(strings.TrimSpace(s.Symbol))
	s.Direction = ParseDirection(string(s.Direction))
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now.UTC()
	}
	return s
}

// PriceOr returns the signal price or def when none was given.
func (s TradeSignal) PriceOr(def float64) float64 {
	if s.Price == nil {
		return def
	}
	return *s.Price
}

// QuantityOr returns the signal quantity or def when none was given.
func (s TradeSignal) QuantityOr(def float64) float64 {
	if s.Quantity == nil {
		return def
	}
	return *s.Quantity
}

// Float is a small helper for building signals with optional fields.
func Float(v float64) *float64 {
	return &v
}
