package domain

import "time"

// TradeStatus tracks the broker-side state of an execution.
type TradeStatus string

const (
	TradeStatusPending   TradeStatus = "pending"
	TradeStatusFilled    TradeStatus = "filled"
	TradeStatusCancelled TradeStatus = "cancelled"
	TradeStatusRejected  TradeStatus = "rejected"
)

// Trade is the record of a confirmed execution. It is created by the
// execution adapter from a broker response and never mutated afterwards.
type Trade struct {
	ID        string      `json:"id"` // broker-assigned
	SignalID  string      `json:"signal_id"`
	Symbol    string      `json:"symbol"`
	Side      OrderSide   `json:"side"`
	Quantity  float64     `json:"quantity"`
	Price     float64     `json:"price"`
	Status    TradeStatus `json:"status"`
	Strategy  string      `json:"strategy"`
	Timestamp time.Time   `json:"timestamp"`
}

// Notional returns quantity * price.
func (t Trade) Notional() float64 {
	return t.Quantity * t.Price
}
