package domain

import "time"

// PositionSide is the explicit direction of a ledger entry.
type PositionSide string

const (
	PositionLong  PositionSide = "long"
	PositionShort PositionSide = "short"
)

// SideFor maps the side of a fill to the side of the position it opens.
func SideFor(side OrderSide) PositionSide {
	if side == OrderSideSell {
		return PositionShort
	}
	return PositionLong
}

// ClosingSide returns the order side that reduces a position of this side.
func (s PositionSide) ClosingSide() OrderSide {
	if s == PositionShort {
		return OrderSideBuy
	}
	return OrderSideSell
}

// Position is the ledger entry for one symbol. Quantity is always a
// non-negative magnitude; Side carries the direction.
type Position struct {
	Symbol        string       `json:"symbol"`
	Side          PositionSide `json:"side"`
	Quantity      float64      `json:"quantity"`
	AvgPrice      float64      `json:"avg_price"`
	CurrentPrice  float64      `json:"current_price"`
	UnrealizedPnL float64      `json:"unrealized_pnl"`
	RealizedPnL   float64      `json:"realized_pnl"`
	Strategy      string       `json:"strategy"`
	EntryTime     time.Time    `json:"entry_time"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// MarketValue returns quantity * current price.
func (p Position) MarketValue() float64 {
	return p.Quantity * p.CurrentPrice
}
