package domain

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Valid reports whether s is buy or sell.
func (s OrderSide) Valid() bool {
	return s == OrderSideBuy || s == OrderSideSell
}

// Opposite returns the other side.
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// OrderRequest is what the orchestrator hands to the execution adapter.
// SignalID doubles as the client order id so a retried submission can be
// recognised by the broker and by the ledger journal.
type OrderRequest struct {
	SignalID   string
	Symbol     string
	Side       OrderSide
	Quantity   float64
	Price      float64 // reference price, 0 when unknown
	StopLoss   *float64
	TakeProfit *float64
	Strategy   string
}

// OrderResult wraps the broker response after order submission.
type OrderResult struct {
	Success     bool
	OrderID     string
	Status      TradeStatus
	Message     string
	ShouldRetry bool
	FilledPrice float64
	FilledSize  float64
	FeeUSD      float64
}
