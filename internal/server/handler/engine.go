package handler

import (
	"context"

	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/domain"
)

// Engine is the part of the orchestrator exposed over HTTP.
type Engine interface {
	Process(ctx context.Context, sig domain.TradeSignal) (domain.SignalOutcome, error)
	Evaluate(ctx context.Context, sig domain.TradeSignal) domain.RiskCheckResult
	DailyPnL() float64
	ResetDailyPnL()
	RiskMetrics() domain.RiskMetrics
	UpdatePrice(ctx context.Context, symbol string, price float64) (domain.Position, bool)
	ClosePosition(ctx context.Context, symbol string) (domain.Position, error)
}

// PositionReader is the read side of the position ledger.
type PositionReader interface {
	OpenPositions() []domain.Position
	Position(symbol string) (domain.Position, bool)
}
