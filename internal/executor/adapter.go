package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/domain"
)

// ExecutionAdapter places an order and normalizes the response into a Trade.
// A broker-side failure returns (nil, nil). Only unrecoverable faults, which
// wrap domain.ErrAdapterFault, are returned as errors.
type ExecutionAdapter interface {
	Execute(ctx context.Context, req domain.OrderRequest) (*domain.Trade, error)
}

// Broker is the order-placement counterparty.
type Broker interface {
	PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error)
	Name() string
}

// BrokerAdapter implements ExecutionAdapter on top of a Broker.
type BrokerAdapter struct {
	broker Broker
	now    func() time.Time
	logger *slog.Logger
}

// NewBrokerAdapter wraps broker.
func NewBrokerAdapter(broker Broker, logger *slog.Logger) *BrokerAdapter {
	return &BrokerAdapter{
		broker: broker,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With(slog.String("component", "broker_adapter"), slog.String("broker", broker.Name())),
	}
}

// Execute implements ExecutionAdapter.
func (a *BrokerAdapter) Execute(ctx context.Context, req domain.OrderRequest) (*domain.Trade, error) {
	log := a.logger.With(
		slog.String("signal_id", req.SignalID),
		slog.String("symbol", req.Symbol),
		slog.String("side", string(req.Side)),
	)

	res, err := a.broker.PlaceOrder(ctx, req)
	if err != nil {
		if errors.Is(err, domain.ErrAdapterFault) {
			return nil, fmt.Errorf("broker_adapter: place order: %w", err)
		}
		log.WarnContext(ctx, "broker_adapter: order placement failed", slog.String("error", err.Error()))
		return nil, nil
	}

	if !res.Success || res.Status != domain.TradeStatusFilled {
		log.WarnContext(ctx, "broker_adapter: order not filled",
			slog.String("order_id", res.OrderID),
			slog.String("status", string(res.Status)),
			slog.String("message", res.Message),
		)
		return nil, nil
	}

	switch {
	case res.OrderID == "":
		return nil, fmt.Errorf("broker_adapter: fill for %s has no order id: %w", req.SignalID, domain.ErrAdapterFault)
	case !(res.FilledSize > 0), !(res.FilledPrice > 0):
		return nil, fmt.Errorf("broker_adapter: fill for %s has size %v price %v: %w",
			req.SignalID, res.FilledSize, res.FilledPrice, domain.ErrAdapterFault)
	case res.FilledSize > req.Quantity:
		return nil, fmt.Errorf("broker_adapter: fill for %s overfilled %v > %v: %w",
			req.SignalID, res.FilledSize, req.Quantity, domain.ErrAdapterFault)
	}

	trade := &domain.Trade{
		ID:        res.OrderID,
		SignalID:  req.SignalID,
		Symbol:    req.Symbol,
		Side:      req.Side,
		Quantity:  res.FilledSize,
		Price:     res.FilledPrice,
		Status:    domain.TradeStatusFilled,
		Strategy:  req.Strategy,
		Timestamp: a.now(),
	}

	log.InfoContext(ctx, "broker_adapter: order filled",
		slog.String("order_id", trade.ID),
		slog.Float64("quantity", trade.Quantity),
		slog.Float64("price", trade.Price),
		slog.Float64("fee_usd", res.FeeUSD),
	)
	return trade, nil
}
