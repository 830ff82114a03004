// Package paper implements a simulated broker that fills every order
// immediately at a reference price.
package paper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/domain"
)

const (
	defaultOrderTTL = 24 * time.Hour
	sweepInterval   = time.Minute
)

// Config holds the simulation parameters.
type Config struct {
	SlippageBps float64 // applied against the order side
	FeeBps      float64
	OrderTTL    time.Duration // how long a fill is remembered by signal ID; 0 means 24h
}

type placedOrder struct {
	res domain.OrderResult
	at  time.Time
}

// Broker fills at the order's reference price, or at the latest cached price
// when the order carries none. Orders are keyed by signal ID so a resubmitted
// order within OrderTTL returns the original result instead of filling twice.
type Broker struct {
	prices domain.PriceCache
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	orders    map[string]placedOrder
	lastSweep time.Time
	now       func() time.Time
}

// New creates a paper Broker. prices may be nil, in which case orders without
// a reference price are rejected.
func New(prices domain.PriceCache, cfg Config, logger *slog.Logger) *Broker {
	if cfg.OrderTTL <= 0 {
		cfg.OrderTTL = defaultOrderTTL
	}
	return &Broker{
		prices: prices,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "paper_broker")),
		orders: make(map[string]placedOrder),
		now:    time.Now,
	}
}

// Name returns the broker identifier.
func (b *Broker) Name() string { return "paper" }

// PlaceOrder simulates an immediate fill.
func (b *Broker) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	b.mu.Lock()
	if prev, ok := b.placedLocked(req.SignalID); ok {
		b.mu.Unlock()
		b.logger.DebugContext(ctx, "paper: duplicate client order id", slog.String("signal_id", req.SignalID))
		return prev, nil
	}
	b.mu.Unlock()

	if !req.Side.Valid() || !(req.Quantity > 0) {
		return rejected(fmt.Sprintf("invalid order: side %q quantity %v", req.Side, req.Quantity)), nil
	}

	ref, err := b.referencePrice(ctx, req)
	if err != nil {
		if errors.Is(err, domain.ErrNoPrice) {
			return rejected(err.Error()), nil
		}
		return domain.OrderResult{}, err
	}

	price := decimal.NewFromFloat(ref)
	slip := decimal.NewFromFloat(b.cfg.SlippageBps).Div(decimal.NewFromInt(10_000))
	if req.Side == domain.OrderSideBuy {
		price = price.Mul(decimal.NewFromInt(1).Add(slip))
	} else {
		price = price.Mul(decimal.NewFromInt(1).Sub(slip))
	}
	price = price.Round(6)
	qty := decimal.NewFromFloat(req.Quantity)
	fee := price.Mul(qty).Mul(decimal.NewFromFloat(b.cfg.FeeBps)).Div(decimal.NewFromInt(10_000)).Round(6)

	res := domain.OrderResult{
		Success:     true,
		OrderID:     "PAPER-" + uuid.New().String(),
		Status:      domain.TradeStatusFilled,
		Message:     "filled",
		FilledPrice: price.InexactFloat64(),
		FilledSize:  req.Quantity,
		FeeUSD:      fee.InexactFloat64(),
	}

	b.mu.Lock()
	if prev, ok := b.placedLocked(req.SignalID); ok {
		b.mu.Unlock()
		return prev, nil
	}
	now := b.now()
	if req.SignalID != "" {
		b.orders[req.SignalID] = placedOrder{res: res, at: now}
	}
	if now.Sub(b.lastSweep) >= sweepInterval {
		b.sweepLocked(now)
	}
	b.mu.Unlock()

	b.logger.InfoContext(ctx, "paper: order filled",
		slog.String("order_id", res.OrderID),
		slog.String("signal_id", req.SignalID),
		slog.String("symbol", req.Symbol),
		slog.String("side", string(req.Side)),
		slog.Float64("quantity", res.FilledSize),
		slog.Float64("price", res.FilledPrice),
	)
	return res, nil
}

// Cleanup forgets fills older than OrderTTL and returns how many were dropped.
// PlaceOrder also sweeps at most once a minute.
func (b *Broker) Cleanup() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sweepLocked(b.now())
}

// Len returns the number of remembered fills, expired or not.
func (b *Broker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.orders)
}

func (b *Broker) placedLocked(signalID string) (domain.OrderResult, bool) {
	if signalID == "" {
		return domain.OrderResult{}, false
	}
	o, ok := b.orders[signalID]
	if !ok || b.now().Sub(o.at) >= b.cfg.OrderTTL {
		return domain.OrderResult{}, false
	}
	return o.res, true
}

func (b *Broker) sweepLocked(now time.Time) int {
	b.lastSweep = now
	n := 0
	for id, o := range b.orders {
		if now.Sub(o.at) >= b.cfg.OrderTTL {
			delete(b.orders, id)
			n++
		}
	}
	return n
}

func (b *Broker) referencePrice(ctx context.Context, req domain.OrderRequest) (float64, error) {
	if req.Price > 0 {
		return req.Price, nil
	}
	if b.prices == nil {
		return 0, fmt.Errorf("paper: %s: %w", req.Symbol, domain.ErrNoPrice)
	}
	p, _, err := b.prices.GetPrice(ctx, req.Symbol)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && p <= 0) {
		return 0, fmt.Errorf("paper: %s: %w", req.Symbol, domain.ErrNoPrice)
	}
	if err != nil {
		return 0, fmt.Errorf("paper: get price %s: %w", req.Symbol, err)
	}
	return p, nil
}

func rejected(msg string) domain.OrderResult {
	return domain.OrderResult{
		Success: false,
		Status:  domain.TradeStatusRejected,
		Message: msg,
	}
}
