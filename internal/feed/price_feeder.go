package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/domain"
)

// PriceMarker marks open positions to a new price.
type PriceMarker interface {
	UpdatePrice(ctx context.Context, symbol string, price float64) (domain.Position, bool)
}

// PriceFeeder subscribes to the prices channel, stores each quote in the
// price cache and marks the matching position.
type PriceFeeder struct {
	bus    domain.SignalBus
	cache  domain.PriceCache
	marker PriceMarker
	now    func() time.Time
	logger *slog.Logger
}

// NewPriceFeeder creates a PriceFeeder.
func NewPriceFeeder(bus domain.SignalBus, cache domain.PriceCache, marker PriceMarker, logger *slog.Logger) *PriceFeeder {
	return &PriceFeeder{
		bus:    bus,
		cache:  cache,
		marker: marker,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With(slog.String("component", "price_feeder")),
	}
}

// Run consumes quotes until ctx is cancelled.
func (f *PriceFeeder) Run(ctx context.Context) error {
	ch, err := f.bus.Subscribe(ctx, domain.ChannelPrices)
	if err != nil {
		return err
	}
	f.logger.Info("price feeder started")
	defer f.logger.Info("price feeder stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-ch:
			if !ok {
				return nil
			}
			f.handle(ctx, data)
		}
	}
}

func (f *PriceFeeder) handle(ctx context.Context, data []byte) {
	q, err := decodeQuote(data, f.now())
	if err != nil {
		f.logger.DebugContext(ctx, "price feeder: dropped message",
			slog.String("error", err.Error()),
			slog.Int("payload_len", len(data)),
		)
		return
	}

	if err := f.cache.SetPrice(ctx, q.Symbol, q.Price, q.Timestamp); err != nil {
		f.logger.WarnContext(ctx, "price feeder: cache write failed",
			slog.String("symbol", q.Symbol),
			slog.String("error", err.Error()),
		)
	}
	f.marker.UpdatePrice(ctx, q.Symbol, q.Price)
}
