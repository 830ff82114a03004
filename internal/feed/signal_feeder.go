package feed

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/domain"
)

// SignalFeeder subscribes to the signals channel and hands decoded signals
// to a buffered channel for the orchestrator.
type SignalFeeder struct {
	bus    domain.SignalBus
	out    chan domain.TradeSignal
	logger *slog.Logger
}

// NewSignalFeeder creates a SignalFeeder with the given buffer size.
func NewSignalFeeder(bus domain.SignalBus, buffer int, logger *slog.Logger) *SignalFeeder {
	if buffer <= 0 {
		buffer = 256
	}
	return &SignalFeeder{
		bus:    bus,
		out:    make(chan domain.TradeSignal, buffer),
		logger: logger.With(slog.String("component", "signal_feeder")),
	}
}

// Signals returns the channel the orchestrator reads from. It is never
// closed; consumers stop on their own context.
func (f *SignalFeeder) Signals() <-chan domain.TradeSignal { return f.out }

// Run consumes the bus until ctx is cancelled. A full buffer applies
// backpressure rather than dropping signals.
func (f *SignalFeeder) Run(ctx context.Context) error {
	ch, err := f.bus.Subscribe(ctx, domain.ChannelSignals)
	if err != nil {
		return err
	}
	f.logger.Info("signal feeder started")
	defer f.logger.Info("signal feeder stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-ch:
			if !ok {
				return nil
			}
			var sig domain.TradeSignal
			if err := json.Unmarshal(data, &sig); err != nil {
				f.logger.WarnContext(ctx, "signal feeder: malformed signal",
					slog.String("error", err.Error()),
					slog.Int("payload_len", len(data)),
				)
				continue
			}
			select {
			case f.out <- sig:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
