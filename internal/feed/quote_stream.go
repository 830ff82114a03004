package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/domain"
)

const (
	quoteReadTimeout = 60 * time.Second
	maxBackoff       = 30 * time.Second
)

// QuoteStream connects to an external WebSocket quote source, subscribes to
// the configured symbols and republishes every valid quote on the prices
// channel. It reconnects with exponential backoff.
type QuoteStream struct {
	url     string
	symbols []string
	bus     domain.SignalBus
	dialer  *websocket.Dialer
	now     func() time.Time
	logger  *slog.Logger
}

// NewQuoteStream creates a QuoteStream.
func NewQuoteStream(url string, symbols []string, bus domain.SignalBus, logger *slog.Logger) *QuoteStream {
	return &QuoteStream{
		url:     url,
		symbols: symbols,
		bus:     bus,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger.With(slog.String("component", "quote_stream")),
	}
}

// Run connects and reads until ctx is cancelled.
func (s *QuoteStream) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		connected, err := s.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			backoff = time.Second
		}
		s.logger.Warn("quote stream disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("backoff", backoff),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// session runs one connection. connected reports whether the handshake
// succeeded.
func (s *QuoteStream) session(ctx context.Context) (connected bool, err error) {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if len(s.symbols) > 0 {
		sub := map[string]any{"action": "subscribe", "symbols": s.symbols}
		if err := conn.WriteJSON(sub); err != nil {
			return true, fmt.Errorf("subscribe: %w", err)
		}
	}
	s.logger.InfoContext(ctx, "quote stream connected", slog.Int("symbols", len(s.symbols)))

	for {
		conn.SetReadDeadline(time.Now().Add(quoteReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("read: %w", err)
		}
		q, err := decodeQuote(data, s.now())
		if err != nil {
			s.logger.DebugContext(ctx, "quote stream: skipped message", slog.String("error", err.Error()))
			continue
		}
		payload, _ := json.Marshal(q)
		if err := s.bus.Publish(ctx, domain.ChannelPrices, payload); err != nil {
			s.logger.WarnContext(ctx, "quote stream: publish failed",
				slog.String("symbol", q.Symbol),
				slog.String("error", err.Error()),
			)
		}
	}
}
