package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/domain"
	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/server/handler"
	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/server/middleware"
	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // empty disables authentication

	// Signal intake rate limit per client IP. Zero disables it.
	SignalRateLimit  int
	SignalRateWindow time.Duration
}

// Handlers aggregates the HTTP handlers registered by the server.
type Handlers struct {
	Health    *handler.HealthHandler
	Positions *handler.PositionHandler
	Risk      *handler.RiskHandler
	Signals   *handler.SignalHandler
}

// Server is the HTTP + WebSocket API in front of the execution pipeline.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers all routes and wraps them in the middleware chain.
// limiter and wsHub may be nil.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/positions", handlers.Positions.ListPositions)
	mux.HandleFunc("GET /api/positions/{symbol}", handlers.Positions.GetPosition)
	mux.HandleFunc("DELETE /api/positions/{symbol}", handlers.Positions.ClosePosition)
	mux.HandleFunc("PUT /api/prices/{symbol}", handlers.Positions.UpdatePrice)
	mux.HandleFunc("GET /api/trades/{symbol}", handlers.Positions.ListTrades)

	mux.HandleFunc("GET /api/risk", handlers.Risk.GetRisk)
	mux.HandleFunc("GET /api/pnl", handlers.Risk.GetPnL)
	mux.HandleFunc("POST /api/pnl/reset", handlers.Risk.ResetPnL)

	var submit http.Handler = http.HandlerFunc(handlers.Signals.Submit)
	if limiter != nil && cfg.SignalRateLimit > 0 {
		submit = middleware.RateLimit(limiter, cfg.SignalRateLimit, cfg.SignalRateWindow, logger)(submit)
	}
	mux.Handle("POST /api/signals", submit)
	mux.HandleFunc("POST /api/signals/evaluate", handlers.Signals.Evaluate)

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey, []string{"/api/health", "/metrics"}, logger)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           h,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: logger,
	}
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start listens until the server fails or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown waits for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
