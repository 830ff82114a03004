package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/config"
	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/domain"
	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/executor"
	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/feed"
	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/ledger"
	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/platform/paper"
	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/server"
	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/server/handler"
	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/server/ws"
	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/service"
)

// BuildOrchestrator assembles the ledger, quality gate, risk service and
// paper broker into an orchestrator with every side channel attached.
func BuildOrchestrator(cfg *config.Config, deps *Dependencies, logger *slog.Logger) *executor.Orchestrator {
	risk := service.NewRiskService(domain.RiskLimits{
		MaxDailyLoss:    cfg.Risk.MaxDailyLoss,
		MaxPositionSize: cfg.Risk.MaxPositionSize,
		MaxDrawdown:     cfg.Risk.MaxDrawdown,
		DrawdownMode:    domain.DrawdownMode(cfg.Risk.DrawdownMode),
		StartingEquity:  cfg.Risk.StartingEquity,
	}, logger)

	gate := service.NewConfidenceGate(service.QualityConfig{
		MinConfidence:     cfg.Quality.MinConfidence,
		MaxSignalAge:      cfg.Quality.MaxSignalAge.Duration,
		AllowedStrategies: cfg.Quality.AllowedStrategies,
	})

	broker := paper.New(deps.PriceCache, paper.Config{
		SlippageBps: cfg.Execution.SlippageBps,
		FeeBps:      cfg.Execution.FeeBps,
		OrderTTL:    cfg.Execution.JournalTTL.Duration,
	}, logger)

	orch := executor.NewOrchestrator(
		ledger.New(),
		gate,
		risk,
		executor.NewBrokerAdapter(broker, logger),
		deps.LockManager,
		executor.Config{
			DefaultQuantity: cfg.Execution.DefaultQuantity,
			LockTTL:         cfg.Execution.LockTTL.Duration,
			JournalTTL:      cfg.Execution.JournalTTL.Duration,
		},
		logger,
	)
	orch.SetEventBus(deps.SignalBus)
	if deps.TradeStore != nil {
		orch.SetTradeStore(deps.TradeStore)
	}
	if deps.AuditStore != nil {
		orch.SetAuditStore(deps.AuditStore)
	}
	if deps.Notifier != nil && deps.Notifier.Enabled() {
		orch.SetNotifier(deps.Notifier)
	}
	return orch
}

// runPipeline runs signal intake, price marking, the daily reset and the API
// under one errgroup. In dry-run mode signals are only evaluated.
func (a *App) runPipeline(ctx context.Context, deps *Dependencies, dryRun bool) error {
	log := a.logger.With(slog.String("component", "app"))
	g, ctx := errgroup.WithContext(ctx)

	orch := BuildOrchestrator(a.cfg, deps, a.logger)
	orch.SetDryRun(dryRun)

	signals := feed.NewSignalFeeder(deps.SignalBus, a.cfg.Execution.SignalBuffer, a.logger)
	orch.SetSignalSource(signals.Signals())
	g.Go(func() error { return ignoreCancel(signals.Run(ctx)) })
	g.Go(func() error { return ignoreCancel(orch.Run(ctx)) })

	prices := feed.NewPriceFeeder(deps.SignalBus, deps.PriceCache, orch, a.logger)
	g.Go(func() error { return ignoreCancel(prices.Run(ctx)) })

	if a.cfg.Feed.QuoteURL != "" {
		quotes := feed.NewQuoteStream(a.cfg.Feed.QuoteURL, a.cfg.Feed.Symbols, deps.SignalBus, a.logger)
		g.Go(func() error { return ignoreCancel(quotes.Run(ctx)) })
	}

	reset, err := service.NewDailyReset(orch, deps.Archiver,
		a.cfg.Schedule.DailyResetTime, a.cfg.Schedule.Timezone, a.logger)
	if err != nil {
		return err
	}
	g.Go(func() error { return ignoreCancel(reset.Run(ctx)) })

	if a.cfg.Server.Enabled {
		hub := ws.NewHub(deps.SignalBus, a.cfg.Server.CORSOrigins, func() map[string]any {
			return map[string]any{
				"mode":      a.cfg.Mode,
				"daily_pnl": orch.DailyPnL(),
				"risk":      orch.RiskMetrics(),
			}
		}, a.logger)
		g.Go(func() error { return ignoreCancel(hub.Run(ctx)) })

		srv := server.NewServer(server.Config{
			Port:             a.cfg.Server.Port,
			CORSOrigins:      a.cfg.Server.CORSOrigins,
			APIKey:           a.cfg.Server.APIKey,
			SignalRateLimit:  a.cfg.RateLimit.SignalsPerWindow,
			SignalRateWindow: a.cfg.RateLimit.Window.Duration,
		}, server.Handlers{
			Health:    handler.NewHealthHandler(a.cfg.Mode, deps.Health, a.logger),
			Positions: handler.NewPositionHandler(orch, orch.Ledger(), deps.PriceCache, deps.TradeStore, a.logger),
			Risk:      handler.NewRiskHandler(orch, a.logger),
			Signals:   handler.NewSignalHandler(orch, a.logger),
		}, hub, deps.RateLimiter, a.logger)

		g.Go(srv.Start)
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	log.InfoContext(ctx, "pipeline running",
		slog.Bool("dry_run", dryRun),
		slog.Bool("server", a.cfg.Server.Enabled),
		slog.Bool("archive", deps.Archiver != nil),
	)
	return g.Wait()
}

// ignoreCancel treats a context cancellation as a clean stop.
func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
