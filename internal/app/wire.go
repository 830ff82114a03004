package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/blob/s3"
	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/cache/memory"
	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/cache/redis"
	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/config"
	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/domain"
	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/notify"
	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/server/handler"
	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/store/postgres"
)

// Dependencies bundles the infrastructure the modes run on. Without Redis the
// cache, bus and rate limiter are in-process and LockManager is nil.
type Dependencies struct {
	PriceCache  domain.PriceCache
	SignalBus   domain.SignalBus
	LockManager domain.LockManager
	RateLimiter domain.RateLimiter

	TradeStore domain.TradeStore // nil without Postgres
	AuditStore domain.AuditStore // nil without Postgres

	Archiver domain.SnapshotArchiver // nil without S3

	Notifier *notify.Notifier

	// Health lists the external dependencies reported by /api/health.
	Health map[string]handler.Pinger
}

// Wire builds Dependencies from cfg. The returned cleanup releases every
// connection in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{Health: make(map[string]handler.Pinger)}

	if cfg.Postgres.Enabled {
		pg, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pg.Close)

		if cfg.Postgres.RunMigrations {
			if err := pg.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}
		deps.TradeStore = postgres.NewTradeStore(pg.Pool())
		deps.AuditStore = postgres.NewAuditStore(pg.Pool())
		deps.Health["postgres"] = pg
		logger.Info("wire: postgres connected")
	}

	if cfg.Redis.Enabled {
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = rc.Close() })

		deps.PriceCache = redis.NewPriceCache(rc, cfg.Redis.PriceTTL.Duration)
		deps.SignalBus = redis.NewSignalBus(rc)
		deps.LockManager = redis.NewLockManager(rc)
		deps.RateLimiter = redis.NewRateLimiter(rc)
		deps.Health["redis"] = rc
		logger.Info("wire: redis connected", slog.String("addr", cfg.Redis.Addr))
	} else {
		deps.PriceCache = memory.NewPriceCache()
		deps.SignalBus = memory.NewSignalBus()
		deps.RateLimiter = memory.NewRateLimiter()
		logger.Info("wire: redis disabled, using in-process cache and bus")
	}

	if cfg.S3.Enabled {
		sc, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.Archiver = s3blob.NewSnapshotArchiver(s3blob.NewWriter(sc), cfg.S3.Prefix)
		deps.Health["s3"] = sc
		logger.Info("wire: s3 snapshot archive enabled", slog.String("bucket", sc.Bucket()))
	}

	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
