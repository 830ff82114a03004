// Package config defines the service configuration and its validation.
package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

// Config is the root configuration. Fields come from a TOML file on top of
// Defaults and may be overridden by TRADECLARITY_* environment variables.
type Config struct {
	Risk      RiskConfig      `toml:"risk"`
	Execution ExecutionConfig `toml:"execution"`
	Quality   QualityConfig   `toml:"quality"`
	Schedule  ScheduleConfig  `toml:"schedule"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Feed      FeedConfig      `toml:"feed"`
	Server    ServerConfig    `toml:"server"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
	LogFile   string          `toml:"log_file"`
}

// RiskConfig holds the limits read once when the orchestrator is built.
type RiskConfig struct {
	MaxDailyLoss    float64 `toml:"max_daily_loss"`
	MaxPositionSize float64 `toml:"max_position_size"`
	MaxDrawdown     float64 `toml:"max_drawdown"`
	DrawdownMode    string  `toml:"drawdown_mode"`
	StartingEquity  float64 `toml:"starting_equity"`
}

// ExecutionConfig tunes order construction and the paper broker.
type ExecutionConfig struct {
	DefaultQuantity float64  `toml:"default_quantity"`
	LockTTL         duration `toml:"lock_ttl"`
	JournalTTL      duration `toml:"journal_ttl"`
	SignalBuffer    int      `toml:"signal_buffer"`
	SlippageBps     float64  `toml:"slippage_bps"`
	FeeBps          float64  `toml:"fee_bps"`
}

// QualityConfig holds the quality gate thresholds.
type QualityConfig struct {
	MinConfidence     float64  `toml:"min_confidence"`
	MaxSignalAge      duration `toml:"max_signal_age"`
	AllowedStrategies []string `toml:"allowed_strategies"`
}

// ScheduleConfig sets when the daily P&L resets.
type ScheduleConfig struct {
	DailyResetTime string `toml:"daily_reset_time"` // HH:MM
	Timezone       string `toml:"timezone"`
}

// PostgresConfig holds the fills and audit database settings.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds the price cache, bus and lock settings.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	KeyPrefix  string   `toml:"key_prefix"`
	PriceTTL   duration `toml:"price_ttl"`
}

// S3Config holds the snapshot archive settings.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// FeedConfig configures the optional external WebSocket quote source.
type FeedConfig struct {
	QuoteURL string   `toml:"quote_url"`
	Symbols  []string `toml:"symbols"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// RateLimitConfig limits signal submissions per client IP.
type RateLimitConfig struct {
	SignalsPerWindow int      `toml:"signals_per_window"`
	Window           duration `toml:"window"`
}

// NotifyConfig holds the notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration decodes TOML strings such as "30s" or "24h".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a configuration that runs fully in memory in trade mode.
func Defaults() Config {
	return Config{
		Risk: RiskConfig{
			MaxDailyLoss:    1_000,
			MaxPositionSize: 50_000,
			MaxDrawdown:     0.2,
			DrawdownMode:    "daily_pnl_ratio",
			StartingEquity:  100_000,
		},
		Execution: ExecutionConfig{
			DefaultQuantity: 1,
			LockTTL:         duration{30 * time.Second},
			JournalTTL:      duration{24 * time.Hour},
			SignalBuffer:    256,
			SlippageBps:     5,
			FeeBps:          1,
		},
		Quality: QualityConfig{
			MinConfidence: 0.6,
			MaxSignalAge:  duration{5 * time.Minute},
		},
		Schedule: ScheduleConfig{
			DailyResetTime: "00:00",
			Timezone:       "America/New_York",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "tradeclarity",
			User:          "tradeclarity",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			KeyPrefix:  "tradeclarity",
			PriceTTL:   duration{10 * time.Minute},
		},
		S3: S3Config{
			Region: "us-east-1",
			Prefix: "tradeclarity",
			UseSSL: true,
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8080,
		},
		RateLimit: RateLimitConfig{
			SignalsPerWindow: 60,
			Window:           duration{time.Minute},
		},
		Mode:     "trade",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"trade":   true,
	"dry_run": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate reports every problem found, not just the first.
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...any) { errs = append(errs, fmt.Sprintf(format, args...)) }

	if !validModes[strings.ToLower(c.Mode)] {
		add("unknown mode %q (valid: trade, dry_run)", c.Mode)
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		add("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel)
	}

	if c.Risk.MaxDailyLoss <= 0 {
		add("risk: max_daily_loss must be > 0")
	}
	if c.Risk.MaxPositionSize <= 0 {
		add("risk: max_position_size must be > 0")
	}
	if c.Risk.MaxDrawdown <= 0 || c.Risk.MaxDrawdown > 1 {
		add("risk: max_drawdown must be in (0, 1], got %v", c.Risk.MaxDrawdown)
	}
	switch c.Risk.DrawdownMode {
	case "", "daily_pnl_ratio":
	case "peak_equity":
		if c.Risk.StartingEquity <= 0 {
			add("risk: starting_equity must be > 0 for drawdown_mode peak_equity")
		}
	default:
		add("risk: unknown drawdown_mode %q (valid: daily_pnl_ratio, peak_equity)", c.Risk.DrawdownMode)
	}

	if c.Execution.DefaultQuantity <= 0 {
		add("execution: default_quantity must be > 0")
	}
	if c.Execution.SlippageBps < 0 || c.Execution.FeeBps < 0 {
		add("execution: slippage_bps and fee_bps must be >= 0")
	}

	if c.Quality.MinConfidence < 0 || c.Quality.MinConfidence > 1 {
		add("quality: min_confidence must be in [0, 1], got %v", c.Quality.MinConfidence)
	}

	if _, err := time.Parse("15:04", c.Schedule.DailyResetTime); err != nil {
		add("schedule: daily_reset_time must be HH:MM, got %q", c.Schedule.DailyResetTime)
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		add("schedule: unknown timezone %q", c.Schedule.Timezone)
	}

	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				add("postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				add("postgres: port must be 1-65535, got %d", c.Postgres.Port)
			}
			if c.Postgres.Database == "" {
				add("postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			add("postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			add("postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			add("redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			add("redis: pool_size must be >= 1")
		}
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			add("s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			add("s3: region must not be empty")
		}
	}

	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		add("server: port must be 1-65535, got %d", c.Server.Port)
	}
	if c.RateLimit.SignalsPerWindow > 0 && c.RateLimit.Window.Duration <= 0 {
		add("rate_limit: window must be > 0 when signals_per_window is set")
	}
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		add("notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
