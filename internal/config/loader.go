package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const envPrefix = "TRADECLARITY_"

// Load merges the TOML file at path over Defaults and applies environment
// overrides. A missing file is not an error, so the service can be run from
// environment variables alone. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	_ = godotenv.Load()
	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setFloat64(&cfg.Risk.MaxDailyLoss, "RISK_MAX_DAILY_LOSS")
	setFloat64(&cfg.Risk.MaxPositionSize, "RISK_MAX_POSITION_SIZE")
	setFloat64(&cfg.Risk.MaxDrawdown, "RISK_MAX_DRAWDOWN")
	setStr(&cfg.Risk.DrawdownMode, "RISK_DRAWDOWN_MODE")
	setFloat64(&cfg.Risk.StartingEquity, "RISK_STARTING_EQUITY")

	setFloat64(&cfg.Execution.DefaultQuantity, "EXECUTION_DEFAULT_QUANTITY")
	setDuration(&cfg.Execution.LockTTL, "EXECUTION_LOCK_TTL")
	setDuration(&cfg.Execution.JournalTTL, "EXECUTION_JOURNAL_TTL")
	setInt(&cfg.Execution.SignalBuffer, "EXECUTION_SIGNAL_BUFFER")
	setFloat64(&cfg.Execution.SlippageBps, "EXECUTION_SLIPPAGE_BPS")
	setFloat64(&cfg.Execution.FeeBps, "EXECUTION_FEE_BPS")

	setFloat64(&cfg.Quality.MinConfidence, "QUALITY_MIN_CONFIDENCE")
	setDuration(&cfg.Quality.MaxSignalAge, "QUALITY_MAX_SIGNAL_AGE")
	setStringSlice(&cfg.Quality.AllowedStrategies, "QUALITY_ALLOWED_STRATEGIES")

	setStr(&cfg.Schedule.DailyResetTime, "SCHEDULE_DAILY_RESET_TIME")
	setStr(&cfg.Schedule.Timezone, "SCHEDULE_TIMEZONE")

	setBool(&cfg.Postgres.Enabled, "POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL")
	setStr(&cfg.Postgres.Host, "POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "POSTGRES_RUN_MIGRATIONS")

	setBool(&cfg.Redis.Enabled, "REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "REDIS_ADDR")
	setStr(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "REDIS_KEY_PREFIX")
	setDuration(&cfg.Redis.PriceTTL, "REDIS_PRICE_TTL")

	setBool(&cfg.S3.Enabled, "S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "S3_ENDPOINT")
	setStr(&cfg.S3.Region, "S3_REGION")
	setStr(&cfg.S3.Bucket, "S3_BUCKET")
	setStr(&cfg.S3.Prefix, "S3_PREFIX")
	setStr(&cfg.S3.AccessKey, "S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "S3_FORCE_PATH_STYLE")

	setStr(&cfg.Feed.QuoteURL, "FEED_QUOTE_URL")
	setStringSlice(&cfg.Feed.Symbols, "FEED_SYMBOLS")

	setBool(&cfg.Server.Enabled, "SERVER_ENABLED")
	setInt(&cfg.Server.Port, "SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "SERVER_API_KEY")

	setInt(&cfg.RateLimit.SignalsPerWindow, "RATE_LIMIT_SIGNALS_PER_WINDOW")
	setDuration(&cfg.RateLimit.Window, "RATE_LIMIT_WINDOW")

	setStr(&cfg.Notify.TelegramToken, "NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "NOTIFY_EVENTS")

	setStr(&cfg.Mode, "MODE")
	setStr(&cfg.LogLevel, "LOG_LEVEL")
	setStr(&cfg.LogFile, "LOG_FILE")
}

// Each setter changes dst only when TRADECLARITY_<key> is set and parses.

func lookup(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(envPrefix + key))
	return v, v != ""
}

func setStr(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := lookup(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v, ok := lookup(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := lookup(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v, ok := lookup(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	v, ok := lookup(key)
	if !ok {
		return
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) > 0 {
		*dst = out
	}
}
