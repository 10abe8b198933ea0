package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies PUMPBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known PUMPBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── PumpPortal ──
	setStr(&cfg.PumpPortal.DataURL, "PUMPBOT_PUMPPORTAL_DATA_URL")
	setStr(&cfg.PumpPortal.TradeURL, "PUMPBOT_PUMPPORTAL_TRADE_URL")
	setStr(&cfg.PumpPortal.ApiKey, "PUMPBOT_PUMPPORTAL_API_KEY")
	setStr(&cfg.PumpPortal.EncryptedKeyPath, "PUMPBOT_PUMPPORTAL_ENCRYPTED_KEY_PATH")
	setStr(&cfg.PumpPortal.KeyPassword, "PUMPBOT_PUMPPORTAL_KEY_PASSWORD")
	setFloat64(&cfg.PumpPortal.SlippagePct, "PUMPBOT_PUMPPORTAL_SLIPPAGE_PCT")
	setFloat64(&cfg.PumpPortal.PriorityFeeSol, "PUMPBOT_PUMPPORTAL_PRIORITY_FEE_SOL")
	setStr(&cfg.PumpPortal.Pool, "PUMPBOT_PUMPPORTAL_POOL")
	setDuration(&cfg.PumpPortal.ReconnectDelay, "PUMPBOT_PUMPPORTAL_RECONNECT_DELAY")

	// ── Twitter ──
	setStr(&cfg.Twitter.RapidAPIHost, "PUMPBOT_TWITTER_RAPIDAPI_HOST")
	setStr(&cfg.Twitter.RapidAPIKey, "PUMPBOT_TWITTER_RAPIDAPI_KEY")
	setStr(&cfg.Twitter.Username, "PUMPBOT_TWITTER_USERNAME")
	setDuration(&cfg.Twitter.PollInterval, "PUMPBOT_TWITTER_POLL_INTERVAL")
	setDuration(&cfg.Twitter.MaxTweetAge, "PUMPBOT_TWITTER_MAX_TWEET_AGE")

	// ── OpenAI ──
	setStr(&cfg.OpenAI.ApiKey, "PUMPBOT_OPENAI_API_KEY")
	setStr(&cfg.OpenAI.ApiKey, "OPENAI_API_KEY") // compatibility alias
	setStr(&cfg.OpenAI.Model, "PUMPBOT_OPENAI_MODEL")

	// ── Attest ──
	setStr(&cfg.Attest.Endpoint, "PUMPBOT_ATTEST_ENDPOINT")
	setStr(&cfg.Attest.AppID, "PUMPBOT_ATTEST_APP_ID")
	setStr(&cfg.Attest.AppSecret, "PUMPBOT_ATTEST_APP_SECRET")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "PUMPBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "PUMPBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "PUMPBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "PUMPBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "PUMPBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "PUMPBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "PUMPBOT_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "PUMPBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "PUMPBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "PUMPBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "PUMPBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PUMPBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PUMPBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "PUMPBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "PUMPBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "PUMPBOT_REDIS_TLS_ENABLED")
	setInt(&cfg.Redis.CacheTTLMinutes, "PUMPBOT_REDIS_CACHE_TTL_MINUTES")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "PUMPBOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "PUMPBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "PUMPBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "PUMPBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "PUMPBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "PUMPBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "PUMPBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "PUMPBOT_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.Prefix, "PUMPBOT_S3_PREFIX")
	setDuration(&cfg.S3.FlushInterval, "PUMPBOT_S3_FLUSH_INTERVAL")
	setInt(&cfg.S3.MaxBatchBytes, "PUMPBOT_S3_MAX_BATCH_BYTES")

	// ── Strategy ──
	setFloat64(&cfg.Strategy.BuySizeSol, "PUMPBOT_STRATEGY_BUY_SIZE_SOL")
	setFloat64(&cfg.Strategy.HardStopPct, "PUMPBOT_STRATEGY_HARD_STOP_PCT")
	setFloat64(&cfg.Strategy.TrailingPct, "PUMPBOT_STRATEGY_TRAILING_PCT")
	setFloat64(&cfg.Strategy.TrailArmPct, "PUMPBOT_STRATEGY_TRAIL_ARM_PCT")
	setDuration(&cfg.Strategy.MaxHold, "PUMPBOT_STRATEGY_MAX_HOLD")
	setBool(&cfg.Strategy.KeepOpenOnFailedExit, "PUMPBOT_STRATEGY_KEEP_OPEN_ON_FAILED_EXIT")
	setStringSlice(&cfg.Strategy.WatchMints, "PUMPBOT_STRATEGY_WATCH_MINTS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "PUMPBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "PUMPBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "PUMPBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "PUMPBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "PUMPBOT_MODE")
	setStr(&cfg.LogLevel, "PUMPBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			*dst = out
		}
	}
}
