// Package config defines the top-level configuration for the pump.fun sniper
// bot and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by PUMPBOT_* environment variables.
type Config struct {
	PumpPortal PumpPortalConfig `toml:"pumpportal"`
	Twitter    TwitterConfig    `toml:"twitter"`
	OpenAI     OpenAIConfig     `toml:"openai"`
	Attest     AttestConfig     `toml:"attest"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Strategy   StrategyConfig   `toml:"strategy"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// PumpPortalConfig holds PumpPortal endpoints, trade credentials, and the
// data-feed reconnect policy.
type PumpPortalConfig struct {
	DataURL  string `toml:"data_url"`
	TradeURL string `toml:"trade_url"`

	// ApiKey is the Lightning wallet API key. Alternatively point
	// encrypted_key_path at a file produced by `pumpbot keytool` and supply
	// key_password.
	ApiKey           string `toml:"api_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`

	SlippagePct    float64  `toml:"slippage_pct"`
	PriorityFeeSol float64  `toml:"priority_fee_sol"`
	Pool           string   `toml:"pool"`
	ReconnectDelay duration `toml:"reconnect_delay"`
}

// TwitterConfig holds the RapidAPI twttrapi credentials and polling policy.
type TwitterConfig struct {
	RapidAPIHost string   `toml:"rapidapi_host"`
	RapidAPIKey  string   `toml:"rapidapi_key"`
	Username     string   `toml:"username"`
	PollInterval duration `toml:"poll_interval"`
	MaxTweetAge  duration `toml:"max_tweet_age"`
}

// OpenAIConfig holds the LLM token-resolver credentials.
type OpenAIConfig struct {
	ApiKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

// AttestConfig holds the zkTLS attestor endpoint and credentials. Attestation
// is optional; leave endpoint empty to disable.
type AttestConfig struct {
	Endpoint  string `toml:"endpoint"`
	AppID     string `toml:"app_id"`
	AppSecret string `toml:"app_secret"`
}

// PostgresConfig holds PostgreSQL connection parameters for the trade log.
type PostgresConfig struct {
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

// RedisConfig holds Redis connection parameters for the live price cache.
type RedisConfig struct {
	Addr            string `toml:"addr"`
	Password        string `toml:"password"`
	DB              int    `toml:"db"`
	PoolSize        int    `toml:"pool_size"`
	MaxRetries      int    `toml:"max_retries"`
	TLSEnabled      bool   `toml:"tls_enabled"`
	CacheTTLMinutes int    `toml:"cache_ttl_minutes"`
}

// S3Config holds S3-compatible object storage parameters for the raw-frame
// archiver.
type S3Config struct {
	Enabled        bool     `toml:"enabled"`
	Endpoint       string   `toml:"endpoint"`
	Region         string   `toml:"region"`
	Bucket         string   `toml:"bucket"`
	AccessKey      string   `toml:"access_key"`
	SecretKey      string   `toml:"secret_key"`
	UseSSL         bool     `toml:"use_ssl"`
	ForcePathStyle bool     `toml:"force_path_style"`
	Prefix         string   `toml:"prefix"`
	FlushInterval  duration `toml:"flush_interval"`
	MaxBatchBytes  int      `toml:"max_batch_bytes"`
}

// StrategyConfig holds the exit-rule parameters applied to every new position.
type StrategyConfig struct {
	// BuySizeSol is the SOL amount spent on each entry buy.
	BuySizeSol float64 `toml:"buy_size_sol"`

	// HardStopPct is the loss fraction below entry that triggers a full exit.
	// Negative, e.g. -0.30.
	HardStopPct float64 `toml:"hard_stop_pct"`

	// TrailingPct is the drop fraction from the running high that triggers a
	// full exit while the trailing stop is armed.
	TrailingPct float64 `toml:"trailing_pct"`

	// TrailArmPct is the minimum PnL at which the trailing stop is active.
	// It is re-evaluated on every tick, not latched.
	TrailArmPct float64 `toml:"trail_arm_pct"`

	// MaxHold is the time-stop horizon. Evaluated lazily on ticks only.
	MaxHold duration `toml:"max_hold"`

	// KeepOpenOnFailedExit keeps a position tracked when its exit sell fails,
	// so the next tick retries. False reproduces fire-and-forget removal.
	KeepOpenOnFailedExit bool `toml:"keep_open_on_failed_exit"`

	// WatchMints is the monitor-mode subscription watchlist.
	WatchMints []string `toml:"watch_mints"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "1s", "2h").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "1s" or "2h".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		PumpPortal: PumpPortalConfig{
			DataURL:        "wss://pumpportal.fun/api/data",
			TradeURL:       "https://pumpportal.fun/api/trade",
			SlippagePct:    5,
			PriorityFeeSol: 0.00001,
			Pool:           "auto",
			ReconnectDelay: duration{1 * time.Second},
		},
		Twitter: TwitterConfig{
			RapidAPIHost: "twttrapi.p.rapidapi.com",
			PollInterval: duration{15 * time.Second},
			MaxTweetAge:  duration{1 * time.Minute},
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-4o",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "pumpbot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "pumpbot-data",
			ForcePathStyle: true,
			Prefix:         "frames",
			FlushInterval:  duration{1 * time.Minute},
			MaxBatchBytes:  4 * 1024 * 1024,
		},
		Strategy: StrategyConfig{
			BuySizeSol:  0.5,
			HardStopPct: -0.30,
			TrailingPct: 0.25,
			TrailArmPct: 0.50,
			MaxHold:     duration{2 * time.Hour},
		},
		Mode:     "trade",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"trade":   true,
	"monitor": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, monitor)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.PumpPortal.DataURL == "" {
		errs = append(errs, "pumpportal: data_url must not be empty")
	}

	isTrade := strings.ToLower(c.Mode) == "trade"
	if isTrade {
		if c.PumpPortal.TradeURL == "" {
			errs = append(errs, "pumpportal: trade_url must not be empty for trade mode")
		}
		if c.PumpPortal.ApiKey == "" && c.PumpPortal.EncryptedKeyPath == "" {
			errs = append(errs, "pumpportal: either api_key or encrypted_key_path must be set for trade mode")
		}
		if c.PumpPortal.EncryptedKeyPath != "" && c.PumpPortal.KeyPassword == "" {
			errs = append(errs, "pumpportal: key_password is required when encrypted_key_path is set")
		}
		if c.Twitter.RapidAPIKey == "" {
			errs = append(errs, "twitter: rapidapi_key is required for trade mode")
		}
		if c.Twitter.Username == "" {
			errs = append(errs, "twitter: username is required for trade mode")
		}
		if c.OpenAI.ApiKey == "" {
			errs = append(errs, "openai: api_key is required for trade mode")
		}
		if c.Strategy.BuySizeSol <= 0 {
			errs = append(errs, fmt.Sprintf("strategy: buy_size_sol must be positive, got %g", c.Strategy.BuySizeSol))
		}
	}

	if c.PumpPortal.SlippagePct < 0 || c.PumpPortal.SlippagePct > 100 {
		errs = append(errs, fmt.Sprintf("pumpportal: slippage_pct must be 0-100, got %g", c.PumpPortal.SlippagePct))
	}
	if c.PumpPortal.ReconnectDelay.Duration <= 0 {
		errs = append(errs, "pumpportal: reconnect_delay must be positive")
	}

	if c.Strategy.HardStopPct >= 0 || c.Strategy.HardStopPct <= -1 {
		errs = append(errs, fmt.Sprintf("strategy: hard_stop_pct must be in (-1, 0), got %g", c.Strategy.HardStopPct))
	}
	if c.Strategy.TrailingPct <= 0 || c.Strategy.TrailingPct >= 1 {
		errs = append(errs, fmt.Sprintf("strategy: trailing_pct must be in (0, 1), got %g", c.Strategy.TrailingPct))
	}
	if c.Strategy.TrailArmPct < 0 {
		errs = append(errs, fmt.Sprintf("strategy: trail_arm_pct must not be negative, got %g", c.Strategy.TrailArmPct))
	}
	if c.Strategy.MaxHold.Duration <= 0 {
		errs = append(errs, "strategy: max_hold must be positive")
	}

	if isTrade && strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}

	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when s3 is enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when s3 is enabled")
		}
		if c.S3.FlushInterval.Duration <= 0 {
			errs = append(errs, "s3: flush_interval must be positive")
		}
	}

	if c.Attest.Endpoint != "" && (c.Attest.AppID == "" || c.Attest.AppSecret == "") {
		errs = append(errs, "attest: app_id and app_secret must be set when endpoint is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
