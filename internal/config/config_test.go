package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validTradeConfig returns a Config that passes Validate in trade mode.
func validTradeConfig() Config {
	cfg := Defaults()
	cfg.PumpPortal.ApiKey = "lightning-key"
	cfg.Twitter.RapidAPIKey = "rapid-key"
	cfg.Twitter.Username = "elonmusk"
	cfg.OpenAI.ApiKey = "sk-test"
	return cfg
}

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadOverlaysFileOnDefaults(t *testing.T) {
	path := writeConfigFile(t, `
mode = "monitor"
log_level = "debug"

[pumpportal]
reconnect_delay = "3s"

[strategy]
buy_size_sol = 0.25
max_hold = "45m"
watch_mints = ["mintA", "mintB"]

[twitter]
username = "someone"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "monitor", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 3*time.Second, cfg.PumpPortal.ReconnectDelay.Duration)
	assert.Equal(t, 0.25, cfg.Strategy.BuySizeSol)
	assert.Equal(t, 45*time.Minute, cfg.Strategy.MaxHold.Duration)
	assert.Equal(t, []string{"mintA", "mintB"}, cfg.Strategy.WatchMints)
	assert.Equal(t, "someone", cfg.Twitter.Username)

	// Untouched fields keep their defaults.
	assert.Equal(t, "wss://pumpportal.fun/api/data", cfg.PumpPortal.DataURL)
	assert.Equal(t, -0.30, cfg.Strategy.HardStopPct)
	assert.Equal(t, "gpt-4o", cfg.OpenAI.Model)
}

func TestLoadEnvOverridesWinOverFile(t *testing.T) {
	path := writeConfigFile(t, `
[twitter]
username = "from_file"
`)

	t.Setenv("PUMPBOT_TWITTER_USERNAME", "from_env")
	t.Setenv("PUMPBOT_STRATEGY_HARD_STOP_PCT", "-0.15")
	t.Setenv("PUMPBOT_STRATEGY_MAX_HOLD", "90m")
	t.Setenv("PUMPBOT_STRATEGY_KEEP_OPEN_ON_FAILED_EXIT", "true")
	t.Setenv("PUMPBOT_STRATEGY_WATCH_MINTS", "a, b ,c")
	t.Setenv("PUMPBOT_POSTGRES_PORT", "5433")
	t.Setenv("OPENAI_API_KEY", "sk-alias")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from_env", cfg.Twitter.Username)
	assert.Equal(t, -0.15, cfg.Strategy.HardStopPct)
	assert.Equal(t, 90*time.Minute, cfg.Strategy.MaxHold.Duration)
	assert.True(t, cfg.Strategy.KeepOpenOnFailedExit)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Strategy.WatchMints)
	assert.Equal(t, 5433, cfg.Postgres.Port)
	assert.Equal(t, "sk-alias", cfg.OpenAI.ApiKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestValidateTradeMode(t *testing.T) {
	cfg := validTradeConfig()
	require.NoError(t, cfg.Validate())

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown mode", func(c *Config) { c.Mode = "replay" }, "unknown mode"},
		{"unknown log level", func(c *Config) { c.LogLevel = "verbose" }, "unknown log_level"},
		{"no data url", func(c *Config) { c.PumpPortal.DataURL = "" }, "data_url"},
		{"no trade credentials", func(c *Config) { c.PumpPortal.ApiKey = "" }, "api_key or encrypted_key_path"},
		{"key file without password", func(c *Config) { c.PumpPortal.EncryptedKeyPath = "key.json" }, "key_password"},
		{"no twitter key", func(c *Config) { c.Twitter.RapidAPIKey = "" }, "rapidapi_key"},
		{"no username", func(c *Config) { c.Twitter.Username = "" }, "username"},
		{"no openai key", func(c *Config) { c.OpenAI.ApiKey = "" }, "openai"},
		{"zero buy size", func(c *Config) { c.Strategy.BuySizeSol = 0 }, "buy_size_sol"},
		{"positive hard stop", func(c *Config) { c.Strategy.HardStopPct = 0.30 }, "hard_stop_pct"},
		{"hard stop at -1", func(c *Config) { c.Strategy.HardStopPct = -1 }, "hard_stop_pct"},
		{"trailing out of range", func(c *Config) { c.Strategy.TrailingPct = 1.5 }, "trailing_pct"},
		{"negative trail arm", func(c *Config) { c.Strategy.TrailArmPct = -0.1 }, "trail_arm_pct"},
		{"zero max hold", func(c *Config) { c.Strategy.MaxHold.Duration = 0 }, "max_hold"},
		{"bad slippage", func(c *Config) { c.PumpPortal.SlippagePct = 150 }, "slippage_pct"},
		{"no postgres host", func(c *Config) { c.Postgres.Host = "" }, "postgres: host"},
		{"no redis addr", func(c *Config) { c.Redis.Addr = "" }, "redis: addr"},
		{"s3 enabled without bucket", func(c *Config) { c.S3.Enabled = true; c.S3.Bucket = "" }, "s3: bucket"},
		{"attest endpoint without creds", func(c *Config) { c.Attest.Endpoint = "https://a" }, "attest"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTradeConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateMonitorModeSkipsTradeRequirements(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "monitor"
	// No trade credentials, no twitter, no openai, no postgres DSN.
	assert.NoError(t, cfg.Validate())
}

func TestValidateDSNSkipsHostChecks(t *testing.T) {
	cfg := validTradeConfig()
	cfg.Postgres.DSN = "postgres://u:p@db:5432/pumpbot"
	cfg.Postgres.Host = ""
	cfg.Postgres.Port = 0
	cfg.Postgres.Database = ""
	assert.NoError(t, cfg.Validate())
}

func TestDurationTextRoundTrip(t *testing.T) {
	var d duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration)

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(text))

	assert.Error(t, d.UnmarshalText([]byte("soon")))
}

func TestRedactedConfigMasksSecrets(t *testing.T) {
	cfg := validTradeConfig()
	cfg.PumpPortal.KeyPassword = "hunter2"
	cfg.Postgres.Password = "dbpass"
	cfg.Notify.TelegramToken = "tg-token"
	cfg.Notify.Events = []string{"trade"}

	red := RedactedConfig(&cfg)

	assert.Equal(t, "***", red.PumpPortal.ApiKey)
	assert.Equal(t, "***", red.PumpPortal.KeyPassword)
	assert.Equal(t, "***", red.Twitter.RapidAPIKey)
	assert.Equal(t, "***", red.OpenAI.ApiKey)
	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.Notify.TelegramToken)

	// Empty secrets stay empty, non-secret fields pass through.
	assert.Empty(t, red.Redis.Password)
	assert.Equal(t, cfg.Twitter.Username, red.Twitter.Username)

	// The original is untouched and slices are copies.
	assert.Equal(t, "lightning-key", cfg.PumpPortal.ApiKey)
	red.Notify.Events[0] = "mutated"
	assert.Equal(t, "trade", cfg.Notify.Events[0])
}
