package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.PumpPortal.ApiKey)
	redact(&out.PumpPortal.KeyPassword)
	redact(&out.Twitter.RapidAPIKey)
	redact(&out.OpenAI.ApiKey)
	redact(&out.Attest.AppSecret)
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)
	redact(&out.Redis.Password)
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	if cfg.Notify.Events != nil {
		out.Notify.Events = append([]string(nil), cfg.Notify.Events...)
	}
	if cfg.Strategy.WatchMints != nil {
		out.Strategy.WatchMints = append([]string(nil), cfg.Strategy.WatchMints...)
	}

	return out
}

func redact(field *string) {
	if *field != "" {
		*field = "***"
	}
}
