// Command pumpbot is the entry point for the pump.fun sniper bot. It loads
// configuration, validates it, wires dependencies, sets up signal handling,
// and starts the application in the configured mode.
//
// The keytool subcommand encrypts the venue API key for storage on disk:
//
//	PUMPBOT_API_KEY=... PUMPBOT_KEY_PASSWORD=... pumpbot keytool -out key.json
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/solwatch/pumpbot/internal/app"
	"github.com/solwatch/pumpbot/internal/config"
	"github.com/solwatch/pumpbot/internal/crypto"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "keytool" {
		os.Exit(runKeytool(os.Args[2:]))
	}

	configPath := flag.String("config", "config.toml", "path to configuration file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// Rebuild the logger at the configured level.
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("pumpbot starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", *configPath),
	)

	application := app.New(cfg, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("application shut down gracefully")
		} else {
			logger.Error("application exited with error",
				slog.String("error", err.Error()),
			)
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
	}

	logger.Info("pumpbot stopped")
}

// runKeytool encrypts the API key from PUMPBOT_API_KEY with the password from
// PUMPBOT_KEY_PASSWORD and writes the blob to -out.
func runKeytool(args []string) int {
	fs := flag.NewFlagSet("keytool", flag.ExitOnError)
	out := fs.String("out", "key.json", "output path for the encrypted key file")
	_ = fs.Parse(args)

	apiKey := os.Getenv("PUMPBOT_API_KEY")
	password := os.Getenv("PUMPBOT_KEY_PASSWORD")
	if apiKey == "" || password == "" {
		fmt.Fprintln(os.Stderr, "keytool: PUMPBOT_API_KEY and PUMPBOT_KEY_PASSWORD must be set")
		return 1
	}

	blob, err := crypto.EncryptKey(apiKey, password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "keytool: %v\n", err)
		return 1
	}
	if err := os.WriteFile(*out, blob, 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "keytool: write %s: %v\n", *out, err)
		return 1
	}

	fmt.Printf("encrypted key written to %s\n", *out)
	return 0
}
