package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/solwatch/pumpbot/internal/attest"
	"github.com/solwatch/pumpbot/internal/crypto"
	"github.com/solwatch/pumpbot/internal/domain"
	"github.com/solwatch/pumpbot/internal/executor"
	"github.com/solwatch/pumpbot/internal/feed"
	"github.com/solwatch/pumpbot/internal/llm"
	"github.com/solwatch/pumpbot/internal/platform/pumpportal"
	"github.com/solwatch/pumpbot/internal/service"
	"github.com/solwatch/pumpbot/internal/social/twitter"
	"github.com/solwatch/pumpbot/internal/strategy"
)

// snapshotInterval is how often open-position PnL is logged in trade mode.
const snapshotInterval = time.Minute

// TradeMode runs the full pipeline: tweet polling, token resolution, entry
// buys, the market data stream, and the exit-rule engine.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode")

	apiKey, err := crypto.LoadAPIKey(crypto.KeyConfig{
		RawKey:           a.cfg.PumpPortal.ApiKey,
		EncryptedKeyPath: a.cfg.PumpPortal.EncryptedKeyPath,
		KeyPassword:      a.cfg.PumpPortal.KeyPassword,
	})
	if err != nil {
		return fmt.Errorf("app: load api key: %w", err)
	}

	venue := pumpportal.NewTradeClient(pumpportal.TradeClientConfig{
		TradeURL:    a.cfg.PumpPortal.TradeURL,
		ApiKey:      apiKey,
		SlippagePct: a.cfg.PumpPortal.SlippagePct,
		PriorityFee: a.cfg.PumpPortal.PriorityFeeSol,
		Pool:        a.cfg.PumpPortal.Pool,
	})

	exec := executor.New(venue, deps.TradeLog, deps.Notifier, a.logger)
	exec.StartJanitor(ctx)

	stream := pumpportal.NewFeed(
		a.cfg.PumpPortal.DataURL,
		a.cfg.PumpPortal.ReconnectDelay.Duration,
		a.logger,
	)
	if deps.Archiver != nil {
		stream.OnRawFrame(deps.Archiver.Append)
	}

	// A full exit stops the mint's stream traffic and reports the outcome.
	onClose := func(closed domain.ClosedPosition) {
		stream.Unsubscribe([]string{closed.Mint})
		if deps.Notifier != nil {
			deps.Notifier.PositionClosed(context.WithoutCancel(ctx), closed)
		}
	}

	engine := strategy.NewEngine(strategy.Config{
		HardStopPct:          a.cfg.Strategy.HardStopPct,
		TrailingPct:          a.cfg.Strategy.TrailingPct,
		TrailArmPct:          a.cfg.Strategy.TrailArmPct,
		MaxHold:              a.cfg.Strategy.MaxHold.Duration,
		KeepOpenOnFailedExit: a.cfg.Strategy.KeepOpenOnFailedExit,
	}, exec, onClose, a.logger)

	feeder := feed.NewEngineFeeder(stream.Ticks(), engine, deps.PriceCache, a.logger)

	tweetClient := twitter.NewClient(
		"https://"+a.cfg.Twitter.RapidAPIHost,
		a.cfg.Twitter.RapidAPIKey,
		a.cfg.Twitter.MaxTweetAge.Duration,
	)

	resolver, err := llm.NewResolver(a.cfg.OpenAI.ApiKey, a.cfg.OpenAI.Model, a.logger)
	if err != nil {
		return fmt.Errorf("app: llm resolver: %w", err)
	}

	var attester domain.TradeAttester
	if a.cfg.Attest.Endpoint != "" {
		attester = attest.NewClient(
			a.cfg.Attest.Endpoint,
			a.cfg.Attest.AppID,
			a.cfg.Attest.AppSecret,
			a.logger,
		)
	}

	sniper := service.NewSniper(
		service.SniperConfig{
			Username:     a.cfg.Twitter.Username,
			PollInterval: a.cfg.Twitter.PollInterval.Duration,
			BuySizeSol:   a.cfg.Strategy.BuySizeSol,
		},
		tweetClient, resolver, exec, engine, stream, attester, deps.Notifier, a.logger,
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer stream.Close()
		return stream.Run(ctx)
	})
	g.Go(func() error { return feeder.Run(ctx) })
	g.Go(func() error { return sniper.Run(ctx) })
	g.Go(func() error { return a.snapshotLoop(ctx, engine) })
	if deps.Archiver != nil {
		g.Go(func() error { return deps.Archiver.Run(ctx) })
	}

	return g.Wait()
}

// MonitorMode subscribes to a fixed watchlist and keeps the price cache warm
// without trading.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode",
		slog.Int("watch_mints", len(a.cfg.Strategy.WatchMints)),
	)

	stream := pumpportal.NewFeed(
		a.cfg.PumpPortal.DataURL,
		a.cfg.PumpPortal.ReconnectDelay.Duration,
		a.logger,
	)
	if deps.Archiver != nil {
		stream.OnRawFrame(deps.Archiver.Append)
	}
	stream.Subscribe(a.cfg.Strategy.WatchMints)

	feeder := feed.NewEngineFeeder(stream.Ticks(), nil, deps.PriceCache, a.logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer stream.Close()
		return stream.Run(ctx)
	})
	g.Go(func() error { return feeder.Run(ctx) })
	if deps.Archiver != nil {
		g.Go(func() error { return deps.Archiver.Run(ctx) })
	}

	return g.Wait()
}

// snapshotLoop periodically logs a PnL table of all open positions.
func (a *App) snapshotLoop(ctx context.Context, engine *strategy.Engine) error {
	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, snap := range engine.PnLSnapshot() {
				a.logger.Info("position snapshot",
					slog.String("mint", snap.Mint),
					slog.Float64("entry", snap.EntryPrice),
					slog.Float64("last", snap.LastPrice),
					slog.Float64("high", snap.HighestPrice),
					slog.String("pnl_pct", fmt.Sprintf("%+.1f", snap.PnLPct)),
					slog.Float64("tokens_left", snap.TokensLeft),
					slog.Duration("age", snap.Age.Round(time.Second)),
				)
			}
		}
	}
}
