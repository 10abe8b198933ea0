// Package service holds the application services that connect the external
// feeds to the trading engine.
package service

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/solwatch/pumpbot/internal/domain"
	"github.com/solwatch/pumpbot/internal/notify"
)

// seenTTL bounds how long processed tweet IDs and bought mints are remembered.
const seenTTL = 24 * time.Hour

// TweetSource supplies recent posts from the watched account.
type TweetSource interface {
	RecentTweets(ctx context.Context, username string) ([]domain.Tweet, error)
}

// PositionOpener is the slice of the strategy engine the sniper needs.
type PositionOpener interface {
	Open(mint string, entryPrice, sizeTokens float64)
	OpenPositions() []domain.Position
}

// FeedSubscriber adds mints to the market data subscription set.
type FeedSubscriber interface {
	Subscribe(mints []string)
}

// SniperConfig tunes the tweet-polling entry pipeline.
type SniperConfig struct {
	Username     string
	PollInterval time.Duration
	BuySizeSol   float64
}

// Sniper polls the watched account, resolves token mints out of fresh posts,
// buys them, and hands the resulting positions to the engine and the feed.
// Each tweet is processed at most once; a mint already held is never re-bought.
type Sniper struct {
	cfg      SniperConfig
	tweets   TweetSource
	resolver domain.TokenResolver
	trader   domain.TradeExecutor
	engine   PositionOpener
	feed     FeedSubscriber
	attester domain.TradeAttester // optional
	notifier *notify.Notifier     // optional
	logger   *slog.Logger

	mu   sync.Mutex
	seen map[string]time.Time // tweet ID or mint -> first handled
}

// NewSniper creates a Sniper. attester and notifier may be nil.
func NewSniper(
	cfg SniperConfig,
	tweets TweetSource,
	resolver domain.TokenResolver,
	trader domain.TradeExecutor,
	engine PositionOpener,
	feed FeedSubscriber,
	attester domain.TradeAttester,
	notifier *notify.Notifier,
	logger *slog.Logger,
) *Sniper {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Second
	}
	return &Sniper{
		cfg:      cfg,
		tweets:   tweets,
		resolver: resolver,
		trader:   trader,
		engine:   engine,
		feed:     feed,
		attester: attester,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "sniper")),
	}
}

// Run polls on the configured interval until ctx is cancelled. Poll failures
// are logged and retried on the next interval.
func (s *Sniper) Run(ctx context.Context) error {
	s.logger.Info("sniper started",
		slog.String("username", s.cfg.Username),
		slog.Duration("poll_interval", s.cfg.PollInterval),
	)
	defer s.logger.Info("sniper stopped")

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

func (s *Sniper) poll(ctx context.Context) {
	tweets, err := s.tweets.RecentTweets(ctx, s.cfg.Username)
	if err != nil {
		s.logger.Warn("tweet poll failed", slog.String("error", err.Error()))
		return
	}

	for _, tweet := range tweets {
		if s.alreadyHandled("tweet:" + tweet.ID) {
			continue
		}
		s.handleTweet(ctx, tweet)
	}
	s.pruneSeen()
}

func (s *Sniper) handleTweet(ctx context.Context, tweet domain.Tweet) {
	log := s.logger.With(slog.String("tweet_id", tweet.ID))

	mint, err := s.resolver.ResolveToken(ctx, tweet.Contents)
	if err != nil {
		log.Warn("token resolution failed", slog.String("error", err.Error()))
		return
	}
	if mint == "" {
		log.Debug("no token in tweet")
		return
	}

	if s.alreadyHandled("mint:" + mint) {
		log.Debug("mint already bought", slog.String("mint", mint))
		return
	}
	if s.holding(mint) {
		log.Debug("position already open", slog.String("mint", mint))
		return
	}

	s.buy(ctx, mint, log)
}

func (s *Sniper) buy(ctx context.Context, mint string, log *slog.Logger) {
	intent := domain.TradeIntent{
		ID:        uuid.New().String(),
		Mint:      mint,
		Side:      domain.TradeSideBuy,
		Amount:    strconv.FormatFloat(s.cfg.BuySizeSol, 'f', -1, 64),
		Reason:    "tweet entry",
		CreatedAt: time.Now().UTC(),
	}

	result, err := s.trader.ExecuteTrade(ctx, intent)
	if err != nil || !result.Success {
		log.Error("entry buy failed",
			slog.String("mint", mint),
			slog.Any("error", err),
		)
		return
	}

	log.Info("entry buy executed",
		slog.String("mint", mint),
		slog.Float64("size_sol", s.cfg.BuySizeSol),
		slog.String("signature", result.Signature),
	)

	// Entry price and token size are unknown until the first tick; the engine
	// backfills both lazily.
	s.engine.Open(mint, 0, 0)
	s.feed.Subscribe([]string{mint})

	if s.notifier != nil {
		s.notifier.PositionOpened(ctx, mint, s.cfg.BuySizeSol)
	}

	if s.attester != nil {
		go s.attest(mint)
	}
}

// attest runs off the trading path with its own deadline.
func (s *Sniper) attest(mint string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	att, err := s.attester.AttestTrade(ctx, mint, s.cfg.BuySizeSol)
	if err != nil {
		s.logger.Warn("attestation failed",
			slog.String("mint", mint),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.Info("attestation recorded",
		slog.String("mint", mint),
		slog.String("attestation_id", att.ID),
	)
}

// alreadyHandled records key and reports whether it was present already.
func (s *Sniper) alreadyHandled(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen == nil {
		s.seen = make(map[string]time.Time)
	}
	if _, ok := s.seen[key]; ok {
		return true
	}
	s.seen[key] = time.Now()
	return false
}

func (s *Sniper) holding(mint string) bool {
	for _, pos := range s.engine.OpenPositions() {
		if pos.Mint == mint {
			return true
		}
	}
	return false
}

func (s *Sniper) pruneSeen() {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-seenTTL)
	for key, at := range s.seen {
		if at.Before(cutoff) {
			delete(s.seen, key)
		}
	}
}
