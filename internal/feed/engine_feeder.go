// Package feed pumps canonical trade ticks from the market data stream into
// the consumers that react to them.
package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/solwatch/pumpbot/internal/domain"
	"github.com/solwatch/pumpbot/internal/strategy"
)

// EngineFeeder drains a tick stream and fans each tick out to the strategy
// engine and the price cache. The engine gets the tick first so exits never
// wait on a cache write; cache failures are logged and dropped.
type EngineFeeder struct {
	ticks  <-chan domain.TradeTick
	engine *strategy.Engine
	prices domain.PriceCache // optional
	logger *slog.Logger
}

// NewEngineFeeder creates an EngineFeeder. Either collaborator may be nil:
// monitor mode runs with a cache and no engine.
func NewEngineFeeder(ticks <-chan domain.TradeTick, engine *strategy.Engine, prices domain.PriceCache, logger *slog.Logger) *EngineFeeder {
	return &EngineFeeder{
		ticks:  ticks,
		engine: engine,
		prices: prices,
		logger: logger.With(slog.String("component", "engine_feeder")),
	}
}

// Run consumes ticks until the context is cancelled or the stream closes.
func (f *EngineFeeder) Run(ctx context.Context) error {
	f.logger.Info("engine feeder started")
	defer f.logger.Info("engine feeder stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tick, ok := <-f.ticks:
			if !ok {
				return nil
			}
			f.handleTick(ctx, tick)
		}
	}
}

func (f *EngineFeeder) handleTick(ctx context.Context, tick domain.TradeTick) {
	if f.engine != nil {
		f.engine.OnPriceTick(ctx, tick.Mint, tick.PriceSol)
	} else {
		f.logger.Info("tick",
			slog.String("mint", tick.Mint),
			slog.Float64("price_sol", tick.PriceSol),
		)
	}

	if f.prices == nil {
		return
	}
	cacheCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := f.prices.SetPrice(cacheCtx, tick.Mint, tick.PriceSol, tick.Received); err != nil {
		f.logger.Debug("price cache write failed",
			slog.String("mint", tick.Mint),
			slog.String("error", err.Error()),
		)
	}
}
