// Package strategy implements the per-position exit-rule engine: tiered
// take-profits, a trailing stop referenced to the running high, a hard stop
// below entry, and a lazy time stop.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/solwatch/pumpbot/internal/domain"
)

// Take-profit tiers. Each is one-shot per position: crossing the threshold
// sells the given fraction of the remaining size exactly once.
const (
	tier1Threshold = 0.30
	tier1SellPct   = 0.40
	tier2Threshold = 0.75
	tier2SellPct   = 0.30
	tier3Threshold = 1.50
	tier3SellPct   = 0.30
)

// Seller executes the engine's sell intents. Implemented by the executor
// layer; tests substitute a fake.
type Seller interface {
	ExecuteTrade(ctx context.Context, intent domain.TradeIntent) (domain.TradeResult, error)
}

// CloseHandler is invoked after a position fully exits and has been removed
// from the open set. It runs outside the engine lock, so it may call back
// into the engine or the feed.
type CloseHandler func(closed domain.ClosedPosition)

// Config holds the exit-rule parameters applied to every new position.
type Config struct {
	// HardStopPct is the default loss fraction below entry (negative).
	HardStopPct float64
	// TrailingPct is the default drop fraction from the running high.
	TrailingPct float64
	// TrailArmPct is the PnL at which the trailing stop is active. The arm
	// condition is re-evaluated on every tick, deliberately not latched: the
	// stop only fires while the current tick's PnL still clears it.
	TrailArmPct float64
	// MaxHold is the time-stop horizon, checked only when a tick arrives.
	MaxHold time.Duration
	// KeepOpenOnFailedExit keeps a position tracked when its exit sell is
	// not confirmed, so the next tick retries the close. When false the
	// position is removed regardless of the sell outcome.
	KeepOpenOnFailedExit bool
}

// Engine owns the set of open positions and is the single authority deciding
// when to sell and how much. All state transitions are serialized under one
// mutex held for the whole of a tick, so a partially applied update is never
// observable.
type Engine struct {
	cfg     Config
	seller  Seller
	onClose CloseHandler
	logger  *slog.Logger

	mu        sync.Mutex
	positions map[string]*domain.Position

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// NewEngine creates an Engine that issues sell intents through seller and
// reports full exits through onClose (which may be nil). Zero-valued Config
// fields fall back to the package defaults.
func NewEngine(cfg Config, seller Seller, onClose CloseHandler, logger *slog.Logger) *Engine {
	if cfg.HardStopPct == 0 {
		cfg.HardStopPct = domain.DefaultHardStopPct
	}
	if cfg.TrailingPct == 0 {
		cfg.TrailingPct = domain.DefaultTrailingPct
	}
	if cfg.TrailArmPct == 0 {
		cfg.TrailArmPct = 0.50
	}
	if cfg.MaxHold == 0 {
		cfg.MaxHold = 2 * time.Hour
	}
	return &Engine{
		cfg:       cfg,
		seller:    seller,
		onClose:   onClose,
		logger:    logger.With(slog.String("component", "position_engine")),
		positions: make(map[string]*domain.Position),
		now:       time.Now,
	}
}

// Open starts tracking a position for mint. entryPrice and sizeTokens may be
// 0 (unknown at call time): a zero entry price is backfilled by the first
// tick, and a zero size leaves the proportional bookkeeping approximate.
// Re-opening a mint that is already tracked replaces the old position.
func (e *Engine) Open(mint string, entryPrice, sizeTokens float64) {
	now := e.now()

	e.mu.Lock()
	e.positions[mint] = &domain.Position{
		Mint:         mint,
		EntryPrice:   entryPrice,
		SizeTokens:   sizeTokens,
		HighestPrice: entryPrice,
		LastPrice:    entryPrice,
		CreatedAt:    now,
		HardStopPct:  e.cfg.HardStopPct,
		TrailingPct:  e.cfg.TrailingPct,
	}
	e.mu.Unlock()

	e.logger.Info("position opened",
		slog.String("mint", mint),
		slog.Float64("entry_price", entryPrice),
		slog.Float64("size_tokens", sizeTokens),
	)
}

// OnPriceTick applies one canonical price event to the tracked position for
// mint. Ticks for unknown mints (never opened, or already closed) are
// silently ignored. The exit rules are evaluated in a fixed order; the first
// full close wins and removes the position, so late ticks are no-ops.
func (e *Engine) OnPriceTick(ctx context.Context, mint string, price float64) {
	e.mu.Lock()

	pos, ok := e.positions[mint]
	if !ok {
		e.mu.Unlock()
		return
	}

	// Lazy entry: the first observed price becomes the entry price.
	if pos.EntryPrice == 0 {
		pos.EntryPrice = price
		e.logger.Info("entry price set from first tick",
			slog.String("mint", mint),
			slog.Float64("price", price),
		)
	}

	pos.LastPrice = price
	if price > pos.HighestPrice {
		pos.HighestPrice = price
	}
	if pos.HighestPrice < pos.EntryPrice {
		pos.HighestPrice = pos.EntryPrice
	}

	pnl := price/pos.EntryPrice - 1

	// One-shot take-profit tiers.
	if !pos.Tier1Fired && pnl >= tier1Threshold {
		e.takeProfitLocked(ctx, pos, tier1SellPct, tier1Threshold)
		pos.Tier1Fired = true
	}
	if !pos.Tier2Fired && pnl >= tier2Threshold {
		e.takeProfitLocked(ctx, pos, tier2SellPct, tier2Threshold)
		pos.Tier2Fired = true
	}
	if !pos.Tier3Fired && pnl >= tier3Threshold {
		e.takeProfitLocked(ctx, pos, tier3SellPct, tier3Threshold)
		pos.Tier3Fired = true
	}

	// Trailing stop, active only while the current tick's PnL clears the arm
	// threshold.
	if pnl >= e.cfg.TrailArmPct {
		stopPrice := pos.HighestPrice * (1 - pos.TrailingPct)
		if price <= stopPrice {
			e.closeLocked(ctx, pos, domain.CloseReasonTrail)
			return
		}
	}

	// Hard stop.
	if price <= pos.EntryPrice*(1+pos.HardStopPct) {
		e.closeLocked(ctx, pos, domain.CloseReasonHard)
		return
	}

	// Time stop. Evaluated lazily: a position that stops ticking never times
	// out on its own.
	if e.now().Sub(pos.CreatedAt) > e.cfg.MaxHold {
		e.closeLocked(ctx, pos, domain.CloseReasonTime)
		return
	}

	e.mu.Unlock()
}

// ForceClose immediately exits the position for mint, if tracked.
func (e *Engine) ForceClose(ctx context.Context, mint string) error {
	e.mu.Lock()
	pos, ok := e.positions[mint]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("strategy: force close %s: %w", mint, domain.ErrNotFound)
	}
	e.closeLocked(ctx, pos, domain.CloseReasonForce)
	return nil
}

// UpdateHardStop overrides the hard-stop fraction of an open position. The
// new value takes effect on the next tick.
func (e *Engine) UpdateHardStop(mint string, newPct float64) error {
	return e.updateStop(mint, func(p *domain.Position) { p.HardStopPct = newPct })
}

// UpdateTrailingStop overrides the trailing-stop fraction of an open
// position. The new value takes effect on the next tick.
func (e *Engine) UpdateTrailingStop(mint string, newPct float64) error {
	return e.updateStop(mint, func(p *domain.Position) { p.TrailingPct = newPct })
}

func (e *Engine) updateStop(mint string, apply func(*domain.Position)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos, ok := e.positions[mint]
	if !ok {
		return fmt.Errorf("strategy: update stop %s: %w", mint, domain.ErrNotFound)
	}
	apply(pos)
	return nil
}

// OpenPositions returns copies of all tracked positions, sorted by mint.
func (e *Engine) OpenPositions() []domain.Position {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]domain.Position, 0, len(e.positions))
	for _, pos := range e.positions {
		out = append(out, *pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Mint < out[j].Mint })
	return out
}

// PnLSnapshot returns a table-friendly view of all live positions.
func (e *Engine) PnLSnapshot() []domain.PositionSnapshot {
	now := e.now()
	positions := e.OpenPositions()

	out := make([]domain.PositionSnapshot, 0, len(positions))
	for _, pos := range positions {
		out = append(out, domain.PositionSnapshot{
			Mint:         pos.Mint,
			EntryPrice:   pos.EntryPrice,
			LastPrice:    pos.LastPrice,
			PnLPct:       pos.PnL() * 100,
			TokensLeft:   pos.SizeTokens,
			HighestPrice: pos.HighestPrice,
			Age:          pos.Age(now),
		})
	}
	return out
}

// --------------------------------------------------------------------------
// Internal methods
// --------------------------------------------------------------------------

// takeProfitLocked sells sellPct of the remaining size and shrinks the
// bookkeeping. Sell failures are logged and the tier still counts as fired;
// partial exits are fire-and-forget. Caller must hold e.mu.
func (e *Engine) takeProfitLocked(ctx context.Context, pos *domain.Position, sellPct, gainPct float64) {
	amount := fmt.Sprintf("%d%%", int(sellPct*100))
	reason := fmt.Sprintf("TP +%d%%", int(gainPct*100))

	if err := e.sell(ctx, pos.Mint, amount, reason); err != nil {
		e.logger.Warn("take-profit sell failed",
			slog.String("mint", pos.Mint),
			slog.String("reason", reason),
			slog.String("error", err.Error()),
		)
	}

	// Entry price is never recomputed; only the remaining size shrinks.
	pos.SizeTokens *= 1 - sellPct
}

// closeLocked fully exits pos and removes it from the open set, then reports
// the closure. Caller must hold e.mu; closeLocked releases it.
func (e *Engine) closeLocked(ctx context.Context, pos *domain.Position, reason domain.CloseReason) {
	err := e.sell(ctx, pos.Mint, "100%", string(reason))
	if err != nil {
		exitErr := fmt.Errorf("strategy: close %s (%s): %w: %w", pos.Mint, reason, domain.ErrExitNotConfirmed, err)
		if e.cfg.KeepOpenOnFailedExit {
			// Keep tracking; the next tick re-evaluates and retries the exit.
			e.mu.Unlock()
			e.logger.Error("exit sell not confirmed, keeping position open",
				slog.String("mint", pos.Mint),
				slog.String("reason", string(reason)),
				slog.String("error", exitErr.Error()),
			)
			return
		}
		e.logger.Error("exit sell not confirmed, removing position anyway",
			slog.String("mint", pos.Mint),
			slog.String("reason", string(reason)),
			slog.String("error", exitErr.Error()),
		)
	}

	closed := domain.ClosedPosition{
		Mint:       pos.Mint,
		Reason:     reason,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  pos.LastPrice,
		ClosedAt:   e.now(),
	}
	delete(e.positions, pos.Mint)
	e.mu.Unlock()

	e.logger.Info("position closed",
		slog.String("mint", closed.Mint),
		slog.String("reason", string(closed.Reason)),
		slog.Float64("entry_price", closed.EntryPrice),
		slog.Float64("exit_price", closed.ExitPrice),
	)

	if e.onClose != nil {
		e.onClose(closed)
	}
}

// sell issues one sell intent through the executor. The percent string form
// ("40%", "100%") is what the venue expects for percent-of-holding sells.
func (e *Engine) sell(ctx context.Context, mint, amount, reason string) error {
	result, err := e.seller.ExecuteTrade(ctx, domain.TradeIntent{
		ID:              uuid.New().String(),
		Mint:            mint,
		Side:            domain.TradeSideSell,
		Amount:          amount,
		AmountIsPercent: true,
		Reason:          reason,
		CreatedAt:       e.now(),
	})
	if err != nil {
		return err
	}
	if !result.Success {
		return errors.New("strategy: sell not confirmed by venue")
	}
	return nil
}
