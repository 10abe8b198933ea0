// Package executor wraps the venue trade client with intent deduplication,
// an audit trail, and trade notifications. It sits between the strategy
// engine (which decides what to trade) and the venue (which executes).
package executor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/solwatch/pumpbot/internal/domain"
)

// Notifier receives trade lifecycle events for operator channels. Optional.
type Notifier interface {
	TradeExecuted(ctx context.Context, intent domain.TradeIntent, result domain.TradeResult)
	TradeFailed(ctx context.Context, intent domain.TradeIntent, err error)
}

// Executor implements domain.TradeExecutor. Every intent is deduplicated by
// ID, forwarded to the venue, logged to the audit store when one is
// configured, and reported to the notifier. Audit and notification failures
// never fail the trade itself.
type Executor struct {
	venue    domain.TradeExecutor
	dedup    *Dedup
	tradeLog domain.TradeLogStore // optional
	notifier Notifier             // optional
	logger   *slog.Logger

	janitorOnce sync.Once
}

// New creates an Executor forwarding to venue. tradeLog and notifier may be
// nil.
func New(venue domain.TradeExecutor, tradeLog domain.TradeLogStore, notifier Notifier, logger *slog.Logger) *Executor {
	return &Executor{
		venue:    venue,
		dedup:    NewDedup(2 * time.Minute),
		tradeLog: tradeLog,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "executor")),
	}
}

// StartJanitor launches the dedup garbage collector. It runs until ctx is
// cancelled and is safe to call more than once.
func (e *Executor) StartJanitor(ctx context.Context) {
	e.janitorOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					e.dedup.Cleanup()
				}
			}
		}()
	})
}

// ExecuteTrade submits one intent to the venue. Duplicate intents within the
// dedup TTL are dropped and reported as unsuccessful without an error, so a
// retrying caller does not double-trade.
func (e *Executor) ExecuteTrade(ctx context.Context, intent domain.TradeIntent) (domain.TradeResult, error) {
	log := e.logger.With(
		slog.String("intent_id", intent.ID),
		slog.String("mint", intent.Mint),
		slog.String("side", string(intent.Side)),
		slog.String("amount", intent.Amount),
		slog.String("reason", intent.Reason),
	)

	if e.dedup.IsDuplicate(intent.ID) {
		log.Debug("intent deduplicated, skipping")
		return domain.TradeResult{}, nil
	}

	result, err := e.venue.ExecuteTrade(ctx, intent)
	if err != nil {
		log.Error("trade failed", slog.String("error", err.Error()))
		e.record(ctx, intent, domain.TradeResult{}, err)
		if e.notifier != nil {
			e.notifier.TradeFailed(ctx, intent, err)
		}
		return domain.TradeResult{}, err
	}

	log.Info("trade executed", slog.String("signature", result.Signature))
	e.record(ctx, intent, result, nil)
	if e.notifier != nil {
		e.notifier.TradeExecuted(ctx, intent, result)
	}
	return result, nil
}

// record writes the intent outcome to the audit store. The trade log is
// write-only operationally; it is never read back to rebuild positions.
func (e *Executor) record(ctx context.Context, intent domain.TradeIntent, result domain.TradeResult, tradeErr error) {
	if e.tradeLog == nil {
		return
	}

	entry := domain.TradeLogEntry{
		ID:        intent.ID,
		Mint:      intent.Mint,
		Side:      intent.Side,
		Amount:    intent.Amount,
		IsPercent: intent.AmountIsPercent,
		Reason:    intent.Reason,
		Signature: result.Signature,
		Success:   result.Success,
		CreatedAt: intent.CreatedAt,
	}
	if tradeErr != nil {
		entry.Error = tradeErr.Error()
	}

	if err := e.tradeLog.Insert(ctx, entry); err != nil {
		e.logger.Warn("trade log insert failed",
			slog.String("intent_id", intent.ID),
			slog.String("error", err.Error()),
		)
	}
}

var _ domain.TradeExecutor = (*Executor)(nil)
