package notify

import (
	"context"
	"fmt"

	"github.com/solwatch/pumpbot/internal/domain"
)

// TradeExecuted reports a confirmed trade. Satisfies the executor's notifier
// hook.
func (n *Notifier) TradeExecuted(ctx context.Context, intent domain.TradeIntent, result domain.TradeResult) {
	title := fmt.Sprintf("Trade: %s %s", intent.Side, intent.Mint)
	message := fmt.Sprintf("amount=%s reason=%s\nsignature=%s",
		intent.Amount, intent.Reason, result.Signature)
	_ = n.Notify(ctx, EventTrade, title, message)
}

// TradeFailed reports a trade the venue rejected or that errored out.
func (n *Notifier) TradeFailed(ctx context.Context, intent domain.TradeIntent, err error) {
	title := fmt.Sprintf("Trade FAILED: %s %s", intent.Side, intent.Mint)
	message := fmt.Sprintf("amount=%s reason=%s\nerror=%v",
		intent.Amount, intent.Reason, err)
	_ = n.Notify(ctx, EventError, title, message)
}

// PositionOpened reports a new position entering the engine.
func (n *Notifier) PositionOpened(ctx context.Context, mint string, sizeSol float64) {
	title := "Position opened: " + mint
	message := fmt.Sprintf("buy size %.4f SOL", sizeSol)
	_ = n.Notify(ctx, EventPositionOpen, title, message)
}

// PositionClosed reports a full exit with its realized outcome.
func (n *Notifier) PositionClosed(ctx context.Context, closed domain.ClosedPosition) {
	pnl := 0.0
	if closed.EntryPrice > 0 {
		pnl = (closed.ExitPrice/closed.EntryPrice - 1) * 100
	}
	title := fmt.Sprintf("Position closed (%s): %s", closed.Reason, closed.Mint)
	message := fmt.Sprintf("entry=%.6f exit=%.6f pnl=%+.1f%%",
		closed.EntryPrice, closed.ExitPrice, pnl)
	_ = n.Notify(ctx, EventPositionClose, title, message)
}
