package domain

import (
	"context"
	"time"
)

// TradeSide is the direction of a trade request.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
)

// TradeIntent is a request to execute a single trade at the venue. Amount is
// either a SOL quantity (buys) or a percent-of-holding string such as "40%"
// or "100%" when AmountIsPercent is set (sells).
type TradeIntent struct {
	ID              string // UUID for dedup and the trade log
	Mint            string
	Side            TradeSide
	Amount          string
	AmountIsPercent bool
	Reason          string // e.g. "TP +30%", "TRAIL", "HARD"
	CreatedAt       time.Time
}

// TradeResult reports the outcome of an executed trade intent.
type TradeResult struct {
	Success   bool
	Signature string // on-chain transaction signature, when available
}

// TradeExecutor submits trade intents to the venue. Implementations must be
// safe for concurrent use.
type TradeExecutor interface {
	ExecuteTrade(ctx context.Context, intent TradeIntent) (TradeResult, error)
}

// Attestation is a third-party verifiability record of an executed trade.
type Attestation struct {
	ID        string
	Mint      string
	Proof     string
	CreatedAt time.Time
}

// TradeAttester produces an out-of-band attestation of an executed buy. It is
// not on the exit engine's critical path.
type TradeAttester interface {
	AttestTrade(ctx context.Context, mint string, amountSol float64) (Attestation, error)
}

// TokenResolver extracts a candidate token mint from free-form text. It
// returns an empty mint (and nil error) when the text contains nothing
// bullish or identifiable.
type TokenResolver interface {
	ResolveToken(ctx context.Context, text string) (string, error)
}
