package domain

import "time"

// Default per-position stop thresholds. Both are mutable at runtime via the
// engine's operator overrides.
const (
	DefaultHardStopPct = -0.30
	DefaultTrailingPct = 0.25
)

// CloseReason identifies which exit rule closed a position.
type CloseReason string

const (
	CloseReasonTrail CloseReason = "TRAIL"
	CloseReasonHard  CloseReason = "HARD"
	CloseReasonTime  CloseReason = "TIME"
	CloseReasonForce CloseReason = "FORCE"
)

// Position is an open holding in a single token, keyed by mint address.
// EntryPrice may be 0 at creation ("not yet observed"); the first tick after
// creation backfills it. HighestPrice never decreases and SizeTokens never
// increases for the lifetime of the position.
type Position struct {
	Mint         string
	EntryPrice   float64 // SOL per token; 0 until first price seen
	SizeTokens   float64 // fractional tokens still held
	HighestPrice float64 // running max of observed prices
	LastPrice    float64 // latest observed price
	CreatedAt    time.Time
	HardStopPct  float64 // negative, e.g. -0.30
	TrailingPct  float64 // e.g. 0.25

	// One-shot take-profit tiers. Each fires at most once, never resets.
	Tier1Fired bool
	Tier2Fired bool
	Tier3Fired bool
}

// PnL returns the percentage change of the last observed price relative to
// entry, or 0 when the entry price is still unknown.
func (p Position) PnL() float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	return p.LastPrice/p.EntryPrice - 1
}

// Age returns how long the position has been open as of now.
func (p Position) Age(now time.Time) time.Duration {
	return now.Sub(p.CreatedAt)
}

// PositionSnapshot is a read-only, table-friendly view of a live position.
type PositionSnapshot struct {
	Mint         string
	EntryPrice   float64
	LastPrice    float64
	PnLPct       float64
	TokensLeft   float64
	HighestPrice float64
	Age          time.Duration
}

// ClosedPosition is emitted when a position fully exits and is removed from
// the open set.
type ClosedPosition struct {
	Mint       string
	Reason     CloseReason
	EntryPrice float64
	ExitPrice  float64
	ClosedAt   time.Time
}
