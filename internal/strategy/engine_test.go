package strategy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solwatch/pumpbot/internal/domain"
)

// fakeSeller records every intent and can be told to fail.
type fakeSeller struct {
	mu      sync.Mutex
	intents []domain.TradeIntent
	fail    bool
}

func (f *fakeSeller) ExecuteTrade(_ context.Context, intent domain.TradeIntent) (domain.TradeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intents = append(f.intents, intent)
	if f.fail {
		return domain.TradeResult{}, errors.New("venue unavailable")
	}
	return domain.TradeResult{Success: true, Signature: "sig"}, nil
}

func (f *fakeSeller) all() []domain.TradeIntent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.TradeIntent(nil), f.intents...)
}

func (f *fakeSeller) setFail(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = v
}

type closeRecorder struct {
	mu     sync.Mutex
	closed []domain.ClosedPosition
}

func (r *closeRecorder) handler(c domain.ClosedPosition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = append(r.closed, c)
}

func (r *closeRecorder) all() []domain.ClosedPosition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ClosedPosition(nil), r.closed...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, cfg Config) (*Engine, *fakeSeller, *closeRecorder) {
	t.Helper()
	seller := &fakeSeller{}
	rec := &closeRecorder{}
	eng := NewEngine(cfg, seller, rec.handler, testLogger())
	return eng, seller, rec
}

func TestTierLadderFiresOnceEach(t *testing.T) {
	ctx := context.Background()
	eng, seller, rec := newTestEngine(t, Config{})

	eng.Open("mintA", 1.00, 1.0)

	eng.OnPriceTick(ctx, "mintA", 1.30)
	intents := seller.all()
	require.Len(t, intents, 1)
	assert.Equal(t, "40%", intents[0].Amount)
	assert.Equal(t, domain.TradeSideSell, intents[0].Side)
	assert.True(t, intents[0].AmountIsPercent)

	pos := eng.OpenPositions()
	require.Len(t, pos, 1)
	assert.InDelta(t, 0.60, pos[0].SizeTokens, 1e-9)
	assert.True(t, pos[0].Tier1Fired)
	assert.False(t, pos[0].Tier2Fired)

	eng.OnPriceTick(ctx, "mintA", 1.75)
	intents = seller.all()
	require.Len(t, intents, 2)
	assert.Equal(t, "30%", intents[1].Amount)

	pos = eng.OpenPositions()
	require.Len(t, pos, 1)
	assert.InDelta(t, 0.42, pos[0].SizeTokens, 1e-9)

	eng.OnPriceTick(ctx, "mintA", 2.50)
	intents = seller.all()
	require.Len(t, intents, 3)
	assert.Equal(t, "30%", intents[2].Amount)

	pos = eng.OpenPositions()
	require.Len(t, pos, 1)
	assert.InDelta(t, 0.42*0.70, pos[0].SizeTokens, 1e-9)
	assert.True(t, pos[0].Tier3Fired)

	// Further ticks above every threshold fire nothing more.
	eng.OnPriceTick(ctx, "mintA", 2.60)
	eng.OnPriceTick(ctx, "mintA", 2.70)
	assert.Len(t, seller.all(), 3)
	assert.Empty(t, rec.all())
}

func TestTierDoesNotRefireAfterDipAndRecross(t *testing.T) {
	ctx := context.Background()
	eng, seller, _ := newTestEngine(t, Config{})

	eng.Open("mintA", 1.00, 1.0)
	eng.OnPriceTick(ctx, "mintA", 1.30)
	eng.OnPriceTick(ctx, "mintA", 0.90)
	eng.OnPriceTick(ctx, "mintA", 1.35)

	sells := seller.all()
	assert.Len(t, sells, 1, "tier 1 must fire exactly once across repeated crossings")
}

func TestHighestPriceNeverDecreases(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t, Config{})

	eng.Open("mintA", 1.00, 1.0)
	for _, p := range []float64{1.00, 1.20, 1.10, 1.05, 1.19} {
		eng.OnPriceTick(ctx, "mintA", p)

		pos := eng.OpenPositions()
		require.Len(t, pos, 1)
		assert.GreaterOrEqual(t, pos[0].HighestPrice, pos[0].LastPrice)
		assert.GreaterOrEqual(t, pos[0].HighestPrice, pos[0].EntryPrice)
	}

	pos := eng.OpenPositions()
	assert.InDelta(t, 1.20, pos[0].HighestPrice, 1e-9)
}

func TestHardStopBoundary(t *testing.T) {
	ctx := context.Background()
	eng, seller, rec := newTestEngine(t, Config{})

	eng.Open("mintA", 1.00, 1.0)

	eng.OnPriceTick(ctx, "mintA", 0.71)
	assert.Len(t, eng.OpenPositions(), 1, "0.71 is above the -30%% stop")
	assert.Empty(t, seller.all())

	eng.OnPriceTick(ctx, "mintA", 0.70)
	assert.Empty(t, eng.OpenPositions())

	closes := rec.all()
	require.Len(t, closes, 1)
	assert.Equal(t, domain.CloseReasonHard, closes[0].Reason)

	sells := seller.all()
	require.Len(t, sells, 1)
	assert.Equal(t, "100%", sells[0].Amount)

	// Late tick for the removed mint is a no-op.
	eng.OnPriceTick(ctx, "mintA", 0.10)
	assert.Len(t, seller.all(), 1)
	assert.Len(t, rec.all(), 1)
}

func TestTrailingStopBoundary(t *testing.T) {
	ctx := context.Background()
	eng, _, rec := newTestEngine(t, Config{})

	eng.Open("mintA", 1.00, 1.0)
	eng.OnPriceTick(ctx, "mintA", 2.00) // high = 2.00, stop = 1.50

	eng.OnPriceTick(ctx, "mintA", 1.51)
	assert.Len(t, eng.OpenPositions(), 1, "1.51 is above the trailing stop")

	eng.OnPriceTick(ctx, "mintA", 1.50)
	assert.Empty(t, eng.OpenPositions())

	closes := rec.all()
	require.Len(t, closes, 1)
	assert.Equal(t, domain.CloseReasonTrail, closes[0].Reason)
	assert.InDelta(t, 1.50, closes[0].ExitPrice, 1e-9)
}

func TestTrailingStopOnlyWhileArmed(t *testing.T) {
	ctx := context.Background()
	eng, _, rec := newTestEngine(t, Config{})

	eng.Open("mintA", 1.00, 1.0)
	eng.OnPriceTick(ctx, "mintA", 1.40) // high = 1.40, would-be stop = 1.05

	// 1.00 is at or below the would-be stop, but pnl is 0% < +50%: the arm
	// condition is evaluated on the current tick, so no trailing exit.
	eng.OnPriceTick(ctx, "mintA", 1.00)
	assert.Len(t, eng.OpenPositions(), 1)
	assert.Empty(t, rec.all())
}

func TestTimeStopIsTickDriven(t *testing.T) {
	ctx := context.Background()
	eng, _, rec := newTestEngine(t, Config{MaxHold: 2 * time.Hour})

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	current := base
	eng.now = func() time.Time { return current }

	eng.Open("mintA", 1.00, 1.0)

	// Inside the horizon: nothing happens.
	current = base.Add(time.Hour)
	eng.OnPriceTick(ctx, "mintA", 1.01)
	assert.Len(t, eng.OpenPositions(), 1)

	// Past the horizon but silent: position must stay open.
	current = base.Add(3 * time.Hour)
	assert.Len(t, eng.OpenPositions(), 1)
	assert.Empty(t, rec.all())

	// The next tick is what triggers the time stop.
	eng.OnPriceTick(ctx, "mintA", 1.01)
	assert.Empty(t, eng.OpenPositions())

	closes := rec.all()
	require.Len(t, closes, 1)
	assert.Equal(t, domain.CloseReasonTime, closes[0].Reason)
}

func TestLazyEntryPriceFromFirstTick(t *testing.T) {
	ctx := context.Background()
	eng, seller, _ := newTestEngine(t, Config{})

	eng.Open("mintA", 0, 0)

	eng.OnPriceTick(ctx, "mintA", 2.00)
	pos := eng.OpenPositions()
	require.Len(t, pos, 1)
	assert.InDelta(t, 2.00, pos[0].EntryPrice, 1e-9)
	assert.Empty(t, seller.all(), "first tick sets entry, pnl is 0, no tier fires")

	eng.OnPriceTick(ctx, "mintA", 2.60)
	require.Len(t, seller.all(), 1, "+30%% against the backfilled entry fires tier 1")
}

func TestUnknownMintIsNoOp(t *testing.T) {
	ctx := context.Background()
	eng, seller, rec := newTestEngine(t, Config{})

	eng.OnPriceTick(ctx, "ghost", 1.00)
	assert.Empty(t, seller.all())
	assert.Empty(t, rec.all())
}

func TestSizeNeverIncreasesOrGoesNegative(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t, Config{})

	eng.Open("mintA", 1.00, 1.0)
	prev := 1.0
	for _, p := range []float64{1.30, 1.75, 2.50, 2.80, 3.00} {
		eng.OnPriceTick(ctx, "mintA", p)
		pos := eng.OpenPositions()
		require.Len(t, pos, 1)
		assert.LessOrEqual(t, pos[0].SizeTokens, prev)
		assert.GreaterOrEqual(t, pos[0].SizeTokens, 0.0)
		prev = pos[0].SizeTokens
	}
}

func TestFailedExitDefaultPolicyRemovesPosition(t *testing.T) {
	ctx := context.Background()
	eng, seller, rec := newTestEngine(t, Config{})

	eng.Open("mintA", 1.00, 1.0)
	seller.setFail(true)

	eng.OnPriceTick(ctx, "mintA", 0.50)
	assert.Empty(t, eng.OpenPositions(), "fire-and-forget removal even when the sell fails")
	require.Len(t, rec.all(), 1)
}

func TestFailedExitKeepOpenPolicyRetries(t *testing.T) {
	ctx := context.Background()
	eng, seller, rec := newTestEngine(t, Config{KeepOpenOnFailedExit: true})

	eng.Open("mintA", 1.00, 1.0)
	seller.setFail(true)

	eng.OnPriceTick(ctx, "mintA", 0.50)
	assert.Len(t, eng.OpenPositions(), 1, "unconfirmed exit keeps the position tracked")
	assert.Empty(t, rec.all())

	// Venue recovers; the next tick retries and closes.
	seller.setFail(false)
	eng.OnPriceTick(ctx, "mintA", 0.55)
	assert.Empty(t, eng.OpenPositions())

	closes := rec.all()
	require.Len(t, closes, 1)
	assert.Equal(t, domain.CloseReasonHard, closes[0].Reason)
}

func TestUpdateStopsTakeEffectOnNextTick(t *testing.T) {
	ctx := context.Background()
	eng, _, rec := newTestEngine(t, Config{})

	eng.Open("mintA", 1.00, 1.0)

	require.NoError(t, eng.UpdateHardStop("mintA", -0.10))
	eng.OnPriceTick(ctx, "mintA", 0.89)
	assert.Empty(t, eng.OpenPositions())

	closes := rec.all()
	require.Len(t, closes, 1)
	assert.Equal(t, domain.CloseReasonHard, closes[0].Reason)

	assert.ErrorIs(t, eng.UpdateHardStop("ghost", -0.5), domain.ErrNotFound)
	assert.ErrorIs(t, eng.UpdateTrailingStop("ghost", 0.1), domain.ErrNotFound)
}

func TestPnLSnapshot(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t, Config{})

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	current := base
	eng.now = func() time.Time { return current }

	eng.Open("mintA", 1.00, 5.0)
	current = base.Add(10 * time.Minute)
	eng.OnPriceTick(ctx, "mintA", 1.10)

	snaps := eng.PnLSnapshot()
	require.Len(t, snaps, 1)
	assert.Equal(t, "mintA", snaps[0].Mint)
	assert.InDelta(t, 10.0, snaps[0].PnLPct, 1e-9)
	assert.InDelta(t, 5.0, snaps[0].TokensLeft, 1e-9)
	assert.Equal(t, 10*time.Minute, snaps[0].Age)
}

func TestForceClose(t *testing.T) {
	ctx := context.Background()
	eng, seller, rec := newTestEngine(t, Config{})

	eng.Open("mintA", 1.00, 1.0)
	require.NoError(t, eng.ForceClose(ctx, "mintA"))
	assert.Empty(t, eng.OpenPositions())

	closes := rec.all()
	require.Len(t, closes, 1)
	assert.Equal(t, domain.CloseReasonForce, closes[0].Reason)

	sells := seller.all()
	require.Len(t, sells, 1)
	assert.Equal(t, "100%", sells[0].Amount)

	assert.ErrorIs(t, eng.ForceClose(ctx, "mintA"), domain.ErrNotFound)
}
