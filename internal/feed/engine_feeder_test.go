package feed

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solwatch/pumpbot/internal/domain"
	"github.com/solwatch/pumpbot/internal/strategy"
)

type recordingCache struct {
	mu     sync.Mutex
	prices map[string]float64
}

func newRecordingCache() *recordingCache {
	return &recordingCache{prices: make(map[string]float64)}
}

func (c *recordingCache) SetPrice(_ context.Context, mint string, priceSol float64, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[mint] = priceSol
	return nil
}

func (c *recordingCache) GetPrice(_ context.Context, mint string) (float64, time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.prices[mint]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return p, time.Time{}, nil
}

func (c *recordingCache) GetPrices(_ context.Context, mints []string) (map[string]float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]float64)
	for _, m := range mints {
		if p, ok := c.prices[m]; ok {
			out[m] = p
		}
	}
	return out, nil
}

type noopSeller struct{}

func (noopSeller) ExecuteTrade(context.Context, domain.TradeIntent) (domain.TradeResult, error) {
	return domain.TradeResult{Success: true}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEngineFeederDrivesEngineAndCache(t *testing.T) {
	eng := strategy.NewEngine(strategy.Config{}, noopSeller{}, nil, testLogger())
	eng.Open("mintA", 1.00, 1.0)

	cache := newRecordingCache()
	ticks := make(chan domain.TradeTick, 4)
	feeder := NewEngineFeeder(ticks, eng, cache, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- feeder.Run(ctx) }()

	ticks <- domain.TradeTick{Mint: "mintA", PriceSol: 1.10, Received: time.Now()}

	require.Eventually(t, func() bool {
		pos := eng.OpenPositions()
		return len(pos) == 1 && pos[0].LastPrice == 1.10
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		p, _, err := cache.GetPrice(context.Background(), "mintA")
		return err == nil && p == 1.10
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestEngineFeederStopsWhenStreamCloses(t *testing.T) {
	ticks := make(chan domain.TradeTick)
	feeder := NewEngineFeeder(ticks, nil, nil, testLogger())

	done := make(chan error, 1)
	go func() { done <- feeder.Run(context.Background()) }()

	close(ticks)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("feeder did not stop on closed stream")
	}
}
