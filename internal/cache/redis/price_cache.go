package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/solwatch/pumpbot/internal/domain"
)

// priceTTL bounds how long a quote survives without fresh ticks. Pump tokens
// go quiet permanently all the time; expiring the key keeps the cache from
// serving a price that no longer means anything.
const priceTTL = 10 * time.Minute

// PriceCache implements domain.PriceCache using one Redis hash per mint at
// key "tick:{mint}" with fields "sol" and "ts" (Unix nanoseconds).
type PriceCache struct {
	rdb *redis.Client
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.Underlying()}
}

func tickKey(mint string) string {
	return "tick:" + mint
}

// SetPrice stores the latest SOL price and observation time for a mint and
// refreshes the key's TTL.
func (pc *PriceCache) SetPrice(ctx context.Context, mint string, priceSol float64, ts time.Time) error {
	key := tickKey(mint)
	fields := map[string]interface{}{
		"sol": strconv.FormatFloat(priceSol, 'f', -1, 64),
		"ts":  strconv.FormatInt(ts.UnixNano(), 10),
	}

	pipe := pc.rdb.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, priceTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set price %s: %w", mint, err)
	}
	return nil
}

// GetPrice returns the latest price and observation time for a mint, or
// domain.ErrNotFound when no live quote exists.
func (pc *PriceCache) GetPrice(ctx context.Context, mint string) (float64, time.Time, error) {
	vals, err := pc.rdb.HGetAll(ctx, tickKey(mint)).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: get price %s: %w", mint, err)
	}
	if len(vals) == 0 {
		return 0, time.Time{}, domain.ErrNotFound
	}

	price, ts, err := parseTickFields(vals)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: price %s: %w", mint, err)
	}
	return price, ts, nil
}

// GetPrices returns the latest prices for multiple mints using one pipeline.
// Mints without a live quote are omitted from the result.
func (pc *PriceCache) GetPrices(ctx context.Context, mints []string) (map[string]float64, error) {
	if len(mints) == 0 {
		return map[string]float64{}, nil
	}

	pipe := pc.rdb.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(mints))
	for _, mint := range mints {
		cmds[mint] = pipe.HGetAll(ctx, tickKey(mint))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: get prices pipeline: %w", err)
	}

	out := make(map[string]float64, len(mints))
	for mint, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil || len(vals) == 0 {
			continue
		}
		price, _, err := parseTickFields(vals)
		if err != nil {
			continue
		}
		out[mint] = price
	}
	return out, nil
}

func parseTickFields(vals map[string]string) (float64, time.Time, error) {
	solStr, ok := vals["sol"]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	price, err := strconv.ParseFloat(solStr, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("parse sol field: %w", err)
	}

	tsStr, ok := vals["ts"]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("parse ts field: %w", err)
	}

	return price, time.Unix(0, tsNano), nil
}

var _ domain.PriceCache = (*PriceCache)(nil)
