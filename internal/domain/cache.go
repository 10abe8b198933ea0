package domain

import (
	"context"
	"time"
)

// PriceCache provides fast access to the latest observed prices.
type PriceCache interface {
	SetPrice(ctx context.Context, mint string, priceSol float64, ts time.Time) error
	GetPrice(ctx context.Context, mint string) (float64, time.Time, error)
	GetPrices(ctx context.Context, mints []string) (map[string]float64, error)
}
