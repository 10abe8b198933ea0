package domain

import (
	"context"
	"io"
	"time"
)

// TradeLogEntry is the durable audit record of one emitted trade intent and
// its observed outcome. The trade log is an operator audit trail; it is never
// read back to reconstruct position state.
type TradeLogEntry struct {
	ID        string
	Mint      string
	Side      TradeSide
	Amount    string
	IsPercent bool
	Reason    string
	Success   bool
	Signature string
	Error     string // venue error text, empty on success
	CreatedAt time.Time
}

// TradeLogStore persists trade log entries.
type TradeLogStore interface {
	Insert(ctx context.Context, entry TradeLogEntry) error
	ListRecent(ctx context.Context, limit int) ([]TradeLogEntry, error)
}

// BlobWriter uploads objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}
