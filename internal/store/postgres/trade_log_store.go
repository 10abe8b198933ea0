package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solwatch/pumpbot/internal/domain"
)

// TradeLogStore implements domain.TradeLogStore using PostgreSQL.
type TradeLogStore struct {
	pool *pgxpool.Pool
}

// NewTradeLogStore creates a TradeLogStore backed by the given pool.
func NewTradeLogStore(pool *pgxpool.Pool) *TradeLogStore {
	return &TradeLogStore{pool: pool}
}

const tradeLogCols = `id, mint, side, amount, is_percent, reason, success, signature, error, created_at`

// Insert appends one trade log entry. Re-inserting the same intent ID is a
// no-op so executor retries stay idempotent.
func (s *TradeLogStore) Insert(ctx context.Context, entry domain.TradeLogEntry) error {
	const query = `
		INSERT INTO trade_log (` + tradeLogCols + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		entry.ID, entry.Mint, string(entry.Side), entry.Amount, entry.IsPercent,
		entry.Reason, entry.Success, entry.Signature, entry.Error, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert trade log %s: %w", entry.ID, err)
	}
	return nil
}

// ListRecent returns up to limit entries, newest first.
func (s *TradeLogStore) ListRecent(ctx context.Context, limit int) ([]domain.TradeLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	const query = `
		SELECT ` + tradeLogCols + `
		FROM trade_log
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trade log: %w", err)
	}
	defer rows.Close()

	entries, err := scanTradeLogRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trade log: %w", err)
	}
	return entries, nil
}

func scanTradeLogRows(rows pgx.Rows) ([]domain.TradeLogEntry, error) {
	var entries []domain.TradeLogEntry
	for rows.Next() {
		var e domain.TradeLogEntry
		var side string
		if err := rows.Scan(
			&e.ID, &e.Mint, &side, &e.Amount, &e.IsPercent,
			&e.Reason, &e.Success, &e.Signature, &e.Error, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		e.Side = domain.TradeSide(side)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

var _ domain.TradeLogStore = (*TradeLogStore)(nil)
