package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Watermark persists the "last fully scanned block" cursor. The scanner is
// the only writer; the GREATEST guard in Set makes the cursor monotonic even
// if a stale write slips through.
type Watermark struct {
	db *pgxpool.Pool
}

func NewWatermark(db *pgxpool.Pool) *Watermark {
	return &Watermark{db: db}
}

// Get returns the persisted cursor. The second return is false when no
// cursor has ever been written (cold start).
func (w *Watermark) Get(ctx context.Context) (uint64, bool, error) {
	var block uint64
	err := w.db.QueryRow(ctx, `SELECT last_scanned_block FROM scan_state WHERE id = 1`).Scan(&block)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get watermark: %w", err)
	}
	return block, true, nil
}

// Set persists the cursor, never moving it backwards.
func (w *Watermark) Set(ctx context.Context, block uint64) error {
	query := `INSERT INTO scan_state (id, last_scanned_block) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET last_scanned_block = GREATEST(scan_state.last_scanned_block, EXCLUDED.last_scanned_block)`
	if _, err := w.db.Exec(ctx, query, block); err != nil {
		return fmt.Errorf("failed to set watermark: %w", err)
	}
	return nil
}
