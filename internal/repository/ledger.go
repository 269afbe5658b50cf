package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lottoloop/chain-custody/internal/domain"
	"github.com/lottoloop/chain-custody/internal/models"
)

// Ledger writes immutable transaction-history rows. The unique constraint
// on (type, tx_hash) is the idempotency key for the whole pipeline.
type Ledger struct {
	db *pgxpool.Pool
}

func NewLedger(db *pgxpool.Pool) *Ledger {
	return &Ledger{db: db}
}

const ledgerColumns = `id, type, tx_hash, from_address, to_address, amount, status, block_number, gas_used, account_id, created_at, updated_at`

// Record inserts a new ledger row. A (type, tx_hash) conflict returns
// models.ErrDuplicateTransaction; callers treat that as "already handled".
func (l *Ledger) Record(ctx context.Context, rec *models.TransactionRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	query := `INSERT INTO transactions (id, type, tx_hash, from_address, to_address, amount, status, block_number, gas_used, account_id, created_at, updated_at)
		VALUES ($1, $2, $3, lower($4), lower($5), $6, $7, $8, $9, $10, NOW(), NOW()) RETURNING created_at, updated_at`
	err := l.db.QueryRow(ctx, query,
		rec.ID, rec.Type, rec.TxHash, rec.FromAddress, rec.ToAddress,
		rec.Amount, rec.Status, rec.BlockNumber, rec.GasUsed, rec.AccountID,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return models.ErrDuplicateTransaction
		}
		return fmt.Errorf("failed to record transaction: %w", err)
	}
	return nil
}

// DepositExists reports whether a deposit row already exists for a chain tx.
func (l *Ledger) DepositExists(ctx context.Context, txHash string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM transactions WHERE type = $1 AND tx_hash = $2)`
	if err := l.db.QueryRow(ctx, query, domain.TxTypeDeposit, txHash).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check deposit existence: %w", err)
	}
	return exists, nil
}

// ListPending returns all rows still awaiting an on-chain outcome.
func (l *Ledger) ListPending(ctx context.Context) ([]models.TransactionRecord, error) {
	query := `SELECT ` + ledgerColumns + ` FROM transactions WHERE status = $1 ORDER BY created_at`
	rows, err := l.db.Query(ctx, query, domain.TxStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending transactions: %w", err)
	}
	defer rows.Close()

	var records []models.TransactionRecord
	for rows.Next() {
		var rec models.TransactionRecord
		if err := rows.Scan(&rec.ID, &rec.Type, &rec.TxHash, &rec.FromAddress, &rec.ToAddress,
			&rec.Amount, &rec.Status, &rec.BlockNumber, &rec.GasUsed, &rec.AccountID,
			&rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// MarkConfirmed finalizes a pending row, enriching it with the mined block
// and gas used. Terminal rows are never touched again.
func (l *Ledger) MarkConfirmed(ctx context.Context, id uuid.UUID, blockNumber, gasUsed uint64) error {
	query := `UPDATE transactions SET status = $1, block_number = $2, gas_used = $3, updated_at = NOW()
		WHERE id = $4 AND status = $5`
	tag, err := l.db.Exec(ctx, query, domain.TxStatusConfirmed, blockNumber, gasUsed, id, domain.TxStatusPending)
	if err != nil {
		return fmt.Errorf("failed to confirm transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction %s is not pending", id)
	}
	return nil
}

// MarkFailed finalizes a pending row whose on-chain execution reverted.
func (l *Ledger) MarkFailed(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE transactions SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`
	tag, err := l.db.Exec(ctx, query, domain.TxStatusFailed, id, domain.TxStatusPending)
	if err != nil {
		return fmt.Errorf("failed to fail transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction %s is not pending", id)
	}
	return nil
}

// LatestConfirmedDepositBlock returns the block number of the newest
// confirmed deposit, used to seed the watermark on a warm start. The second
// return is false when no deposit history exists.
func (l *Ledger) LatestConfirmedDepositBlock(ctx context.Context) (uint64, bool, error) {
	var block uint64
	query := `SELECT block_number FROM transactions
		WHERE type = $1 AND status = $2 AND block_number IS NOT NULL
		ORDER BY block_number DESC LIMIT 1`
	err := l.db.QueryRow(ctx, query, domain.TxTypeDeposit, domain.TxStatusConfirmed).Scan(&block)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get latest deposit block: %w", err)
	}
	return block, true, nil
}
