package service

import (
	"context"
	"math/big"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lottoloop/chain-custody/internal/models"
)

// AccountStore is the account-side data access contract required by the
// scanner: listing deposit addresses and mutating balances.
type AccountStore interface {
	ListDepositAccounts(ctx context.Context) ([]models.Account, error)
	AdjustBalance(ctx context.Context, accountID uuid.UUID, currency string, delta decimal.Decimal) error
}

// LedgerStore records and finalizes immutable transaction-history rows.
type LedgerStore interface {
	Record(ctx context.Context, rec *models.TransactionRecord) error
	DepositExists(ctx context.Context, txHash string) (bool, error)
	ListPending(ctx context.Context) ([]models.TransactionRecord, error)
	MarkConfirmed(ctx context.Context, id uuid.UUID, blockNumber, gasUsed uint64) error
	MarkFailed(ctx context.Context, id uuid.UUID) error
	LatestConfirmedDepositBlock(ctx context.Context) (uint64, bool, error)
}

// WatermarkStore persists the scan cursor.
type WatermarkStore interface {
	Get(ctx context.Context) (uint64, bool, error)
	Set(ctx context.Context, block uint64) error
}

// GasPolicy resolves the minimum native-gas threshold below which a sweep
// is skipped. Backed by the admin settings cache in production.
type GasPolicy interface {
	MinGasWei(ctx context.Context, fallback *big.Int) *big.Int
}
