package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrDuplicateTransaction = errors.New("transaction already recorded")
)

// Account is a player account with a custodial deposit address. The
// derivation index is assigned once at creation and never reused; the
// address is a deterministic function of the index.
type Account struct {
	ID              uuid.UUID       `json:"id"`
	DepositAddress  string          `json:"deposit_address"`
	DerivationIndex uint32          `json:"derivation_index"`
	FunBalance      decimal.Decimal `json:"fun_balance"`
	TokenBalance    decimal.Decimal `json:"token_balance"`
	CreatedAt       time.Time       `json:"created_at"`
}

// TransactionRecord is an immutable ledger row for an on-chain event.
// The pair (Type, TxHash) is unique and acts as the idempotency key that
// prevents double-processing the same on-chain transaction.
type TransactionRecord struct {
	ID          uuid.UUID       `json:"id"`
	Type        string          `json:"type"`   // deposit | sweep | withdrawal
	TxHash      string          `json:"tx_hash"`
	FromAddress string          `json:"from_address"`
	ToAddress   string          `json:"to_address"`
	Amount      decimal.Decimal `json:"amount"`
	Status      string          `json:"status"` // PENDING | CONFIRMED | FAILED
	BlockNumber *uint64         `json:"block_number,omitempty"`
	GasUsed     *uint64         `json:"gas_used,omitempty"`
	AccountID   *uuid.UUID      `json:"account_id,omitempty"` // nil for system-level rows
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ScanStatus is the coarse scanner state exposed to the admin API.
type ScanStatus struct {
	IsScanning         bool   `json:"is_scanning"`
	LastProcessedBlock uint64 `json:"last_processed_block"`
	CurrentBlock       uint64 `json:"current_block"`
}
