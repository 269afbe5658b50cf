// Package chain defines the read/write blockchain access contract consumed
// by the custody services. Implementations live in subpackages; the services
// never touch raw log or topic structures.
package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

// ErrReceiptNotFound signals that a transaction is not yet mined (or is
// unknown to the node). Callers treat this as "still in flight".
var ErrReceiptNotFound = errors.New("receipt not found")

// TransferEvent is a fixed-shape token transfer decoded at the provider
// boundary. Addresses are lower-cased hex for direct map comparison.
type TransferEvent struct {
	TxHash      string
	From        string
	To          string
	Amount      decimal.Decimal
	BlockNumber uint64
}

// Receipt is the terminal outcome of a mined transaction.
type Receipt struct {
	Success     bool
	BlockNumber uint64
	GasUsed     uint64
}

// Provider is read/write access to the chain. Implementations are assumed
// unreliable and rate-limited; callers retry by rescheduling, not by looping.
type Provider interface {
	// CurrentBlockHeight returns the latest block number.
	CurrentBlockHeight(ctx context.Context) (uint64, error)

	// TransferEvents returns all stable-token transfer events in the
	// inclusive block range, in block-ascending order.
	TransferEvents(ctx context.Context, fromBlock, toBlock uint64) ([]TransferEvent, error)

	// Receipt fetches the receipt for a transaction hash, or
	// ErrReceiptNotFound when the transaction is not yet mined.
	Receipt(ctx context.Context, txHash string) (*Receipt, error)

	// NativeBalance returns the gas-currency balance of an address in wei.
	NativeBalance(ctx context.Context, address string) (*big.Int, error)

	// TokenBalance returns the stable-token balance of an address.
	TokenBalance(ctx context.Context, address string) (decimal.Decimal, error)

	// SubmitTransfer signs and submits a token transfer from the key's
	// address and waits for it to be mined. Returns the transaction hash.
	SubmitTransfer(ctx context.Context, key *ecdsa.PrivateKey, to string, amount decimal.Decimal) (string, error)
}
