package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"github.com/lottoloop/chain-custody/internal/chain"
	"github.com/lottoloop/chain-custody/internal/domain"
	"github.com/lottoloop/chain-custody/internal/keyring"
	"github.com/lottoloop/chain-custody/internal/models"
	"github.com/lottoloop/chain-custody/internal/observability"
)

// Sweeper moves funds from a deposit address into the treasury. Split out
// as an interface so the scanner can be tested without chain access.
type Sweeper interface {
	Sweep(ctx context.Context, account models.Account) error
}

// FundSweeper transfers the full token balance of a deposit address to the
// treasury, gated on the address holding enough native gas. Sweep failures
// never affect the already-credited player balance; they only delay moving
// custody of the funds.
type FundSweeper struct {
	chain          chain.Provider
	ledger         LedgerStore
	keys           keyring.Deriver
	gas            GasPolicy
	treasury       string
	minGasFallback *big.Int
}

func NewFundSweeper(provider chain.Provider, ledger LedgerStore, keys keyring.Deriver, gas GasPolicy, treasury string, minGasFallback *big.Int) *FundSweeper {
	return &FundSweeper{
		chain:          provider,
		ledger:         ledger,
		keys:           keys,
		gas:            gas,
		treasury:       treasury,
		minGasFallback: minGasFallback,
	}
}

// Sweep checks the gas precondition, submits the transfer, and records a
// confirmed sweep row. Insufficient gas is an expected state, not an error.
func (s *FundSweeper) Sweep(ctx context.Context, account models.Account) error {
	gasBalance, err := s.chain.NativeBalance(ctx, account.DepositAddress)
	if err != nil {
		observability.IncrementSweep("failed")
		return fmt.Errorf("get native balance for %s: %w", account.DepositAddress, err)
	}

	threshold := s.gas.MinGasWei(ctx, s.minGasFallback)
	if gasBalance.Cmp(threshold) < 0 {
		observability.IncrementSweep("skipped_gas")
		zap.L().Info("sweep skipped: insufficient gas at deposit address",
			zap.String("address", account.DepositAddress),
			zap.String("gas_wei", gasBalance.String()),
			zap.String("threshold_wei", threshold.String()),
		)
		return nil
	}

	tokenBalance, err := s.chain.TokenBalance(ctx, account.DepositAddress)
	if err != nil {
		observability.IncrementSweep("failed")
		return fmt.Errorf("get token balance for %s: %w", account.DepositAddress, err)
	}
	if !tokenBalance.IsPositive() {
		return nil
	}

	key, err := s.keys.SigningKey(account.DerivationIndex)
	if err != nil {
		observability.IncrementSweep("failed")
		return fmt.Errorf("derive signing key for index %d: %w", account.DerivationIndex, err)
	}

	txHash, err := s.chain.SubmitTransfer(ctx, key, s.treasury, tokenBalance)
	if err != nil {
		observability.IncrementSweep("failed")
		return fmt.Errorf("submit sweep from %s: %w", account.DepositAddress, err)
	}

	accountID := account.ID
	rec := &models.TransactionRecord{
		Type:        domain.TxTypeSweep,
		TxHash:      txHash,
		FromAddress: account.DepositAddress,
		ToAddress:   s.treasury,
		Amount:      tokenBalance,
		Status:      domain.TxStatusConfirmed,
		AccountID:   &accountID,
	}
	if err := s.ledger.Record(ctx, rec); err != nil {
		if errors.Is(err, models.ErrDuplicateTransaction) {
			zap.L().Warn("sweep already recorded", zap.String("tx_hash", txHash))
			return nil
		}
		observability.IncrementSweep("failed")
		return fmt.Errorf("record sweep %s: %w", txHash, err)
	}

	observability.IncrementSweep("swept")
	zap.L().Info("funds swept to treasury",
		zap.String("address", account.DepositAddress),
		zap.String("tx_hash", txHash),
		zap.String("amount", tokenBalance.String()),
	)
	return nil
}
