package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/lottoloop/chain-custody/internal/chain"
	"github.com/lottoloop/chain-custody/internal/observability"
)

// PendingTxReconciler finalizes transaction records left in a pending state
// (typically outgoing withdrawals) from their on-chain receipts.
type PendingTxReconciler struct {
	ledger LedgerStore
	chain  chain.Provider
}

func NewPendingTxReconciler(ledger LedgerStore, provider chain.Provider) *PendingTxReconciler {
	return &PendingTxReconciler{ledger: ledger, chain: provider}
}

// ReconcilePending walks all pending rows and transitions each to confirmed
// or failed based on its receipt. Rows without a receipt are still in flight
// and are left for the next run. One failing lookup never aborts the batch.
func (r *PendingTxReconciler) ReconcilePending(ctx context.Context) error {
	pending, err := r.ledger.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("list pending transactions: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	for _, rec := range pending {
		receipt, err := r.chain.Receipt(ctx, rec.TxHash)
		if err != nil {
			if errors.Is(err, chain.ErrReceiptNotFound) {
				observability.IncrementReconciled("inflight")
				continue
			}
			zap.L().Error("receipt lookup failed", zap.String("tx_hash", rec.TxHash), zap.Error(err))
			continue
		}

		if receipt.Success {
			if err := r.ledger.MarkConfirmed(ctx, rec.ID, receipt.BlockNumber, receipt.GasUsed); err != nil {
				zap.L().Error("confirm transition failed", zap.String("tx_hash", rec.TxHash), zap.Error(err))
				continue
			}
			observability.IncrementReconciled("confirmed")
			zap.L().Info("pending transaction confirmed",
				zap.String("tx_hash", rec.TxHash),
				zap.Uint64("block", receipt.BlockNumber),
			)
			continue
		}

		if err := r.ledger.MarkFailed(ctx, rec.ID); err != nil {
			zap.L().Error("fail transition failed", zap.String("tx_hash", rec.TxHash), zap.Error(err))
			continue
		}
		observability.IncrementReconciled("failed")
		zap.L().Warn("pending transaction reverted on chain", zap.String("tx_hash", rec.TxHash))
	}
	return nil
}
