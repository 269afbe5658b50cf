package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/lottoloop/chain-custody/internal/chain"
	"github.com/lottoloop/chain-custody/internal/domain"
	"github.com/lottoloop/chain-custody/internal/models"
	"github.com/lottoloop/chain-custody/internal/observability"
)

// DepositScanner advances the persisted watermark toward the chain head in
// bounded chunks, credits each matched deposit exactly once, and attempts a
// best-effort sweep after every credit. It owns the watermark and the
// single-flight guard; all other components are stateless services it calls.
type DepositScanner struct {
	accounts  AccountStore
	ledger    LedgerStore
	watermark WatermarkStore
	chain     chain.Provider
	sweeper   Sweeper

	chunkSize      uint64
	backfillWindow uint64

	running       atomic.Bool
	lastProcessed atomic.Uint64
	currentHeight atomic.Uint64
}

func NewDepositScanner(accounts AccountStore, ledger LedgerStore, watermark WatermarkStore, provider chain.Provider, sweeper Sweeper, chunkSize, backfillWindow uint64) *DepositScanner {
	if chunkSize == 0 {
		chunkSize = 2000
	}
	return &DepositScanner{
		accounts:       accounts,
		ledger:         ledger,
		watermark:      watermark,
		chain:          provider,
		sweeper:        sweeper,
		chunkSize:      chunkSize,
		backfillWindow: backfillWindow,
	}
}

// RunScanCycle runs one scan pass. If a cycle is already in flight the call
// returns false immediately; overlap is a well-defined skip, not a race.
// Cycle errors are absorbed and logged here and never reach the caller: the
// watermark reflects only fully-completed chunks, so the next scheduled
// cycle resumes correctly.
func (s *DepositScanner) RunScanCycle(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		zap.L().Debug("scan cycle already in progress, skipping")
		return false
	}
	defer s.running.Store(false)

	if err := s.scan(ctx); err != nil {
		observability.IncrementScanCycle("failed")
		zap.L().Error("deposit scan cycle failed", zap.Error(err))
		return true
	}
	observability.IncrementScanCycle("success")
	return true
}

// TriggerNow is the admin-facing manual trigger. It reports started=false
// with a reason when a scheduled cycle holds the flag, otherwise runs one
// cycle synchronously.
func (s *DepositScanner) TriggerNow(ctx context.Context) (bool, string) {
	if !s.RunScanCycle(ctx) {
		return false, "scan already in progress"
	}
	return true, ""
}

// Status reports coarse scanner state for the admin API.
func (s *DepositScanner) Status(ctx context.Context) models.ScanStatus {
	last := s.lastProcessed.Load()
	if last == 0 {
		if persisted, ok, err := s.watermark.Get(ctx); err == nil && ok {
			last = persisted
		}
	}
	height := s.currentHeight.Load()
	if fresh, err := s.chain.CurrentBlockHeight(ctx); err == nil {
		height = fresh
	}
	return models.ScanStatus{
		IsScanning:         s.running.Load(),
		LastProcessedBlock: last,
		CurrentBlock:       height,
	}
}

func (s *DepositScanner) scan(ctx context.Context) error {
	height, err := s.chain.CurrentBlockHeight(ctx)
	if err != nil {
		return fmt.Errorf("get chain height: %w", err)
	}
	s.currentHeight.Store(height)

	mark, err := s.loadOrInitWatermark(ctx, height)
	if err != nil {
		return err
	}
	s.lastProcessed.Store(mark)

	if height <= mark {
		return nil
	}

	accounts, err := s.accounts.ListDepositAccounts(ctx)
	if err != nil {
		return fmt.Errorf("list deposit accounts: %w", err)
	}
	directory := BuildAddressDirectory(accounts)
	if directory.Len() == 0 {
		// Nothing can match; skip the range without burning provider calls.
		return s.advance(ctx, height)
	}

	for from := mark + 1; from <= height; from += s.chunkSize {
		to := from + s.chunkSize - 1
		if to > height {
			to = height
		}

		events, err := s.chain.TransferEvents(ctx, from, to)
		if err != nil {
			return fmt.Errorf("fetch transfer events [%d,%d]: %w", from, to, err)
		}

		for _, event := range events {
			s.processEvent(ctx, directory, event)
		}

		// Advance per chunk, not per event: a crash mid-chunk re-scans the
		// whole chunk, which the idempotency check makes safe.
		if err := s.advance(ctx, to); err != nil {
			return err
		}
	}
	return nil
}

// loadOrInitWatermark returns the scan cursor, initializing it on first run
// from the latest confirmed deposit, else a bounded backfill window below
// the current head (never from genesis).
func (s *DepositScanner) loadOrInitWatermark(ctx context.Context, height uint64) (uint64, error) {
	mark, ok, err := s.watermark.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("get watermark: %w", err)
	}
	if ok {
		return mark, nil
	}

	latest, has, err := s.ledger.LatestConfirmedDepositBlock(ctx)
	if err != nil {
		return 0, fmt.Errorf("get latest deposit block: %w", err)
	}
	if has {
		mark = latest
	} else if height > s.backfillWindow {
		mark = height - s.backfillWindow
	} else {
		mark = 0
	}

	if err := s.watermark.Set(ctx, mark); err != nil {
		return 0, fmt.Errorf("initialize watermark: %w", err)
	}
	zap.L().Info("watermark initialized", zap.Uint64("block", mark), zap.Uint64("chain_height", height))
	return mark, nil
}

func (s *DepositScanner) advance(ctx context.Context, block uint64) error {
	if err := s.watermark.Set(ctx, block); err != nil {
		return fmt.Errorf("persist watermark %d: %w", block, err)
	}
	s.lastProcessed.Store(block)
	observability.SetWatermark(block)
	return nil
}

// processEvent credits a single matched transfer event exactly once and
// attempts a sweep. Per-event problems are absorbed: an unmatched recipient
// is not ours, a duplicate is already handled, a vanished account is a data
// bug worth logging, and a sweep failure never rolls back the credit.
func (s *DepositScanner) processEvent(ctx context.Context, directory *AddressDirectory, event chain.TransferEvent) {
	account, ok := directory.Lookup(event.To)
	if !ok {
		return
	}

	exists, err := s.ledger.DepositExists(ctx, event.TxHash)
	if err != nil {
		zap.L().Error("deposit existence check failed", zap.String("tx_hash", event.TxHash), zap.Error(err))
		return
	}
	if exists {
		return
	}

	if err := s.accounts.AdjustBalance(ctx, account.ID, domain.CurrencyToken, event.Amount); err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			zap.L().Error("deposit address matched but account vanished",
				zap.String("account_id", account.ID.String()),
				zap.String("tx_hash", event.TxHash),
			)
			return
		}
		zap.L().Error("balance credit failed", zap.String("tx_hash", event.TxHash), zap.Error(err))
		return
	}

	blockNumber := event.BlockNumber
	accountID := account.ID
	rec := &models.TransactionRecord{
		Type:        domain.TxTypeDeposit,
		TxHash:      event.TxHash,
		FromAddress: event.From,
		ToAddress:   event.To,
		Amount:      event.Amount,
		Status:      domain.TxStatusConfirmed,
		BlockNumber: &blockNumber,
		AccountID:   &accountID,
	}
	if err := s.ledger.Record(ctx, rec); err != nil && !errors.Is(err, models.ErrDuplicateTransaction) {
		zap.L().Error("deposit record write failed", zap.String("tx_hash", event.TxHash), zap.Error(err))
		return
	}

	observability.IncrementDepositCredited()
	zap.L().Info("deposit credited",
		zap.String("account_id", account.ID.String()),
		zap.String("tx_hash", event.TxHash),
		zap.String("amount", event.Amount.String()),
		zap.Uint64("block", event.BlockNumber),
	)

	if err := s.sweeper.Sweep(ctx, account); err != nil {
		zap.L().Error("sweep attempt failed", zap.String("address", account.DepositAddress), zap.Error(err))
	}
}
