package service

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lottoloop/chain-custody/internal/chain"
	"github.com/lottoloop/chain-custody/internal/models"
)

// fakeChain is an in-memory chain.Provider. Events are filtered by block
// range so chunked scans behave like a real node.
type fakeChain struct {
	mu sync.Mutex

	height    uint64
	heightErr error

	events     []chain.TransferEvent
	eventCalls [][2]uint64
	eventsErr  map[int]error // keyed by call index
	eventsGate chan struct{} // when set, TransferEvents blocks until closed

	receipts       map[string]*chain.Receipt
	receiptErr     map[string]error
	nativeBalances map[string]*big.Int
	tokenBalances  map[string]decimal.Decimal

	submitErr error
	submitted []submittedTransfer
	nextHash  int
}

type submittedTransfer struct {
	to     string
	amount decimal.Decimal
}

func newFakeChain(height uint64) *fakeChain {
	return &fakeChain{
		height:         height,
		receipts:       make(map[string]*chain.Receipt),
		receiptErr:     make(map[string]error),
		nativeBalances: make(map[string]*big.Int),
		tokenBalances:  make(map[string]decimal.Decimal),
		eventsErr:      make(map[int]error),
	}
}

func (f *fakeChain) CurrentBlockHeight(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.heightErr != nil {
		return 0, f.heightErr
	}
	return f.height, nil
}

func (f *fakeChain) TransferEvents(ctx context.Context, fromBlock, toBlock uint64) ([]chain.TransferEvent, error) {
	f.mu.Lock()
	call := len(f.eventCalls)
	f.eventCalls = append(f.eventCalls, [2]uint64{fromBlock, toBlock})
	gate := f.eventsGate
	err := f.eventsErr[call]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	var out []chain.TransferEvent
	for _, ev := range f.events {
		if ev.BlockNumber >= fromBlock && ev.BlockNumber <= toBlock {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeChain) Receipt(ctx context.Context, txHash string) (*chain.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.receiptErr[txHash]; ok {
		return nil, err
	}
	receipt, ok := f.receipts[txHash]
	if !ok {
		return nil, chain.ErrReceiptNotFound
	}
	return receipt, nil
}

func (f *fakeChain) NativeBalance(ctx context.Context, address string) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if balance, ok := f.nativeBalances[address]; ok {
		return new(big.Int).Set(balance), nil
	}
	return big.NewInt(0), nil
}

func (f *fakeChain) TokenBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokenBalances[address], nil
}

func (f *fakeChain) SubmitTransfer(ctx context.Context, key *ecdsa.PrivateKey, to string, amount decimal.Decimal) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.nextHash++
	f.submitted = append(f.submitted, submittedTransfer{to: to, amount: amount})
	return fmt.Sprintf("0xsweep%04d", f.nextHash), nil
}

// fakeAccounts is an in-memory AccountStore.
type fakeAccounts struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*models.Account
	listErr  error
}

func newFakeAccounts(accounts ...models.Account) *fakeAccounts {
	f := &fakeAccounts{accounts: make(map[uuid.UUID]*models.Account)}
	for i := range accounts {
		a := accounts[i]
		f.accounts[a.ID] = &a
	}
	return f
}

func (f *fakeAccounts) ListDepositAccounts(ctx context.Context) ([]models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]models.Account, 0, len(f.accounts))
	for _, a := range f.accounts {
		out = append(out, *a)
	}
	return out, nil
}

func (f *fakeAccounts) AdjustBalance(ctx context.Context, accountID uuid.UUID, currency string, delta decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.accounts[accountID]
	if !ok {
		return models.ErrAccountNotFound
	}
	switch currency {
	case "FUN":
		account.FunBalance = account.FunBalance.Add(delta)
	default:
		account.TokenBalance = account.TokenBalance.Add(delta)
	}
	return nil
}

func (f *fakeAccounts) tokenBalance(id uuid.UUID) decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accounts[id].TokenBalance
}

func (f *fakeAccounts) remove(id uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.accounts, id)
}

// fakeLedger is an in-memory LedgerStore enforcing the (type, tx_hash)
// uniqueness invariant exactly like the database constraint.
type fakeLedger struct {
	mu      sync.Mutex
	rows    map[string]*models.TransactionRecord // keyed type|hash
	byID    map[uuid.UUID]*models.TransactionRecord
	lastDep uint64
	hasDep  bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		rows: make(map[string]*models.TransactionRecord),
		byID: make(map[uuid.UUID]*models.TransactionRecord),
	}
}

func ledgerKey(txType, txHash string) string {
	return txType + "|" + txHash
}

func (f *fakeLedger) Record(ctx context.Context, rec *models.TransactionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := ledgerKey(rec.Type, rec.TxHash)
	if _, ok := f.rows[key]; ok {
		return models.ErrDuplicateTransaction
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	stored := *rec
	f.rows[key] = &stored
	f.byID[stored.ID] = f.rows[key]
	return nil
}

func (f *fakeLedger) DepositExists(ctx context.Context, txHash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.rows[ledgerKey("deposit", txHash)]
	return ok, nil
}

func (f *fakeLedger) ListPending(ctx context.Context) ([]models.TransactionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.TransactionRecord
	for _, rec := range f.rows {
		if rec.Status == "PENDING" {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (f *fakeLedger) MarkConfirmed(ctx context.Context, id uuid.UUID, blockNumber, gasUsed uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.byID[id]
	if !ok || rec.Status != "PENDING" {
		return fmt.Errorf("transaction %s is not pending", id)
	}
	rec.Status = "CONFIRMED"
	rec.BlockNumber = &blockNumber
	rec.GasUsed = &gasUsed
	return nil
}

func (f *fakeLedger) MarkFailed(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.byID[id]
	if !ok || rec.Status != "PENDING" {
		return fmt.Errorf("transaction %s is not pending", id)
	}
	rec.Status = "FAILED"
	return nil
}

func (f *fakeLedger) LatestConfirmedDepositBlock(ctx context.Context) (uint64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastDep, f.hasDep, nil
}

func (f *fakeLedger) get(txType, txHash string) (models.TransactionRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.rows[ledgerKey(txType, txHash)]
	if !ok {
		return models.TransactionRecord{}, false
	}
	return *rec, true
}

func (f *fakeLedger) count(txType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, rec := range f.rows {
		if rec.Type == txType {
			n++
		}
	}
	return n
}

// memWatermark is an in-memory WatermarkStore.
type memWatermark struct {
	mu    sync.Mutex
	block uint64
	set   bool
}

func (m *memWatermark) Get(ctx context.Context) (uint64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.block, m.set, nil
}

func (m *memWatermark) Set(ctx context.Context, block uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.set || block > m.block {
		m.block = block
	}
	m.set = true
	return nil
}

func (m *memWatermark) value() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.block
}

func (m *memWatermark) reset(block uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.block = block
	m.set = true
}

// staticGas is a GasPolicy returning a fixed threshold, or the fallback.
type staticGas struct {
	threshold *big.Int
}

func (g staticGas) MinGasWei(ctx context.Context, fallback *big.Int) *big.Int {
	if g.threshold != nil {
		return g.threshold
	}
	return fallback
}

// noopSweeper records which accounts were offered for sweeping.
type noopSweeper struct {
	mu    sync.Mutex
	swept []uuid.UUID
	err   error
}

func (s *noopSweeper) Sweep(ctx context.Context, account models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.swept = append(s.swept, account.ID)
	return s.err
}

func (s *noopSweeper) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.swept)
}
