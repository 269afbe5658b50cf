package service

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lottoloop/chain-custody/internal/domain"
	"github.com/lottoloop/chain-custody/internal/models"
)

const treasuryAddr = "0x00000000000000000000000000000000000000fe"

// fakeKeys satisfies keyring.Deriver with a throwaway key per index.
type fakeKeys struct {
	err error
}

func (f fakeKeys) SigningKey(index uint32) (*ecdsa.PrivateKey, error) {
	if f.err != nil {
		return nil, f.err
	}
	return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
}

func (f fakeKeys) Address(index uint32) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return depositAddr, nil
}

func newSweeperFixture() (*FundSweeper, *fakeChain, *fakeLedger) {
	chainFake := newFakeChain(1000)
	ledger := newFakeLedger()
	sweeper := NewFundSweeper(chainFake, ledger, fakeKeys{}, staticGas{}, treasuryAddr, big.NewInt(300_000_000_000_000))
	return sweeper, chainFake, ledger
}

func TestSweepSkipsWhenGasBelowThreshold(t *testing.T) {
	sweeper, chainFake, ledger := newSweeperFixture()
	account := testAccount()
	chainFake.nativeBalances[depositAddr] = big.NewInt(1_000_000)
	chainFake.tokenBalances[depositAddr] = decimal.NewFromInt(500)

	require.NoError(t, sweeper.Sweep(context.Background(), account))

	assert.Empty(t, chainFake.submitted, "no transfer when gas is insufficient")
	assert.Equal(t, 0, ledger.count(domain.TxTypeSweep))
}

func TestSweepTransfersFullBalanceToTreasury(t *testing.T) {
	sweeper, chainFake, ledger := newSweeperFixture()
	account := testAccount()
	chainFake.nativeBalances[depositAddr] = big.NewInt(500_000_000_000_000)
	chainFake.tokenBalances[depositAddr] = decimal.RequireFromString("123.456789")

	require.NoError(t, sweeper.Sweep(context.Background(), account))

	require.Len(t, chainFake.submitted, 1)
	assert.Equal(t, treasuryAddr, chainFake.submitted[0].to)
	assert.True(t, chainFake.submitted[0].amount.Equal(decimal.RequireFromString("123.456789")),
		"the entire token balance is swept")

	rec, ok := ledger.get(domain.TxTypeSweep, "0xsweep0001")
	require.True(t, ok)
	assert.Equal(t, domain.TxStatusConfirmed, rec.Status)
	assert.Equal(t, depositAddr, rec.FromAddress)
	assert.Equal(t, treasuryAddr, rec.ToAddress)
	require.NotNil(t, rec.AccountID)
	assert.Equal(t, account.ID, *rec.AccountID)
}

func TestSweepNoopOnZeroTokenBalance(t *testing.T) {
	sweeper, chainFake, ledger := newSweeperFixture()
	chainFake.nativeBalances[depositAddr] = big.NewInt(500_000_000_000_000)

	require.NoError(t, sweeper.Sweep(context.Background(), testAccount()))

	assert.Empty(t, chainFake.submitted)
	assert.Equal(t, 0, ledger.count(domain.TxTypeSweep))
}

func TestSweepSubmitFailureRecordsNothing(t *testing.T) {
	sweeper, chainFake, ledger := newSweeperFixture()
	chainFake.nativeBalances[depositAddr] = big.NewInt(500_000_000_000_000)
	chainFake.tokenBalances[depositAddr] = decimal.NewFromInt(10)
	chainFake.submitErr = errors.New("nonce too low")

	err := sweeper.Sweep(context.Background(), testAccount())

	require.Error(t, err)
	assert.Equal(t, 0, ledger.count(domain.TxTypeSweep), "failed submission leaves no ledger row")
}

func TestSweepHonorsPolicyThresholdOverFallback(t *testing.T) {
	chainFake := newFakeChain(1000)
	ledger := newFakeLedger()
	// Policy lowers the threshold well below the fallback.
	sweeper := NewFundSweeper(chainFake, ledger, fakeKeys{}, staticGas{threshold: big.NewInt(1000)}, treasuryAddr, big.NewInt(300_000_000_000_000))

	chainFake.nativeBalances[depositAddr] = big.NewInt(2000)
	chainFake.tokenBalances[depositAddr] = decimal.NewFromInt(5)

	require.NoError(t, sweeper.Sweep(context.Background(), testAccount()))

	require.Len(t, chainFake.submitted, 1)
	assert.Equal(t, 1, ledger.count(domain.TxTypeSweep))
}

func TestSweepToleratesDuplicateRecord(t *testing.T) {
	sweeper, chainFake, ledger := newSweeperFixture()
	chainFake.nativeBalances[depositAddr] = big.NewInt(500_000_000_000_000)
	chainFake.tokenBalances[depositAddr] = decimal.NewFromInt(10)

	require.NoError(t, ledger.Record(context.Background(), &models.TransactionRecord{
		Type:   domain.TxTypeSweep,
		TxHash: "0xsweep0001",
		Status: domain.TxStatusConfirmed,
	}))

	require.NoError(t, sweeper.Sweep(context.Background(), testAccount()))
	assert.Equal(t, 1, ledger.count(domain.TxTypeSweep))
}
