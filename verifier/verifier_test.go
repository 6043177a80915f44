package verifier_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendermint/ledgersync/internal/test/factory"
	tmmath "github.com/tendermint/ledgersync/libs/math"
	"github.com/tendermint/ledgersync/types"
	"github.com/tendermint/ledgersync/verifier"
)

var quorum = types.DefaultQuorum

func TestVerifyLedgerInfo(t *testing.T) {
	l := factory.NewLedger(t)
	li := l.Commit(10)

	require.NoError(t, verifier.VerifyLedgerInfo(li, l.Validators(1), quorum))

	other, _ := factory.ValidatorSet(t, "other", 4, 10)
	err := verifier.VerifyLedgerInfo(li, other, quorum)
	require.ErrorIs(t, err, verifier.ErrBadSignatures)

	weak := factory.SignLedgerInfo(t, li.LedgerInfo, l.PrivKeys(1)[:2])
	err = verifier.VerifyLedgerInfo(weak, l.Validators(1), quorum)
	require.ErrorIs(t, err, verifier.ErrBadSignatures)
	var notEnough types.ErrNotEnoughVotingPowerSigned
	require.True(t, errors.As(err, &notEnough))

	malformed := *li
	malformed.AccumulatorRoot = []byte{1, 2}
	err = verifier.VerifyLedgerInfo(&malformed, l.Validators(1), quorum)
	require.ErrorIs(t, err, verifier.ErrMalformed)
}

func TestVerifyEpochChangeProof(t *testing.T) {
	l := factory.NewLedger(t)
	l.EndEpoch(10) // ends epoch 1
	l.EndEpoch(10) // ends epoch 2
	l.EndEpoch(10) // ends epoch 3

	t.Run("full chain", func(t *testing.T) {
		epoch, vals, err := verifier.VerifyEpochChangeProof(l.EpochChangeProof(1, 4), 1, l.Validators(1), quorum)
		require.NoError(t, err)
		assert.EqualValues(t, 4, epoch)
		assert.Equal(t, l.Validators(4), vals)
	})

	t.Run("missing link", func(t *testing.T) {
		proof := l.EpochChangeProof(1, 4)
		proof.LedgerInfos = append(proof.LedgerInfos[:1], proof.LedgerInfos[2])
		_, _, err := verifier.VerifyEpochChangeProof(proof, 1, l.Validators(1), quorum)
		require.ErrorIs(t, err, verifier.ErrNonContiguousEpochChain)
	})

	t.Run("starts at wrong epoch", func(t *testing.T) {
		_, _, err := verifier.VerifyEpochChangeProof(l.EpochChangeProof(2, 4), 1, l.Validators(1), quorum)
		require.ErrorIs(t, err, verifier.ErrNonContiguousEpochChain)
	})

	t.Run("link signed by wrong set", func(t *testing.T) {
		proof := l.EpochChangeProof(1, 4)
		forged := factory.SignLedgerInfo(t, proof.LedgerInfos[1].LedgerInfo, l.PrivKeys(1))
		proof.LedgerInfos = []*types.LedgerInfoWithSignatures{proof.LedgerInfos[0], forged, proof.LedgerInfos[2]}
		_, _, err := verifier.VerifyEpochChangeProof(proof, 1, l.Validators(1), quorum)
		require.ErrorIs(t, err, verifier.ErrBadSignatures)
	})

	t.Run("empty proof", func(t *testing.T) {
		_, _, err := verifier.VerifyEpochChangeProof(&types.EpochChangeProof{}, 1, l.Validators(1), quorum)
		require.ErrorIs(t, err, verifier.ErrMalformed)
	})
}

func TestVerifyTransactionList(t *testing.T) {
	l := factory.NewLedger(t)
	li := l.Commit(100)

	list := l.TransactionsWithProof(20, 60, li.Version)
	require.NoError(t, verifier.VerifyTransactionList(list, &li.LedgerInfo))

	t.Run("tampered transaction", func(t *testing.T) {
		bad := l.TransactionsWithProof(20, 60, li.Version)
		bad.Transactions = append(types.Txs{}, bad.Transactions...)
		bad.Transactions[5] = types.Tx("evil")
		err := verifier.VerifyTransactionList(bad, &li.LedgerInfo)
		require.ErrorIs(t, err, verifier.ErrRootMismatch)
	})

	t.Run("beyond ledger info", func(t *testing.T) {
		l2 := factory.NewLedger(t)
		early := l2.Commit(10)
		l2.Commit(10)
		list := l2.TransactionsWithProof(5, 15, 20)
		err := verifier.VerifyTransactionList(list, &early.LedgerInfo)
		require.ErrorIs(t, err, verifier.ErrMalformed)
	})

	t.Run("empty", func(t *testing.T) {
		err := verifier.VerifyTransactionList(&types.TransactionListWithProof{FirstVersion: 1}, &li.LedgerInfo)
		require.ErrorIs(t, err, verifier.ErrMalformed)
	})
}

func TestVerifyWaypoint(t *testing.T) {
	l := factory.NewLedger(t)
	genesis := l.Genesis()
	wp := types.NewWaypoint(&genesis.LedgerInfo)

	require.NoError(t, verifier.VerifyWaypoint(&genesis.LedgerInfo, wp))

	li := l.Commit(1)
	require.ErrorIs(t, verifier.VerifyWaypoint(&li.LedgerInfo, wp), verifier.ErrRootMismatch)
	require.ErrorIs(t, verifier.VerifyWaypoint(&li.LedgerInfo, nil), verifier.ErrMalformed)
}

func TestProofVerificationErrorUnwraps(t *testing.T) {
	l := factory.NewLedger(t)
	li := l.Commit(1)
	weak := factory.SignLedgerInfo(t, li.LedgerInfo, l.PrivKeys(1)[:1])

	err := verifier.VerifyLedgerInfo(weak, l.Validators(1), tmmath.Fraction{Numerator: 2, Denominator: 3})
	var pve verifier.ProofVerificationError
	require.True(t, errors.As(err, &pve))
	assert.Equal(t, verifier.ErrBadSignatures, pve.Kind)
	assert.False(t, errors.Is(err, verifier.ErrRootMismatch))
}
