package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dbm "github.com/tendermint/tm-db"

	"github.com/tendermint/ledgersync/internal/test/factory"
	"github.com/tendermint/ledgersync/libs/log"
	"github.com/tendermint/ledgersync/types"
	"github.com/tendermint/ledgersync/verifier"
)

func newStore(t *testing.T, db dbm.DB) *LedgerStore {
	t.Helper()
	s, err := NewLedgerStore(db, log.NewNopLogger(), 0)
	require.NoError(t, err)
	return s
}

func newGenesisStore(t *testing.T, l *factory.Ledger) *LedgerStore {
	t.Helper()
	s := newStore(t, dbm.NewMemDB())
	require.NoError(t, s.InitGenesis(l.Genesis(), factory.GenesisTx))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func applyErrorKind(t *testing.T, err error) types.ApplyErrorKind {
	t.Helper()
	var applyErr *types.ApplyError
	require.True(t, errors.As(err, &applyErr), "expected ApplyError, got %v", err)
	return applyErr.Kind
}

func TestEmptyStore(t *testing.T) {
	s := newStore(t, dbm.NewMemDB())

	_, err := s.LatestVersion()
	require.ErrorIs(t, err, ErrEmptyStore)
	_, err = s.LatestLedgerInfo()
	require.ErrorIs(t, err, ErrEmptyStore)
}

func TestInitGenesis(t *testing.T) {
	l := factory.NewLedger(t)
	s := newGenesisStore(t, l)

	version, err := s.LatestVersion()
	require.NoError(t, err)
	assert.EqualValues(t, 0, version)

	li, err := s.LatestLedgerInfo()
	require.NoError(t, err)
	assert.Equal(t, l.Genesis().Hash(), li.Hash())

	ended, err := s.EpochEndingLedgerInfo(0)
	require.NoError(t, err)
	assert.Equal(t, l.Genesis().Hash(), ended.Hash())

	require.Error(t, s.InitGenesis(l.Genesis(), factory.GenesisTx), "double init")

	other := newStore(t, dbm.NewMemDB())
	require.Error(t, other.InitGenesis(l.Genesis(), types.Tx("not genesis")))
	require.Error(t, other.InitGenesis(l.Commit(1), factory.GenesisTx))
}

func TestExecuteAndCommit(t *testing.T) {
	l := factory.NewLedger(t)
	target := l.Commit(250)
	s := newGenesisStore(t, l)
	ctx := context.Background()

	trusted := l.TrustedState()
	for _, r := range [][2]types.Version{{1, 50}, {51, 100}, {101, 250}} {
		chunk := l.VerifiedChunk(trusted, r[0], r[1], target)
		require.NoError(t, s.ExecuteAndCommit(ctx, chunk))
		trusted = chunk.TrustedState()

		version, err := s.LatestVersion()
		require.NoError(t, err)
		assert.Equal(t, r[1], version)
	}

	// the target is persisted once the chunk reaching it lands
	li, err := s.LatestLedgerInfo()
	require.NoError(t, err)
	assert.Equal(t, target.Hash(), li.Hash())

	tx, err := s.Transaction(123)
	require.NoError(t, err)
	assert.Equal(t, factory.MakeTx(123), tx)
}

func TestExecuteAndCommitKeepsOlderLedgerInfoForPartialChunk(t *testing.T) {
	l := factory.NewLedger(t)
	target := l.Commit(100)
	s := newGenesisStore(t, l)

	require.NoError(t, s.ExecuteAndCommit(context.Background(), l.VerifiedChunk(l.TrustedState(), 1, 40, target)))

	version, err := s.LatestVersion()
	require.NoError(t, err)
	assert.EqualValues(t, 40, version)

	li, err := s.LatestLedgerInfo()
	require.NoError(t, err)
	assert.EqualValues(t, 0, li.Version)

	_, err = s.LedgerInfo(100)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestExecuteAndCommitRejectsGap(t *testing.T) {
	l := factory.NewLedger(t)
	target := l.Commit(100)
	s := newGenesisStore(t, l)

	trusted := verifier.TrustedState{Version: 10, Epoch: 1, Validators: l.Validators(1)}
	err := s.ExecuteAndCommit(context.Background(), l.VerifiedChunk(trusted, 11, 20, target))
	require.Error(t, err)
	assert.Equal(t, types.ApplyFatal, applyErrorKind(t, err))
}

func TestExecuteAndCommitRootMismatchIsFatal(t *testing.T) {
	local := factory.NewLedger(t)
	localTarget := local.Commit(10)
	s := newGenesisStore(t, local)
	require.NoError(t, s.ExecuteAndCommit(context.Background(),
		local.VerifiedChunk(local.TrustedState(), 1, 10, localTarget)))

	// same validators, different history at version 1
	forked := factory.NewLedger(t)
	forked.AppendTxs(types.Tx("fork"))
	forkTarget := forked.Commit(19)

	trusted := verifier.TrustedState{Version: 10, Epoch: 1, Validators: forked.Validators(1)}
	err := s.ExecuteAndCommit(context.Background(), forked.VerifiedChunk(trusted, 11, 20, forkTarget))
	require.Error(t, err)
	assert.Equal(t, types.ApplyFatal, applyErrorKind(t, err))

	version, err := s.LatestVersion()
	require.NoError(t, err)
	assert.EqualValues(t, 10, version)
}

type failingDB struct {
	dbm.DB
}

func (db failingDB) NewBatch() dbm.Batch { return failingBatch{db.DB.NewBatch()} }

type failingBatch struct {
	dbm.Batch
}

func (failingBatch) WriteSync() error { return errors.New("disk unavailable") }

func TestExecuteAndCommitWriteFailureIsRetryable(t *testing.T) {
	l := factory.NewLedger(t)
	target := l.Commit(20)

	db := dbm.NewMemDB()
	require.NoError(t, newStore(t, db).InitGenesis(l.Genesis(), factory.GenesisTx))

	s := newStore(t, failingDB{db})
	err := s.ExecuteAndCommit(context.Background(), l.VerifiedChunk(l.TrustedState(), 1, 20, target))
	require.Error(t, err)
	assert.Equal(t, types.ApplyRetryable, applyErrorKind(t, err))

	version, err := s.LatestVersion()
	require.NoError(t, err)
	assert.EqualValues(t, 0, version)
}

func TestExecuteAndCommitCanceledContextIsRetryable(t *testing.T) {
	l := factory.NewLedger(t)
	target := l.Commit(5)
	s := newGenesisStore(t, l)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.ExecuteAndCommit(ctx, l.VerifiedChunk(l.TrustedState(), 1, 5, target))
	require.Error(t, err)
	assert.Equal(t, types.ApplyRetryable, applyErrorKind(t, err))
}

func TestEpochsArePersisted(t *testing.T) {
	l := factory.NewLedger(t)
	end1 := l.EndEpoch(30)
	end2 := l.EndEpoch(30)
	target := l.Commit(30)
	s := newGenesisStore(t, l)

	chunk := l.VerifiedChunk(l.TrustedState(), 1, 90, target)
	require.Len(t, chunk.EpochChanges(), 2)
	require.NoError(t, s.ExecuteAndCommit(context.Background(), chunk))

	proof, err := s.EpochChangeProof(1, 3)
	require.NoError(t, err)
	require.Equal(t, 2, proof.Len())
	assert.False(t, proof.More)
	assert.Equal(t, end1.Hash(), proof.LedgerInfos[0].Hash())
	assert.Equal(t, end2.Hash(), proof.LedgerInfos[1].Hash())

	_, err = s.EpochChangeProof(1, 4)
	require.ErrorIs(t, err, ErrNotFound, "epoch 3 is still open")
	_, err = s.EpochChangeProof(2, 2)
	require.Error(t, err)
}

func TestEpochChangeProofIsPaged(t *testing.T) {
	l := factory.NewLedger(t)
	s := newGenesisStore(t, l)
	ctx := context.Background()

	trusted := l.TrustedState()
	for i := 0; i < types.MaxEpochChangeLedgerInfos+5; i++ {
		end := l.EndEpoch(1)
		chunk := l.VerifiedChunk(trusted, end.Version, end.Version, end)
		require.NoError(t, s.ExecuteAndCommit(ctx, chunk))
		trusted = chunk.TrustedState()
	}

	proof, err := s.EpochChangeProof(1, l.Epoch())
	require.NoError(t, err)
	assert.True(t, proof.More)
	assert.Equal(t, types.MaxEpochChangeLedgerInfos, proof.Len())

	epoch, _, err := verifier.VerifyEpochChangeProof(proof, 1, l.Validators(1), types.DefaultQuorum)
	require.NoError(t, err)
	assert.EqualValues(t, 1+types.MaxEpochChangeLedgerInfos, epoch)
}

func TestTransactionsWithProof(t *testing.T) {
	l := factory.NewLedger(t)
	mid := l.Commit(120)
	target := l.Commit(80)
	s := newGenesisStore(t, l)
	require.NoError(t, s.ExecuteAndCommit(context.Background(), l.VerifiedChunk(l.TrustedState(), 1, 200, target)))

	t.Run("proven against latest", func(t *testing.T) {
		list, err := s.TransactionsWithProof(101, 50, target.Version)
		require.NoError(t, err)
		assert.EqualValues(t, 150, list.LastVersion())
		require.NoError(t, verifier.VerifyTransactionList(list, &target.LedgerInfo))
	})

	t.Run("proven against older ledger info", func(t *testing.T) {
		list, err := s.TransactionsWithProof(101, 50, mid.Version)
		require.NoError(t, err)
		assert.EqualValues(t, 120, list.LastVersion(), "capped at the ledger version")
		require.NoError(t, verifier.VerifyTransactionList(list, &mid.LedgerInfo))
	})

	t.Run("limit is capped", func(t *testing.T) {
		list, err := s.TransactionsWithProof(1, MaxLimit*2, target.Version)
		require.NoError(t, err)
		assert.Equal(t, 200, list.Len())
	})

	t.Run("bad ranges", func(t *testing.T) {
		_, err := s.TransactionsWithProof(1, 0, target.Version)
		require.Error(t, err)
		_, err = s.TransactionsWithProof(150, 10, 100)
		require.Error(t, err)
		_, err = s.TransactionsWithProof(150, 10, 300)
		require.ErrorIs(t, err, ErrNotFound)
	})

	assert.Greater(t, s.cache.len(), 0)
}
