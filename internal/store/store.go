package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	dbm "github.com/tendermint/tm-db"

	"github.com/tendermint/ledgersync/crypto/merkle"
	"github.com/tendermint/ledgersync/libs/log"
	"github.com/tendermint/ledgersync/types"
	"github.com/tendermint/ledgersync/verifier"
)

// MaxLimit caps the number of transactions served in one response.
const MaxLimit = 5000

var (
	// ErrEmptyStore is returned by reads before InitGenesis.
	ErrEmptyStore = errors.New("ledger store is empty")
	// ErrNotFound is returned when the requested item is not persisted.
	ErrNotFound = errors.New("not found")
)

/*
LedgerStore is a tm-db backed ledger: transactions, their accumulator leaves
and signed ledger infos.

There are four types of information stored:
  - Transactions and their hashes, keyed by version
  - Ledger infos, keyed by version
  - An epoch index pointing at the ledger info that ended each epoch
  - The ledger state: last transaction version and last ledger info version

The store holds every version in [0, Version] with no gaps. Every write goes
through a single batch, so a crash leaves either the previous or the new
ledger state on disk.
*/
type LedgerStore struct {
	db     dbm.DB
	cache  *subtreeCache
	logger log.Logger

	mtx sync.RWMutex
}

// NewLedgerStore returns a LedgerStore backed by db. cacheSizeMB bounds the
// accumulator subtree cache (0 means unbounded).
func NewLedgerStore(db dbm.DB, logger log.Logger, cacheSizeMB int) (*LedgerStore, error) {
	cache, err := newSubtreeCache(cacheSizeMB)
	if err != nil {
		return nil, err
	}
	return &LedgerStore{
		db:     db,
		cache:  cache,
		logger: logger.With("module", "store"),
	}, nil
}

// Close closes the underlying database.
func (s *LedgerStore) Close() error {
	if err := s.cache.close(); err != nil {
		return err
	}
	return s.db.Close()
}

// InitGenesis writes the genesis transaction and its ledger info to an empty
// store. The genesis ledger info must be at version 0 and end epoch 0.
func (s *LedgerStore) InitGenesis(genesis *types.LedgerInfoWithSignatures, tx types.Tx) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, err := s.loadState(); !errors.Is(err, ErrEmptyStore) {
		if err != nil {
			return err
		}
		return errors.New("ledger store is already initialized")
	}
	if err := genesis.ValidateBasic(); err != nil {
		return fmt.Errorf("invalid genesis ledger info: %w", err)
	}
	if genesis.Version != 0 || !genesis.EndsEpoch() {
		return fmt.Errorf("genesis ledger info must end an epoch at version 0, got %v", genesis)
	}
	if root := (types.Txs{tx}).Hash(); !bytes.Equal(root, genesis.AccumulatorRoot) {
		return fmt.Errorf("genesis root %X does not match genesis transaction root %X",
			[]byte(genesis.AccumulatorRoot), root)
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	if err := s.saveTxToBatch(batch, 0, tx); err != nil {
		return err
	}
	if err := s.saveLedgerInfoToBatch(batch, genesis); err != nil {
		return err
	}
	if err := batch.Set(stateKey(), encodeState(ledgerState{})); err != nil {
		return err
	}
	return batch.WriteSync()
}

// LatestVersion returns the version of the last persisted transaction.
func (s *LedgerStore) LatestVersion() (types.Version, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	st, err := s.loadState()
	if err != nil {
		return 0, err
	}
	return st.Version, nil
}

// LatestLedgerInfo returns the latest persisted ledger info. Its version may
// be lower than LatestVersion when a chunk was proven against a ledger info
// beyond its last transaction.
func (s *LedgerStore) LatestLedgerInfo() (*types.LedgerInfoWithSignatures, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	st, err := s.loadState()
	if err != nil {
		return nil, err
	}
	return s.loadLedgerInfo(st.LedgerInfoVersion)
}

// LedgerInfo returns the ledger info persisted at version.
func (s *LedgerStore) LedgerInfo(version types.Version) (*types.LedgerInfoWithSignatures, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.loadLedgerInfo(version)
}

// EpochEndingLedgerInfo returns the ledger info that ended epoch.
func (s *LedgerStore) EpochEndingLedgerInfo(epoch types.Epoch) (*types.LedgerInfoWithSignatures, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.loadEpochEnding(epoch)
}

// EpochChangeProof returns the ledger infos ending epochs [start, end), at
// most types.MaxEpochChangeLedgerInfos of them. More is set when the range
// was truncated.
func (s *LedgerStore) EpochChangeProof(start, end types.Epoch) (*types.EpochChangeProof, error) {
	if start >= end {
		return nil, fmt.Errorf("invalid epoch range [%d, %d)", start, end)
	}

	s.mtx.RLock()
	defer s.mtx.RUnlock()

	proof := &types.EpochChangeProof{}
	limit := end
	if end-start > types.MaxEpochChangeLedgerInfos {
		limit = start + types.MaxEpochChangeLedgerInfos
		proof.More = true
	}
	for epoch := start; epoch < limit; epoch++ {
		li, err := s.loadEpochEnding(epoch)
		if err != nil {
			return nil, fmt.Errorf("epoch %d has not ended: %w", epoch, err)
		}
		proof.LedgerInfos = append(proof.LedgerInfos, li)
	}
	return proof, nil
}

// Transaction returns the transaction at version.
func (s *LedgerStore) Transaction(version types.Version) (types.Tx, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	bz, err := s.db.Get(txKey(version))
	if err != nil {
		return nil, err
	}
	if bz == nil {
		return nil, fmt.Errorf("transaction %d: %w", version, ErrNotFound)
	}
	return bz, nil
}

// TransactionsWithProof returns up to limit transactions starting at start,
// proven against the accumulator at ledgerVersion. The list never goes past
// ledgerVersion.
func (s *LedgerStore) TransactionsWithProof(
	start types.Version,
	limit uint64,
	ledgerVersion types.Version,
) (*types.TransactionListWithProof, error) {
	if limit == 0 {
		return nil, errors.New("limit must be positive")
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if start > ledgerVersion {
		return nil, fmt.Errorf("start version %d is after ledger version %d", start, ledgerVersion)
	}

	s.mtx.RLock()
	defer s.mtx.RUnlock()

	st, err := s.loadState()
	if err != nil {
		return nil, err
	}
	if ledgerVersion > st.Version {
		return nil, fmt.Errorf("ledger version %d is beyond latest version %d: %w",
			ledgerVersion, st.Version, ErrNotFound)
	}

	end := ledgerVersion
	if uint64(ledgerVersion-start) >= limit {
		end = start + types.Version(limit) - 1
	}

	txs := make(types.Txs, 0, end-start+1)
	for v := start; v <= end; v++ {
		bz, err := s.db.Get(txKey(v))
		if err != nil {
			return nil, err
		}
		if bz == nil {
			return nil, fmt.Errorf("transaction %d: %w", v, ErrNotFound)
		}
		txs = append(txs, bz)
	}

	proof, err := merkle.NewRangeProof(uint64(ledgerVersion)+1, uint64(start), uint64(len(txs)), s.subtreeHash)
	if err != nil {
		return nil, err
	}
	return &types.TransactionListWithProof{FirstVersion: start, Transactions: txs, Proof: proof}, nil
}

// ExecuteAndCommit appends a verified chunk. It recomputes the accumulator
// root for every ledger info it persists and writes transactions, ledger
// infos and the new ledger state in one synced batch.
//
// Returned errors are *types.ApplyError: a root mismatch or a gap is fatal,
// a failed write is retryable.
func (s *LedgerStore) ExecuteAndCommit(ctx context.Context, chunk *verifier.VerifiedChunk) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	st, err := s.loadState()
	if err != nil {
		return types.NewFatalApplyError(err)
	}
	if chunk.FirstVersion() != st.Version+1 {
		return types.NewFatalApplyError(fmt.Errorf("chunk starts at %d, expected %d",
			chunk.FirstVersion(), st.Version+1))
	}
	if err := ctx.Err(); err != nil {
		return types.NewRetryableApplyError(err)
	}

	var (
		txs    = chunk.Transactions().Transactions
		leaves = txs.Hashes()
		first  = chunk.FirstVersion()
		last   = chunk.LastVersion()
	)

	toPersist := append([]*types.LedgerInfoWithSignatures(nil), chunk.EpochChanges()...)
	if li := chunk.LedgerInfo(); li.Version == last && !containsVersion(toPersist, last) {
		toPersist = append(toPersist, li)
	}
	for _, li := range toPersist {
		root, err := s.rootWithPending(uint64(li.Version)+1, uint64(first), leaves)
		if err != nil {
			return types.NewFatalApplyError(err)
		}
		if !bytes.Equal(root, li.AccumulatorRoot) {
			return types.NewFatalApplyError(fmt.Errorf("accumulator root at version %d is %X, ledger info has %X",
				li.Version, root, []byte(li.AccumulatorRoot)))
		}
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	for i, tx := range txs {
		if err := s.saveTxToBatch(batch, first+types.Version(i), tx); err != nil {
			return types.NewRetryableApplyError(err)
		}
	}
	newState := ledgerState{Version: last, LedgerInfoVersion: st.LedgerInfoVersion}
	for _, li := range toPersist {
		if err := s.saveLedgerInfoToBatch(batch, li); err != nil {
			return types.NewRetryableApplyError(err)
		}
		newState.LedgerInfoVersion = li.Version
	}
	if err := batch.Set(stateKey(), encodeState(newState)); err != nil {
		return types.NewRetryableApplyError(err)
	}
	if err := batch.WriteSync(); err != nil {
		return types.NewRetryableApplyError(fmt.Errorf("writing chunk [%d, %d]: %w", first, last, err))
	}

	s.logger.Debug("committed chunk", "first", first, "last", last, "ledger_infos", len(toPersist))
	return nil
}

func containsVersion(lis []*types.LedgerInfoWithSignatures, v types.Version) bool {
	for _, li := range lis {
		if li.Version == v {
			return true
		}
	}
	return false
}

//-----------------------------------------------------------------------------

func (s *LedgerStore) loadState() (ledgerState, error) {
	bz, err := s.db.Get(stateKey())
	if err != nil {
		return ledgerState{}, err
	}
	if len(bz) == 0 {
		return ledgerState{}, ErrEmptyStore
	}
	return decodeState(bz)
}

func (s *LedgerStore) loadLedgerInfo(version types.Version) (*types.LedgerInfoWithSignatures, error) {
	bz, err := s.db.Get(ledgerInfoKey(version))
	if err != nil {
		return nil, err
	}
	if len(bz) == 0 {
		return nil, fmt.Errorf("ledger info at version %d: %w", version, ErrNotFound)
	}
	return types.UnmarshalLedgerInfo(bz)
}

func (s *LedgerStore) loadEpochEnding(epoch types.Epoch) (*types.LedgerInfoWithSignatures, error) {
	bz, err := s.db.Get(epochEndingKey(epoch))
	if err != nil {
		return nil, err
	}
	if len(bz) == 0 {
		return nil, fmt.Errorf("ledger info ending epoch %d: %w", epoch, ErrNotFound)
	}
	version, err := decodeVersion(bz)
	if err != nil {
		return nil, err
	}
	return s.loadLedgerInfo(version)
}

func (s *LedgerStore) saveTxToBatch(batch dbm.Batch, version types.Version, tx types.Tx) error {
	if err := batch.Set(txKey(version), tx); err != nil {
		return err
	}
	return batch.Set(txHashKey(version), tx.Hash())
}

func (s *LedgerStore) saveLedgerInfoToBatch(batch dbm.Batch, li *types.LedgerInfoWithSignatures) error {
	bz, err := li.Marshal()
	if err != nil {
		return err
	}
	if err := batch.Set(ledgerInfoKey(li.Version), bz); err != nil {
		return err
	}
	if li.EndsEpoch() {
		return batch.Set(epochEndingKey(li.Epoch), encodeVersion(li.Version))
	}
	return nil
}

// subtreeHash returns the root of the persisted leaves [lo, hi).
func (s *LedgerStore) subtreeHash(lo, hi uint64) ([]byte, error) {
	if hi-lo == 1 {
		leaf, err := s.db.Get(txHashKey(types.Version(lo)))
		if err != nil {
			return nil, err
		}
		if leaf == nil {
			return nil, fmt.Errorf("accumulator leaf %d: %w", lo, ErrNotFound)
		}
		return merkle.LeafHash(leaf), nil
	}
	if h, ok := s.cache.get(lo, hi); ok {
		return h, nil
	}

	k := lo + merkle.SplitPoint(hi-lo)
	left, err := s.subtreeHash(lo, k)
	if err != nil {
		return nil, err
	}
	right, err := s.subtreeHash(k, hi)
	if err != nil {
		return nil, err
	}
	h := merkle.InnerHash(left, right)
	s.cache.set(lo, hi, h)
	return h, nil
}

// rootWithPending computes the root of a tree with total leaves where leaves
// from pendingStart on are not persisted yet.
func (s *LedgerStore) rootWithPending(total, pendingStart uint64, pending [][]byte) ([]byte, error) {
	var hash func(lo, hi uint64) ([]byte, error)
	hash = func(lo, hi uint64) ([]byte, error) {
		if hi <= pendingStart {
			return s.subtreeHash(lo, hi)
		}
		if hi-lo == 1 {
			return merkle.LeafHash(pending[lo-pendingStart]), nil
		}
		k := lo + merkle.SplitPoint(hi-lo)
		left, err := hash(lo, k)
		if err != nil {
			return nil, err
		}
		right, err := hash(k, hi)
		if err != nil {
			return nil, err
		}
		return merkle.InnerHash(left, right), nil
	}
	return hash(0, total)
}
