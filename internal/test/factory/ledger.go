package factory

import (
	"fmt"
	"testing"
	"time"

	"github.com/tendermint/ledgersync/crypto"
	"github.com/tendermint/ledgersync/crypto/merkle"
	"github.com/tendermint/ledgersync/types"
	"github.com/tendermint/ledgersync/verifier"
)

// DefaultValidators is the size of every epoch's validator set.
const DefaultValidators = 4

// Ledger is an in-memory chain used to produce signed ledger infos and
// proofs for tests. Version 0 is the genesis transaction, closed by an
// epoch 0 ledger info that hands over to epoch 1.
type Ledger struct {
	t testing.TB

	txs         types.Txs
	epoch       types.Epoch
	vals        map[types.Epoch]*types.ValidatorSet
	privs       map[types.Epoch][]crypto.PrivKey
	ledgerInfos map[types.Version]*types.LedgerInfoWithSignatures
	epochEnds   map[types.Epoch]*types.LedgerInfoWithSignatures
	latest      *types.LedgerInfoWithSignatures
	now         time.Time
}

// NewLedger returns a ledger holding only the genesis transaction and the
// genesis ledger info. The ledger is in epoch 1.
func NewLedger(t testing.TB) *Ledger {
	t.Helper()

	vals, privs := ValidatorSet(t, "epoch-1", DefaultValidators, 10)
	l := &Ledger{
		t:           t,
		txs:         types.Txs{GenesisTx},
		vals:        map[types.Epoch]*types.ValidatorSet{0: vals, 1: vals},
		privs:       map[types.Epoch][]crypto.PrivKey{0: privs, 1: privs},
		ledgerInfos: make(map[types.Version]*types.LedgerInfoWithSignatures),
		epochEnds:   make(map[types.Epoch]*types.LedgerInfoWithSignatures),
		now:         time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	l.sign(vals)
	l.epoch = 1
	return l
}

// Append adds n transactions.
func (l *Ledger) Append(n int) *Ledger {
	for i := 0; i < n; i++ {
		l.txs = append(l.txs, MakeTx(l.Version()+1))
	}
	return l
}

// AppendTxs adds the given transactions.
func (l *Ledger) AppendTxs(txs ...types.Tx) *Ledger {
	l.txs = append(l.txs, txs...)
	return l
}

// Commit appends n transactions and signs a ledger info at the new version
// with the current epoch's validators.
func (l *Ledger) Commit(n int) *types.LedgerInfoWithSignatures {
	l.Append(n)
	return l.sign(nil)
}

// EndEpoch appends n transactions and closes the current epoch at the new
// version. The next epoch gets a fresh validator set.
func (l *Ledger) EndEpoch(n int) *types.LedgerInfoWithSignatures {
	l.t.Helper()

	next := l.epoch + 1
	vals, privs := ValidatorSet(l.t, fmt.Sprintf("epoch-%d", next), DefaultValidators, 10)
	l.vals[next] = vals
	l.privs[next] = privs

	l.Append(n)
	li := l.sign(vals)
	l.epoch = next
	return li
}

func (l *Ledger) sign(next *types.ValidatorSet) *types.LedgerInfoWithSignatures {
	l.now = l.now.Add(time.Second)
	li := types.LedgerInfo{
		Epoch:           l.epoch,
		Version:         l.Version(),
		AccumulatorRoot: l.Root(l.Version()),
		Timestamp:       l.now,
		NextValidators:  next,
	}
	signed := SignLedgerInfo(l.t, li, l.privs[l.epoch])
	l.ledgerInfos[li.Version] = signed
	if next != nil {
		l.epochEnds[li.Epoch] = signed
	}
	l.latest = signed
	return signed
}

// Version returns the version of the last transaction.
func (l *Ledger) Version() types.Version {
	return types.Version(len(l.txs) - 1)
}

// Epoch returns the current (open) epoch.
func (l *Ledger) Epoch() types.Epoch { return l.epoch }

// Txs returns transactions [from, to].
func (l *Ledger) Txs(from, to types.Version) types.Txs {
	return l.txs[from : to+1]
}

// Root returns the accumulator root over transactions [0, version].
func (l *Ledger) Root(version types.Version) []byte {
	return l.txs[:version+1].Hash()
}

// Genesis returns the genesis ledger info.
func (l *Ledger) Genesis() *types.LedgerInfoWithSignatures {
	return l.ledgerInfos[0]
}

// Latest returns the most recently signed ledger info.
func (l *Ledger) Latest() *types.LedgerInfoWithSignatures {
	return l.latest
}

// LedgerInfoAt returns the ledger info signed at version, or nil.
func (l *Ledger) LedgerInfoAt(version types.Version) *types.LedgerInfoWithSignatures {
	return l.ledgerInfos[version]
}

// Validators returns the validator set of epoch.
func (l *Ledger) Validators(epoch types.Epoch) *types.ValidatorSet {
	return l.vals[epoch]
}

// PrivKeys returns the signing keys of epoch.
func (l *Ledger) PrivKeys(epoch types.Epoch) []crypto.PrivKey {
	return l.privs[epoch]
}

// TrustedState returns the trusted state of a node that has persisted
// genesis only.
func (l *Ledger) TrustedState() verifier.TrustedState {
	return verifier.TrustedState{Version: 0, Epoch: 1, Validators: l.vals[1]}
}

// EpochChangeProof returns the ending ledger infos of epochs [from, to).
func (l *Ledger) EpochChangeProof(from, to types.Epoch) *types.EpochChangeProof {
	proof := &types.EpochChangeProof{}
	for e := from; e < to; e++ {
		li, ok := l.epochEnds[e]
		if !ok {
			break
		}
		proof.LedgerInfos = append(proof.LedgerInfos, li)
	}
	return proof
}

// TransactionsWithProof returns transactions [from, to] proven against the
// accumulator at version atVersion.
func (l *Ledger) TransactionsWithProof(from, to, atVersion types.Version) *types.TransactionListWithProof {
	l.t.Helper()

	leaves := l.txs[:atVersion+1].Hashes()
	proof, err := merkle.NewRangeProof(uint64(atVersion)+1, uint64(from), uint64(to-from+1),
		func(lo, hi uint64) ([]byte, error) {
			return merkle.HashFromByteSlices(leaves[lo:hi]), nil
		})
	if err != nil {
		l.t.Fatalf("building range proof: %v", err)
	}
	return &types.TransactionListWithProof{
		FirstVersion: from,
		Transactions: l.Txs(from, to),
		Proof:        proof,
	}
}

// VerifiedChunk proves transactions [from, to] against li, bridging epochs
// from trusted when needed.
func (l *Ledger) VerifiedChunk(
	trusted verifier.TrustedState,
	from, to types.Version,
	li *types.LedgerInfoWithSignatures,
) *verifier.VerifiedChunk {
	l.t.Helper()

	var proof *types.EpochChangeProof
	if li.Epoch > trusted.Epoch {
		proof = l.EpochChangeProof(trusted.Epoch, li.Epoch)
	}
	chunk, err := verifier.VerifyChunk(trusted, l.TransactionsWithProof(from, to, li.Version), li, proof, types.DefaultQuorum)
	if err != nil {
		l.t.Fatalf("verifying chunk [%d, %d]: %v", from, to, err)
	}
	return chunk
}
