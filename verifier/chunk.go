package verifier

import (
	tmmath "github.com/tendermint/ledgersync/libs/math"
	"github.com/tendermint/ledgersync/types"
)

// TrustedState is what the local node trusts: everything up to Version has
// been persisted and Validators sign the ledger infos of Epoch.
type TrustedState struct {
	Version    types.Version
	Epoch      types.Epoch
	Validators *types.ValidatorSet
}

// VerifiedChunk is a transaction list that has been proven against a
// trusted ledger info. It can only be produced by VerifyChunk.
type VerifiedChunk struct {
	txs          *types.TransactionListWithProof
	ledgerInfo   *types.LedgerInfoWithSignatures
	epochChanges []*types.LedgerInfoWithSignatures
	next         TrustedState
}

// Transactions returns the verified transaction list.
func (c *VerifiedChunk) Transactions() *types.TransactionListWithProof { return c.txs }

// FirstVersion returns the version of the first transaction.
func (c *VerifiedChunk) FirstVersion() types.Version { return c.txs.FirstVersion }

// LastVersion returns the version of the last transaction.
func (c *VerifiedChunk) LastVersion() types.Version { return c.txs.LastVersion() }

// LedgerInfo returns the ledger info the chunk was proven against. Its
// version may be greater than LastVersion.
func (c *VerifiedChunk) LedgerInfo() *types.LedgerInfoWithSignatures { return c.ledgerInfo }

// EpochChanges returns, in order, the verified epoch-ending ledger infos whose
// versions fall inside the chunk.
func (c *VerifiedChunk) EpochChanges() []*types.LedgerInfoWithSignatures { return c.epochChanges }

// TrustedState returns the trusted state once the chunk is persisted.
func (c *VerifiedChunk) TrustedState() TrustedState { return c.next }

// VerifyLedgerInfoWithProof verifies li against trusted state. When li is
// from a later epoch, proof must bridge trusted.Epoch to li.Epoch.
func VerifyLedgerInfoWithProof(
	trusted TrustedState,
	li *types.LedgerInfoWithSignatures,
	proof *types.EpochChangeProof,
	quorum tmmath.Fraction,
) error {
	_, err := verifyAgainstTrusted(trusted, li, proof, quorum)
	return err
}

// verifyAgainstTrusted verifies li and returns the validator sets proven
// along the way, keyed by epoch.
func verifyAgainstTrusted(
	trusted TrustedState,
	li *types.LedgerInfoWithSignatures,
	proof *types.EpochChangeProof,
	quorum tmmath.Fraction,
) (map[types.Epoch]*types.ValidatorSet, error) {
	if li == nil {
		return nil, malformed("nil ledger info")
	}
	if li.Epoch < trusted.Epoch {
		return nil, malformed("ledger info epoch %d is older than trusted epoch %d", li.Epoch, trusted.Epoch)
	}

	sets := map[types.Epoch]*types.ValidatorSet{trusted.Epoch: trusted.Validators}
	if li.Epoch > trusted.Epoch {
		if proof.Len() == 0 {
			return nil, nonContiguous("ledger info epoch %d needs an epoch change proof from epoch %d",
				li.Epoch, trusted.Epoch)
		}
		var err error
		sets, err = verifyEpochChain(proof, trusted.Epoch, trusted.Validators, quorum)
		if err != nil {
			return nil, err
		}
	}

	vals, ok := sets[li.Epoch]
	if !ok {
		return nil, nonContiguous("epoch change proof does not reach epoch %d", li.Epoch)
	}
	if err := VerifyLedgerInfo(li, vals, quorum); err != nil {
		return nil, err
	}
	return sets, nil
}

// VerifyChunk proves a transaction list received from a peer. The ledger
// info must be signed by the trusted validator set or by one reached through
// proof. Epoch-ending ledger infos inside the list's range are carried on
// the returned chunk so storage can persist them with the transactions.
func VerifyChunk(
	trusted TrustedState,
	list *types.TransactionListWithProof,
	li *types.LedgerInfoWithSignatures,
	proof *types.EpochChangeProof,
	quorum tmmath.Fraction,
) (*VerifiedChunk, error) {
	if list == nil {
		return nil, malformed("nil transaction list")
	}
	if _, err := verifyAgainstTrusted(trusted, li, proof, quorum); err != nil {
		return nil, err
	}
	if err := VerifyTransactionList(list, &li.LedgerInfo); err != nil {
		return nil, err
	}

	var (
		first   = list.FirstVersion
		last    = list.LastVersion()
		changes []*types.LedgerInfoWithSignatures
	)
	if li.Epoch > trusted.Epoch {
		for _, link := range proof.LedgerInfos {
			if link.Version > last {
				break
			}
			if link.Version < first {
				return nil, nonContiguous("epoch %d ended at version %d, before the chunk starting at %d",
					link.Epoch, link.Version, first)
			}
			changes = append(changes, link)
		}
	}
	if li.EndsEpoch() && li.Version == last {
		if len(changes) == 0 || changes[len(changes)-1].Epoch != li.Epoch {
			changes = append(changes, li)
		}
	}

	next := TrustedState{Version: last, Epoch: trusted.Epoch, Validators: trusted.Validators}
	for _, change := range changes {
		next.Epoch = change.Epoch + 1
		next.Validators = change.NextValidators
	}

	return &VerifiedChunk{
		txs:          list,
		ledgerInfo:   li,
		epochChanges: changes,
		next:         next,
	}, nil
}
