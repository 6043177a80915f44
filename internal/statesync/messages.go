package statesync

import (
	"errors"
	"fmt"
	"time"

	tmmath "github.com/tendermint/ledgersync/libs/math"
	"github.com/tendermint/ledgersync/types"
)

// ChunkRequest asks a peer for transactions starting at StartVersion.
type ChunkRequest struct {
	// First version the requester is missing.
	StartVersion types.Version
	// Maximum number of transactions to return.
	Limit uint64
	// Epoch whose validator set the requester trusts. A response proven
	// against a later epoch must carry an epoch change proof from here.
	KnownEpoch types.Epoch
	// Ledger info the peer should prove against. A peer that does not have
	// it proves against its own latest ledger info. Nil means latest.
	Target *types.LedgerInfoWithSignatures
	// Version of a ledger info the peer should prove against if it has one,
	// ahead of Target. Zero means none.
	LedgerInfoVersion types.Version
	// How long the peer may hold the request when it has nothing past
	// StartVersion. Zero means respond immediately.
	LongPollTimeout time.Duration
}

// ValidateBasic performs stateless validation.
func (r *ChunkRequest) ValidateBasic() error {
	if r == nil {
		return errors.New("nil chunk request")
	}
	if r.StartVersion == 0 {
		return errors.New("start version must be positive")
	}
	if r.Limit == 0 {
		return errors.New("limit must be positive")
	}
	if _, err := tmmath.SafeAddUint64(uint64(r.StartVersion), r.Limit); err != nil {
		return fmt.Errorf("requested range: %w", err)
	}
	if r.LedgerInfoVersion != 0 && r.LedgerInfoVersion < r.StartVersion {
		return fmt.Errorf("ledger info version %d is before start version %d", r.LedgerInfoVersion, r.StartVersion)
	}
	if r.LongPollTimeout < 0 {
		return errors.New("negative long poll timeout")
	}
	if r.Target != nil {
		if err := r.Target.ValidateBasic(); err != nil {
			return fmt.Errorf("invalid target: %w", err)
		}
	}
	return nil
}

// ChunkResponse answers a ChunkRequest. Transactions is empty when the peer
// has nothing past the requested start version; LedgerInfo still tells the
// requester how far the peer is.
type ChunkResponse struct {
	Transactions     *types.TransactionListWithProof
	LedgerInfo       *types.LedgerInfoWithSignatures
	EpochChangeProof *types.EpochChangeProof
}

// ValidateBasic performs stateless validation.
func (r *ChunkResponse) ValidateBasic() error {
	if r == nil {
		return errors.New("nil chunk response")
	}
	if r.LedgerInfo == nil {
		return errors.New("missing ledger info")
	}
	if err := r.LedgerInfo.ValidateBasic(); err != nil {
		return fmt.Errorf("invalid ledger info: %w", err)
	}
	if r.Transactions.Len() > 0 {
		if err := r.Transactions.ValidateBasic(); err != nil {
			return fmt.Errorf("invalid transactions: %w", err)
		}
		if r.Transactions.LastVersion() > r.LedgerInfo.Version {
			return fmt.Errorf("transactions end at %d, after ledger info version %d",
				r.Transactions.LastVersion(), r.LedgerInfo.Version)
		}
	}
	if r.EpochChangeProof.Len() > 0 {
		if err := r.EpochChangeProof.ValidateBasic(); err != nil {
			return fmt.Errorf("invalid epoch change proof: %w", err)
		}
	}
	return nil
}

// IsEmpty reports whether the response carries no transactions.
func (r *ChunkResponse) IsEmpty() bool {
	return r.Transactions.Len() == 0
}
