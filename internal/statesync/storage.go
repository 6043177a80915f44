package statesync

import (
	"context"

	"github.com/tendermint/ledgersync/types"
	"github.com/tendermint/ledgersync/verifier"
)

//go:generate mockery --case underscore --name Storage|Network

// Storage persists verified chunks. internal/store.LedgerStore implements
// it.
type Storage interface {
	// LatestVersion returns the version of the last persisted transaction.
	LatestVersion() (types.Version, error)
	// LatestLedgerInfo returns the most recent persisted ledger info.
	LatestLedgerInfo() (*types.LedgerInfoWithSignatures, error)
	// ExecuteAndCommit persists the chunk atomically. Errors are
	// *types.ApplyError.
	ExecuteAndCommit(ctx context.Context, chunk *verifier.VerifiedChunk) error
	// EpochChangeProof returns the ending ledger infos of epochs
	// [startEpoch, endEpoch).
	EpochChangeProof(startEpoch, endEpoch types.Epoch) (*types.EpochChangeProof, error)
}

// ChunkSource is the read side used to serve peers.
type ChunkSource interface {
	LatestVersion() (types.Version, error)
	LatestLedgerInfo() (*types.LedgerInfoWithSignatures, error)
	// LedgerInfo returns the ledger info persisted at version, or an error
	// wrapping store.ErrNotFound.
	LedgerInfo(version types.Version) (*types.LedgerInfoWithSignatures, error)
	EpochChangeProof(startEpoch, endEpoch types.Epoch) (*types.EpochChangeProof, error)
	TransactionsWithProof(start types.Version, limit uint64, ledgerVersion types.Version) (*types.TransactionListWithProof, error)
}

// Network sends chunk requests. Responses come back through
// Reactor.ReceiveChunkResponse.
type Network interface {
	SendChunkRequest(ctx context.Context, peer types.NodeID, req *ChunkRequest) error
}
