package statesync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tendermint/ledgersync/config"
	"github.com/tendermint/ledgersync/internal/eventbus"
	"github.com/tendermint/ledgersync/internal/store"
	"github.com/tendermint/ledgersync/libs/log"
	"github.com/tendermint/ledgersync/types"
)

// ChunkServer answers chunk requests from peers out of the local ledger.
type ChunkServer struct {
	logger   log.Logger
	source   ChunkSource
	eventBus *eventbus.EventBus
}

// NewChunkServer returns a server reading from source. Long-poll requests
// are held until a commit is published on eventBus; with a nil eventBus
// they are answered immediately.
func NewChunkServer(logger log.Logger, source ChunkSource, eventBus *eventbus.EventBus) *ChunkServer {
	return &ChunkServer{
		logger:   logger.With("module", "chunkserver"),
		source:   source,
		eventBus: eventBus,
	}
}

// HandleRequest builds the response to req. The response is proven against
// the ledger info at req.LedgerInfoVersion or req.Target when the local
// ledger has it, otherwise against the latest local ledger info. When that ledger info is past the requester's epoch,
// the response carries the epoch change proof the requester needs.
func (s *ChunkServer) HandleRequest(ctx context.Context, peer types.NodeID, req *ChunkRequest) (*ChunkResponse, error) {
	if err := req.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("invalid chunk request from %v: %w", peer, err)
	}

	if req.LongPollTimeout > 0 && s.eventBus != nil {
		if err := s.waitForVersion(ctx, req.StartVersion, req.LongPollTimeout); err != nil {
			return nil, err
		}
	}

	resp, err := s.response(req)
	if err != nil {
		s.logger.Error("failed to serve chunk request", "peer", peer, "start", req.StartVersion, "err", err)
		return nil, err
	}
	s.logger.Debug("serving chunk",
		"peer", peer,
		"start", req.StartVersion,
		"txs", resp.Transactions.Len(),
		"ledger_version", resp.LedgerInfo.Version,
		"epoch_changes", resp.EpochChangeProof.Len())
	return resp, nil
}

func (s *ChunkServer) response(req *ChunkRequest) (*ChunkResponse, error) {
	latest, err := s.source.LatestVersion()
	if err != nil {
		return nil, err
	}

	li, err := s.requestedLedgerInfo(req, latest)
	if err != nil {
		return nil, err
	}
	if li == nil {
		if li, err = s.source.LatestLedgerInfo(); err != nil {
			return nil, err
		}
	}

	resp := &ChunkResponse{LedgerInfo: li}
	if li.Epoch > req.KnownEpoch {
		proof, err := s.source.EpochChangeProof(req.KnownEpoch, li.Epoch)
		if err != nil {
			return nil, fmt.Errorf("epoch change proof [%d, %d): %w", req.KnownEpoch, li.Epoch, err)
		}
		// A paged proof only reaches its last link.
		if proof.More {
			li = proof.Last()
			resp.LedgerInfo = li
		}
		resp.EpochChangeProof = proof
	}

	if req.StartVersion > li.Version {
		return resp, nil
	}

	limit := req.Limit
	if limit > config.MaxChunkLimit {
		limit = config.MaxChunkLimit
	}
	txs, err := s.source.TransactionsWithProof(req.StartVersion, limit, li.Version)
	if err != nil {
		return nil, err
	}
	resp.Transactions = txs
	return resp, nil
}

// requestedLedgerInfo returns the ledger info req asks to be proven against,
// or nil if the local ledger cannot serve it.
func (s *ChunkServer) requestedLedgerInfo(req *ChunkRequest, latest types.Version) (*types.LedgerInfoWithSignatures, error) {
	if v := req.LedgerInfoVersion; v != 0 && v <= latest {
		li, err := s.source.LedgerInfo(v)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return nil, err
		case li.Epoch >= req.KnownEpoch:
			return li, nil
		}
	}
	if li := req.Target; li != nil && li.Version <= latest && li.Epoch >= req.KnownEpoch {
		return li, nil
	}
	return nil, nil
}

// waitForVersion blocks until the local ledger reaches version or timeout
// elapses. Only the cancellation of ctx is an error.
func (s *ChunkServer) waitForVersion(ctx context.Context, version types.Version, timeout time.Duration) error {
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sub, err := s.eventBus.Subscribe(pollCtx, 0, eventbus.EventCommit)
	if err != nil {
		return err
	}
	defer s.eventBus.Unsubscribe(sub)

	for {
		latest, err := s.source.LatestVersion()
		if err != nil {
			return err
		}
		if latest >= version {
			return nil
		}
		if _, err := sub.Next(pollCtx); err != nil {
			return ctx.Err()
		}
	}
}
