package statesync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/tendermint/ledgersync/config"
	"github.com/tendermint/ledgersync/internal/eventbus"
	"github.com/tendermint/ledgersync/libs/log"
	"github.com/tendermint/ledgersync/types"
	"github.com/tendermint/ledgersync/verifier"
)

// ErrOverlappingChunk is returned for a chunk that does not start right
// after the synced version but is not fully persisted either.
var ErrOverlappingChunk = errors.New("chunk overlaps the synced version")

// EventPublisher receives the events of the executor. *eventbus.EventBus
// implements it.
type EventPublisher interface {
	Publish(ev eventbus.Event)
}

// Executor hands verified chunks to storage and tracks the synced version
// and epoch. It is not safe for concurrent use.
type Executor struct {
	logger    log.Logger
	storage   Storage
	publisher EventPublisher
	metrics   *Metrics

	retries     uint64
	backoffBase time.Duration
	backoffMax  time.Duration

	trusted verifier.TrustedState
}

// NewExecutor returns an executor that starts from trusted.
func NewExecutor(
	logger log.Logger,
	cfg *config.StateSyncConfig,
	storage Storage,
	publisher EventPublisher,
	metrics *Metrics,
	trusted verifier.TrustedState,
) *Executor {
	return &Executor{
		logger:      logger,
		storage:     storage,
		publisher:   publisher,
		metrics:     metrics,
		retries:     uint64(cfg.ApplyRetries),
		backoffBase: cfg.BackoffBase,
		backoffMax:  cfg.BackoffMax,
		trusted:     trusted,
	}
}

// TrustedState returns the synced version together with the trusted epoch
// and validator set.
func (e *Executor) TrustedState() verifier.TrustedState {
	return e.trusted
}

// Reset replaces the trusted state, e.g. after bootstrapping from storage.
func (e *Executor) Reset(trusted verifier.TrustedState) {
	e.trusted = trusted
	e.metrics.SyncedVersion.Set(float64(trusted.Version))
	e.metrics.SyncedEpoch.Set(float64(trusted.Epoch))
}

// Apply persists chunk and returns the new synced version. A chunk that is
// already persisted is a no-op. Transient storage failures are retried with
// the same chunk; a fatal *types.ApplyError is returned as is. The synced
// version only moves once storage confirms the chunk.
func (e *Executor) Apply(ctx context.Context, chunk *verifier.VerifiedChunk) (types.Version, error) {
	current := e.trusted.Version
	first, last := chunk.FirstVersion(), chunk.LastVersion()

	switch {
	case last <= current:
		e.logger.Debug("ignoring chunk that is already persisted",
			"first", first, "last", last, "version", current)
		return current, nil
	case first != current+1:
		return current, fmt.Errorf("%w: chunk [%d, %d], synced version %d",
			ErrOverlappingChunk, first, last, current)
	}

	start := time.Now()
	err := backoff.Retry(func() error {
		err := e.storage.ExecuteAndCommit(ctx, chunk)
		if err == nil {
			return nil
		}

		var applyErr *types.ApplyError
		if (errors.As(err, &applyErr) && applyErr.IsFatal()) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		e.logger.Error("failed to persist chunk", "first", first, "last", last, "err", err)
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(e.newBackOff(), e.retries), ctx))
	e.metrics.ChunkApplySeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		return current, fmt.Errorf("persisting chunk [%d, %d]: %w", first, last, err)
	}

	e.trusted = chunk.TrustedState()
	e.metrics.ChunksApplied.Add(1)
	e.metrics.SyncedVersion.Set(float64(e.trusted.Version))
	e.metrics.SyncedEpoch.Set(float64(e.trusted.Epoch))

	e.publisher.Publish(eventbus.CommitEvent{
		FirstVersion: first,
		LastVersion:  last,
		TxHashes:     chunk.Transactions().Transactions.Hashes(),
	})
	for _, change := range chunk.EpochChanges() {
		e.logger.Info("entered new epoch", "epoch", change.Epoch+1, "version", change.Version)
		e.publisher.Publish(eventbus.ReconfigurationEvent{
			Epoch:        change.Epoch + 1,
			ValidatorSet: change.NextValidators,
		})
	}

	return e.trusted.Version, nil
}

func (e *Executor) newBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.backoffBase
	bo.MaxInterval = e.backoffMax
	bo.MaxElapsedTime = 0
	return bo
}
