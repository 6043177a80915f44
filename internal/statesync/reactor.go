package statesync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/tendermint/ledgersync/config"
	"github.com/tendermint/ledgersync/internal/eventbus"
	"github.com/tendermint/ledgersync/libs/log"
	tmmath "github.com/tendermint/ledgersync/libs/math"
	"github.com/tendermint/ledgersync/libs/service"
	"github.com/tendermint/ledgersync/types"
	"github.com/tendermint/ledgersync/verifier"
)

const eventQueueSize = 128

var (
	// ErrHalted is returned by the reactor API once state sync stopped on a
	// fatal error. Err returns the cause.
	ErrHalted = errors.New("state sync halted")

	errNotRunning      = errors.New("state sync reactor is not running")
	errWaypointSkipped = errors.New("no ledger info at the waypoint version")
)

// Mode decides when the reactor syncs on its own.
type Mode int

const (
	// ModeFollower nodes sync toward any newer target they learn about.
	ModeFollower Mode = iota
	// ModeValidator nodes stay passive until consensus reports that they fell
	// behind.
	ModeValidator
)

// ParseMode converts the mode of the node configuration.
func ParseMode(s string) (Mode, error) {
	switch s {
	case config.ModeFollower:
		return ModeFollower, nil
	case config.ModeValidator:
		return ModeValidator, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", s)
	}
}

func (m Mode) String() string {
	if m == ModeValidator {
		return config.ModeValidator
	}
	return config.ModeFollower
}

// State is the coordinator state.
type State int

const (
	StateIdle State = iota
	StateSyncing
	StateHalted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSyncing:
		return "syncing"
	case StateHalted:
		return "halted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Status is a point-in-time view of the reactor.
type Status struct {
	HighestLocalVersion types.Version
	HighestLocalEpoch   types.Epoch
	// Zero if no target is known.
	TargetVersion types.Version
	IsCaughtUp    bool
	State         State
}

// Events processed by the reactor loop, in arrival order.
type (
	bootstrapEvent struct {
		trusted  verifier.TrustedState
		waypoint *types.Waypoint
	}

	targetEvent struct {
		ledgerInfo *types.LedgerInfoWithSignatures
		fellBehind bool
	}

	peerEvent struct {
		peer types.NodeID
		up   bool
	}

	fetchResult struct {
		id   uint64
		peer types.NodeID
		req  *ChunkRequest
		resp *ChunkResponse
		err  error
	}
)

type inflightRequest struct {
	id     uint64
	peer   types.NodeID
	req    *ChunkRequest
	cancel context.CancelFunc
	// canceled by the reactor: the peer left or a long-poll was replaced
	superseded bool
}

// loopState is owned by the event loop goroutine.
type loopState struct {
	state        State
	bootstrapped bool

	target         *types.LedgerInfoWithSignatures
	targetVerified bool
	fellBehind     bool
	waypoint       *types.Waypoint

	inflight *inflightRequest
	nextID   uint64

	rangeStart types.Version
	attempts   int
	exclude    map[types.NodeID]struct{}

	retryTimer      *time.Timer
	retryC          <-chan time.Time
	waitingForPeers bool
}

// Reactor drives state sync: it fetches chunks from upstream peers, has
// them verified and persisted, and tracks targets, peers and the sync
// state. All decisions are taken by a single event loop; the exported
// methods only enqueue events or read snapshots.
type Reactor struct {
	service.BaseService
	logger log.Logger

	cfg      *config.StateSyncConfig
	mode     Mode
	quorum   tmmath.Fraction
	storage  Storage
	eventBus *eventbus.EventBus
	metrics  *Metrics
	now      func() time.Time

	dispatcher *dispatcher
	executor   *Executor
	peers      *peerSelector
	backoff    *backoff.ExponentialBackOff

	events chan interface{}
	halted chan struct{}
	loop   loopState

	mtx      sync.RWMutex
	status   Status
	peerInfo []PeerInfo
	haltErr  error
}

// ReactorOption sets an optional parameter on the Reactor.
type ReactorOption func(*Reactor)

// WithMetrics sets the metrics.
func WithMetrics(metrics *Metrics) ReactorOption {
	return func(r *Reactor) { r.metrics = metrics }
}

// WithClock replaces the clock used for peer cool-downs.
func WithClock(now func() time.Time) ReactorOption {
	return func(r *Reactor) { r.now = now }
}

// NewReactor returns a reactor that persists chunks into storage, sends
// requests over network and publishes its events on eventBus. Bootstrap
// must be called once the reactor is started.
func NewReactor(
	logger log.Logger,
	cfg *config.StateSyncConfig,
	mode Mode,
	storage Storage,
	network Network,
	eventBus *eventbus.EventBus,
	options ...ReactorOption,
) (*Reactor, error) {
	quorum, err := cfg.QuorumFraction()
	if err != nil {
		return nil, err
	}

	r := &Reactor{
		logger:   logger.With("module", "statesync"),
		cfg:      cfg,
		mode:     mode,
		quorum:   quorum,
		storage:  storage,
		eventBus: eventBus,
		metrics:  NopMetrics(),
		now:      time.Now,
		events:   make(chan interface{}, eventQueueSize),
		halted:   make(chan struct{}),
	}
	for _, opt := range options {
		opt(r)
	}

	r.dispatcher = newDispatcher(network, cfg.ChunkRequestTimeout)
	r.peers = newPeerSelector(cfg.PeerFailureThreshold, cfg.PeerCooldown, r.now)
	r.executor = NewExecutor(r.logger, cfg, storage, eventBus, r.metrics, verifier.TrustedState{})

	r.backoff = backoff.NewExponentialBackOff()
	r.backoff.InitialInterval = cfg.BackoffBase
	r.backoff.MaxInterval = cfg.BackoffMax
	r.backoff.MaxElapsedTime = 0
	r.backoff.Reset()

	r.loop.exclude = make(map[types.NodeID]struct{})
	r.BaseService = *service.NewBaseService(logger, "StateSync", r)
	return r, nil
}

// OnStart starts the event loop.
func (r *Reactor) OnStart(ctx context.Context) error {
	go r.processEvents(ctx)
	return nil
}

// OnStop fails the outstanding request.
func (r *Reactor) OnStop() {
	r.dispatcher.Close()
}

// Bootstrap loads the trusted state from storage and starts syncing. A
// waypoint at the latest persisted ledger info is checked right away; one
// further ahead is checked when the ledger info at its version is verified.
// A waypoint behind the local ledger is ignored.
func (r *Reactor) Bootstrap(ctx context.Context, wp *types.Waypoint) error {
	trusted, latest, err := r.loadTrustedState()
	if err != nil {
		return fmt.Errorf("loading trusted state: %w", err)
	}

	if wp != nil {
		switch {
		case wp.Version == latest.Version:
			if err := verifier.VerifyWaypoint(&latest.LedgerInfo, wp); err != nil {
				return err
			}
			wp = nil
		case wp.Version < latest.Version || wp.Version <= trusted.Version:
			r.logger.Info("local ledger is past the waypoint; ignoring it",
				"waypoint", wp, "version", trusted.Version)
			wp = nil
		}
	}

	return r.enqueue(ctx, bootstrapEvent{trusted: trusted, waypoint: wp})
}

func (r *Reactor) loadTrustedState() (verifier.TrustedState, *types.LedgerInfoWithSignatures, error) {
	version, err := r.storage.LatestVersion()
	if err != nil {
		return verifier.TrustedState{}, nil, err
	}
	latest, err := r.storage.LatestLedgerInfo()
	if err != nil {
		return verifier.TrustedState{}, nil, err
	}

	trusted := verifier.TrustedState{Version: version}
	switch {
	case latest.EndsEpoch():
		trusted.Epoch, trusted.Validators = latest.Epoch+1, latest.NextValidators
	case latest.Epoch == 0:
		return trusted, nil, errors.New("latest ledger info is in epoch 0 but does not end it")
	default:
		proof, err := r.storage.EpochChangeProof(latest.Epoch-1, latest.Epoch)
		if err != nil {
			return trusted, nil, err
		}
		if proof.Len() == 0 {
			return trusted, nil, fmt.Errorf("no ledger info ending epoch %d", latest.Epoch-1)
		}
		trusted.Epoch, trusted.Validators = latest.Epoch, proof.Last().NextValidators
	}
	return trusted, latest, nil
}

// OnNewTarget hands a ledger info learned from consensus or a peer to the
// reactor. Followers sync toward it; validators only record it.
func (r *Reactor) OnNewTarget(ctx context.Context, li *types.LedgerInfoWithSignatures) error {
	return r.enqueue(ctx, targetEvent{ledgerInfo: li})
}

// NotifyFellBehind is called by consensus when the node fell behind li. The
// reactor syncs toward li and publishes a CaughtUp status once it gets there.
func (r *Reactor) NotifyFellBehind(ctx context.Context, li *types.LedgerInfoWithSignatures) error {
	return r.enqueue(ctx, targetEvent{ledgerInfo: li, fellBehind: true})
}

// AddPeer registers an upstream peer.
func (r *Reactor) AddPeer(ctx context.Context, peer types.NodeID) error {
	return r.enqueue(ctx, peerEvent{peer: peer, up: true})
}

// RemovePeer forgets an upstream peer. A request outstanding to it is
// abandoned without penalty.
func (r *Reactor) RemovePeer(ctx context.Context, peer types.NodeID) error {
	return r.enqueue(ctx, peerEvent{peer: peer})
}

// ReceiveChunkResponse delivers the response of peer to the request waiting
// for it.
func (r *Reactor) ReceiveChunkResponse(peer types.NodeID, resp *ChunkResponse) error {
	return r.dispatcher.Respond(peer, resp)
}

// SyncStatus returns the latest status.
func (r *Reactor) SyncStatus() Status {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return r.status
}

// PeerSnapshot returns the peers, best ranked first.
func (r *Reactor) PeerSnapshot() []PeerInfo {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return append([]PeerInfo(nil), r.peerInfo...)
}

// Halted returns a channel that is closed when the reactor halts.
func (r *Reactor) Halted() <-chan struct{} {
	return r.halted
}

// Err returns the error the reactor halted on, if any.
func (r *Reactor) Err() error {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return r.haltErr
}

func (r *Reactor) enqueue(ctx context.Context, ev interface{}) error {
	if !r.IsRunning() {
		return errNotRunning
	}
	select {
	case <-r.halted:
		return ErrHalted
	default:
	}
	select {
	case r.events <- ev:
		return nil
	case <-r.halted:
		return ErrHalted
	case <-r.Quit():
		return errNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Reactor) processEvents(ctx context.Context) {
	defer r.stopRetry()

	for {
		select {
		case <-ctx.Done():
			r.cancelInflight()
			return

		case ev := <-r.events:
			switch ev := ev.(type) {
			case bootstrapEvent:
				r.handleBootstrap(ctx, ev)
			case targetEvent:
				r.handleTarget(ctx, ev)
			case peerEvent:
				r.handlePeer(ctx, ev)
			case fetchResult:
				r.handleFetchResult(ctx, ev)
			default:
				r.logger.Error("unknown event", "type", fmt.Sprintf("%T", ev))
			}

		case <-r.loop.retryC:
			r.loop.retryTimer, r.loop.retryC = nil, nil
			r.loop.waitingForPeers = false
			r.trySync(ctx)
		}

		r.publishSnapshots()
		if r.loop.state == StateHalted {
			return
		}
	}
}

func (r *Reactor) handleBootstrap(ctx context.Context, ev bootstrapEvent) {
	if r.loop.bootstrapped {
		r.logger.Error("ignoring repeated bootstrap")
		return
	}
	r.executor.Reset(ev.trusted)
	r.loop.bootstrapped = true
	r.loop.waypoint = ev.waypoint
	r.logger.Info("bootstrapped from local ledger",
		"version", ev.trusted.Version, "epoch", ev.trusted.Epoch, "waypoint", ev.waypoint)
	r.trySync(ctx)
}

func (r *Reactor) handleTarget(ctx context.Context, ev targetEvent) {
	li := ev.ledgerInfo
	if err := li.ValidateBasic(); err != nil {
		r.logger.Info("ignoring invalid target", "err", err)
		return
	}

	trusted := r.executor.TrustedState()
	if li.Version > trusted.Version && (r.loop.target == nil || li.Version > r.loop.target.Version) {
		verified, err := r.checkTarget(li, trusted)
		if err != nil {
			r.logger.Info("rejected target", "version", li.Version, "epoch", li.Epoch, "err", err)
			return
		}
		r.setTarget(li, verified)
		if in := r.loop.inflight; in != nil && in.req.Target == nil {
			r.supersede()
		}
	}
	// only a target that was accepted or is already reached counts
	if ev.fellBehind && r.mode == ModeValidator {
		r.loop.fellBehind = true
	}
	// an idle reactor may be waiting for its next long-poll
	if r.loop.state == StateIdle && r.wantsSync(trusted) {
		r.stopRetry()
	}
	r.trySync(ctx)
}

// checkTarget verifies li if its epoch is trusted. A target from a later
// epoch is accepted unverified: the responses that lead to it carry the
// proof.
func (r *Reactor) checkTarget(li *types.LedgerInfoWithSignatures, trusted verifier.TrustedState) (bool, error) {
	switch {
	case li.Epoch < trusted.Epoch:
		return false, fmt.Errorf("epoch %d is before the trusted epoch %d", li.Epoch, trusted.Epoch)
	case li.Epoch == trusted.Epoch:
		if err := verifier.VerifyLedgerInfo(li, trusted.Validators, r.quorum); err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, nil
	}
}

func (r *Reactor) setTarget(li *types.LedgerInfoWithSignatures, verified bool) {
	if r.loop.target != nil && li.Version <= r.loop.target.Version {
		return
	}
	r.loop.target, r.loop.targetVerified = li, verified
	r.metrics.TargetVersion.Set(float64(li.Version))
	r.logger.Debug("new target", "version", li.Version, "epoch", li.Epoch, "verified", verified)
}

func (r *Reactor) handlePeer(ctx context.Context, ev peerEvent) {
	if ev.up {
		r.peers.Add(ev.peer)
		r.logger.Debug("added peer", "peer", ev.peer)
		if r.loop.waitingForPeers {
			r.stopRetry()
		}
		r.trySync(ctx)
		return
	}

	r.peers.Remove(ev.peer)
	delete(r.loop.exclude, ev.peer)
	r.logger.Debug("removed peer", "peer", ev.peer)
	if in := r.loop.inflight; in != nil && in.peer == ev.peer {
		r.supersede()
	}
}

func (r *Reactor) handleFetchResult(ctx context.Context, res fetchResult) {
	in := r.loop.inflight
	if in == nil || in.id != res.id {
		return
	}
	r.loop.inflight = nil
	in.cancel()

	if in.superseded {
		r.trySync(ctx)
		return
	}
	if res.err != nil {
		if ctx.Err() != nil {
			return
		}
		result := "error"
		if errors.Is(res.err, ErrRequestTimeout) {
			result = "timeout"
		}
		r.metrics.ChunkRequests.With("result", result).Add(1)
		r.logger.Info("chunk request failed", "peer", res.peer, "start", res.req.StartVersion, "err", res.err)
		r.peerFailed(ctx, res.peer)
		return
	}
	r.handleResponse(ctx, res.peer, res.req, res.resp)
}

func (r *Reactor) handleResponse(ctx context.Context, peer types.NodeID, req *ChunkRequest, resp *ChunkResponse) {
	trusted := r.executor.TrustedState()
	if err := resp.ValidateBasic(); err != nil {
		r.rejectResponse(ctx, peer, fmt.Errorf("malformed response: %w", err))
		return
	}
	li := resp.LedgerInfo

	if resp.IsEmpty() {
		r.metrics.ChunkRequests.With("result", "empty").Add(1)
		r.handleEmptyResponse(ctx, peer, resp, trusted)
		return
	}

	if resp.Transactions.FirstVersion != req.StartVersion {
		r.rejectResponse(ctx, peer, fmt.Errorf("response starts at %d, requested %d",
			resp.Transactions.FirstVersion, req.StartVersion))
		return
	}
	if n := uint64(resp.Transactions.Len()); n > req.Limit {
		r.rejectResponse(ctx, peer, fmt.Errorf("malformed response: %d transactions, limit %d", n, req.Limit))
		return
	}
	chunk, err := verifier.VerifyChunk(trusted, resp.Transactions, li, resp.EpochChangeProof, r.quorum)
	if err != nil {
		r.metrics.VerificationFailures.Add(1)
		r.rejectResponse(ctx, peer, err)
		return
	}
	if err := r.checkWaypoint(chunk); err != nil {
		if errors.Is(err, errWaypointSkipped) {
			r.rejectResponse(ctx, peer, err)
			return
		}
		r.halt(err)
		return
	}

	version, err := r.executor.Apply(ctx, chunk)
	if err != nil {
		var applyErr *types.ApplyError
		switch {
		case errors.As(err, &applyErr) && applyErr.IsFatal():
			r.halt(err)
		case errors.Is(err, ErrOverlappingChunk):
			r.rejectResponse(ctx, peer, err)
		case ctx.Err() != nil:
		default:
			delay := r.backoff.NextBackOff()
			r.logger.Error("failed to persist chunk; fetching it again",
				"first", chunk.FirstVersion(), "last", chunk.LastVersion(), "retry_in", delay, "err", err)
			r.scheduleRetry(delay)
		}
		return
	}

	if wp := r.loop.waypoint; wp != nil && version >= wp.Version {
		r.logger.Info("waypoint verified", "waypoint", wp)
		r.loop.waypoint = nil
	}
	r.metrics.ChunkRequests.With("result", "applied").Add(1)
	r.peers.RecordOutcome(peer, OutcomeSuccess, &li.Version)
	r.backoff.Reset()
	r.resetRange(version + 1)
	r.setTarget(li, true)

	r.logger.Info("applied chunk",
		"first", chunk.FirstVersion(),
		"last", chunk.LastVersion(),
		"epoch", r.executor.TrustedState().Epoch,
		"peer", peer)
	r.trySync(ctx)
}

// handleEmptyResponse deals with a response that carries no transactions:
// either the peer has nothing past our version, or it only proves a newer
// ledger info.
func (r *Reactor) handleEmptyResponse(
	ctx context.Context,
	peer types.NodeID,
	resp *ChunkResponse,
	trusted verifier.TrustedState,
) {
	li := resp.LedgerInfo
	if li.Version > trusted.Version {
		if err := verifier.VerifyLedgerInfoWithProof(trusted, li, resp.EpochChangeProof, r.quorum); err != nil {
			r.metrics.VerificationFailures.Add(1)
			r.rejectResponse(ctx, peer, err)
			return
		}
		r.peers.RecordOutcome(peer, OutcomeSuccess, &li.Version)
		r.setTarget(li, true)
		// it has more but sent nothing; ask someone else
		r.loop.exclude[peer] = struct{}{}
		r.retryRange(ctx)
		return
	}

	r.peers.RecordOutcome(peer, OutcomeSuccess, &li.Version)
	if r.loop.state == StateSyncing {
		r.loop.exclude[peer] = struct{}{}
		r.retryRange(ctx)
		return
	}
	r.scheduleRetry(r.cfg.BackoffBase)
}

// checkWaypoint matches a pending waypoint against the ledger infos of
// chunk. A chunk crossing the waypoint version without a ledger info at it
// cannot be checked; it fails with errWaypointSkipped and is fetched again.
// Requests are cut at the waypoint version, so only a peer that lacks the
// ledger info there sends such a chunk.
func (r *Reactor) checkWaypoint(chunk *verifier.VerifiedChunk) error {
	wp := r.loop.waypoint
	if wp == nil || wp.Version > chunk.LedgerInfo().Version {
		return nil
	}

	candidates := append(append([]*types.LedgerInfoWithSignatures(nil), chunk.EpochChanges()...), chunk.LedgerInfo())
	for _, li := range candidates {
		if li.Version != wp.Version {
			continue
		}
		return verifier.VerifyWaypoint(&li.LedgerInfo, wp)
	}

	if chunk.LastVersion() >= wp.Version {
		return fmt.Errorf("%w: chunk [%d, %d] crosses waypoint %v",
			errWaypointSkipped, chunk.FirstVersion(), chunk.LastVersion(), wp)
	}
	return nil
}

func (r *Reactor) rejectResponse(ctx context.Context, peer types.NodeID, err error) {
	r.metrics.ChunkRequests.With("result", "rejected").Add(1)
	r.logger.Info("rejected chunk response", "peer", peer, "err", err)
	r.peerFailed(ctx, peer)
}

func (r *Reactor) peerFailed(ctx context.Context, peer types.NodeID) {
	if r.peers.RecordOutcome(peer, OutcomeFailure, nil) {
		r.metrics.PeerCooldowns.Add(1)
		r.logger.Info("peer put in cool-down", "peer", peer, "duration", r.cfg.PeerCooldown)
	}
	r.loop.exclude[peer] = struct{}{}
	r.retryRange(ctx)
}

// retryRange asks for the current range again, backing off once the range
// used up its attempts.
func (r *Reactor) retryRange(ctx context.Context) {
	r.loop.attempts++
	if r.loop.attempts >= r.cfg.MaxRetriesPerRange {
		delay := r.backoff.NextBackOff()
		r.logger.Info("range failed repeatedly; backing off",
			"start", r.loop.rangeStart, "attempts", r.loop.attempts, "retry_in", delay)
		r.loop.attempts = 0
		r.scheduleRetry(delay)
		return
	}
	r.trySync(ctx)
}

func (r *Reactor) resetRange(start types.Version) {
	r.loop.rangeStart = start
	r.loop.attempts = 0
	r.loop.exclude = make(map[types.NodeID]struct{})
}

// trySync sends the next request if nothing is outstanding, and moves
// between Idle and Syncing.
func (r *Reactor) trySync(ctx context.Context) {
	l := &r.loop
	if l.state == StateHalted || !l.bootstrapped || l.inflight != nil || l.retryTimer != nil {
		return
	}

	trusted := r.executor.TrustedState()
	r.revalidateTarget(trusted)
	if trusted.Version+1 != l.rangeStart {
		r.resetRange(trusted.Version + 1)
	}

	req := &ChunkRequest{
		StartVersion: trusted.Version + 1,
		Limit:        r.cfg.ChunkLimit,
		KnownEpoch:   trusted.Epoch,
	}
	// stop at a pending waypoint so that the response is proven against
	// the ledger info it names
	if wp := l.waypoint; wp != nil && wp.Version > trusted.Version && uint64(wp.Version-trusted.Version) <= req.Limit {
		req.Limit = uint64(wp.Version - trusted.Version)
		req.LedgerInfoVersion = wp.Version
	}
	if r.wantsSync(trusted) {
		r.setState(StateSyncing, trusted)
		req.Target = l.target
	} else {
		r.setState(StateIdle, trusted)
		if r.mode != ModeFollower || r.cfg.LongPollTimeout <= 0 || r.peers.Len() == 0 {
			return
		}
		req.LongPollTimeout = r.cfg.LongPollTimeout
	}

	peer, err := r.selectPeer()
	if err != nil {
		delay := r.backoff.NextBackOff()
		// wake up when the first peer leaves cool-down
		if next := r.peers.NextCooldownExpiry(); !next.IsZero() {
			if d := next.Sub(r.now()); d > 0 && d < delay {
				delay = d
			}
		}
		r.logger.Debug("no peer available", "retry_in", delay)
		r.scheduleRetry(delay)
		l.waitingForPeers = true
		return
	}
	r.send(ctx, peer, req)
}

func (r *Reactor) wantsSync(trusted verifier.TrustedState) bool {
	if r.loop.target == nil || r.loop.target.Version <= trusted.Version {
		return false
	}
	return r.mode == ModeFollower || r.loop.fellBehind
}

// revalidateTarget verifies a target accepted from a future epoch once that
// epoch is trusted.
func (r *Reactor) revalidateTarget(trusted verifier.TrustedState) {
	l := &r.loop
	if l.target == nil || l.targetVerified || l.target.Version <= trusted.Version || l.target.Epoch > trusted.Epoch {
		return
	}
	verified, err := r.checkTarget(l.target, trusted)
	if err != nil {
		r.logger.Error("dropping target that failed verification",
			"version", l.target.Version, "epoch", l.target.Epoch, "err", err)
		l.target, l.targetVerified = nil, false
		return
	}
	l.targetVerified = verified
}

func (r *Reactor) setState(state State, trusted verifier.TrustedState) {
	l := &r.loop
	switch {
	case state == StateSyncing && l.state != StateSyncing:
		r.logger.Info("syncing", "version", trusted.Version, "target", l.target.Version)
		r.eventBus.Publish(eventbus.SyncStatusEvent{
			Status:  eventbus.FellBehind,
			Version: trusted.Version,
			Epoch:   trusted.Epoch,
		})
	case state == StateIdle && (l.state == StateSyncing || l.fellBehind):
		r.logger.Info("caught up", "version", trusted.Version, "epoch", trusted.Epoch)
		l.fellBehind = false
		r.eventBus.Publish(eventbus.SyncStatusEvent{
			Status:  eventbus.CaughtUp,
			Version: trusted.Version,
			Epoch:   trusted.Epoch,
		})
	}
	l.state = state
	r.metrics.State.Set(float64(state))
}

// selectPeer picks the best peer not tried for the current range. Once
// every peer was tried, the range starts over with all of them.
func (r *Reactor) selectPeer() (types.NodeID, error) {
	peer, err := r.peers.Select(r.loop.exclude)
	if errors.Is(err, errNoPeers) && len(r.loop.exclude) > 0 {
		r.loop.exclude = make(map[types.NodeID]struct{})
		peer, err = r.peers.Select(nil)
	}
	return peer, err
}

func (r *Reactor) send(ctx context.Context, peer types.NodeID, req *ChunkRequest) {
	r.loop.nextID++
	id := r.loop.nextID
	reqCtx, cancel := context.WithCancel(ctx)
	r.loop.inflight = &inflightRequest{id: id, peer: peer, req: req, cancel: cancel}

	r.logger.Debug("requesting chunk",
		"peer", peer, "start", req.StartVersion, "limit", req.Limit, "long_poll", req.LongPollTimeout)
	go func() {
		resp, err := r.dispatcher.Chunk(reqCtx, peer, req)
		select {
		case r.events <- fetchResult{id: id, peer: peer, req: req, resp: resp, err: err}:
		case <-ctx.Done():
		case <-r.halted:
		}
	}()
}

// supersede cancels the outstanding request without blaming its peer. The
// next request goes out once its result is in.
func (r *Reactor) supersede() {
	r.loop.inflight.superseded = true
	r.loop.inflight.cancel()
}

func (r *Reactor) cancelInflight() {
	if r.loop.inflight != nil {
		r.loop.inflight.cancel()
		r.loop.inflight = nil
	}
}

func (r *Reactor) scheduleRetry(d time.Duration) {
	r.stopRetry()
	r.loop.retryTimer = time.NewTimer(d)
	r.loop.retryC = r.loop.retryTimer.C
}

func (r *Reactor) stopRetry() {
	if r.loop.retryTimer != nil {
		r.loop.retryTimer.Stop()
	}
	r.loop.retryTimer, r.loop.retryC = nil, nil
	r.loop.waitingForPeers = false
}

func (r *Reactor) halt(err error) {
	trusted := r.executor.TrustedState()
	r.loop.state = StateHalted
	r.cancelInflight()
	r.stopRetry()
	r.metrics.State.Set(float64(StateHalted))

	r.mtx.Lock()
	r.haltErr = err
	r.mtx.Unlock()

	r.logger.Error("state sync halted", "version", trusted.Version, "epoch", trusted.Epoch, "err", err)
	r.publishSnapshots()
	close(r.halted)
	r.eventBus.Publish(eventbus.HaltEvent{Err: err})
}

func (r *Reactor) publishSnapshots() {
	l := &r.loop
	trusted := r.executor.TrustedState()
	status := Status{
		HighestLocalVersion: trusted.Version,
		HighestLocalEpoch:   trusted.Epoch,
		State:               l.state,
	}
	if l.target != nil {
		status.TargetVersion = l.target.Version
	}
	status.IsCaughtUp = l.bootstrapped && l.state == StateIdle &&
		(l.target == nil || l.target.Version <= trusted.Version)

	peers := r.peers.Snapshot()

	r.mtx.Lock()
	r.status = status
	r.peerInfo = peers
	r.mtx.Unlock()
}
