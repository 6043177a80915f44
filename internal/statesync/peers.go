package statesync

import (
	"errors"
	"sort"
	"time"

	"github.com/tendermint/ledgersync/types"
)

var errNoPeers = errors.New("no available peers to dispatch request to")

// PeerOutcome is the result of one exchange with a peer.
type PeerOutcome int

const (
	OutcomeSuccess PeerOutcome = iota
	OutcomeFailure
)

// PeerInfo is what the selector knows about a peer.
type PeerInfo struct {
	ID                  types.NodeID
	ConsecutiveFailures int
	DeclaredVersion     types.Version
	LastSuccess         time.Time
	// Zero unless the peer is in cool-down.
	CooldownUntil time.Time
}

// InCooldown reports whether the peer is excluded from selection at now.
func (p PeerInfo) InCooldown(now time.Time) bool {
	return !p.CooldownUntil.IsZero() && now.Before(p.CooldownUntil)
}

// peerSelector ranks upstream peers. It is not safe for concurrent use: the
// reactor mutates it from its event loop and hands out snapshots.
type peerSelector struct {
	now              func() time.Time
	failureThreshold int
	cooldown         time.Duration

	peers map[types.NodeID]*PeerInfo
}

func newPeerSelector(failureThreshold int, cooldown time.Duration, now func() time.Time) *peerSelector {
	if now == nil {
		now = time.Now
	}
	return &peerSelector{
		now:              now,
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
		peers:            make(map[types.NodeID]*PeerInfo),
	}
}

// Add registers a peer. Adding a known peer is a no-op.
func (ps *peerSelector) Add(peer types.NodeID) {
	if _, ok := ps.peers[peer]; !ok {
		ps.peers[peer] = &PeerInfo{ID: peer}
	}
}

// Remove forgets a peer.
func (ps *peerSelector) Remove(peer types.NodeID) {
	delete(ps.peers, peer)
}

// Len returns the number of known peers.
func (ps *peerSelector) Len() int {
	return len(ps.peers)
}

// RecordOutcome updates the score of peer. It returns true if the failure
// put the peer in cool-down. Outcomes for unknown peers are ignored.
func (ps *peerSelector) RecordOutcome(peer types.NodeID, outcome PeerOutcome, declared *types.Version) bool {
	p, ok := ps.peers[peer]
	if !ok {
		return false
	}
	ps.expireCooldown(p, ps.now())
	if declared != nil && *declared > p.DeclaredVersion {
		p.DeclaredVersion = *declared
	}

	switch outcome {
	case OutcomeSuccess:
		p.ConsecutiveFailures = 0
		p.CooldownUntil = time.Time{}
		p.LastSuccess = ps.now()
		return false

	default:
		p.ConsecutiveFailures++
		if p.ConsecutiveFailures >= ps.failureThreshold && p.CooldownUntil.IsZero() {
			p.CooldownUntil = ps.now().Add(ps.cooldown)
			return true
		}
		return false
	}
}

// Select returns the best eligible peer that is not in exclude.
func (ps *peerSelector) Select(exclude map[types.NodeID]struct{}) (types.NodeID, error) {
	for _, p := range ps.ranked() {
		if p.InCooldown(ps.now()) {
			break
		}
		if _, ok := exclude[p.ID]; ok {
			continue
		}
		return p.ID, nil
	}
	return "", errNoPeers
}

// Ranked returns the peers best first. Peers in cool-down come last.
func (ps *peerSelector) Ranked() []types.NodeID {
	ranked := ps.ranked()
	ids := make([]types.NodeID, len(ranked))
	for i, p := range ranked {
		ids[i] = p.ID
	}
	return ids
}

// Snapshot returns a copy of the peer table ordered by rank.
func (ps *peerSelector) Snapshot() []PeerInfo {
	ranked := ps.ranked()
	infos := make([]PeerInfo, len(ranked))
	for i, p := range ranked {
		infos[i] = *p
	}
	return infos
}

// NextCooldownExpiry returns the earliest time a peer leaves cool-down, or
// the zero time if no peer is in cool-down.
func (ps *peerSelector) NextCooldownExpiry() time.Time {
	var next time.Time
	for _, p := range ps.peers {
		if p.CooldownUntil.IsZero() {
			continue
		}
		if next.IsZero() || p.CooldownUntil.Before(next) {
			next = p.CooldownUntil
		}
	}
	return next
}

func (ps *peerSelector) ranked() []*PeerInfo {
	now := ps.now()
	peers := make([]*PeerInfo, 0, len(ps.peers))
	for _, p := range ps.peers {
		ps.expireCooldown(p, now)
		peers = append(peers, p)
	}

	sort.Slice(peers, func(i, j int) bool {
		a, b := peers[i], peers[j]
		if ac, bc := a.InCooldown(now), b.InCooldown(now); ac != bc {
			return bc
		}
		if a.ConsecutiveFailures != b.ConsecutiveFailures {
			return a.ConsecutiveFailures < b.ConsecutiveFailures
		}
		if a.DeclaredVersion != b.DeclaredVersion {
			return a.DeclaredVersion > b.DeclaredVersion
		}
		if !a.LastSuccess.Equal(b.LastSuccess) {
			return a.LastSuccess.After(b.LastSuccess)
		}
		return a.ID < b.ID
	})
	return peers
}

// expireCooldown gives a peer whose cool-down is over a clean slate.
func (ps *peerSelector) expireCooldown(p *PeerInfo, now time.Time) {
	if !p.CooldownUntil.IsZero() && !now.Before(p.CooldownUntil) {
		p.CooldownUntil = time.Time{}
		p.ConsecutiveFailures = 0
	}
}
