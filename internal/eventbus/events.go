package eventbus

import (
	"github.com/tendermint/ledgersync/types"
)

// EventType identifies the kind of an Event.
type EventType string

// Reserved event types published by state sync.
const (
	EventCommit          EventType = "Commit"
	EventReconfiguration EventType = "Reconfiguration"
	EventSyncStatus      EventType = "SyncStatus"
	EventHalt            EventType = "Halt"
)

// Event is anything published on the bus.
type Event interface {
	Type() EventType
}

// CommitEvent announces transactions that are now durably persisted. The
// mempool evicts them by hash.
type CommitEvent struct {
	FirstVersion types.Version
	LastVersion  types.Version
	TxHashes     [][]byte
}

func (CommitEvent) Type() EventType { return EventCommit }

// ReconfigurationEvent announces that the local ledger entered a new epoch.
type ReconfigurationEvent struct {
	Epoch        types.Epoch
	ValidatorSet *types.ValidatorSet
}

func (ReconfigurationEvent) Type() EventType { return EventReconfiguration }

// SyncStatus is what state sync tells consensus about the local ledger.
type SyncStatus int

const (
	// CaughtUp means the target was reached and consensus may take over.
	CaughtUp SyncStatus = iota
	// FellBehind means state sync is actively fetching history.
	FellBehind
)

func (s SyncStatus) String() string {
	switch s {
	case CaughtUp:
		return "caught_up"
	case FellBehind:
		return "fell_behind"
	default:
		return "unknown"
	}
}

// SyncStatusEvent carries a SyncStatus transition.
type SyncStatusEvent struct {
	Status  SyncStatus
	Version types.Version
	Epoch   types.Epoch
}

func (SyncStatusEvent) Type() EventType { return EventSyncStatus }

// HaltEvent is published once when state sync stops on a fatal error.
type HaltEvent struct {
	Err error
}

func (HaltEvent) Type() EventType { return EventHalt }
