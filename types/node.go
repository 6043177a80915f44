package types

// NodeID is a hex-encoded peer identifier assigned by the networking layer.
type NodeID string

// Version is a position in the ledger. Version 0 is the genesis transaction.
type Version uint64

// Epoch is a validator-set configuration period.
type Epoch uint64
