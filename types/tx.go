package types

import (
	"fmt"

	"github.com/tendermint/ledgersync/crypto"
	"github.com/tendermint/ledgersync/crypto/merkle"
)

// Tx is an arbitrary byte array. Its hash is the accumulator leaf.
type Tx []byte

// Hash computes the SHA256 hash of the transaction.
func (tx Tx) Hash() []byte { return crypto.Checksum(tx) }

// String returns the hex-encoded transaction as a string.
func (tx Tx) String() string { return fmt.Sprintf("Tx{%X}", []byte(tx)) }

// Txs is a slice of Tx.
type Txs []Tx

// Hash returns the Merkle root hash of the transaction hashes.
// i.e. the leaves of the tree are the hashes of the txs.
func (txs Txs) Hash() []byte {
	return merkle.HashFromByteSlices(txs.Hashes())
}

// Hashes returns the hash of every transaction, in order.
func (txs Txs) Hashes() [][]byte {
	hl := make([][]byte, len(txs))
	for i, tx := range txs {
		hl[i] = tx.Hash()
	}
	return hl
}
