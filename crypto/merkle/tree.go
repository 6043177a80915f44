package merkle

import (
	"math/bits"
)

// HashFromByteSlices computes a Merkle tree where the leaves are the byte
// slices, in the provided order. It follows RFC-6962.
func HashFromByteSlices(items [][]byte) []byte {
	switch len(items) {
	case 0:
		return emptyHash()
	case 1:
		return LeafHash(items[0])
	default:
		k := SplitPoint(uint64(len(items)))
		left := HashFromByteSlices(items[:k])
		right := HashFromByteSlices(items[k:])
		return InnerHash(left, right)
	}
}

// SplitPoint returns the largest power of 2 less than length. The left
// subtree of a tree with length leaves holds exactly SplitPoint(length)
// leaves.
func SplitPoint(length uint64) uint64 {
	if length < 1 {
		panic("Trying to split a tree with size < 1")
	}
	bitlen := bits.Len64(length)
	k := uint64(1) << uint(bitlen-1)
	if k == length {
		k >>= 1
	}
	return k
}
