package merkle

import (
	"bytes"
	"errors"
	"fmt"
)

var (
	// ErrInvalidRange is returned when a proof is requested or checked for a
	// range that does not fit in the tree.
	ErrInvalidRange = errors.New("invalid leaf range")
	// ErrRootMismatch is returned when the recomputed root differs from the
	// expected one.
	ErrRootMismatch = errors.New("computed root does not match")
)

// SubtreeHashFunc returns the root of the subtree covering leaves [lo, hi).
type SubtreeHashFunc func(lo, hi uint64) ([]byte, error)

// RangeProof proves that a contiguous run of leaves belongs to a tree with a
// given root and size. Siblings holds the roots of every maximal subtree
// that lies entirely outside the range, in left-to-right traversal order.
type RangeProof struct {
	Siblings [][]byte `json:"siblings"`
}

// NewRangeProof builds a proof for leaves [start, start+count) of a tree
// with total leaves. subtreeHash is only asked for subtrees disjoint from
// the proven range.
func NewRangeProof(total, start, count uint64, subtreeHash SubtreeHashFunc) (RangeProof, error) {
	if err := checkRange(total, start, count); err != nil {
		return RangeProof{}, err
	}
	var siblings [][]byte
	if err := collectSiblings(0, total, start, start+count, subtreeHash, &siblings); err != nil {
		return RangeProof{}, err
	}
	return RangeProof{Siblings: siblings}, nil
}

func collectSiblings(lo, hi, start, end uint64, subtreeHash SubtreeHashFunc, out *[][]byte) error {
	if end <= lo || start >= hi {
		h, err := subtreeHash(lo, hi)
		if err != nil {
			return err
		}
		*out = append(*out, h)
		return nil
	}
	if hi-lo == 1 {
		return nil
	}
	k := lo + SplitPoint(hi-lo)
	if err := collectSiblings(lo, k, start, end, subtreeHash, out); err != nil {
		return err
	}
	return collectSiblings(k, hi, start, end, subtreeHash, out)
}

// ComputeRoot recomputes the root of a tree with total leaves, given the
// leaves at [start, start+len(leaves)). Every sibling must be consumed.
func (rp RangeProof) ComputeRoot(total, start uint64, leaves [][]byte) ([]byte, error) {
	count := uint64(len(leaves))
	if err := checkRange(total, start, count); err != nil {
		return nil, err
	}
	c := &rootComputer{start: start, end: start + count, leaves: leaves, siblings: rp.Siblings}
	root, err := c.compute(0, total)
	if err != nil {
		return nil, err
	}
	if c.next != len(rp.Siblings) {
		return nil, fmt.Errorf("proof has %d unused siblings", len(rp.Siblings)-c.next)
	}
	return root, nil
}

// Verify checks that leaves sit at [start, start+len(leaves)) of the tree
// with the given root and size.
func (rp RangeProof) Verify(root []byte, total, start uint64, leaves [][]byte) error {
	computed, err := rp.ComputeRoot(total, start, leaves)
	if err != nil {
		return err
	}
	if !bytes.Equal(computed, root) {
		return fmt.Errorf("%w: got %X, want %X", ErrRootMismatch, computed, root)
	}
	return nil
}

type rootComputer struct {
	start, end uint64
	leaves     [][]byte
	siblings   [][]byte
	next       int
}

func (c *rootComputer) compute(lo, hi uint64) ([]byte, error) {
	if c.end <= lo || c.start >= hi {
		if c.next >= len(c.siblings) {
			return nil, errors.New("proof has too few siblings")
		}
		h := c.siblings[c.next]
		c.next++
		return h, nil
	}
	if hi-lo == 1 {
		return LeafHash(c.leaves[lo-c.start]), nil
	}
	k := lo + SplitPoint(hi-lo)
	left, err := c.compute(lo, k)
	if err != nil {
		return nil, err
	}
	right, err := c.compute(k, hi)
	if err != nil {
		return nil, err
	}
	return InnerHash(left, right), nil
}

func checkRange(total, start, count uint64) error {
	switch {
	case count == 0:
		return fmt.Errorf("%w: empty range", ErrInvalidRange)
	case start >= total || count > total-start:
		return fmt.Errorf("%w: [%d, %d) outside tree of %d leaves", ErrInvalidRange, start, start+count, total)
	}
	return nil
}
