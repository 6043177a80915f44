package merkle

import (
	"crypto/rand"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func randLeaves(t require.TestingT, n int) [][]byte {
	leaves := make([][]byte, n)
	for i := range leaves {
		leaves[i] = make([]byte, 32)
		_, err := rand.Read(leaves[i])
		require.NoError(t, err)
	}
	return leaves
}

func subtreeOf(leaves [][]byte) SubtreeHashFunc {
	return func(lo, hi uint64) ([]byte, error) {
		return HashFromByteSlices(leaves[lo:hi]), nil
	}
}

func TestRangeProofVerifies(t *testing.T) {
	leaves := randLeaves(t, 251)
	root := HashFromByteSlices(leaves)

	testCases := []struct {
		start, count uint64
	}{
		{0, 1},
		{0, 251},
		{100, 50},
		{150, 101},
		{250, 1},
		{64, 64},
	}
	for _, tc := range testCases {
		proof, err := NewRangeProof(251, tc.start, tc.count, subtreeOf(leaves))
		require.NoError(t, err)
		require.NoError(t, proof.Verify(root, 251, tc.start, leaves[tc.start:tc.start+tc.count]))
	}
}

func TestRangeProofRejects(t *testing.T) {
	leaves := randLeaves(t, 20)
	root := HashFromByteSlices(leaves)

	proof, err := NewRangeProof(20, 5, 10, subtreeOf(leaves))
	require.NoError(t, err)

	t.Run("tampered leaf", func(t *testing.T) {
		bad := append([][]byte{}, leaves[5:15]...)
		bad[3] = []byte("tampered")
		err := proof.Verify(root, 20, 5, bad)
		require.ErrorIs(t, err, ErrRootMismatch)
	})
	t.Run("shifted start", func(t *testing.T) {
		err := proof.Verify(root, 20, 6, leaves[6:16])
		require.Error(t, err)
	})
	t.Run("extra sibling", func(t *testing.T) {
		long := RangeProof{Siblings: append(append([][]byte{}, proof.Siblings...), []byte("x"))}
		require.Error(t, long.Verify(root, 20, 5, leaves[5:15]))
	})
	t.Run("missing sibling", func(t *testing.T) {
		short := RangeProof{Siblings: proof.Siblings[1:]}
		require.Error(t, short.Verify(root, 20, 5, leaves[5:15]))
	})
	t.Run("out of range", func(t *testing.T) {
		require.ErrorIs(t, proof.Verify(root, 20, 15, leaves[10:20]), ErrInvalidRange)
		_, err := NewRangeProof(20, 0, 0, subtreeOf(leaves))
		require.ErrorIs(t, err, ErrInvalidRange)
	})
	t.Run("subtree error", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := NewRangeProof(20, 5, 10, func(lo, hi uint64) ([]byte, error) { return nil, boom })
		require.ErrorIs(t, err, boom)
	})
}

func TestRangeProofProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		total := rapid.IntRange(1, 300).Draw(t, "total").(int)
		start := rapid.IntRange(0, total-1).Draw(t, "start").(int)
		count := rapid.IntRange(1, total-start).Draw(t, "count").(int)

		leaves := randLeaves(t, total)
		root := HashFromByteSlices(leaves)

		proof, err := NewRangeProof(uint64(total), uint64(start), uint64(count), subtreeOf(leaves))
		require.NoError(t, err)

		got, err := proof.ComputeRoot(uint64(total), uint64(start), leaves[start:start+count])
		require.NoError(t, err)
		require.Equal(t, root, got)
	})
}
