package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendermint/ledgersync/crypto/merkle"
)

func TestLedgerInfoMarshalRoundTrip(t *testing.T) {
	next, _ := deterministicValidatorSet(t, 3, 5)
	_, privs := deterministicValidatorSet(t, 4, 10)

	for _, li := range []LedgerInfo{makeLedgerInfo(2, 40, next), makeLedgerInfo(3, 41, nil)} {
		signed := signLedgerInfo(t, li, privs)

		bz, err := signed.Marshal()
		require.NoError(t, err)
		decoded, err := UnmarshalLedgerInfo(bz)
		require.NoError(t, err)

		assert.Equal(t, signed.Hash(), decoded.Hash())
		assert.Equal(t, signed.EndsEpoch(), decoded.EndsEpoch())
		assert.Equal(t, signed.Signatures, decoded.Signatures)
	}

	_, err := UnmarshalLedgerInfo([]byte("not json"))
	require.Error(t, err)
}

func TestLedgerInfoSignBytesCommitToNextValidators(t *testing.T) {
	nextA, _ := deterministicValidatorSet(t, 3, 5)
	nextB, _ := deterministicValidatorSet(t, 3, 6)

	a := makeLedgerInfo(1, 10, nextA)
	b := makeLedgerInfo(1, 10, nextB)
	c := makeLedgerInfo(1, 10, nil)

	assert.NotEqual(t, a.SignBytes(), b.SignBytes())
	assert.NotEqual(t, a.SignBytes(), c.SignBytes())
	a2 := makeLedgerInfo(1, 10, nextA)
	assert.Equal(t, a.SignBytes(), a2.SignBytes())
}

func TestLedgerInfoValidateBasic(t *testing.T) {
	_, privs := deterministicValidatorSet(t, 2, 1)
	good := signLedgerInfo(t, makeLedgerInfo(1, 10, nil), privs)
	require.NoError(t, good.ValidateBasic())

	testCases := []struct {
		name   string
		mutate func(*LedgerInfoWithSignatures)
	}{
		{"short root", func(li *LedgerInfoWithSignatures) { li.AccumulatorRoot = []byte{1} }},
		{"no signatures", func(li *LedgerInfoWithSignatures) { li.Signatures = nil }},
		{"bad address", func(li *LedgerInfoWithSignatures) { li.Signatures[0].ValidatorAddress = []byte{1} }},
		{"empty signature", func(li *LedgerInfoWithSignatures) { li.Signatures[0].Signature = nil }},
		{"huge signature", func(li *LedgerInfoWithSignatures) { li.Signatures[0].Signature = make([]byte, 65) }},
		{"empty next validators", func(li *LedgerInfoWithSignatures) { li.NextValidators = &ValidatorSet{} }},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			li := signLedgerInfo(t, makeLedgerInfo(1, 10, nil), privs)
			tc.mutate(li)
			assert.Error(t, li.ValidateBasic())
		})
	}
}

func TestEpochChangeProofValidateBasic(t *testing.T) {
	next, _ := deterministicValidatorSet(t, 2, 1)
	_, privs := deterministicValidatorSet(t, 2, 1)

	var empty *EpochChangeProof
	require.Error(t, empty.ValidateBasic())
	assert.Nil(t, empty.Last())

	proof := &EpochChangeProof{LedgerInfos: []*LedgerInfoWithSignatures{
		signLedgerInfo(t, makeLedgerInfo(1, 10, next), privs),
		signLedgerInfo(t, makeLedgerInfo(2, 20, next), privs),
	}}
	require.NoError(t, proof.ValidateBasic())
	assert.EqualValues(t, 2, proof.Last().Epoch)

	proof.LedgerInfos = append(proof.LedgerInfos, signLedgerInfo(t, makeLedgerInfo(3, 25, nil), privs))
	require.Error(t, proof.ValidateBasic())
}

func TestTransactionList(t *testing.T) {
	tl := &TransactionListWithProof{
		FirstVersion: 101,
		Transactions: Txs{Tx("a"), Tx("b"), Tx("c")},
		Proof:        merkle.RangeProof{},
	}
	require.NoError(t, tl.ValidateBasic())
	assert.EqualValues(t, 103, tl.LastVersion())
	assert.Equal(t, 3, tl.Len())
	assert.Len(t, tl.Transactions.Hashes(), 3)

	require.Error(t, (&TransactionListWithProof{FirstVersion: 1}).ValidateBasic())
}

func TestWaypoint(t *testing.T) {
	li := makeLedgerInfo(4, 500, nil)
	wp := NewWaypoint(&li)
	assert.True(t, wp.Matches(&li))

	parsed, err := ParseWaypoint(wp.String())
	require.NoError(t, err)
	assert.Equal(t, wp, parsed)

	other := makeLedgerInfo(4, 501, nil)
	assert.False(t, wp.Matches(&other))
	assert.False(t, wp.Matches(nil))

	for _, bad := range []string{"", "12", "x:00", "1:zz", "1:abcd"} {
		_, err := ParseWaypoint(bad)
		assert.Error(t, err, bad)
	}
}

func TestApplyError(t *testing.T) {
	cause := errors.New("disk full")

	retry := NewRetryableApplyError(cause)
	assert.False(t, retry.IsFatal())
	assert.ErrorIs(t, retry, cause)

	var err error = NewFatalApplyError(cause)
	var applyErr *ApplyError
	require.True(t, errors.As(err, &applyErr))
	assert.True(t, applyErr.IsFatal())
	assert.Contains(t, err.Error(), "fatal")
}

func TestValidatorSetValidateBasic(t *testing.T) {
	vals, _ := deterministicValidatorSet(t, 3, 10)
	require.NoError(t, vals.ValidateBasic())
	assert.EqualValues(t, 30, vals.TotalVotingPower())

	dup := &ValidatorSet{Validators: []*Validator{vals.Validators[0], vals.Validators[0]}}
	require.Error(t, dup.ValidateBasic())

	zero := vals.Copy()
	zero.Validators[1].VotingPower = 0
	require.Error(t, zero.ValidateBasic())

	wrongAddr := vals.Copy()
	wrongAddr.Validators[2].Address = vals.Validators[0].Address
	require.Error(t, wrongAddr.ValidateBasic())

	idx, val := vals.GetByAddress(vals.Validators[1].Address)
	assert.EqualValues(t, 1, idx)
	assert.Equal(t, vals.Validators[1].Address, val.Address)
	assert.False(t, vals.HasAddress([]byte("nope")))

	assert.NotEqual(t, vals.Hash(), dup.Hash())
}
