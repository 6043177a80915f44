package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendermint/ledgersync/crypto"
	"github.com/tendermint/ledgersync/crypto/ed25519"
	tmmath "github.com/tendermint/ledgersync/libs/math"
)

func TestVerifyLedgerInfoSignatures(t *testing.T) {
	vals, privs := deterministicValidatorSet(t, 4, 10)
	li := makeLedgerInfo(1, 100, nil)
	stranger := ed25519.GenPrivKeyFromSecret([]byte("stranger"))

	testCases := []struct {
		name    string
		signers []crypto.PrivKey
		mutate  func(*LedgerInfoWithSignatures)
		quorum  tmmath.Fraction
		expErr  error
		anyErr  bool
	}{
		{"all validators sign", privs, nil, DefaultQuorum, nil, false},
		{"three of four sign", privs[:3], nil, DefaultQuorum, nil, false},
		{"two of four sign", privs[:2], nil, DefaultQuorum,
			ErrNotEnoughVotingPowerSigned{Got: 20, Needed: 26}, false},
		{"one of four is enough for 1/5", privs[:1], nil, tmmath.Fraction{Numerator: 1, Denominator: 5}, nil, false},
		{"unknown signer", append([]crypto.PrivKey{stranger}, privs...), nil, DefaultQuorum,
			ErrUnknownSigner{Address: stranger.PubKey().Address()}, false},
		{"duplicate signer", privs[:3], func(li *LedgerInfoWithSignatures) {
			li.Signatures = append(li.Signatures, li.Signatures[0])
		}, DefaultQuorum, nil, true},
		{"corrupted signature", privs, func(li *LedgerInfoWithSignatures) {
			li.Signatures[2].Signature[0] ^= 0x01
		}, DefaultQuorum, ErrInvalidSignature{Address: privs[2].PubKey().Address(), Index: 2}, false},
		{"signed different ledger info", privs, func(li *LedgerInfoWithSignatures) {
			li.Version++
		}, DefaultQuorum, nil, true},
		{"invalid quorum", privs, nil, tmmath.Fraction{Numerator: 4, Denominator: 3}, nil, true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			signed := signLedgerInfo(t, li, tc.signers)
			if tc.mutate != nil {
				tc.mutate(signed)
			}
			err := VerifyLedgerInfoSignatures(vals, signed, tc.quorum)
			switch {
			case tc.expErr != nil:
				assert.Equal(t, tc.expErr, err)
			case tc.anyErr:
				assert.Error(t, err)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestVerifyLedgerInfoSignaturesNilInputs(t *testing.T) {
	vals, privs := deterministicValidatorSet(t, 1, 10)
	signed := signLedgerInfo(t, makeLedgerInfo(1, 1, nil), privs)

	require.Error(t, VerifyLedgerInfoSignatures(nil, signed, DefaultQuorum))
	require.Error(t, VerifyLedgerInfoSignatures(vals, nil, DefaultQuorum))
}

func TestNotEnoughVotingPowerIsTyped(t *testing.T) {
	vals, privs := deterministicValidatorSet(t, 3, 1)
	signed := signLedgerInfo(t, makeLedgerInfo(1, 1, nil), privs[:1])

	err := VerifyLedgerInfoSignatures(vals, signed, DefaultQuorum)
	var target ErrNotEnoughVotingPowerSigned
	require.True(t, errors.As(err, &target))
	assert.EqualValues(t, 1, target.Got)
	assert.EqualValues(t, 2, target.Needed)
}
