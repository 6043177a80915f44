package factory

import (
	"fmt"
	"testing"

	"github.com/tendermint/ledgersync/crypto"
	"github.com/tendermint/ledgersync/crypto/ed25519"
	"github.com/tendermint/ledgersync/types"
)

// Validator returns a validator whose key is derived from seed, so the same
// seed always yields the same validator.
func Validator(seed string, votingPower int64) (*types.Validator, crypto.PrivKey) {
	priv := ed25519.GenPrivKeyFromSecret([]byte(seed))
	return types.NewValidator(priv.PubKey(), votingPower), priv
}

// ValidatorSet returns a set of n validators of equal power plus their
// private keys, in set order.
func ValidatorSet(t testing.TB, label string, n int, votingPower int64) (*types.ValidatorSet, []crypto.PrivKey) {
	t.Helper()

	valz := make([]*types.Validator, n)
	privs := make([]crypto.PrivKey, n)
	for i := 0; i < n; i++ {
		valz[i], privs[i] = Validator(fmt.Sprintf("%s-%d", label, i), votingPower)
	}
	return types.NewValidatorSet(valz), privs
}

// SignLedgerInfo signs li with every key in privs.
func SignLedgerInfo(t testing.TB, li types.LedgerInfo, privs []crypto.PrivKey) *types.LedgerInfoWithSignatures {
	t.Helper()

	signBytes := li.SignBytes()
	sigs := make([]types.CommitSig, len(privs))
	for i, priv := range privs {
		sig, err := priv.Sign(signBytes)
		if err != nil {
			t.Fatalf("signing ledger info: %v", err)
		}
		sigs[i] = types.CommitSig{ValidatorAddress: priv.PubKey().Address(), Signature: sig}
	}
	return &types.LedgerInfoWithSignatures{LedgerInfo: li, Signatures: sigs}
}
