package types

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tendermint/ledgersync/crypto"
	"github.com/tendermint/ledgersync/crypto/ed25519"
)

func deterministicValidatorSet(t *testing.T, n int, power int64) (*ValidatorSet, []crypto.PrivKey) {
	t.Helper()
	valz := make([]*Validator, n)
	privs := make([]crypto.PrivKey, n)
	for i := 0; i < n; i++ {
		privs[i] = ed25519.GenPrivKeyFromSecret([]byte(fmt.Sprintf("types-test-%d", i)))
		valz[i] = NewValidator(privs[i].PubKey(), power)
	}
	return NewValidatorSet(valz), privs
}

func makeLedgerInfo(epoch Epoch, version Version, next *ValidatorSet) LedgerInfo {
	return LedgerInfo{
		Epoch:           epoch,
		Version:         version,
		AccumulatorRoot: crypto.Checksum([]byte(fmt.Sprintf("root-%d", version))),
		Timestamp:       time.Date(2022, 1, 1, 0, 0, int(version), 0, time.UTC),
		NextValidators:  next,
	}
}

func signLedgerInfo(t *testing.T, li LedgerInfo, privs []crypto.PrivKey) *LedgerInfoWithSignatures {
	t.Helper()
	signBytes := li.SignBytes()
	sigs := make([]CommitSig, len(privs))
	for i, priv := range privs {
		sig, err := priv.Sign(signBytes)
		require.NoError(t, err)
		sigs[i] = CommitSig{ValidatorAddress: priv.PubKey().Address(), Signature: sig}
	}
	return &LedgerInfoWithSignatures{LedgerInfo: li, Signatures: sigs}
}
