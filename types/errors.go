package types

import (
	"fmt"

	"github.com/tendermint/ledgersync/crypto"
)

// ErrNotEnoughVotingPowerSigned is returned when not enough validators signed
// a ledger info.
type ErrNotEnoughVotingPowerSigned struct {
	Got    int64
	Needed int64
}

func (e ErrNotEnoughVotingPowerSigned) Error() string {
	return fmt.Sprintf("invalid ledger info -- insufficient voting power: got %d, needed more than %d", e.Got, e.Needed)
}

// ErrUnknownSigner is returned when a signature comes from an address that
// is not in the validator set.
type ErrUnknownSigner struct {
	Address crypto.Address
}

func (e ErrUnknownSigner) Error() string {
	return fmt.Sprintf("signer %v is not in the validator set", e.Address)
}

// ErrInvalidSignature is returned when a signature does not verify against
// the signer's public key.
type ErrInvalidSignature struct {
	Address crypto.Address
	Index   int
}

func (e ErrInvalidSignature) Error() string {
	return fmt.Sprintf("wrong signature (#%d) from %v", e.Index, e.Address)
}
