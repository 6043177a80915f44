package types

import (
	"errors"
	"fmt"

	"github.com/tendermint/ledgersync/crypto"
	"github.com/tendermint/ledgersync/crypto/ed25519"
)

// Validator is a member of an epoch's validator set.
type Validator struct {
	Address     crypto.Address `json:"address"`
	PubKey      crypto.PubKey  `json:"pub_key"`
	VotingPower int64          `json:"voting_power"`
}

// NewValidator returns a new validator with the given pubkey and voting power.
func NewValidator(pubKey crypto.PubKey, votingPower int64) *Validator {
	return &Validator{
		Address:     pubKey.Address(),
		PubKey:      pubKey,
		VotingPower: votingPower,
	}
}

// ValidateBasic performs basic validation.
func (v *Validator) ValidateBasic() error {
	if v == nil {
		return errors.New("nil validator")
	}
	if v.PubKey == nil {
		return errors.New("validator does not have a public key")
	}

	if v.VotingPower <= 0 {
		return fmt.Errorf("validator has non-positive voting power %d", v.VotingPower)
	}

	addr := v.PubKey.Address()
	if !addr.Equal(v.Address) {
		return fmt.Errorf("validator address is incorrectly derived from pubkey. Exp: %v, got %v",
			addr, v.Address)
	}

	return nil
}

// Copy creates a new copy of the validator so we can mutate it.
func (v *Validator) Copy() *Validator {
	vCopy := *v
	vCopy.Address = v.Address.Copy()
	return &vCopy
}

// String returns a string representation of String.
//
// 1. address
// 2. public key
// 3. voting power
func (v *Validator) String() string {
	if v == nil {
		return "nil-Validator"
	}
	return fmt.Sprintf("Validator{%v %v VP:%v}",
		v.Address,
		v.PubKey,
		v.VotingPower)
}

type validatorJSON struct {
	PubKey      []byte `codec:"pub_key"`
	VotingPower int64  `codec:"voting_power"`
}

// Bytes computes the unique encoding of a validator with a given voting power.
// These are the bytes that gets hashed in consensus. It excludes address
// as its redundant with the pubkey.
func (v *Validator) Bytes() []byte {
	bz, err := cdcEncode(validatorJSON{
		PubKey:      v.PubKey.Bytes(),
		VotingPower: v.VotingPower,
	})
	if err != nil {
		panic(err)
	}
	return bz
}

func (v *Validator) toJSON() validatorJSON {
	return validatorJSON{PubKey: v.PubKey.Bytes(), VotingPower: v.VotingPower}
}

func validatorFromJSON(vj validatorJSON) (*Validator, error) {
	pk, err := ed25519.PubKeyFromBytes(vj.PubKey)
	if err != nil {
		return nil, err
	}
	return NewValidator(pk, vj.VotingPower), nil
}
