package types

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/tendermint/ledgersync/crypto/merkle"
	tmmath "github.com/tendermint/ledgersync/libs/math"
)

// ErrTotalVotingPowerOverflow is returned if the total voting power of the
// resulting validator set exceeds MaxTotalVotingPower.
var ErrTotalVotingPowerOverflow = fmt.Errorf("total voting power of resulting valset exceeds max %d",
	MaxTotalVotingPower)

// MaxTotalVotingPower - the maximum allowed total voting power.
// It needs to be sufficiently small to, in all cases, multiply it by a quorum
// numerator without overflowing int64.
const MaxTotalVotingPower = int64(tmmath.MaxInt64) / 8

// ValidatorSet is the set of validators that signs the ledger infos of one
// epoch. It is immutable once built; the order of Validators is the order
// in which they were supplied and is part of the set hash.
type ValidatorSet struct {
	Validators []*Validator `json:"validators"`
}

// NewValidatorSet initializes a ValidatorSet from the given validators. It
// panics if the list has duplicates or the total power overflows; use
// ValidateBasic on untrusted input.
func NewValidatorSet(valz []*Validator) *ValidatorSet {
	vals := &ValidatorSet{Validators: validatorListCopy(valz)}
	if err := vals.ValidateBasic(); err != nil {
		panic(fmt.Sprintf("cannot create validator set: %v", err))
	}
	return vals
}

// ValidateBasic checks every validator, rejects duplicate addresses and
// ensures the total voting power stays in range.
func (vals *ValidatorSet) ValidateBasic() error {
	if vals.IsNilOrEmpty() {
		return errors.New("validator set is nil or empty")
	}

	seen := make(map[string]struct{}, len(vals.Validators))
	var sum int64
	for idx, val := range vals.Validators {
		if err := val.ValidateBasic(); err != nil {
			return fmt.Errorf("invalid validator #%d: %w", idx, err)
		}
		if _, ok := seen[string(val.Address)]; ok {
			return fmt.Errorf("duplicate validator %v", val.Address)
		}
		seen[string(val.Address)] = struct{}{}

		sum += val.VotingPower
		if sum > MaxTotalVotingPower {
			return ErrTotalVotingPowerOverflow
		}
	}
	return nil
}

// IsNilOrEmpty returns true if validator set is nil or empty.
func (vals *ValidatorSet) IsNilOrEmpty() bool {
	return vals == nil || len(vals.Validators) == 0
}

// Size returns the length of the validator set.
func (vals *ValidatorSet) Size() int {
	return len(vals.Validators)
}

// TotalVotingPower returns the sum of the voting powers of all validators.
func (vals *ValidatorSet) TotalVotingPower() int64 {
	var sum int64
	for _, val := range vals.Validators {
		sum = tmmath.SafeAddClip(sum, val.VotingPower)
	}
	return sum
}

// GetByAddress returns an index of the validator with address and validator
// itself (copy) if found. Otherwise, -1 and nil are returned.
func (vals *ValidatorSet) GetByAddress(address []byte) (index int32, val *Validator) {
	for idx, val := range vals.Validators {
		if bytes.Equal(val.Address, address) {
			return int32(idx), val.Copy()
		}
	}
	return -1, nil
}

// HasAddress returns true if address given is in the validator set, false -
// otherwise.
func (vals *ValidatorSet) HasAddress(address []byte) bool {
	idx, _ := vals.GetByAddress(address)
	return idx != -1
}

// Hash returns the Merkle root hash build using validators (as leaves) in the
// set.
func (vals *ValidatorSet) Hash() []byte {
	bzs := make([][]byte, len(vals.Validators))
	for i, val := range vals.Validators {
		bzs[i] = val.Bytes()
	}
	return merkle.HashFromByteSlices(bzs)
}

// Copy each validator into a new ValidatorSet.
func (vals *ValidatorSet) Copy() *ValidatorSet {
	if vals == nil {
		return nil
	}
	return &ValidatorSet{Validators: validatorListCopy(vals.Validators)}
}

// String returns a string representation of ValidatorSet.
func (vals *ValidatorSet) String() string {
	if vals == nil {
		return "nil-ValidatorSet"
	}
	valStrings := make([]string, 0, len(vals.Validators))
	for _, val := range vals.Validators {
		valStrings = append(valStrings, val.String())
	}
	return fmt.Sprintf("ValidatorSet{%s}", strings.Join(valStrings, " "))
}

// Makes a copy of the validator list.
func validatorListCopy(valsList []*Validator) []*Validator {
	if valsList == nil {
		return nil
	}
	valsCopy := make([]*Validator, len(valsList))
	for i, val := range valsList {
		valsCopy[i] = val.Copy()
	}
	return valsCopy
}

func (vals *ValidatorSet) toJSON() []validatorJSON {
	out := make([]validatorJSON, len(vals.Validators))
	for i, val := range vals.Validators {
		out[i] = val.toJSON()
	}
	return out
}

func validatorSetFromJSON(vjs []validatorJSON) (*ValidatorSet, error) {
	valz := make([]*Validator, len(vjs))
	for i, vj := range vjs {
		val, err := validatorFromJSON(vj)
		if err != nil {
			return nil, fmt.Errorf("validator #%d: %w", i, err)
		}
		valz[i] = val
	}
	vals := &ValidatorSet{Validators: valz}
	if err := vals.ValidateBasic(); err != nil {
		return nil, err
	}
	return vals, nil
}
