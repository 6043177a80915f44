package types

import (
	"errors"
	"fmt"

	tmmath "github.com/tendermint/ledgersync/libs/math"
)

// DefaultQuorum is the fraction of voting power that must be strictly
// exceeded for a ledger info to be trusted.
var DefaultQuorum = tmmath.Fraction{Numerator: 2, Denominator: 3}

// VerifyLedgerInfoSignatures verifies that more than quorum of the voting
// power of vals signed li. Every signature is checked; unknown signers,
// duplicate signers and invalid signatures fail the whole ledger info.
func VerifyLedgerInfoSignatures(vals *ValidatorSet, li *LedgerInfoWithSignatures, quorum tmmath.Fraction) error {
	if vals.IsNilOrEmpty() {
		return errors.New("nil or empty validator set")
	}
	if li == nil {
		return errors.New("nil ledger info")
	}
	if quorum.Denominator == 0 || quorum.Numerator > quorum.Denominator {
		return fmt.Errorf("invalid quorum %v", quorum)
	}

	votingPowerNeeded, err := quorum.MulFloor(vals.TotalVotingPower())
	if err != nil {
		return err
	}

	var (
		talliedVotingPower int64
		seen               = make(map[int32]struct{}, len(li.Signatures))
		signBytes          = li.LedgerInfo.SignBytes()
	)
	for idx, commitSig := range li.Signatures {
		valIdx, val := vals.GetByAddress(commitSig.ValidatorAddress)
		if val == nil {
			return ErrUnknownSigner{Address: commitSig.ValidatorAddress}
		}
		if _, ok := seen[valIdx]; ok {
			return fmt.Errorf("double vote from %v (#%d)", val.Address, idx)
		}
		seen[valIdx] = struct{}{}

		if !val.PubKey.VerifySignature(signBytes, commitSig.Signature) {
			return ErrInvalidSignature{Address: val.Address, Index: idx}
		}
		talliedVotingPower += val.VotingPower
	}

	if got, needed := talliedVotingPower, votingPowerNeeded; got <= needed {
		return ErrNotEnoughVotingPowerSigned{Got: got, Needed: needed}
	}
	return nil
}
