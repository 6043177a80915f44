// Package verifier proves ledger data received from untrusted peers against
// locally trusted state. Every function is pure: nothing here reads storage
// or mutates its inputs.
package verifier

import (
	"errors"

	"github.com/tendermint/ledgersync/crypto/merkle"
	tmmath "github.com/tendermint/ledgersync/libs/math"
	"github.com/tendermint/ledgersync/types"
)

// VerifyLedgerInfo checks that li is well formed and that more than quorum
// of the voting power of vals signed it.
func VerifyLedgerInfo(li *types.LedgerInfoWithSignatures, vals *types.ValidatorSet, quorum tmmath.Fraction) error {
	if err := li.ValidateBasic(); err != nil {
		return malformed("invalid ledger info: %w", err)
	}
	if err := types.VerifyLedgerInfoSignatures(vals, li, quorum); err != nil {
		return badSignatures("ledger info at version %d (epoch %d): %w", li.Version, li.Epoch, err)
	}
	return nil
}

// VerifyEpochChangeProof walks the chain of epoch-ending ledger infos that
// starts at the end of trustedEpoch. Link i must end epoch trustedEpoch+i
// and be signed by the validator set the previous link announced (the
// trusted set for the first link). Any broken link rejects the whole proof.
//
// On success it returns the epoch the chain leads to and its validator set.
func VerifyEpochChangeProof(
	proof *types.EpochChangeProof,
	trustedEpoch types.Epoch,
	trustedVals *types.ValidatorSet,
	quorum tmmath.Fraction,
) (types.Epoch, *types.ValidatorSet, error) {
	sets, err := verifyEpochChain(proof, trustedEpoch, trustedVals, quorum)
	if err != nil {
		return 0, nil, err
	}
	reached := trustedEpoch + types.Epoch(len(sets)-1)
	return reached, sets[reached], nil
}

// verifyEpochChain returns the validator set of every epoch from
// trustedEpoch to the epoch following the last link.
func verifyEpochChain(
	proof *types.EpochChangeProof,
	trustedEpoch types.Epoch,
	trustedVals *types.ValidatorSet,
	quorum tmmath.Fraction,
) (map[types.Epoch]*types.ValidatorSet, error) {
	if err := proof.ValidateBasic(); err != nil {
		return nil, malformed("epoch change proof: %w", err)
	}

	sets := map[types.Epoch]*types.ValidatorSet{trustedEpoch: trustedVals}
	var (
		expected = trustedEpoch
		vals     = trustedVals
		prevVer  types.Version
	)
	for i, li := range proof.LedgerInfos {
		if li.Epoch != expected {
			return nil, nonContiguous("link #%d has epoch %d, expected %d", i, li.Epoch, expected)
		}
		if i > 0 && li.Version <= prevVer {
			return nil, nonContiguous("link #%d version %d does not follow %d", i, li.Version, prevVer)
		}
		if err := VerifyLedgerInfo(li, vals, quorum); err != nil {
			return nil, err
		}
		vals = li.NextValidators
		prevVer = li.Version
		expected++
		sets[expected] = vals
	}
	return sets, nil
}

// VerifyTransactionList recomputes the accumulator root from the list's range
// proof and compares it with li's root. The list must end at or before
// li.Version.
func VerifyTransactionList(list *types.TransactionListWithProof, li *types.LedgerInfo) error {
	if err := list.ValidateBasic(); err != nil {
		return malformed("%w", err)
	}
	if list.LastVersion() > li.Version {
		return malformed("list ends at version %d, beyond ledger info version %d",
			list.LastVersion(), li.Version)
	}

	total := uint64(li.Version) + 1
	err := list.Proof.Verify(li.AccumulatorRoot, total, uint64(list.FirstVersion), list.Transactions.Hashes())
	switch {
	case err == nil:
		return nil
	case errors.Is(err, merkle.ErrRootMismatch):
		return rootMismatch("transactions [%d, %d] against version %d: %w",
			list.FirstVersion, list.LastVersion(), li.Version, err)
	default:
		return malformed("range proof: %w", err)
	}
}

// VerifyWaypoint checks that li is the ledger info the waypoint commits to.
func VerifyWaypoint(li *types.LedgerInfo, wp *types.Waypoint) error {
	if wp == nil {
		return malformed("nil waypoint")
	}
	if !wp.Matches(li) {
		return rootMismatch("ledger info at version %d does not match waypoint %v", li.Version, wp)
	}
	return nil
}
