package types

import (
	"errors"
	"fmt"
)

// MaxEpochChangeLedgerInfos is the page size of an epoch change proof. A
// server that has more epoch-ending ledger infos to send sets More.
const MaxEpochChangeLedgerInfos = 100

// EpochChangeProof is an ordered chain of epoch-ending ledger infos. Link i
// ends epoch E+i and is signed by the validator set of that epoch, which
// link i-1 announced.
type EpochChangeProof struct {
	LedgerInfos []*LedgerInfoWithSignatures `json:"ledger_infos"`
	More        bool                        `json:"more"`
}

// Len returns the number of links.
func (p *EpochChangeProof) Len() int {
	if p == nil {
		return 0
	}
	return len(p.LedgerInfos)
}

// Last returns the last link or nil if the proof is empty.
func (p *EpochChangeProof) Last() *LedgerInfoWithSignatures {
	if p.Len() == 0 {
		return nil
	}
	return p.LedgerInfos[len(p.LedgerInfos)-1]
}

// ValidateBasic checks the shape of the proof without verifying signatures.
func (p *EpochChangeProof) ValidateBasic() error {
	if p.Len() == 0 {
		return errors.New("empty epoch change proof")
	}
	for i, li := range p.LedgerInfos {
		if err := li.ValidateBasic(); err != nil {
			return fmt.Errorf("link #%d: %w", i, err)
		}
		if !li.EndsEpoch() {
			return fmt.Errorf("link #%d (epoch %d) does not end its epoch", i, li.Epoch)
		}
	}
	return nil
}
