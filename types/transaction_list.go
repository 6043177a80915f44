package types

import (
	"errors"

	"github.com/tendermint/ledgersync/crypto/merkle"
)

// TransactionListWithProof is a contiguous run of transactions starting at
// FirstVersion together with an accumulator range proof.
type TransactionListWithProof struct {
	FirstVersion Version           `json:"first_version"`
	Transactions Txs               `json:"transactions"`
	Proof        merkle.RangeProof `json:"proof"`
}

// Len returns the number of transactions in the list.
func (tl *TransactionListWithProof) Len() int {
	if tl == nil {
		return 0
	}
	return len(tl.Transactions)
}

// LastVersion returns the version of the last transaction. It must only be
// called on a non-empty list.
func (tl *TransactionListWithProof) LastVersion() Version {
	return tl.FirstVersion + Version(len(tl.Transactions)) - 1
}

// ValidateBasic performs stateless validation.
func (tl *TransactionListWithProof) ValidateBasic() error {
	if tl.Len() == 0 {
		return errors.New("empty transaction list")
	}
	if tl.LastVersion() < tl.FirstVersion {
		return errors.New("transaction list overflows the version space")
	}
	return nil
}
