package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	tmbytes "github.com/tendermint/ledgersync/libs/bytes"
	"github.com/tendermint/ledgersync/types"
)

// GenesisDoc is the on-disk form of the genesis ledger: the signed ledger
// info at version 0 and the single transaction it commits to.
type GenesisDoc struct {
	LedgerInfo  json.RawMessage  `json:"ledger_info"`
	Transaction tmbytes.HexBytes `json:"transaction"`
}

// NewGenesisDoc encodes a genesis ledger info and its transaction.
func NewGenesisDoc(li *types.LedgerInfoWithSignatures, tx types.Tx) (*GenesisDoc, error) {
	bz, err := li.Marshal()
	if err != nil {
		return nil, err
	}
	return &GenesisDoc{LedgerInfo: bz, Transaction: tmbytes.HexBytes(tx)}, nil
}

// LoadGenesisDoc reads a genesis document from a JSON file.
func LoadGenesisDoc(path string) (*GenesisDoc, error) {
	bz, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("couldn't read genesis file: %w", err)
	}
	var doc GenesisDoc
	if err := json.Unmarshal(bz, &doc); err != nil {
		return nil, fmt.Errorf("error reading genesis file %s: %w", path, err)
	}
	return &doc, nil
}

// SaveAs writes the document to path as indented JSON.
func (doc *GenesisDoc) SaveAs(path string) error {
	bz, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, bz, 0644)
}

// SignedLedgerInfo decodes and validates the genesis ledger info.
func (doc *GenesisDoc) SignedLedgerInfo() (*types.LedgerInfoWithSignatures, error) {
	if len(doc.LedgerInfo) == 0 {
		return nil, errors.New("genesis file has no ledger_info")
	}
	li, err := types.UnmarshalLedgerInfo(doc.LedgerInfo)
	if err != nil {
		return nil, err
	}
	if err := li.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("invalid genesis ledger info: %w", err)
	}
	return li, nil
}
