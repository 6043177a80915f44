package types

import (
	"errors"
	"fmt"
	"time"

	"github.com/tendermint/ledgersync/crypto"
	tmbytes "github.com/tendermint/ledgersync/libs/bytes"
)

// MaxSignatureSize is the largest signature accepted in a CommitSig.
const MaxSignatureSize = 64

// LedgerInfo summarizes the ledger at Version: the accumulator root over
// every transaction hash in [0, Version] and, for the last ledger info of
// an epoch, the validator set that signs the next epoch.
type LedgerInfo struct {
	Epoch           Epoch            `json:"epoch"`
	Version         Version          `json:"version"`
	AccumulatorRoot tmbytes.HexBytes `json:"accumulator_root"`
	Timestamp       time.Time        `json:"timestamp"`
	NextValidators  *ValidatorSet    `json:"next_validators,omitempty"`
}

// EndsEpoch reports whether this is the last ledger info of its epoch.
func (li *LedgerInfo) EndsEpoch() bool {
	return li.NextValidators != nil
}

// ValidateBasic performs stateless validation on a LedgerInfo.
func (li *LedgerInfo) ValidateBasic() error {
	if li == nil {
		return errors.New("nil ledger info")
	}
	if len(li.AccumulatorRoot) != crypto.HashSize {
		return fmt.Errorf("expected accumulator root of size %d, got %d",
			crypto.HashSize, len(li.AccumulatorRoot))
	}
	if li.NextValidators != nil {
		if err := li.NextValidators.ValidateBasic(); err != nil {
			return fmt.Errorf("wrong next validators: %w", err)
		}
	}
	return nil
}

// canonicalLedgerInfo is what validators sign. The next validator set is
// committed to by its hash.
type canonicalLedgerInfo struct {
	Epoch              uint64 `codec:"epoch"`
	Version            uint64 `codec:"version"`
	AccumulatorRoot    []byte `codec:"accumulator_root"`
	Timestamp          int64  `codec:"timestamp"`
	NextValidatorsHash []byte `codec:"next_validators_hash"`
}

// SignBytes returns the canonical encoding validators sign.
func (li *LedgerInfo) SignBytes() []byte {
	cli := canonicalLedgerInfo{
		Epoch:           uint64(li.Epoch),
		Version:         uint64(li.Version),
		AccumulatorRoot: li.AccumulatorRoot,
		Timestamp:       li.Timestamp.UnixNano(),
	}
	if li.NextValidators != nil {
		cli.NextValidatorsHash = li.NextValidators.Hash()
	}
	bz, err := cdcEncode(cli)
	if err != nil {
		panic(err)
	}
	return bz
}

// Hash returns the SHA256 of the sign bytes. Waypoints commit to it.
func (li *LedgerInfo) Hash() tmbytes.HexBytes {
	return crypto.Checksum(li.SignBytes())
}

// String returns a short string representation of the ledger info.
func (li *LedgerInfo) String() string {
	if li == nil {
		return "nil-LedgerInfo"
	}
	return fmt.Sprintf("LedgerInfo{epoch:%d version:%d root:%v ends_epoch:%v}",
		li.Epoch, li.Version, li.AccumulatorRoot.ShortString(), li.EndsEpoch())
}

// CommitSig is one validator's signature over a ledger info.
type CommitSig struct {
	ValidatorAddress crypto.Address `json:"validator_address"`
	Signature        []byte         `json:"signature"`
}

// ValidateBasic performs basic validation.
func (cs CommitSig) ValidateBasic() error {
	if len(cs.ValidatorAddress) != crypto.AddressSize {
		return fmt.Errorf("expected ValidatorAddress size to be %d bytes, got %d bytes",
			crypto.AddressSize,
			len(cs.ValidatorAddress),
		)
	}
	if len(cs.Signature) == 0 {
		return errors.New("signature is missing")
	}
	if len(cs.Signature) > MaxSignatureSize {
		return fmt.Errorf("signature is too big (max: %d)", MaxSignatureSize)
	}
	return nil
}

// LedgerInfoWithSignatures is a ledger info together with the quorum
// signatures of its epoch's validator set.
type LedgerInfoWithSignatures struct {
	LedgerInfo `json:"ledger_info"`
	Signatures []CommitSig `json:"signatures"`
}

// ValidateBasic performs stateless validation of the ledger info and its
// signatures. Signature correctness is checked by VerifyLedgerInfoSignatures.
func (li *LedgerInfoWithSignatures) ValidateBasic() error {
	if li == nil {
		return errors.New("nil ledger info")
	}
	if err := li.LedgerInfo.ValidateBasic(); err != nil {
		return err
	}
	if len(li.Signatures) == 0 {
		return errors.New("no signatures")
	}
	for i, cs := range li.Signatures {
		if err := cs.ValidateBasic(); err != nil {
			return fmt.Errorf("wrong CommitSig #%d: %w", i, err)
		}
	}
	return nil
}

type ledgerInfoJSON struct {
	Epoch           uint64          `codec:"epoch"`
	Version         uint64          `codec:"version"`
	AccumulatorRoot []byte          `codec:"accumulator_root"`
	Timestamp       int64           `codec:"timestamp"`
	NextValidators  []validatorJSON `codec:"next_validators"`
	Signatures      []commitSigJSON `codec:"signatures"`
}

type commitSigJSON struct {
	ValidatorAddress []byte `codec:"validator_address"`
	Signature        []byte `codec:"signature"`
}

// Marshal encodes the signed ledger info for storage and transport.
func (li *LedgerInfoWithSignatures) Marshal() ([]byte, error) {
	lj := ledgerInfoJSON{
		Epoch:           uint64(li.Epoch),
		Version:         uint64(li.Version),
		AccumulatorRoot: li.AccumulatorRoot,
		Timestamp:       li.Timestamp.UnixNano(),
		Signatures:      make([]commitSigJSON, len(li.Signatures)),
	}
	if li.NextValidators != nil {
		lj.NextValidators = li.NextValidators.toJSON()
	}
	for i, cs := range li.Signatures {
		lj.Signatures[i] = commitSigJSON{ValidatorAddress: cs.ValidatorAddress, Signature: cs.Signature}
	}
	return cdcEncode(lj)
}

// UnmarshalLedgerInfo decodes a signed ledger info produced by Marshal.
func UnmarshalLedgerInfo(bz []byte) (*LedgerInfoWithSignatures, error) {
	var lj ledgerInfoJSON
	if err := cdcDecode(bz, &lj); err != nil {
		return nil, fmt.Errorf("decoding ledger info: %w", err)
	}
	li := &LedgerInfoWithSignatures{
		LedgerInfo: LedgerInfo{
			Epoch:           Epoch(lj.Epoch),
			Version:         Version(lj.Version),
			AccumulatorRoot: lj.AccumulatorRoot,
			Timestamp:       time.Unix(0, lj.Timestamp).UTC(),
		},
		Signatures: make([]CommitSig, len(lj.Signatures)),
	}
	if len(lj.NextValidators) > 0 {
		vals, err := validatorSetFromJSON(lj.NextValidators)
		if err != nil {
			return nil, fmt.Errorf("decoding next validators: %w", err)
		}
		li.NextValidators = vals
	}
	for i, cs := range lj.Signatures {
		li.Signatures[i] = CommitSig{ValidatorAddress: cs.ValidatorAddress, Signature: cs.Signature}
	}
	return li, nil
}
