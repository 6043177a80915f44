package store

import (
	"fmt"

	"github.com/google/orderedcode"

	"github.com/tendermint/ledgersync/types"
)

//---------------------------------- KEY ENCODING -----------------------------------------

// key prefixes
const (
	// prefixes are unique across all ledgersync db's
	prefixTx          = int64(0)
	prefixTxHash      = int64(1)
	prefixLedgerInfo  = int64(2)
	prefixEpochEnding = int64(3)
	prefixState       = int64(4)
)

func txKey(version types.Version) []byte {
	key, err := orderedcode.Append(nil, prefixTx, uint64(version))
	if err != nil {
		panic(err)
	}
	return key
}

func txHashKey(version types.Version) []byte {
	key, err := orderedcode.Append(nil, prefixTxHash, uint64(version))
	if err != nil {
		panic(err)
	}
	return key
}

func ledgerInfoKey(version types.Version) []byte {
	key, err := orderedcode.Append(nil, prefixLedgerInfo, uint64(version))
	if err != nil {
		panic(err)
	}
	return key
}

func epochEndingKey(epoch types.Epoch) []byte {
	key, err := orderedcode.Append(nil, prefixEpochEnding, uint64(epoch))
	if err != nil {
		panic(err)
	}
	return key
}

func stateKey() []byte {
	key, err := orderedcode.Append(nil, prefixState)
	if err != nil {
		panic(err)
	}
	return key
}

// ledgerState is the single record that says how far the ledger goes.
type ledgerState struct {
	// Version of the last persisted transaction.
	Version types.Version
	// Version of the latest persisted ledger info. It is at most Version.
	LedgerInfoVersion types.Version
}

func encodeState(s ledgerState) []byte {
	bz, err := orderedcode.Append(nil, uint64(s.Version), uint64(s.LedgerInfoVersion))
	if err != nil {
		panic(err)
	}
	return bz
}

func decodeState(bz []byte) (ledgerState, error) {
	var version, liVersion uint64
	remaining, err := orderedcode.Parse(string(bz), &version, &liVersion)
	if err != nil {
		return ledgerState{}, err
	}
	if len(remaining) != 0 {
		return ledgerState{}, fmt.Errorf("expected complete state but got remainder: %s", remaining)
	}
	return ledgerState{Version: types.Version(version), LedgerInfoVersion: types.Version(liVersion)}, nil
}

func encodeVersion(v types.Version) []byte {
	bz, err := orderedcode.Append(nil, uint64(v))
	if err != nil {
		panic(err)
	}
	return bz
}

func decodeVersion(bz []byte) (types.Version, error) {
	var v uint64
	if _, err := orderedcode.Parse(string(bz), &v); err != nil {
		return 0, err
	}
	return types.Version(v), nil
}
