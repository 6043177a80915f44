package factory

import (
	"fmt"

	"github.com/tendermint/ledgersync/types"
)

// GenesisTx is the transaction at version 0 of every test ledger.
var GenesisTx = types.Tx("genesis")

// MakeTx returns the deterministic transaction at version v of a test ledger.
func MakeTx(v types.Version) types.Tx {
	if v == 0 {
		return GenesisTx
	}
	return types.Tx(fmt.Sprintf("tx-%d", v))
}
