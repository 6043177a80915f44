package statesync_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	dbm "github.com/tendermint/tm-db"

	"github.com/tendermint/ledgersync/internal/eventbus"
	"github.com/tendermint/ledgersync/internal/store"
	"github.com/tendermint/ledgersync/internal/test/factory"
	"github.com/tendermint/ledgersync/libs/log"
	"github.com/tendermint/ledgersync/types"
	"github.com/tendermint/ledgersync/verifier"
)

// newSyncedStore returns a store holding the ledger up to the ledger info
// signed at version to.
func newSyncedStore(t *testing.T, l *factory.Ledger, to types.Version) *store.LedgerStore {
	t.Helper()

	s, err := store.NewLedgerStore(dbm.NewMemDB(), log.NewNopLogger(), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.InitGenesis(l.Genesis(), factory.GenesisTx))

	if to > 0 {
		li := l.LedgerInfoAt(to)
		require.NotNil(t, li, "no ledger info at version %d", to)
		commitChunk(t, l, s, l.TrustedState(), 1, to, li)
	}
	return s
}

// commitChunk persists transactions [from, to] proven against li.
func commitChunk(
	t *testing.T,
	l *factory.Ledger,
	s *store.LedgerStore,
	trusted verifier.TrustedState,
	from, to types.Version,
	li *types.LedgerInfoWithSignatures,
) verifier.TrustedState {
	t.Helper()
	chunk := l.VerifiedChunk(trusted, from, to, li)
	require.NoError(t, s.ExecuteAndCommit(context.Background(), chunk))
	return chunk.TrustedState()
}

func newEventBus(t *testing.T, ctx context.Context) *eventbus.EventBus {
	t.Helper()
	bus := eventbus.NewDefault(log.NewNopLogger())
	require.NoError(t, bus.Start(ctx))
	t.Cleanup(func() { _ = bus.Stop() })
	return bus
}
