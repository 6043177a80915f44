package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenLedgerDB(t *testing.T) {
	t.Run("memdb", func(t *testing.T) {
		cfg := TestConfig()
		db, err := OpenLedgerDB(cfg)
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })

		require.NoError(t, db.Set([]byte("k"), []byte("v")))
		v, err := db.Get([]byte("k"))
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), v)
	})

	t.Run("goleveldb", func(t *testing.T) {
		cfg := TestConfig()
		cfg.SetRoot(t.TempDir())
		cfg.DBBackend = "goleveldb"
		db, err := OpenLedgerDB(cfg)
		require.NoError(t, err)
		require.NoError(t, db.Close())
		assert.DirExists(t, cfg.LedgerDBPath())
		assert.Equal(t, filepath.Join(cfg.DBDir(), "ledger.db"), cfg.LedgerDBPath())
	})

	t.Run("unsupported backend", func(t *testing.T) {
		cfg := TestConfig()
		cfg.DBBackend = "rocksdb"
		_, err := OpenLedgerDB(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported db_backend")
		assert.Error(t, cfg.ValidateBasic())
	})
}
