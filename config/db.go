package config

import (
	"fmt"
	"path/filepath"

	dbm "github.com/tendermint/tm-db"
)

// LedgerDBID names the database holding the ledger store.
const LedgerDBID = "ledger"

// OpenLedgerDB opens the ledger database in the configured backend and
// directory.
func OpenLedgerDB(cfg *Config) (dbm.DB, error) {
	backend, err := cfg.dbBackend()
	if err != nil {
		return nil, err
	}
	return dbm.NewDB(LedgerDBID, backend, cfg.DBDir())
}

// LedgerDBPath returns where the goleveldb backend keeps the ledger
// database.
func (cfg BaseConfig) LedgerDBPath() string {
	return filepath.Join(cfg.DBDir(), LedgerDBID+".db")
}

// dbBackend returns the tm-db backend of the configuration. Only the
// backends tm-db builds without cgo are accepted.
func (cfg BaseConfig) dbBackend() (dbm.BackendType, error) {
	switch backend := dbm.BackendType(cfg.DBBackend); backend {
	case dbm.GoLevelDBBackend, dbm.MemDBBackend:
		return backend, nil
	default:
		return "", fmt.Errorf("unsupported db_backend %q (must be '%s' or '%s')",
			cfg.DBBackend, dbm.GoLevelDBBackend, dbm.MemDBBackend)
	}
}
