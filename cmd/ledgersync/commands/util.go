package commands

import (
	"github.com/tendermint/ledgersync/config"
	"github.com/tendermint/ledgersync/internal/store"
	"github.com/tendermint/ledgersync/libs/log"
)

func openLedgerStore(conf *config.Config, logger log.Logger) (*store.LedgerStore, error) {
	db, err := config.OpenLedgerDB(conf)
	if err != nil {
		return nil, err
	}
	ledger, err := store.NewLedgerStore(db, logger, conf.Storage.CacheSizeMB)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return ledger, nil
}
