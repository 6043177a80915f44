package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tendermint/ledgersync/config"
	"github.com/tendermint/ledgersync/libs/log"
)

// MakeResetCommand returns the command that deletes the local ledger so the
// node can be initialized again from a genesis file.
func MakeResetCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Remove the local ledger store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ResetState(conf, logger)
		},
	}
}

// ResetState removes the ledger database and recreates an empty database
// directory.
func ResetState(conf *config.Config, logger log.Logger) error {
	ledgerDB := conf.LedgerDBPath()
	if _, err := os.Stat(ledgerDB); err == nil {
		if err := os.RemoveAll(ledgerDB); err != nil {
			logger.Error("error removing ledger.db", "dir", ledgerDB, "err", err)
			return err
		}
		logger.Info("Removed ledger.db", "dir", ledgerDB)
	}

	return os.MkdirAll(conf.DBDir(), 0700)
}
