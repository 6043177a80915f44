package commands

import (
	"github.com/spf13/cobra"

	"github.com/tendermint/ledgersync/config"
	"github.com/tendermint/ledgersync/libs/log"
)

// MakeInitCommand returns the command that writes config.toml to the home
// directory and, given a genesis file, seeds the ledger store with it.
func MakeInitCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	var genesisFile string
	cmd := &cobra.Command{
		Use:       "init [validator|follower]",
		Short:     "Initializes a ledgersync home directory",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{config.ModeValidator, config.ModeFollower},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				conf.Mode = args[0]
			}
			if err := conf.ValidateBasic(); err != nil {
				return err
			}
			if err := config.WriteConfigFile(conf.RootDir, conf); err != nil {
				return err
			}
			logger.Info("Generated config", "mode", conf.Mode, "home", conf.RootDir)

			if genesisFile == "" {
				return nil
			}
			return initGenesis(conf, logger, genesisFile)
		},
	}
	cmd.Flags().StringVar(&genesisFile, "genesis", "", "genesis file to initialize the ledger with")
	return cmd
}

func initGenesis(conf *config.Config, logger log.Logger, genesisFile string) error {
	doc, err := LoadGenesisDoc(genesisFile)
	if err != nil {
		return err
	}
	genesis, err := doc.SignedLedgerInfo()
	if err != nil {
		return err
	}

	ledger, err := openLedgerStore(conf, logger)
	if err != nil {
		return err
	}
	defer ledger.Close()

	if err := ledger.InitGenesis(genesis, doc.Transaction.Bytes()); err != nil {
		return err
	}
	logger.Info("Initialized ledger from genesis", "file", genesisFile, "root", genesis.AccumulatorRoot)
	return nil
}
