package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tendermint/ledgersync/config"
	"github.com/tendermint/ledgersync/libs/cli"
	"github.com/tendermint/ledgersync/libs/log"
)

// ParseConfig retrieves the default environment configuration,
// sets up the ledgersync root and ensures that the root exists
func ParseConfig(conf *config.Config) (*config.Config, error) {
	if err := viper.Unmarshal(conf); err != nil {
		return nil, err
	}

	conf.SetRoot(conf.RootDir)

	if err := conf.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("error in config file: %w", err)
	}
	return conf, nil
}

// RootCommand constructs the root command-line entry point for ledgersync.
func RootCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "ledgersync",
		Short:        "Verified ledger state synchronization for validators and followers",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == VersionCmd.Name() {
				return nil
			}

			pconf, err := ParseConfig(conf)
			if err != nil {
				return err
			}
			*conf = *pconf
			if err := config.EnsureRoot(conf.RootDir); err != nil {
				return err
			}
			return log.OverrideWithNewLogger(logger, conf.LogFormat, conf.LogLevel)
		},
	}
	cmd.PersistentFlags().String("log_level", conf.LogLevel, "log level")
	cmd.PersistentFlags().String("log_format", conf.LogFormat, "log format (plain or json)")
	return cli.PrepareBaseCmd(cmd, "LS", os.ExpandEnv(filepath.Join("$HOME", config.DefaultLedgerSyncDir)))
}
