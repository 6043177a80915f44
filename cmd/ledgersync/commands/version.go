package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tendermint/ledgersync/version"
)

var verbose bool

// VersionCmd prints the release and, with --verbose, the protocol versions.
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version info",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !verbose {
			fmt.Println(version.Version)
			return nil
		}
		values, err := json.MarshalIndent(version.Current(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(values))
		return nil
	},
}

func init() {
	VersionCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show protocol versions")
}
