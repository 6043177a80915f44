package commands

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tendermint/ledgersync/config"
	"github.com/tendermint/ledgersync/internal/store"
	tmbytes "github.com/tendermint/ledgersync/libs/bytes"
	"github.com/tendermint/ledgersync/libs/log"
	"github.com/tendermint/ledgersync/types"
)

// LedgerStatus summarizes the local ledger.
type LedgerStatus struct {
	Version           types.Version    `json:"version"`
	Epoch             types.Epoch      `json:"epoch"`
	LedgerInfoVersion types.Version    `json:"ledger_info_version"`
	LedgerInfoHash    tmbytes.HexBytes `json:"ledger_info_hash"`
	// Waypoint of the ledger info that started the current epoch. Other
	// nodes can bootstrap from it.
	Waypoint string `json:"waypoint"`
}

// MakeStatusCommand returns the command that prints the LedgerStatus of the
// local store as JSON.
func MakeStatusCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the version, epoch and waypoint of the local ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ledger, err := openLedgerStore(conf, logger)
			if err != nil {
				return err
			}
			defer ledger.Close()

			status, err := readLedgerStatus(ledger)
			if err != nil {
				return err
			}
			bz, err := json.MarshalIndent(status, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(bz))
			return nil
		},
	}
}

func readLedgerStatus(ledger *store.LedgerStore) (*LedgerStatus, error) {
	version, err := ledger.LatestVersion()
	if errors.Is(err, store.ErrEmptyStore) {
		return nil, errors.New("ledger is not initialized, run init with --genesis first")
	} else if err != nil {
		return nil, err
	}
	li, err := ledger.LatestLedgerInfo()
	if err != nil {
		return nil, err
	}

	epoch := li.Epoch
	if li.EndsEpoch() {
		epoch++
	}
	epochStart, err := ledger.EpochEndingLedgerInfo(epoch - 1)
	if err != nil {
		return nil, fmt.Errorf("loading ledger info that ended epoch %d: %w", epoch-1, err)
	}

	return &LedgerStatus{
		Version:           version,
		Epoch:             epoch,
		LedgerInfoVersion: li.Version,
		LedgerInfoHash:    li.Hash(),
		Waypoint:          types.NewWaypoint(&epochStart.LedgerInfo).String(),
	}, nil
}
