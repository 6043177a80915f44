package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendermint/ledgersync/config"
	"github.com/tendermint/ledgersync/internal/test/factory"
	"github.com/tendermint/ledgersync/libs/cli"
	"github.com/tendermint/ledgersync/libs/log"
	"github.com/tendermint/ledgersync/types"
)

func testAppCmd(t *testing.T, conf *config.Config) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	logger, err := log.NewDefaultLogger(log.LogFormatPlain, "error")
	require.NoError(t, err)

	cmd := RootCommand(conf, logger)
	cmd.AddCommand(
		MakeInitCommand(conf, logger),
		MakeStatusCommand(conf, logger),
		MakeResetCommand(conf, logger),
	)
	var out bytes.Buffer
	cmd.SetOut(&out)
	return cmd, &out
}

func runApp(ctx context.Context, t *testing.T, root string, args ...string) (*config.Config, string, error) {
	t.Helper()
	viper.Reset()
	conf := config.DefaultConfig()
	cmd, out := testAppCmd(t, conf)
	args = append([]string{cmd.Use, "--home", root}, args...)
	err := cli.RunWithArgs(ctx, cmd, args, nil)
	return conf, out.String(), err
}

func writeGenesis(t *testing.T, l *factory.Ledger, dir string) string {
	t.Helper()
	doc, err := NewGenesisDoc(l.Genesis(), factory.GenesisTx)
	require.NoError(t, err)
	path := filepath.Join(dir, "genesis.json")
	require.NoError(t, doc.SaveAs(path))
	return path
}

func TestGenesisDoc(t *testing.T) {
	l := factory.NewLedger(t)
	path := writeGenesis(t, l, t.TempDir())

	doc, err := LoadGenesisDoc(path)
	require.NoError(t, err)
	li, err := doc.SignedLedgerInfo()
	require.NoError(t, err)
	assert.Equal(t, l.Genesis().Hash(), li.Hash())
	assert.Equal(t, []byte(factory.GenesisTx), doc.Transaction.Bytes())

	_, err = LoadGenesisDoc(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestInitWritesConfig(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	root := t.TempDir()
	_, _, err := runApp(ctx, t, root, "init", config.ModeValidator)
	require.NoError(t, err)

	// a later run picks up the mode written by init
	conf, _, err := runApp(ctx, t, root, "reset")
	require.NoError(t, err)
	assert.Equal(t, config.ModeValidator, conf.Mode)

	_, _, err = runApp(ctx, t, root, "init", "archiver")
	require.Error(t, err)
}

func TestStatus(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := factory.NewLedger(t)
	epochEnd := l.EndEpoch(20)
	li := l.Commit(10)

	root := t.TempDir()
	genesis := writeGenesis(t, l, t.TempDir())

	// status before init fails
	_, _, err := runApp(ctx, t, root, "status")
	require.Error(t, err)

	conf, _, err := runApp(ctx, t, root, "init", "--genesis", genesis)
	require.NoError(t, err)

	ledger, err := openLedgerStore(conf, log.NewNopLogger())
	require.NoError(t, err)
	chunk := l.VerifiedChunk(l.TrustedState(), 1, 30, li)
	require.NoError(t, ledger.ExecuteAndCommit(ctx, chunk))
	require.NoError(t, ledger.Close())

	_, out, err := runApp(ctx, t, root, "status")
	require.NoError(t, err)

	var status LedgerStatus
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.EqualValues(t, 30, status.Version)
	assert.EqualValues(t, 2, status.Epoch)
	assert.EqualValues(t, 30, status.LedgerInfoVersion)
	assert.Equal(t, li.Hash(), status.LedgerInfoHash)
	assert.Equal(t, types.NewWaypoint(&epochEnd.LedgerInfo).String(), status.Waypoint)

	// the genesis can't be applied twice
	_, _, err = runApp(ctx, t, root, "init", "--genesis", genesis)
	require.Error(t, err)
}

func TestReset(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := factory.NewLedger(t)
	root := t.TempDir()
	genesis := writeGenesis(t, l, t.TempDir())

	conf, _, err := runApp(ctx, t, root, "init", "--genesis", genesis)
	require.NoError(t, err)
	require.DirExists(t, filepath.Join(conf.DBDir(), "ledger.db"))

	_, _, err = runApp(ctx, t, root, "reset")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(conf.DBDir(), "ledger.db"))
	require.True(t, os.IsNotExist(err))
	require.DirExists(t, conf.DBDir())

	_, _, err = runApp(ctx, t, root, "init", "--genesis", genesis)
	require.NoError(t, err)
}
