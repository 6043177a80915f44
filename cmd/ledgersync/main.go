package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tendermint/ledgersync/cmd/ledgersync/commands"
	"github.com/tendermint/ledgersync/config"
	"github.com/tendermint/ledgersync/libs/log"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	conf := config.DefaultConfig()

	logger, err := log.NewDefaultLogger(conf.LogFormat, conf.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	rcmd := commands.RootCommand(conf, logger)
	rcmd.AddCommand(
		commands.MakeInitCommand(conf, logger),
		commands.MakeStatusCommand(conf, logger),
		commands.MakeResetCommand(conf, logger),
		commands.VersionCmd,
	)

	if err := rcmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
