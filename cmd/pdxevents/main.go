package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"pdxevents/internal/cli"
	appLog "pdxevents/internal/log"
)

const version = "0.1.0-dev"

func main() {
	appLog.Debug("pdxevents starting", "version", version)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCmd(&cli.App{})
	root.Version = version
	if err := root.ExecuteContext(ctx); err != nil {
		appLog.Error("command failed", err)
		stop()
		os.Exit(1)
	}
}
