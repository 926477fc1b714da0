package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/escofresco/transfer/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)
	logger.SetLevel(log.WarnLevel)

	runner := NewRunner(RunnerOpts{Logger: logger})
	defer runner.Close()

	app := &cli.Command{
		Name:     "transfer",
		Usage:    "Transfer playlists from Spotify to Apple Music",
		Version:  "0.1.0",
		Flags:    globalFlags(),
		Before:   runner.Before,
		Commands: runner.register(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		runner.Close()
		logger.Fatalf("application error: %v", err)
	}
}
