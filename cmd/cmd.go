// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"

	"github.com/escofresco/transfer/internal/auth"
	"github.com/escofresco/transfer/internal/formatter"
)

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   "config.toml",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable debug logging",
		},
	}
}

func serviceFlag(value string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "service",
		Aliases: []string{"s"},
		Usage:   "Service to use (" + auth.Spotify + " or " + auth.AppleMusic + ")",
		Value:   value,
	}
}

func formatFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format (table, csv, markdown, json)",
		Value:   formatter.FormatTable,
	}
}

// setupCommand initializes the config file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create the config file if missing, initialize the database and run migrations",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "rollback",
				Usage: "Revert the most recently applied migration",
			},
		},
		Action: r.Setup,
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage authentication",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Authorize a service in the browser",
				Flags: []cli.Flag{
					serviceFlag(auth.Spotify),
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the authorization callback",
						Value: 2 * time.Minute,
					},
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the authorization URL without opening a browser",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "logout",
				Usage:  "Forget the stored token and profile of a service",
				Flags:  []cli.Flag{serviceFlag(auth.Spotify)},
				Action: r.AuthLogout,
			},
			{
				Name:  "status",
				Usage: "Show the stored authentication state",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "service",
						Aliases: []string{"s"},
						Usage:   "Limit to one service",
					},
				},
				Action: r.AuthStatus,
			},
		},
	}
}

// playlistsCommand lists the playlists of a logged-in user.
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "playlists",
		Usage: "List the user's playlists",
		Flags: []cli.Flag{
			serviceFlag(auth.Spotify),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Playlists,
	}
}

// transferCommand handles playlist transfer operations
func transferCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "transfer",
		Usage: "Transfer playlists between services",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Transfer Spotify playlists to Apple Music",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "playlist",
						Aliases: []string{"p"},
						Usage:   "Source playlist name or ID (repeatable)",
					},
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Transfer every playlist of the source user",
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Concurrent track searches per playlist (1-8)",
					},
					&cli.FloatFlag{
						Name:  "rate-limit",
						Usage: "Track searches per second",
					},
					formatFlag(),
				},
				Action: r.TransferRun,
			},
			{
				Name:   "undo",
				Usage:  "Delete the playlists created by the latest transfer",
				Action: r.TransferUndo,
			},
			{
				Name:  "history",
				Usage: "List recorded transfers",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to show (0 for all)",
						Value: 10,
					},
				},
				Action: r.TransferHistory,
			},
		},
	}
}
