package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/escofresco/transfer/internal/formatter"
)

// Playlists lists the playlists of the logged-in user of a service.
func (r *Runner) Playlists(ctx context.Context, cmd *cli.Command) error {
	ctrl, err := r.userSession(ctx, cmd, cmd.String("service"))
	if err != nil {
		return err
	}

	playlists := ctrl.Playlists()
	if cmd.Bool("json") {
		return r.writeJSON(playlists, true)
	}

	if len(playlists) == 0 {
		return r.writePlain("No playlists found\n")
	}
	return r.writePlain("%s\n", formatter.PlaylistsTable(playlists))
}
