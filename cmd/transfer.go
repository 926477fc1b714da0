package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/escofresco/transfer/internal/auth"
	"github.com/escofresco/transfer/internal/formatter"
	"github.com/escofresco/transfer/internal/models"
	"github.com/escofresco/transfer/internal/repositories"
	"github.com/escofresco/transfer/internal/shared"
	"github.com/escofresco/transfer/internal/tasks"
)

// TransferRun copies the selected Spotify playlists into Apple Music and records the run.
func (r *Runner) TransferRun(ctx context.Context, cmd *cli.Command) error {
	refs := cmd.StringSlice("playlist")
	all := cmd.Bool("all")
	if len(refs) == 0 && !all {
		return fmt.Errorf("%w: --playlist or --all", shared.ErrMissingArgument)
	}

	format := cmd.String("format")
	if !isFormat(format) {
		return fmt.Errorf("%w: unknown format %q (want one of %s)", shared.ErrInvalidArgument, format, strings.Join(formatter.Formats, ", "))
	}

	src, err := r.userSession(ctx, cmd, auth.Spotify)
	if err != nil {
		return err
	}
	dst, err := r.userSession(ctx, cmd, auth.AppleMusic)
	if err != nil {
		return err
	}

	selected := src.Playlists()
	if !all {
		selected = make([]models.Playlist, 0, len(refs))
		for _, ref := range refs {
			p, err := src.FindPlaylist(ref)
			if err != nil {
				return err
			}
			selected = append(selected, p)
		}
		selected = models.DedupPlaylists(selected)
	}
	if len(selected) == 0 {
		return r.writePlain("No playlists to transfer\n")
	}

	db, err := r.database(cmd)
	if err != nil {
		return err
	}

	workers := r.config.Transfer.Workers()
	if cmd.IsSet("concurrency") {
		workers = int(cmd.Int("concurrency"))
	}
	limit := r.config.Transfer.Limit()
	if cmd.IsSet("rate-limit") {
		limit = cmd.Float("rate-limit")
	}

	engine := tasks.NewEngine(dst.Client(),
		tasks.WithSource(src.Client()),
		tasks.WithConcurrency(workers),
		tasks.WithRateLimit(limit),
		tasks.WithRecorder(repositories.NewTransferRepository(db)),
		tasks.WithLogger(r.logger),
	)

	sources := make([]tasks.SourcePlaylist, 0, len(selected))
	for _, p := range selected {
		sources = append(sources, tasks.SourcePlaylist{Playlist: p})
	}

	r.logger.Info("starting transfer", "playlists", len(sources), "workers", workers, "rate_limit", limit)

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			r.showProgress(format, update)
		}
	}()

	results := engine.Transfer(ctx, sources, progressCh)
	close(progressCh)
	<-done

	if err := formatter.WriteResults(r.output, format, results); err != nil {
		return err
	}

	for _, res := range results {
		if res.Status() != models.StatusFailed {
			return nil
		}
	}
	return fmt.Errorf("%w: no playlist was transferred", shared.ErrAPIRequest)
}

// showProgress prints engine updates for the table format only, so machine-readable output stays clean.
func (r *Runner) showProgress(format string, update tasks.ProgressUpdate) {
	if format != "" && !strings.EqualFold(format, formatter.FormatTable) {
		r.logger.Debug(update.Message, "phase", update.Phase)
		return
	}

	switch update.Phase {
	case tasks.FetchSource:
		r.writePlain("\n📥 %s\n", update.Message)
	case tasks.SearchTracks:
		r.logger.Debug(update.Message)
	case tasks.CreatePlaylist, tasks.AddTracks:
		r.writePlain("   %s\n", update.Message)
	case tasks.Complete:
		if res, ok := update.Data.(models.TransferResult); ok {
			r.writePlain("%s %s\n", formatter.Styles.Status(string(res.Status())), update.Message)
			return
		}
		r.writePlain("%s\n", update.Message)
	}
}

func isFormat(format string) bool {
	if format == "" || strings.EqualFold(format, "md") {
		return true
	}
	for _, f := range formatter.Formats {
		if strings.EqualFold(format, f) {
			return true
		}
	}
	return false
}

// TransferUndo deletes the destination playlists of the latest recorded run.
func (r *Runner) TransferUndo(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database(cmd)
	if err != nil {
		return err
	}
	repo := repositories.NewTransferRepository(db)

	run, err := repo.LatestRun(ctx)
	if err != nil {
		return err
	}
	if run.Undone() {
		return fmt.Errorf("%w: run %s was already undone", shared.ErrNothingToUndo, shared.ShortID(run.ID, 8))
	}

	playlists, err := repo.CreatedPlaylists(ctx, run.ID)
	if err != nil {
		return err
	}
	if len(playlists) == 0 {
		if err := repo.MarkUndone(ctx, run.ID); err != nil {
			return err
		}
		return r.writePlain("Run %s created no playlists\n", shared.ShortID(run.ID, 8))
	}

	dst, err := r.userSession(ctx, cmd, run.Destination)
	if err != nil {
		return err
	}

	engine := tasks.NewEngine(dst.Client(), tasks.WithRecorder(repo), tasks.WithLogger(r.logger))
	engine.Restore(run.ID, playlists)

	if err := engine.UndoLastTransfer(ctx); err != nil {
		r.writePlain("%s Undo incomplete:\n", formatter.Styles.Err.Render("✗"))
		for _, e := range unwrapJoined(err) {
			r.writePlain("  - %v\n", e)
		}
		return err
	}

	r.writePlain("%s Deleted %d playlists from %s\n", formatter.Styles.OK.Render("✓"), len(playlists), run.Destination)
	for _, p := range playlists {
		r.writePlain("  - %s\n", p.Name)
	}
	return nil
}

func unwrapJoined(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}

// TransferHistory lists recorded runs, newest first.
func (r *Runner) TransferHistory(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database(cmd)
	if err != nil {
		return err
	}

	runs, err := repositories.NewTransferRepository(db).History(ctx, int(cmd.Int("limit")))
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		return r.writePlain("No transfers recorded\n")
	}
	return r.writePlain("%s\n", formatter.HistoryTable(runs))
}
