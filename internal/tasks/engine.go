package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/escofresco/transfer/internal/catalog"
	"github.com/escofresco/transfer/internal/models"
	"github.com/escofresco/transfer/internal/shared"
)

const searchLimit = 1

// SourcePlaylist is one playlist to transfer. A nil Tracks slice is fetched from the source client.
type SourcePlaylist struct {
	Playlist models.Playlist
	Tracks   []models.Track
}

// Recorder persists the results of a transfer run.
type Recorder interface {
	RecordTransfer(ctx context.Context, source, destination string, results []models.TransferResult) (string, error)
	MarkUndone(ctx context.Context, runID string) error
}

// Engine transfers playlists into a destination catalog and remembers what it created.
type Engine struct {
	dest     catalog.Client
	source   catalog.Client
	workers  int
	limiter  *rate.Limiter
	recorder Recorder
	logger   *log.Logger

	mu      sync.Mutex
	created []models.Playlist
	runID   string
}

type Option func(*Engine)

// WithSource sets the client used to fetch tracks that are not supplied with a [SourcePlaylist].
func WithSource(c catalog.Client) Option {
	return func(e *Engine) { e.source = c }
}

// WithConcurrency bounds the number of in-flight searches, clamped to [1, shared.MaxConcurrency].
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		e.workers = shared.TransferConfig{Concurrency: n}.Workers()
	}
}

// WithRateLimit paces searches at rps per second. Non-positive values disable pacing.
func WithRateLimit(rps float64) Option {
	return func(e *Engine) {
		if rps <= 0 {
			e.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		e.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an [Engine] writing into dest.
func NewEngine(dest catalog.Client, opts ...Option) *Engine {
	e := &Engine{
		dest:    dest,
		workers: shared.DefaultConcurrency,
		limiter: rate.NewLimiter(rate.Inf, 1),
		logger:  shared.NewLogger(io.Discard),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = shared.WithLogger(e.logger, "destination", dest.Name())
	return e
}

// sendProgress sends a progress update through the channel without blocking.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Transfer copies each playlist into the destination, one playlist at a time.
//
// The returned slice holds one result per input, in input order. Failures are carried on the results.
func (e *Engine) Transfer(ctx context.Context, playlists []SourcePlaylist, progress chan<- ProgressUpdate) []models.TransferResult {
	e.mu.Lock()
	e.created = nil
	e.runID = ""
	e.mu.Unlock()

	results := make([]models.TransferResult, len(playlists))
	for i, sp := range playlists {
		results[i] = e.transferOne(ctx, sp, i+1, len(playlists), progress)
		e.sendProgress(progress, playlistDoneUpdate(i+1, len(playlists), results[i]))

		logger := e.logger.With("playlist", sp.Playlist.Name, "status", results[i].Status())
		if results[i].Err != nil {
			logger.Warn("playlist transfer incomplete", "error", results[i].Err)
		} else {
			logger.Info("playlist transferred", "matched", results[i].Matched)
		}
	}

	// created playlists must be recorded even when the run was interrupted
	e.record(context.WithoutCancel(ctx), results)
	return results
}

func (e *Engine) transferOne(ctx context.Context, sp SourcePlaylist, step, total int, progress chan<- ProgressUpdate) models.TransferResult {
	res := models.TransferResult{SourceID: sp.Playlist.ID, SourceName: sp.Playlist.Name}

	tracks := sp.Tracks
	if tracks == nil && e.source != nil {
		e.sendProgress(progress, fetchSourceUpdate(step, total, sp.Playlist.Name))
		fetched, err := e.source.PlaylistTracks(ctx, sp.Playlist.ID)
		if err != nil {
			res.Err = fmt.Errorf("fetching tracks of %q: %w", sp.Playlist.Name, err)
			return res
		}
		tracks = fetched
	}

	ids := e.match(ctx, tracks, progress)
	res.Matched = len(ids)
	res.Unmatched = len(tracks) - len(ids)
	if len(ids) == 0 {
		res.Err = &TransferError{Kind: NoMatchesFound, Playlist: sp.Playlist.Name}
		return res
	}

	pl, err := e.dest.CreatePlaylist(ctx, sp.Playlist.Name)
	if err != nil {
		res.Err = &TransferError{Kind: CreateFailed, Playlist: sp.Playlist.Name, Err: err}
		return res
	}
	res.DestinationID = pl.ID
	e.track(*pl)
	e.sendProgress(progress, createPlaylistUpdate(step, total, pl))

	e.sendProgress(progress, addTracksUpdate(step, total, pl, len(ids)))
	if err := e.dest.AddTracks(ctx, pl.ID, ids); err != nil {
		res.Err = &TransferError{Kind: AddFailed, Playlist: sp.Playlist.Name, Err: err}
	}
	return res
}

// match searches every track concurrently and returns the matched destination ids in source order.
func (e *Engine) match(ctx context.Context, tracks []models.Track, progress chan<- ProgressUpdate) []string {
	found := make([]string, len(tracks))
	var done atomic.Int64

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, tr := range tracks {
		g.Go(func() error {
			found[i] = e.search(ctx, tr)
			n := done.Add(1)
			e.sendProgress(progress, searchTrackUpdate(int(n), len(tracks), tr, found[i] != ""))
			return nil
		})
	}
	_ = g.Wait()

	ids := make([]string, 0, len(tracks))
	for _, id := range found {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func (e *Engine) search(ctx context.Context, tr models.Track) string {
	if err := e.limiter.Wait(ctx); err != nil {
		e.logger.Debug("search skipped", "track", tr.Name, "error", err)
		return ""
	}
	candidates, err := e.dest.SearchTrack(ctx, tr.SearchQuery(), searchLimit)
	if err != nil {
		e.logger.Debug("search failed", "track", tr.Name, "error", err)
		return ""
	}
	if len(candidates) == 0 {
		return ""
	}
	return candidates[0].ID
}

func (e *Engine) track(pl models.Playlist) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.created = append(e.created, pl)
}

func (e *Engine) record(ctx context.Context, results []models.TransferResult) {
	if e.recorder == nil {
		return
	}
	source := ""
	if e.source != nil {
		source = e.source.Name()
	}
	id, err := e.recorder.RecordTransfer(ctx, source, e.dest.Name(), results)
	if err != nil {
		e.logger.Warn("failed to record transfer", "error", err)
		return
	}
	e.mu.Lock()
	e.runID = id
	e.mu.Unlock()
}

// Created returns a copy of the playlists created by the latest transfer.
func (e *Engine) Created() []models.Playlist {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.Playlist(nil), e.created...)
}

// Restore replaces the tracked playlists with those of a recorded run so it can be undone.
func (e *Engine) Restore(runID string, playlists []models.Playlist) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.runID = runID
	e.created = append([]models.Playlist(nil), playlists...)
}

// UndoLastTransfer deletes every playlist created by the latest transfer and forgets them.
//
// Every deletion is attempted. The tracked list is cleared even when some deletions fail, so a second call is a no-op.
func (e *Engine) UndoLastTransfer(ctx context.Context) error {
	e.mu.Lock()
	created, runID := e.created, e.runID
	e.created, e.runID = nil, ""
	e.mu.Unlock()

	if len(created) == 0 {
		return nil
	}

	var errs []error
	for _, pl := range created {
		if err := e.dest.DeletePlaylist(ctx, pl.ID); err != nil {
			errs = append(errs, fmt.Errorf("deleting %q: %w", pl.Name, err))
			continue
		}
		e.logger.Debug("playlist deleted", "playlist", pl.Name, "id", pl.ID)
	}

	if e.recorder != nil && runID != "" {
		if err := e.recorder.MarkUndone(ctx, runID); err != nil {
			errs = append(errs, fmt.Errorf("marking run %s undone: %w", runID, err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		e.logger.Warn("undo incomplete", "error", err)
		return err
	}
	e.logger.Info("transfer undone", "deleted", len(created))
	return nil
}
