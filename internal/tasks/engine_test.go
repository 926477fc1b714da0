package tasks

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/escofresco/transfer/internal/models"
	tu "github.com/escofresco/transfer/internal/testing"
)

var errBoom = errors.New("boom")

// fakeRecorder captures recorded runs.
type fakeRecorder struct {
	runs    [][]models.TransferResult
	sources []string
	undone  []string
	err     error
}

func (r *fakeRecorder) RecordTransfer(ctx context.Context, source, destination string, results []models.TransferResult) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r.runs = append(r.runs, results)
	r.sources = append(r.sources, source+"->"+destination)
	return fmt.Sprintf("run-%d", len(r.runs)), nil
}

func (r *fakeRecorder) MarkUndone(ctx context.Context, runID string) error {
	r.undone = append(r.undone, runID)
	return nil
}

func source(id, name string, tracks ...models.Track) SourcePlaylist {
	if tracks == nil {
		tracks = []models.Track{}
	}
	return SourcePlaylist{Playlist: models.Playlist{ID: id, Name: name}, Tracks: tracks}
}

func destination() *tu.FakeCatalog {
	dest := tu.NewFakeCatalog("apple_music")
	dest.Matches["A Artist1"] = tu.Track("am-a", "A", "Artist1")
	dest.Matches["B Artist2"] = tu.Track("am-b", "B", "Artist2")
	dest.Matches["C Artist3"] = tu.Track("am-c", "C", "Artist3")
	return dest
}

func TestEngineTransfer(t *testing.T) {
	ctx := context.Background()
	a := tu.Track("sp-a", "A", "Artist1")
	b := tu.Track("sp-b", "B", "Artist2")
	c := tu.Track("sp-c", "C", "Artist3")
	x := tu.Track("sp-x", "Unknown", "Nobody")

	t.Run("All Tracks Matched", func(t *testing.T) {
		dest := destination()
		engine := NewEngine(dest)

		results := engine.Transfer(ctx, []SourcePlaylist{source("p1", "Roadtrip", a, b, c)}, nil)
		if len(results) != 1 {
			t.Fatalf("expected 1 result, got %d", len(results))
		}

		res := results[0]
		if res.Err != nil {
			t.Fatalf("unexpected error: %v", res.Err)
		}
		if res.Matched != 3 || res.Unmatched != 0 {
			t.Errorf("expected 3/0, got %d/%d", res.Matched, res.Unmatched)
		}
		if res.Status() != models.StatusSuccess {
			t.Errorf("expected success, got %s", res.Status())
		}
		if len(dest.Created) != 1 || dest.Created[0].Name != "Roadtrip" {
			t.Fatalf("expected Roadtrip to be created, got %v", dest.Created)
		}
		if res.DestinationID != dest.Created[0].ID {
			t.Errorf("expected destination id %s, got %s", dest.Created[0].ID, res.DestinationID)
		}
		if got := dest.Added[res.DestinationID]; !slices.Equal(got, []string{"am-a", "am-b", "am-c"}) {
			t.Errorf("unexpected added ids %v", got)
		}
	})

	t.Run("Preserves Source Order", func(t *testing.T) {
		dest := destination()
		dest.Delay = func(q string) time.Duration {
			switch {
			case strings.HasPrefix(q, "A "):
				return 60 * time.Millisecond
			case strings.HasPrefix(q, "B "):
				return 30 * time.Millisecond
			default:
				return 0
			}
		}
		engine := NewEngine(dest, WithConcurrency(3))

		results := engine.Transfer(ctx, []SourcePlaylist{source("p1", "Roadtrip", a, b, c)}, nil)
		if got := dest.Added[results[0].DestinationID]; !slices.Equal(got, []string{"am-a", "am-b", "am-c"}) {
			t.Errorf("expected source order, got %v", got)
		}
	})

	t.Run("Skips Misses And Search Errors", func(t *testing.T) {
		dest := destination()
		dest.SearchErr["B Artist2"] = errBoom
		engine := NewEngine(dest)

		results := engine.Transfer(ctx, []SourcePlaylist{source("p1", "Mixed", a, b, x)}, nil)
		res := results[0]
		if res.Err != nil {
			t.Fatalf("unexpected error: %v", res.Err)
		}
		if res.Matched != 1 || res.Unmatched != 2 {
			t.Errorf("expected 1/2, got %d/%d", res.Matched, res.Unmatched)
		}
		if res.Status() != models.StatusPartial {
			t.Errorf("expected partial, got %s", res.Status())
		}
		if got := dest.Added[res.DestinationID]; !slices.Equal(got, []string{"am-a"}) {
			t.Errorf("unexpected added ids %v", got)
		}
		if len(dest.Searches()) != 3 {
			t.Errorf("expected 3 searches, got %d", len(dest.Searches()))
		}
	})

	t.Run("No Matches Creates Nothing", func(t *testing.T) {
		dest := destination()
		engine := NewEngine(dest)

		results := engine.Transfer(ctx, []SourcePlaylist{source("p1", "Obscure", x)}, nil)
		res := results[0]
		if !errors.Is(res.Err, ErrNoMatchesFound) {
			t.Fatalf("expected ErrNoMatchesFound, got %v", res.Err)
		}
		if res.Status() != models.StatusFailed {
			t.Errorf("expected failed, got %s", res.Status())
		}
		if len(dest.Created) != 0 {
			t.Errorf("expected no playlist created, got %v", dest.Created)
		}
		if len(engine.Created()) != 0 {
			t.Errorf("expected nothing tracked, got %v", engine.Created())
		}
	})

	t.Run("Empty Playlist", func(t *testing.T) {
		dest := destination()
		engine := NewEngine(dest)

		results := engine.Transfer(ctx, []SourcePlaylist{source("p1", "Empty")}, nil)
		if !errors.Is(results[0].Err, ErrNoMatchesFound) {
			t.Errorf("expected ErrNoMatchesFound, got %v", results[0].Err)
		}
		if len(dest.Searches()) != 0 {
			t.Errorf("expected no searches, got %v", dest.Searches())
		}
	})

	t.Run("Create Failure Continues Batch", func(t *testing.T) {
		dest := destination()
		dest.CreateErr = errBoom
		engine := NewEngine(dest)

		results := engine.Transfer(ctx, []SourcePlaylist{
			source("p1", "First", a),
			source("p2", "Second", b),
		}, nil)
		if len(results) != 2 {
			t.Fatalf("expected 2 results, got %d", len(results))
		}
		for _, res := range results {
			if !errors.Is(res.Err, ErrCreateFailed) {
				t.Errorf("%s: expected ErrCreateFailed, got %v", res.SourceName, res.Err)
			}
			if !errors.Is(res.Err, errBoom) {
				t.Errorf("%s: expected wrapped cause, got %v", res.SourceName, res.Err)
			}
			if res.Matched != 1 {
				t.Errorf("%s: expected 1 match, got %d", res.SourceName, res.Matched)
			}
		}
	})

	t.Run("Add Failure Keeps Playlist Tracked", func(t *testing.T) {
		dest := destination()
		dest.AddErr = errBoom
		engine := NewEngine(dest)

		results := engine.Transfer(ctx, []SourcePlaylist{source("p1", "First", a)}, nil)
		res := results[0]
		if !errors.Is(res.Err, ErrAddFailed) {
			t.Fatalf("expected ErrAddFailed, got %v", res.Err)
		}
		if res.DestinationID == "" {
			t.Error("expected destination id to be recorded")
		}
		if len(engine.Created()) != 1 {
			t.Errorf("expected created playlist to be tracked, got %v", engine.Created())
		}
	})

	t.Run("Multiple Playlists In Order", func(t *testing.T) {
		dest := destination()
		engine := NewEngine(dest)

		results := engine.Transfer(ctx, []SourcePlaylist{
			source("p1", "First", a),
			source("p2", "Second", x),
			source("p3", "Third", c),
		}, nil)

		names := make([]string, 0, len(results))
		for _, r := range results {
			names = append(names, r.SourceName)
		}
		if !slices.Equal(names, []string{"First", "Second", "Third"}) {
			t.Errorf("unexpected result order %v", names)
		}
		if len(dest.Created) != 2 {
			t.Errorf("expected 2 playlists created, got %v", dest.Created)
		}
		if results[1].Err == nil {
			t.Error("expected Second to fail")
		}
	})
}

func TestEngineSourceTracks(t *testing.T) {
	ctx := context.Background()

	t.Run("Fetches Missing Tracks", func(t *testing.T) {
		src := tu.NewFakeCatalog("spotify")
		src.Tracks["p1"] = []models.Track{tu.Track("sp-a", "A", "Artist1")}
		dest := destination()
		engine := NewEngine(dest, WithSource(src))

		results := engine.Transfer(ctx, []SourcePlaylist{{Playlist: models.Playlist{ID: "p1", Name: "Fetched"}}}, nil)
		if results[0].Err != nil || results[0].Matched != 1 {
			t.Fatalf("unexpected result %+v", results[0])
		}
	})

	t.Run("Fetch Failure Recorded", func(t *testing.T) {
		src := tu.NewFakeCatalog("spotify")
		src.TracksErr = errBoom
		dest := destination()
		engine := NewEngine(dest, WithSource(src))

		results := engine.Transfer(ctx, []SourcePlaylist{
			{Playlist: models.Playlist{ID: "p1", Name: "Broken"}},
			source("p2", "Given", tu.Track("sp-c", "C", "Artist3")),
		}, nil)
		if !errors.Is(results[0].Err, errBoom) {
			t.Errorf("expected fetch error, got %v", results[0].Err)
		}
		if results[1].Err != nil {
			t.Errorf("expected second playlist to succeed, got %v", results[1].Err)
		}
		if len(dest.Created) != 1 {
			t.Errorf("expected 1 playlist created, got %v", dest.Created)
		}
	})
}

func TestEngineConcurrency(t *testing.T) {
	tracks := make([]models.Track, 0, 12)
	dest := tu.NewFakeCatalog("apple_music")
	for i := range 12 {
		tr := tu.Track(fmt.Sprintf("sp-%d", i), fmt.Sprintf("Song %d", i), "Band")
		tracks = append(tracks, tr)
		dest.Matches[tr.SearchQuery()] = tu.Track(fmt.Sprintf("am-%d", i), tr.Name, "Band")
	}
	dest.Delay = func(string) time.Duration { return 10 * time.Millisecond }

	tests := []struct {
		name    string
		workers int
		max     int
	}{
		{name: "Bounded By Workers", workers: 2, max: 2},
		{name: "Non-Positive Uses Default", workers: -3, max: 4},
		{name: "Clamped To Maximum", workers: 50, max: 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tu.NewFakeCatalog("apple_music")
			d.Matches = dest.Matches
			d.Delay = dest.Delay
			engine := NewEngine(d, WithConcurrency(tt.workers))

			results := engine.Transfer(context.Background(), []SourcePlaylist{source("p1", "Big", tracks...)}, nil)
			if results[0].Matched != len(tracks) {
				t.Errorf("expected %d matches, got %d", len(tracks), results[0].Matched)
			}
			if got := d.MaxInFlight(); got > tt.max || got == 0 {
				t.Errorf("expected at most %d concurrent searches, got %d", tt.max, got)
			}
		})
	}

	t.Run("Worker Defaults", func(t *testing.T) {
		if NewEngine(dest).workers != 4 {
			t.Errorf("expected 4 workers by default")
		}
	})
}

func TestEngineUndo(t *testing.T) {
	ctx := context.Background()
	a := tu.Track("sp-a", "A", "Artist1")
	b := tu.Track("sp-b", "B", "Artist2")

	t.Run("Deletes Created Playlists Once", func(t *testing.T) {
		dest := destination()
		engine := NewEngine(dest)
		engine.Transfer(ctx, []SourcePlaylist{source("p1", "First", a), source("p2", "Second", b)}, nil)

		if err := engine.UndoLastTransfer(ctx); err != nil {
			t.Fatalf("undo failed: %v", err)
		}
		if !slices.Equal(dest.Deleted, []string{"apple_music-1", "apple_music-2"}) {
			t.Errorf("unexpected deletions %v", dest.Deleted)
		}

		if err := engine.UndoLastTransfer(ctx); err != nil {
			t.Fatalf("second undo failed: %v", err)
		}
		if len(dest.Deleted) != 2 {
			t.Errorf("expected second undo to be a no-op, got %v", dest.Deleted)
		}
	})

	t.Run("Only Latest Invocation", func(t *testing.T) {
		dest := destination()
		engine := NewEngine(dest)
		engine.Transfer(ctx, []SourcePlaylist{source("p1", "First", a)}, nil)
		engine.Transfer(ctx, []SourcePlaylist{source("p2", "Second", b)}, nil)

		if err := engine.UndoLastTransfer(ctx); err != nil {
			t.Fatalf("undo failed: %v", err)
		}
		if !slices.Equal(dest.Deleted, []string{"apple_music-2"}) {
			t.Errorf("expected only the latest playlist deleted, got %v", dest.Deleted)
		}
	})

	t.Run("Nothing To Undo", func(t *testing.T) {
		dest := destination()
		engine := NewEngine(dest)
		if err := engine.UndoLastTransfer(ctx); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
		if len(dest.Deleted) != 0 {
			t.Errorf("expected no deletions, got %v", dest.Deleted)
		}
	})

	t.Run("Delete Failures Clear List", func(t *testing.T) {
		dest := destination()
		dest.DeleteErr = errBoom
		engine := NewEngine(dest)
		engine.Transfer(ctx, []SourcePlaylist{source("p1", "First", a), source("p2", "Second", b)}, nil)

		err := engine.UndoLastTransfer(ctx)
		if !errors.Is(err, errBoom) {
			t.Fatalf("expected delete error, got %v", err)
		}
		if len(dest.Deleted) != 2 {
			t.Errorf("expected every deletion attempted, got %v", dest.Deleted)
		}
		if err := engine.UndoLastTransfer(ctx); err != nil {
			t.Errorf("expected second undo to be a no-op, got %v", err)
		}
	})

	t.Run("Restore", func(t *testing.T) {
		dest := destination()
		rec := &fakeRecorder{}
		engine := NewEngine(dest, WithRecorder(rec))
		engine.Restore("run-9", []models.Playlist{{ID: "am-old", Name: "Old"}})

		if err := engine.UndoLastTransfer(ctx); err != nil {
			t.Fatalf("undo failed: %v", err)
		}
		if !slices.Equal(dest.Deleted, []string{"am-old"}) {
			t.Errorf("unexpected deletions %v", dest.Deleted)
		}
		if !slices.Equal(rec.undone, []string{"run-9"}) {
			t.Errorf("expected run-9 marked undone, got %v", rec.undone)
		}
	})
}

func TestEngineRecorder(t *testing.T) {
	ctx := context.Background()

	t.Run("Records Every Run", func(t *testing.T) {
		src := tu.NewFakeCatalog("spotify")
		dest := destination()
		rec := &fakeRecorder{}
		engine := NewEngine(dest, WithSource(src), WithRecorder(rec))

		engine.Transfer(ctx, []SourcePlaylist{source("p1", "First", tu.Track("sp-a", "A", "Artist1"))}, nil)
		if len(rec.runs) != 1 || len(rec.runs[0]) != 1 {
			t.Fatalf("expected 1 recorded run, got %v", rec.runs)
		}
		if rec.sources[0] != "spotify->apple_music" {
			t.Errorf("unexpected services %s", rec.sources[0])
		}

		if err := engine.UndoLastTransfer(ctx); err != nil {
			t.Fatalf("undo failed: %v", err)
		}
		if !slices.Equal(rec.undone, []string{"run-1"}) {
			t.Errorf("expected run-1 marked undone, got %v", rec.undone)
		}
	})

	t.Run("Cancelled Run Is Still Recorded", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		rec := &fakeRecorder{}
		engine := NewEngine(destination(), WithRecorder(rec))

		engine.Transfer(cctx, []SourcePlaylist{source("p1", "First", tu.Track("sp-a", "A", "Artist1"))}, nil)
		if len(rec.runs) != 1 {
			t.Fatalf("expected the cancelled run to be recorded, got %v", rec.runs)
		}
	})

	t.Run("Recorder Failure Is Not Fatal", func(t *testing.T) {
		dest := destination()
		engine := NewEngine(dest, WithRecorder(&fakeRecorder{err: errBoom}))

		results := engine.Transfer(ctx, []SourcePlaylist{source("p1", "First", tu.Track("sp-a", "A", "Artist1"))}, nil)
		if results[0].Err != nil {
			t.Errorf("unexpected error: %v", results[0].Err)
		}
		if len(engine.Created()) != 1 {
			t.Errorf("expected playlist tracked, got %v", engine.Created())
		}
	})
}

func TestEngineProgress(t *testing.T) {
	a := tu.Track("sp-a", "A", "Artist1")

	t.Run("Reports Phases", func(t *testing.T) {
		progress := make(chan ProgressUpdate, 32)
		engine := NewEngine(destination())
		engine.Transfer(context.Background(), []SourcePlaylist{source("p1", "First", a)}, progress)
		close(progress)

		var phases []Phase
		for u := range progress {
			phases = append(phases, u.Phase)
		}
		want := []Phase{SearchTracks, CreatePlaylist, AddTracks, Complete}
		if !slices.Equal(phases, want) {
			t.Errorf("expected %v, got %v", want, phases)
		}
	})

	t.Run("Never Blocks", func(t *testing.T) {
		progress := make(chan ProgressUpdate)
		engine := NewEngine(destination())

		done := make(chan struct{})
		go func() {
			engine.Transfer(context.Background(), []SourcePlaylist{source("p1", "First", a)}, progress)
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Transfer blocked on an unread progress channel")
		}
	})
}

func TestTransferError(t *testing.T) {
	err := &TransferError{Kind: CreateFailed, Playlist: "Mix", Err: errBoom}
	if got := err.Error(); got != `transfer "Mix": create failed: boom` {
		t.Errorf("unexpected message %q", got)
	}
	if errors.Is(err, ErrAddFailed) {
		t.Error("kinds should not match")
	}

	plain := &TransferError{Kind: NoMatchesFound, Playlist: "Mix"}
	if got := plain.Error(); got != `transfer "Mix": no matches found` {
		t.Errorf("unexpected message %q", got)
	}
}

func TestPhaseString(t *testing.T) {
	for phase, want := range map[Phase]string{
		FetchSource:    "fetch_source",
		SearchTracks:   "search_tracks",
		CreatePlaylist: "create_playlist",
		AddTracks:      "add_tracks",
		Complete:       "complete",
		Phase(99):      "",
	} {
		if got := phase.String(); got != want {
			t.Errorf("%d: expected %q, got %q", phase, want, got)
		}
	}
}
