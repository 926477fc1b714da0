package tasks

import (
	"fmt"

	"github.com/escofresco/transfer/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	FetchSource Phase = iota
	SearchTracks
	CreatePlaylist
	AddTracks
	Complete
)

func (p Phase) String() string {
	switch p {
	case FetchSource:
		return "fetch_source"
	case SearchTracks:
		return "search_tracks"
	case CreatePlaylist:
		return "create_playlist"
	case AddTracks:
		return "add_tracks"
	case Complete:
		return "complete"
	default:
		return ""
	}
}

func fetchSourceUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching tracks of %s...", step, total, name),
	}
}

func searchTrackUpdate(step, total int, tr models.Track, matched bool) ProgressUpdate {
	mark := "✗"
	if matched {
		mark = "✓"
	}
	return ProgressUpdate{
		Phase:   SearchTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s %s - %s", step, total, mark, tr.ArtistNames(), tr.Name),
		Data:    tr,
	}
}

func createPlaylistUpdate(step, total int, pl *models.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Playlist created: %s (ID: %s)", pl.Name, pl.ID),
		Data:    pl,
	}
}

func addTracksUpdate(step, total int, pl *models.Playlist, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AddTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Adding %d tracks to %s...", count, pl.Name),
	}
}

func playlistDoneUpdate(step, total int, res models.TransferResult) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] %s %s: %d/%d matched", step, total, res.Status(), res.SourceName, res.Matched, res.Total())
	if res.Err != nil {
		msg = fmt.Sprintf("%s (%v)", msg, res.Err)
	}
	return ProgressUpdate{
		Phase:   Complete,
		Step:    step,
		Total:   total,
		Message: msg,
		Data:    res,
	}
}
