package models

import "strings"

// UserProfile is the account a user token belongs to. Email is empty when the service does not expose it.
type UserProfile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
}

// Playlist identifies a playlist on a single service.
type Playlist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Equal reports whether p and o refer to the same remote playlist.
func (p Playlist) Equal(o Playlist) bool {
	return p.ID == o.ID
}

// DedupPlaylists returns playlists with later duplicates (by ID) removed, keeping first-seen order.
func DedupPlaylists(playlists []Playlist) []Playlist {
	seen := make(map[string]struct{}, len(playlists))
	out := make([]Playlist, 0, len(playlists))
	for _, p := range playlists {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}

type Artist struct {
	Name string `json:"name"`
}

// Track is a song in a catalog or playlist.
type Track struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Artists []Artist `json:"artists"`
}

// ArtistNames joins the artist names with ", " in their original order.
func (t Track) ArtistNames() string {
	names := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		names[i] = a.Name
	}
	return strings.Join(names, ", ")
}

// SearchQuery is the text used to look the track up in another catalog: the name followed by the artist names.
func (t Track) SearchQuery() string {
	return strings.TrimSpace(t.Name + " " + t.ArtistNames())
}

// TransferStatus summarizes a [TransferResult].
type TransferStatus string

const (
	StatusSuccess TransferStatus = "success"
	StatusPartial TransferStatus = "partial"
	StatusFailed  TransferStatus = "failed"
)

// TransferResult records what happened to one source playlist.
//
// DestinationID is empty when no playlist was created. A playlist can have a DestinationID and an Err at the same time when
// tracks could not be added after creation.
type TransferResult struct {
	SourceID      string
	SourceName    string
	Matched       int
	Unmatched     int
	DestinationID string
	Err           error
}

// Status derives the display status: failed on any error or when nothing matched, partial when some tracks were skipped.
func (r TransferResult) Status() TransferStatus {
	switch {
	case r.Err != nil || r.Matched == 0:
		return StatusFailed
	case r.Unmatched > 0:
		return StatusPartial
	default:
		return StatusSuccess
	}
}

// Total is the number of source tracks considered.
func (r TransferResult) Total() int {
	return r.Matched + r.Unmatched
}
