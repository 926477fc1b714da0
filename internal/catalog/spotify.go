package catalog

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/zmb3/spotify/v2"

	"github.com/escofresco/transfer/internal/auth"
	"github.com/escofresco/transfer/internal/models"
	"github.com/escofresco/transfer/internal/shared"
)

const spotifyBaseURL = "https://api.spotify.com/v1/"

// SpotifyClient implements [Client] on the Spotify Web API.
type SpotifyClient struct {
	api    *spotify.Client
	tokens TokenSource
	logger *log.Logger

	mu     sync.Mutex
	userID string
}

// NewSpotifyClient builds a client that authorizes requests with the token held by tokens.
func NewSpotifyClient(tokens TokenSource, opts ...Option) *SpotifyClient {
	o := buildOptions(spotifyBaseURL, opts)
	api := spotify.New(withBearer(o.httpClient, tokens), spotify.WithBaseURL(o.baseURL))

	return &SpotifyClient{
		api:    api,
		tokens: tokens,
		logger: shared.WithLogger(o.logger, "service", auth.Spotify),
	}
}

func (c *SpotifyClient) Name() string { return auth.Spotify }

func (c *SpotifyClient) requireUser() error {
	_, err := c.tokens.State().UserToken()
	return err
}

func (c *SpotifyClient) requireAny() error {
	_, err := c.tokens.State().AnyToken()
	return err
}

func (c *SpotifyClient) fail(op string, err error) error {
	fe := &FetchError{Kind: NetworkFailure, Service: auth.Spotify, Op: op, Err: err}

	var se spotify.Error
	switch {
	case errors.As(err, &se):
		fe.Status = se.Status
	case !isTransportError(err) && isDecodeError(err):
		fe.Kind = DecodeFailure
	}
	c.logger.Debug("request failed", "op", op, "error", err)
	return fe
}

func (c *SpotifyClient) Profile(ctx context.Context) (*models.UserProfile, error) {
	if err := c.requireUser(); err != nil {
		return nil, err
	}

	user, err := c.api.CurrentUser(ctx)
	if err != nil {
		return nil, c.fail("profile", err)
	}

	c.mu.Lock()
	c.userID = user.ID
	c.mu.Unlock()

	return &models.UserProfile{ID: user.ID, DisplayName: user.DisplayName, Email: user.Email}, nil
}

func (c *SpotifyClient) TopTracks(ctx context.Context, limit int, window TimeWindow) ([]models.Track, error) {
	if err := c.requireUser(); err != nil {
		return nil, err
	}

	page, err := c.api.CurrentUsersTopTracks(ctx, spotify.Limit(limit), spotify.Timerange(spotify.Range(window)))
	if err != nil {
		return nil, c.fail("top tracks", err)
	}
	return convertTracks(page.Tracks), nil
}

func (c *SpotifyClient) Playlists(ctx context.Context) ([]models.Playlist, error) {
	if err := c.requireUser(); err != nil {
		return nil, err
	}

	page, err := c.api.CurrentUsersPlaylists(ctx)
	if err != nil {
		return nil, c.fail("playlists", err)
	}

	playlists := make([]models.Playlist, 0, len(page.Playlists))
	for _, p := range page.Playlists {
		playlists = append(playlists, models.Playlist{ID: p.ID.String(), Name: p.Name})
	}
	return playlists, nil
}

// PlaylistTracks returns the first page of tracks. Podcast episodes and unavailable items are skipped.
func (c *SpotifyClient) PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	if err := c.requireUser(); err != nil {
		return nil, err
	}

	page, err := c.api.GetPlaylistItems(ctx, spotify.ID(playlistID))
	if err != nil {
		return nil, c.fail("playlist tracks", err)
	}

	tracks := make([]models.Track, 0, len(page.Items))
	for _, item := range page.Items {
		if item.Track.Track == nil {
			continue
		}
		tracks = append(tracks, convertTrack(*item.Track.Track))
	}
	return tracks, nil
}

func (c *SpotifyClient) SearchTrack(ctx context.Context, query string, limit int) ([]models.Track, error) {
	if err := c.requireAny(); err != nil {
		return nil, err
	}

	result, err := c.api.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(limit))
	if err != nil {
		return nil, c.fail("search", err)
	}
	if result.Tracks == nil {
		return nil, nil
	}
	return convertTracks(result.Tracks.Tracks), nil
}

// CreatePlaylist creates a private playlist owned by the current user. The user ID comes from the last fetched profile and
// is looked up first when none is known.
func (c *SpotifyClient) CreatePlaylist(ctx context.Context, name string) (*models.Playlist, error) {
	if err := c.requireUser(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	userID := c.userID
	c.mu.Unlock()

	if userID == "" {
		profile, err := c.Profile(ctx)
		if err != nil {
			return nil, err
		}
		userID = profile.ID
	}

	p, err := c.api.CreatePlaylistForUser(ctx, userID, name, "", false, false)
	if err != nil {
		return nil, c.fail("create playlist", err)
	}
	return &models.Playlist{ID: p.ID.String(), Name: p.Name}, nil
}

func (c *SpotifyClient) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	if err := c.requireUser(); err != nil {
		return err
	}
	if len(trackIDs) == 0 {
		return nil
	}

	ids := make([]spotify.ID, len(trackIDs))
	for i, id := range trackIDs {
		ids[i] = spotify.ID(id)
	}

	if _, err := c.api.AddTracksToPlaylist(ctx, spotify.ID(playlistID), ids...); err != nil {
		return c.fail("add tracks", err)
	}
	return nil
}

// DeletePlaylist unfollows the playlist, which is how Spotify deletes playlists a user owns.
func (c *SpotifyClient) DeletePlaylist(ctx context.Context, playlistID string) error {
	if err := c.requireUser(); err != nil {
		return err
	}
	if err := c.api.UnfollowPlaylist(ctx, spotify.ID(playlistID)); err != nil {
		return c.fail("delete playlist", err)
	}
	return nil
}

func convertTrack(t spotify.FullTrack) models.Track {
	artists := make([]models.Artist, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = models.Artist{Name: a.Name}
	}
	return models.Track{ID: t.ID.String(), Name: t.Name, Artists: artists}
}

func convertTracks(in []spotify.FullTrack) []models.Track {
	out := make([]models.Track, len(in))
	for i, t := range in {
		out[i] = convertTrack(t)
	}
	return out
}

var _ Client = (*SpotifyClient)(nil)
