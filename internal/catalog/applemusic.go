package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/charmbracelet/log"

	"github.com/escofresco/transfer/internal/auth"
	"github.com/escofresco/transfer/internal/models"
	"github.com/escofresco/transfer/internal/shared"
)

const appleMusicBaseURL = "https://api.music.apple.com/v1"

// MusicUserTokenHeader carries the user's library token next to the developer token.
const MusicUserTokenHeader = "Music-User-Token"

// Apple Music API response types based on https://developer.apple.com/documentation/applemusicapi

type amAttributes struct {
	Name       string `json:"name"`
	ArtistName string `json:"artistName"`
}

type amResource struct {
	ID         string       `json:"id"`
	Type       string       `json:"type"`
	Attributes amAttributes `json:"attributes"`
}

type amResponse struct {
	Data []amResource `json:"data"`
}

type amSearchResponse struct {
	Results struct {
		Songs *amResponse `json:"songs"`
	} `json:"results"`
}

type amCreatePlaylist struct {
	Attributes struct {
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
	} `json:"attributes"`
}

type amTrackRef struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

type amAddTracks struct {
	Data []amTrackRef `json:"data"`
}

// AppleMusicClient implements [Client] on the Apple Music API.
//
// Every request carries the developer token as a bearer token. Library endpoints under /me also send the user's token in the
// Music-User-Token header.
type AppleMusicClient struct {
	baseURL        string
	developerToken string
	storefront     string
	httpClient     *http.Client
	tokens         TokenSource
	logger         *log.Logger
}

// NewAppleMusicClient builds a client for the given storefront (e.g. "us").
func NewAppleMusicClient(tokens TokenSource, developerToken, storefront string, opts ...Option) *AppleMusicClient {
	o := buildOptions(appleMusicBaseURL, opts)
	if storefront == "" {
		storefront = "us"
	}

	return &AppleMusicClient{
		baseURL:        o.baseURL,
		developerToken: developerToken,
		storefront:     storefront,
		httpClient:     o.httpClient,
		tokens:         tokens,
		logger:         shared.WithLogger(o.logger, "service", auth.AppleMusic),
	}
}

func (c *AppleMusicClient) Name() string { return auth.AppleMusic }

// doRequest performs one request. When user is set the user's library token is required and attached.
func (c *AppleMusicClient) doRequest(ctx context.Context, op, method, endpoint string, query url.Values, body, result any, user bool) error {
	var userToken string
	if user {
		tok, err := c.tokens.State().UserToken()
		if err != nil {
			return err
		}
		userToken = tok.AccessToken
	}

	apiURL := c.baseURL + endpoint
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.developerToken)
	if userToken != "" {
		req.Header.Set(MusicUserTokenHeader, userToken)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("request", "method", method, "endpoint", endpoint)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &FetchError{Kind: NetworkFailure, Service: auth.AppleMusic, Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &FetchError{
			Kind:    NetworkFailure,
			Service: auth.AppleMusic,
			Op:      op,
			Status:  resp.StatusCode,
			Err:     fmt.Errorf("%w: %s", shared.ErrAPIRequest, bytes.TrimSpace(msg)),
		}
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		kind := NetworkFailure
		if isDecodeError(err) {
			kind = DecodeFailure
		}
		return &FetchError{Kind: kind, Service: auth.AppleMusic, Op: op, Status: resp.StatusCode, Err: err}
	}
	return nil
}

// Profile returns the user's storefront. Apple Music exposes no account profile, so the storefront stands in for it.
func (c *AppleMusicClient) Profile(ctx context.Context) (*models.UserProfile, error) {
	var resp amResponse
	if err := c.doRequest(ctx, "profile", http.MethodGet, "/me/storefront", nil, nil, &resp, true); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, &FetchError{Kind: DecodeFailure, Service: auth.AppleMusic, Op: "profile", Err: fmt.Errorf("empty storefront response")}
	}

	sf := resp.Data[0]
	return &models.UserProfile{ID: sf.ID, DisplayName: sf.Attributes.Name}, nil
}

// TopTracks returns recently played songs. Apple Music has no affinity windows, so window is ignored.
func (c *AppleMusicClient) TopTracks(ctx context.Context, limit int, window TimeWindow) ([]models.Track, error) {
	q := url.Values{"types": {"songs"}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var resp amResponse
	if err := c.doRequest(ctx, "top tracks", http.MethodGet, "/me/recent/played/tracks", q, nil, &resp, true); err != nil {
		return nil, err
	}
	return amTracks(resp.Data), nil
}

func (c *AppleMusicClient) Playlists(ctx context.Context) ([]models.Playlist, error) {
	var resp amResponse
	if err := c.doRequest(ctx, "playlists", http.MethodGet, "/me/library/playlists", nil, nil, &resp, true); err != nil {
		return nil, err
	}

	playlists := make([]models.Playlist, len(resp.Data))
	for i, r := range resp.Data {
		playlists[i] = models.Playlist{ID: r.ID, Name: r.Attributes.Name}
	}
	return playlists, nil
}

func (c *AppleMusicClient) PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	endpoint := fmt.Sprintf("/me/library/playlists/%s/tracks", url.PathEscape(playlistID))

	var resp amResponse
	if err := c.doRequest(ctx, "playlist tracks", http.MethodGet, endpoint, nil, nil, &resp, true); err != nil {
		return nil, err
	}
	return amTracks(resp.Data), nil
}

// SearchTrack searches the storefront catalog. Only the developer token is needed.
func (c *AppleMusicClient) SearchTrack(ctx context.Context, query string, limit int) ([]models.Track, error) {
	if limit <= 0 {
		limit = 1
	}
	q := url.Values{
		"term":  {query},
		"types": {"songs"},
		"limit": {strconv.Itoa(limit)},
	}
	endpoint := fmt.Sprintf("/catalog/%s/search", url.PathEscape(c.storefront))

	var resp amSearchResponse
	if err := c.doRequest(ctx, "search", http.MethodGet, endpoint, q, nil, &resp, false); err != nil {
		return nil, err
	}
	if resp.Results.Songs == nil {
		return nil, nil
	}
	return amTracks(resp.Results.Songs.Data), nil
}

func (c *AppleMusicClient) CreatePlaylist(ctx context.Context, name string) (*models.Playlist, error) {
	var body amCreatePlaylist
	body.Attributes.Name = name

	var resp amResponse
	if err := c.doRequest(ctx, "create playlist", http.MethodPost, "/me/library/playlists", nil, body, &resp, true); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, &FetchError{Kind: DecodeFailure, Service: auth.AppleMusic, Op: "create playlist", Err: fmt.Errorf("response contains no playlist")}
	}
	return &models.Playlist{ID: resp.Data[0].ID, Name: resp.Data[0].Attributes.Name}, nil
}

func (c *AppleMusicClient) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	if len(trackIDs) == 0 {
		return nil
	}

	body := amAddTracks{Data: make([]amTrackRef, len(trackIDs))}
	for i, id := range trackIDs {
		body.Data[i] = amTrackRef{ID: id, Type: "songs"}
	}

	endpoint := fmt.Sprintf("/me/library/playlists/%s/tracks", url.PathEscape(playlistID))
	return c.doRequest(ctx, "add tracks", http.MethodPost, endpoint, nil, body, nil, true)
}

func (c *AppleMusicClient) DeletePlaylist(ctx context.Context, playlistID string) error {
	endpoint := fmt.Sprintf("/me/library/playlists/%s", url.PathEscape(playlistID))
	return c.doRequest(ctx, "delete playlist", http.MethodDelete, endpoint, nil, nil, nil, true)
}

func amTracks(data []amResource) []models.Track {
	tracks := make([]models.Track, 0, len(data))
	for _, r := range data {
		t := models.Track{ID: r.ID, Name: r.Attributes.Name}
		if r.Attributes.ArtistName != "" {
			t.Artists = []models.Artist{{Name: r.Attributes.ArtistName}}
		}
		tracks = append(tracks, t)
	}
	return tracks
}

var _ Client = (*AppleMusicClient)(nil)
