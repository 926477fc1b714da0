// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/escofresco/transfer/internal/catalog"
	"github.com/escofresco/transfer/internal/models"
)

// FakeCatalog is an in-memory [catalog.Client].
//
// Searches resolve through Matches keyed by query; queries without an entry return no candidates. Delay, when set, is applied
// before a search answers so tests can force completion order.
type FakeCatalog struct {
	ServiceName string

	ProfileResult   *models.UserProfile
	ProfileErr      error
	TopTracksResult []models.Track
	TopTracksErr    error
	PlaylistsResult []models.Playlist
	PlaylistsErr    error
	Tracks          map[string][]models.Track
	TracksErr       error

	Matches   map[string]models.Track
	SearchErr map[string]error
	Delay     func(query string) time.Duration

	CreateErr error
	AddErr    error
	DeleteErr error

	mu       sync.Mutex
	nextID   int
	Created  []models.Playlist
	Added    map[string][]string
	Deleted  []string
	searches []string

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func NewFakeCatalog(name string) *FakeCatalog {
	return &FakeCatalog{
		ServiceName: name,
		Tracks:      make(map[string][]models.Track),
		Matches:     make(map[string]models.Track),
		SearchErr:   make(map[string]error),
		Added:       make(map[string][]string),
	}
}

func (f *FakeCatalog) Name() string { return f.ServiceName }

func (f *FakeCatalog) Profile(ctx context.Context) (*models.UserProfile, error) {
	if f.ProfileErr != nil {
		return nil, f.ProfileErr
	}
	return f.ProfileResult, nil
}

func (f *FakeCatalog) TopTracks(ctx context.Context, limit int, window catalog.TimeWindow) ([]models.Track, error) {
	if f.TopTracksErr != nil {
		return nil, f.TopTracksErr
	}
	if limit > 0 && limit < len(f.TopTracksResult) {
		return f.TopTracksResult[:limit], nil
	}
	return f.TopTracksResult, nil
}

func (f *FakeCatalog) Playlists(ctx context.Context) ([]models.Playlist, error) {
	if f.PlaylistsErr != nil {
		return nil, f.PlaylistsErr
	}
	return f.PlaylistsResult, nil
}

func (f *FakeCatalog) PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	if f.TracksErr != nil {
		return nil, f.TracksErr
	}
	return f.Tracks[playlistID], nil
}

func (f *FakeCatalog) SearchTrack(ctx context.Context, query string, limit int) ([]models.Track, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	f.mu.Lock()
	f.searches = append(f.searches, query)
	f.mu.Unlock()

	if f.Delay != nil {
		select {
		case <-time.After(f.Delay(query)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err := f.SearchErr[query]; err != nil {
		return nil, err
	}
	if m, ok := f.Matches[query]; ok {
		return []models.Track{m}, nil
	}
	return nil, nil
}

func (f *FakeCatalog) CreatePlaylist(ctx context.Context, name string) (*models.Playlist, error) {
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	p := models.Playlist{ID: fmt.Sprintf("%s-%d", f.ServiceName, f.nextID), Name: name}
	f.Created = append(f.Created, p)
	return &p, nil
}

func (f *FakeCatalog) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	if f.AddErr != nil {
		return f.AddErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.Added[playlistID] = append(f.Added[playlistID], trackIDs...)
	return nil
}

func (f *FakeCatalog) DeletePlaylist(ctx context.Context, playlistID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Deleted = append(f.Deleted, playlistID)
	return f.DeleteErr
}

// Searches returns the queries seen so far in arrival order.
func (f *FakeCatalog) Searches() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.searches...)
}

// MaxInFlight is the highest number of concurrent searches observed.
func (f *FakeCatalog) MaxInFlight() int { return int(f.maxInFlight.Load()) }

var _ catalog.Client = (*FakeCatalog)(nil)

// Track builds a track with the given artists.
func Track(id, name string, artists ...string) models.Track {
	t := models.Track{ID: id, Name: name}
	for _, a := range artists {
		t.Artists = append(t.Artists, models.Artist{Name: a})
	}
	return t
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

var _ io.ReadCloser = (*FCloser)(nil)

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
