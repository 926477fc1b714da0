// Package catalog wraps the web APIs of the supported music services behind one [Client] interface.
//
// Every method issues a single authenticated request. Requests acting on a user's library require a user token from the
// service's [auth.Manager]; catalog searches accept an app-level token. Transport and decode failures are returned as
// [*FetchError].
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/charmbracelet/log"

	"github.com/escofresco/transfer/internal/auth"
	"github.com/escofresco/transfer/internal/models"
)

// TimeWindow selects the affinity period for top tracks.
type TimeWindow string

const (
	ShortTerm  TimeWindow = "short_term"
	MediumTerm TimeWindow = "medium_term"
	LongTerm   TimeWindow = "long_term"
)

// Client is a music service catalog and library.
type Client interface {
	// Name returns the service name used for tokens and logs.
	Name() string
	Profile(ctx context.Context) (*models.UserProfile, error)
	TopTracks(ctx context.Context, limit int, window TimeWindow) ([]models.Track, error)
	Playlists(ctx context.Context) ([]models.Playlist, error)
	PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error)
	// SearchTrack returns at most limit candidates for a free text query, best match first.
	SearchTrack(ctx context.Context, query string, limit int) ([]models.Track, error)
	CreatePlaylist(ctx context.Context, name string) (*models.Playlist, error)
	AddTracks(ctx context.Context, playlistID string, trackIDs []string) error
	DeletePlaylist(ctx context.Context, playlistID string) error
}

// TokenSource exposes the authentication state of a service. [*auth.Manager] implements it.
type TokenSource interface {
	State() auth.State
}

type FetchErrorKind int

const (
	NetworkFailure FetchErrorKind = iota
	DecodeFailure
)

func (k FetchErrorKind) String() string {
	if k == DecodeFailure {
		return "decode failure"
	}
	return "network failure"
}

// FetchError describes a failed catalog request. Status is the HTTP status when the service answered.
type FetchError struct {
	Kind    FetchErrorKind
	Service string
	Op      string
	Status  int
	Err     error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: %s (status %d): %v", e.Service, e.Op, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Service, e.Op, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// isDecodeError reports whether err came from decoding a response body.
func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}

func isTransportError(err error) bool {
	var ue *url.Error
	return errors.As(err, &ue)
}

type options struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
}

type Option func(*options)

// WithBaseURL points the client at a different API root, e.g. a test server.
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = u }
}

// WithHTTPClient sets the client whose transport carries the requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(baseURL string, opts []Option) options {
	o := options{baseURL: baseURL}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = http.DefaultClient
	}
	return o
}

// bearerTransport stamps the held token, if any, on each request.
type bearerTransport struct {
	tokens TokenSource
	base   http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	if tok := t.tokens.State().Token; tok != nil {
		r.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	}
	return t.base.RoundTrip(r)
}

func withBearer(client *http.Client, tokens TokenSource) *http.Client {
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	c := *client
	c.Transport = &bearerTransport{tokens: tokens, base: base}
	return &c
}
