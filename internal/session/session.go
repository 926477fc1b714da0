// Package session drives the authentication lifecycle of one service and exposes what the user can see.
//
// A [Controller] restores or refreshes the persisted token on startup, loads the user's profile, top tracks and playlists in
// one all-or-nothing step, and falls back to an anonymous session whenever user data cannot be loaded. Observers receive
// [State] snapshots through [Controller.Subscribe].
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/escofresco/transfer/internal/auth"
	"github.com/escofresco/transfer/internal/catalog"
	"github.com/escofresco/transfer/internal/models"
	"github.com/escofresco/transfer/internal/shared"
)

const (
	topTracksLimit  = 5
	topTracksWindow = catalog.MediumTerm
)

// TokenManager is the token lifecycle a [Controller] drives. [*auth.Manager] implements it.
type TokenManager interface {
	State() auth.State
	LoadPersisted() (*auth.Token, error)
	AcquireClientToken(ctx context.Context) (*auth.Token, error)
	Refresh(ctx context.Context, tok *auth.Token) (*auth.Token, error)
	ExchangeAuthorizationCode(ctx context.Context, redirectURL string) (*auth.Token, error)
	Logout() error
	SaveProfile(p models.UserProfile) error
	LoadProfile() (*models.UserProfile, error)
}

// State is an immutable snapshot of a session. User data is only present when Status is [auth.UserAuthenticated].
type State struct {
	Service   string
	Status    auth.Status
	TokenID   string
	Profile   *models.UserProfile
	TopTracks []models.Track
	Playlists []models.Playlist
}

// Controller owns the session of one service.
type Controller struct {
	tokens TokenManager
	client catalog.Client
	logger *log.Logger

	mu     sync.RWMutex
	state  State
	subs   map[int]chan State
	nextID int
}

func NewController(tokens TokenManager, client catalog.Client, logger *log.Logger) *Controller {
	return &Controller{
		tokens: tokens,
		client: client,
		logger: shared.WithLogger(logger, "service", client.Name()),
		state:  State{Service: client.Name()},
		subs:   make(map[int]chan State),
	}
}

// Client returns the catalog client the session authenticates.
func (c *Controller) Client() catalog.Client { return c.client }

func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Subscribe returns a channel that receives the latest state after every change, and a function that ends the subscription.
// A slow reader only misses intermediate states.
func (c *Controller) Subscribe() (<-chan State, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	ch := make(chan State, 1)
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.subs, id)
			close(ch)
		})
	}
}

func (c *Controller) publish(s State) {
	s.Service = c.client.Name()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s

	for _, ch := range c.subs {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- s
		}
	}
}

// tokenState publishes the token level with no user data.
func (c *Controller) tokenState() {
	as := c.tokens.State()
	c.publish(State{Status: as.Status, TokenID: as.Token.ID()})
}

// Setup restores the session on startup:
//
//  1. Without a persisted token, an app-level token is acquired and the session stays anonymous.
//  2. An expired token is refreshed; if that fails the session is logged out and reset to anonymous.
//  3. A valid token loads the user data.
//
// Setup only returns an error when not even an anonymous session could be established. Other failures are logged and leave
// the session anonymous.
func (c *Controller) Setup(ctx context.Context) error {
	tok, err := c.tokens.LoadPersisted()
	if err != nil {
		c.logger.Warn("discarding unreadable token", "error", err)
		return c.reset(ctx)
	}
	if tok == nil {
		return c.startAnonymous(ctx)
	}

	if tok.IsExpired() {
		c.logger.Info("token expired, refreshing", "token", tok.ID())
		if _, err := c.tokens.Refresh(ctx, tok); err != nil {
			c.logger.Warn("refresh failed, resetting session", "error", err)
			return c.reset(ctx)
		}
		return c.setupUser(ctx)
	}

	// the cached profile is only a hint; user data is published once the fetch succeeds
	if profile, err := c.tokens.LoadProfile(); err != nil {
		c.logger.Debug("no cached profile", "error", err)
	} else if profile != nil {
		c.logger.Info("restoring session", "user", profile.DisplayName, "token", tok.ID())
	}
	return c.setupUser(ctx)
}

func (c *Controller) setupUser(ctx context.Context) error {
	if err := c.FetchUserData(ctx); err != nil {
		var fatal *anonymousError
		if errors.As(err, &fatal) {
			return err
		}
		c.logger.Warn("user data unavailable", "error", err)
		return nil
	}
	// a persisted app-level token has no user data to load
	if c.tokens.State().Status != auth.UserAuthenticated {
		c.tokenState()
	}
	return nil
}

// FetchUserData loads the profile, top tracks and playlists concurrently. It does nothing unless a user token is held.
//
// The three requests succeed or fail together: on the first failure the others are abandoned, the session is logged out and
// restarted anonymously, and the error is returned. No partial user data is ever published.
func (c *Controller) FetchUserData(ctx context.Context) error {
	if c.tokens.State().Status != auth.UserAuthenticated {
		return nil
	}

	var (
		profile   *models.UserProfile
		topTracks []models.Track
		playlists []models.Playlist
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := c.client.Profile(gctx)
		if err != nil {
			return fmt.Errorf("profile: %w", err)
		}
		profile = p
		return nil
	})
	g.Go(func() error {
		tracks, err := c.client.TopTracks(gctx, topTracksLimit, topTracksWindow)
		if err != nil {
			return fmt.Errorf("top tracks: %w", err)
		}
		topTracks = tracks
		return nil
	})
	g.Go(func() error {
		lists, err := c.client.Playlists(gctx)
		if err != nil {
			return fmt.Errorf("playlists: %w", err)
		}
		playlists = models.DedupPlaylists(lists)
		return nil
	})

	if err := g.Wait(); err != nil {
		c.logger.Warn("fetching user data failed, logging out", "error", err)
		if rerr := c.reset(ctx); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}

	if profile != nil {
		if err := c.tokens.SaveProfile(*profile); err != nil {
			c.logger.Warn("failed to cache profile", "error", err)
		}
	}

	as := c.tokens.State()
	c.publish(State{
		Status:    as.Status,
		TokenID:   as.Token.ID(),
		Profile:   profile,
		TopTracks: topTracks,
		Playlists: playlists,
	})
	c.logger.Info("session ready", "playlists", len(playlists))
	return nil
}

// Login completes an authorization-code grant from the URL the service redirected to, then loads the user data.
func (c *Controller) Login(ctx context.Context, redirectURL string) error {
	if _, err := c.tokens.ExchangeAuthorizationCode(ctx, redirectURL); err != nil {
		return err
	}
	return c.FetchUserData(ctx)
}

// Logout forgets the user and starts an anonymous session.
func (c *Controller) Logout(ctx context.Context) error {
	return c.reset(ctx)
}

func (c *Controller) reset(ctx context.Context) error {
	if err := c.tokens.Logout(); err != nil {
		c.logger.Warn("logout incomplete", "error", err)
	}
	return c.startAnonymous(ctx)
}

// anonymousError marks a failure to obtain even an app-level token.
type anonymousError struct{ err error }

func (e *anonymousError) Error() string { return "starting anonymous session: " + e.err.Error() }
func (e *anonymousError) Unwrap() error { return e.err }

func (c *Controller) startAnonymous(ctx context.Context) error {
	if _, err := c.tokens.AcquireClientToken(ctx); err != nil {
		c.publish(State{Status: auth.Unauthenticated})
		return &anonymousError{err: err}
	}
	c.tokenState()
	return nil
}

// PlaylistTracks fetches a playlist's tracks. Failures are logged and yield no tracks.
func (c *Controller) PlaylistTracks(ctx context.Context, playlistID string) []models.Track {
	tracks, err := c.client.PlaylistTracks(ctx, playlistID)
	if err != nil {
		c.logger.Warn("failed to fetch playlist tracks", "playlist", playlistID, "error", err)
		return nil
	}
	return tracks
}

// Playlists returns the playlists loaded with the user data.
func (c *Controller) Playlists() []models.Playlist {
	return c.State().Playlists
}

// FindPlaylist looks a loaded playlist up by ID or, failing that, by exact name.
func (c *Controller) FindPlaylist(ref string) (models.Playlist, error) {
	playlists := c.Playlists()
	for _, p := range playlists {
		if p.ID == ref {
			return p, nil
		}
	}
	for _, p := range playlists {
		if p.Name == ref {
			return p, nil
		}
	}
	return models.Playlist{}, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, ref)
}
