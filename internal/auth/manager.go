package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/escofresco/transfer/internal/models"
	"github.com/escofresco/transfer/internal/secrets"
	"github.com/escofresco/transfer/internal/shared"
)

// Config describes one service's OAuth2 client.
type Config struct {
	Service      string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	Scopes       []string
}

func (c Config) oauth2() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Scopes:       c.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.AuthURL,
			TokenURL:  c.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func (c Config) clientCredentials() *clientcredentials.Config {
	return &clientcredentials.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenURL:     c.TokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
}

// TokenKey is the secret store key holding a service's token.
func TokenKey(service string) string { return service + "-token" }

// ProfileKey is the secret store key holding a service's cached profile.
func ProfileKey(service string) string { return service + "-profile" }

// Status is the authentication level of a session.
type Status int

const (
	Unauthenticated Status = iota
	ClientAuthenticated
	UserAuthenticated
)

func (s Status) String() string {
	switch s {
	case ClientAuthenticated:
		return "anonymous"
	case UserAuthenticated:
		return "user"
	default:
		return "unauthenticated"
	}
}

// State is a snapshot of the token a [Manager] holds.
type State struct {
	Status Status
	Token  *Token
}

// UserToken returns the token only if it acts for a user.
func (s State) UserToken() (*Token, error) {
	if s.Status != UserAuthenticated {
		return nil, fmt.Errorf("%w: %s session", shared.ErrNotAuthenticated, s.Status)
	}
	return s.Token, nil
}

// AnyToken returns the app-level or user token, whichever is held.
func (s State) AnyToken() (*Token, error) {
	if s.Status == Unauthenticated {
		return nil, shared.ErrNotAuthenticated
	}
	return s.Token, nil
}

// Manager owns the token of one service.
type Manager struct {
	config     Config
	store      secrets.Store
	httpClient *http.Client
	logger     *log.Logger

	mu      sync.RWMutex
	current *Token
}

type Option func(*Manager)

// WithHTTPClient routes token endpoint calls through client.
func WithHTTPClient(client *http.Client) Option {
	return func(m *Manager) { m.httpClient = client }
}

func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func NewManager(config Config, store secrets.Store, opts ...Option) *Manager {
	m := &Manager{config: config, store: store}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = shared.WithLogger(m.logger, "service", config.Service)
	return m
}

// Service is the service name used in keys and logs.
func (m *Manager) Service() string { return m.config.Service }

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	switch {
	case m.current == nil:
		return State{Status: Unauthenticated}
	case m.current.IsUser():
		return State{Status: UserAuthenticated, Token: m.current}
	default:
		return State{Status: ClientAuthenticated, Token: m.current}
	}
}

// Token returns the held token if it has not expired, or nil.
func (m *Manager) Token() *Token {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil || m.current.IsExpired() {
		return nil
	}
	return m.current
}

func (m *Manager) set(tok *Token) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = tok
}

func (m *Manager) context(ctx context.Context) context.Context {
	if m.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
}

// AuthCodeURL is the consent page the user must visit to start an authorization-code grant.
func (m *Manager) AuthCodeURL(state string) string {
	return m.config.oauth2().AuthCodeURL(state)
}

// LoadPersisted reads the stored token without checking expiry. It returns (nil, nil) when nothing is stored.
func (m *Manager) LoadPersisted() (*Token, error) {
	var tok Token
	ok, err := m.store.Load(TokenKey(m.config.Service), &tok)
	if err != nil {
		return nil, fmt.Errorf("loading %s token: %w", m.config.Service, err)
	}
	if !ok {
		return nil, nil
	}

	m.set(&tok)
	m.logger.Debug("loaded persisted token", "token", tok.ID(), "user", tok.IsUser(), "expired", tok.IsExpired())
	return &tok, nil
}

// AcquireClientToken performs a client-credentials grant. App-level tokens are held in memory only.
func (m *Manager) AcquireClientToken(ctx context.Context) (*Token, error) {
	issued := now()
	t, err := m.config.clientCredentials().Token(m.context(ctx))
	if err != nil {
		return nil, classify(err)
	}

	tok := fromOAuth2(t, issued)
	tok.RefreshToken = ""
	m.set(tok)
	m.logger.Info("acquired client token", "token", tok.ID())
	return tok, nil
}

// Refresh trades tok's refresh token for a new access token and persists the result.
// The previous refresh token is kept when the response does not rotate it.
func (m *Manager) Refresh(ctx context.Context, tok *Token) (*Token, error) {
	if tok == nil || tok.RefreshToken == "" {
		return nil, &Error{Kind: MissingRefreshToken}
	}

	issued := now()
	src := m.config.oauth2().TokenSource(m.context(ctx), &oauth2.Token{RefreshToken: tok.RefreshToken})
	t, err := src.Token()
	if err != nil {
		return nil, classify(err)
	}

	refreshed := fromOAuth2(t, issued)
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = tok.RefreshToken
	}
	if refreshed.Scope == "" {
		refreshed.Scope = tok.Scope
	}

	m.persist(refreshed)
	m.logger.Info("refreshed token", "token", refreshed.ID())
	return refreshed, nil
}

// ExchangeAuthorizationCode reads the code query parameter of the redirect the service sent the user to and exchanges it for
// a user token.
func (m *Manager) ExchangeAuthorizationCode(ctx context.Context, redirectURL string) (*Token, error) {
	u, err := url.Parse(redirectURL)
	if err != nil {
		return nil, &Error{Kind: MissingCode, Err: err}
	}

	q := u.Query()
	code := q.Get("code")
	if code == "" {
		if reason := q.Get("error"); reason != "" {
			return nil, &Error{Kind: MissingCode, Err: fmt.Errorf("authorization denied: %s", reason)}
		}
		return nil, &Error{Kind: MissingCode}
	}

	issued := now()
	t, err := m.config.oauth2().Exchange(m.context(ctx), code)
	if err != nil {
		return nil, classify(err)
	}

	tok := fromOAuth2(t, issued)
	m.persist(tok)
	m.logger.Info("exchanged authorization code", "token", tok.ID(), "user", tok.IsUser())
	return tok, nil
}

func (m *Manager) persist(tok *Token) {
	m.set(tok)
	if err := m.store.Save(TokenKey(m.config.Service), tok); err != nil {
		m.logger.Warn("failed to persist token", "error", err)
	}
}

// Logout forgets the token and cached profile. The session is Unauthenticated afterwards; acquiring a new client token is
// the caller's job.
func (m *Manager) Logout() error {
	m.set(nil)

	var errs []error
	for _, key := range []string{TokenKey(m.config.Service), ProfileKey(m.config.Service)} {
		if err := m.store.Delete(key); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("logout %s: %w", m.config.Service, err)
	}

	m.logger.Info("logged out")
	return nil
}

// SaveProfile caches the user's profile next to the token.
func (m *Manager) SaveProfile(p models.UserProfile) error {
	return m.store.Save(ProfileKey(m.config.Service), p)
}

// LoadProfile returns the cached profile or nil.
func (m *Manager) LoadProfile() (*models.UserProfile, error) {
	var p models.UserProfile
	ok, err := m.store.Load(ProfileKey(m.config.Service), &p)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}
