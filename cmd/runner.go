package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jmoiron/sqlx"
	"github.com/urfave/cli/v3"

	"github.com/escofresco/transfer/internal/auth"
	"github.com/escofresco/transfer/internal/catalog"
	"github.com/escofresco/transfer/internal/secrets"
	"github.com/escofresco/transfer/internal/session"
	"github.com/escofresco/transfer/internal/shared"
)

// ClientFactory builds the catalog client of a service.
type ClientFactory func(config *shared.Config, service string, tokens catalog.TokenSource) (catalog.Client, error)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The config, database and secret store are resolved on first use so commands that need none of them stay cheap.
type Runner struct {
	config     *shared.Config
	db         *sqlx.DB
	store      secrets.Store
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	openURL    func(string) error
	newClient  ClientFactory
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	DB         *sqlx.DB
	Store      secrets.Store
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	OpenURL    func(string) error
	NewClient  ClientFactory
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.OpenURL == nil {
		opts.OpenURL = shared.OpenBrowser
	}
	if opts.NewClient == nil {
		opts.NewClient = defaultClient(opts.HTTPClient, opts.Logger)
	}

	return &Runner{
		config:     opts.Config,
		db:         opts.DB,
		store:      opts.Store,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		openURL:    opts.OpenURL,
		newClient:  opts.NewClient,
	}
}

func defaultClient(httpClient *http.Client, logger *log.Logger) ClientFactory {
	return func(config *shared.Config, service string, tokens catalog.TokenSource) (catalog.Client, error) {
		opts := []catalog.Option{catalog.WithHTTPClient(httpClient), catalog.WithLogger(logger)}
		switch service {
		case auth.Spotify:
			return catalog.NewSpotifyClient(tokens, opts...), nil
		case auth.AppleMusic:
			am := config.Credentials.AppleMusic
			return catalog.NewAppleMusicClient(tokens, am.DeveloperToken, am.Storefront, opts...), nil
		default:
			return nil, unknownService(service)
		}
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, playlistsCommand, transferCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before applies global flags.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}
	return ctx, nil
}

// Close releases the database if the runner opened one.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// loadConfig reads and validates the config file named by --config.
func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	if r.config != nil {
		return r.config, nil
	}

	path := cmd.String("config")
	config, err := shared.LoadConfig(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s (run 'transfer setup' first)", shared.ErrMissingConfig, path)
		}
		return nil, err
	}
	if err := config.ResolveDeveloperToken(time.Now()); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	r.config = config
	return config, nil
}

func (r *Runner) database(cmd *cli.Command) (*sqlx.DB, error) {
	if r.db != nil {
		return r.db, nil
	}
	config, err := r.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		return nil, err
	}
	r.db = db
	return db, nil
}

func (r *Runner) secrets(cmd *cli.Command) (secrets.Store, error) {
	if r.store != nil {
		return r.store, nil
	}
	db, err := r.database(cmd)
	if err != nil {
		return nil, err
	}
	r.store = secrets.NewSQLStore(db)
	return r.store, nil
}

func unknownService(service string) error {
	return fmt.Errorf("%w: unknown service %q (want %s or %s)", shared.ErrInvalidArgument, service, auth.Spotify, auth.AppleMusic)
}

// manager builds the token manager of a service.
func (r *Runner) manager(cmd *cli.Command, service string) (*auth.Manager, error) {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	var ac auth.Config
	switch service {
	case auth.Spotify:
		ac = auth.SpotifyConfig(config.Credentials.Spotify)
	case auth.AppleMusic:
		ac = auth.AppleMusicConfig(config.Credentials.AppleMusic)
	default:
		return nil, unknownService(service)
	}

	store, err := r.secrets(cmd)
	if err != nil {
		return nil, err
	}
	return auth.NewManager(ac, store, auth.WithHTTPClient(r.httpClient), auth.WithLogger(r.logger)), nil
}

// controller builds the session of a service without contacting it.
func (r *Runner) controller(cmd *cli.Command, service string) (*session.Controller, *auth.Manager, error) {
	mgr, err := r.manager(cmd, service)
	if err != nil {
		return nil, nil, err
	}
	client, err := r.newClient(r.config, service, mgr)
	if err != nil {
		return nil, nil, err
	}
	return session.NewController(mgr, client, r.logger), mgr, nil
}

// session builds and sets up the session of a service.
func (r *Runner) session(ctx context.Context, cmd *cli.Command, service string) (*session.Controller, error) {
	ctrl, _, err := r.controller(cmd, service)
	if err != nil {
		return nil, err
	}
	if err := ctrl.Setup(ctx); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrServiceUnavailable, service, err)
	}
	return ctrl, nil
}

// userSession is [Runner.session] for commands that need a logged-in user.
func (r *Runner) userSession(ctx context.Context, cmd *cli.Command, service string) (*session.Controller, error) {
	ctrl, err := r.session(ctx, cmd, service)
	if err != nil {
		return nil, err
	}
	if ctrl.State().Status != auth.UserAuthenticated {
		return nil, fmt.Errorf("%w: %s (run 'transfer auth login --service %s')", shared.ErrNotAuthenticated, service, service)
	}
	return ctrl, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
