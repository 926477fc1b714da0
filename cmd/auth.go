package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/escofresco/transfer/internal/auth"
	"github.com/escofresco/transfer/internal/formatter"
	"github.com/escofresco/transfer/internal/server"
	"github.com/escofresco/transfer/internal/shared"
)

// AuthLogin runs the authorization-code flow for a service through the local callback server.
//
// The session is not set up first, so logging in never needs an app-level token.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	service := cmd.String("service")

	ctrl, mgr, err := r.controller(cmd, service)
	if err != nil {
		return err
	}

	state := shared.GenerateID()
	srv := server.NewCallbackServer(r.config.Server.Addr(), state, r.logger)
	if err := srv.Start(); err != nil {
		return err
	}
	defer srv.Shutdown(context.Background())

	authURL := mgr.AuthCodeURL(state)
	r.writePlain("Open this URL to authorize %s:\n\n  %s\n\n", service, authURL)
	if !cmd.Bool("no-browser") {
		if err := r.openURL(authURL); err != nil {
			r.logger.Warn("could not open browser", "error", err)
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
	defer cancel()

	redirect, err := srv.Wait(waitCtx)
	if err != nil {
		return err
	}

	if err := ctrl.Login(ctx, redirect); err != nil {
		return fmt.Errorf("%w: %s: %v", shared.ErrAuthFailed, service, err)
	}

	st := ctrl.State()
	if st.Status != auth.UserAuthenticated {
		return fmt.Errorf("%w: %s: user data unavailable", shared.ErrAuthFailed, service)
	}

	name := service
	if st.Profile != nil && st.Profile.DisplayName != "" {
		name = st.Profile.DisplayName
	}
	r.writePlain("%s Logged in to %s as %s (%d playlists)\n", formatter.Styles.OK.Render("✓"), service, name, len(st.Playlists))
	return nil
}

// AuthLogout removes the stored token and profile of a service.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	service := cmd.String("service")

	mgr, err := r.manager(cmd, service)
	if err != nil {
		return err
	}
	if err := mgr.Logout(); err != nil {
		return err
	}

	r.writePlain("%s Logged out of %s\n", formatter.Styles.OK.Render("✓"), service)
	return nil
}

// AuthStatus reports the persisted authentication state without contacting the services.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	services := []string{auth.Spotify, auth.AppleMusic}
	if s := cmd.String("service"); s != "" {
		services = []string{s}
	}

	for _, service := range services {
		mgr, err := r.manager(cmd, service)
		if err != nil {
			return err
		}

		tok, err := mgr.LoadPersisted()
		if err != nil {
			return err
		}

		switch {
		case tok == nil:
			r.writePlain("%s: %s\n", service, formatter.Styles.Err.Render("not logged in"))
			continue
		case !tok.IsUser():
			r.writePlain("%s: %s\n", service, formatter.Styles.Warn.Render(mgr.State().Status.String()))
			continue
		}

		expiry := "expires " + tok.ExpiresAt().Local().Format(time.DateTime)
		if tok.IsExpired() {
			expiry = "expired, refreshes on next use"
		}

		who := ""
		if profile, err := mgr.LoadProfile(); err == nil && profile != nil {
			who = " as " + profile.DisplayName
		}
		r.writePlain("%s: %s%s (token %s, %s)\n", service, formatter.Styles.OK.Render("logged in"), who, tok.ID(), expiry)
	}
	return nil
}
