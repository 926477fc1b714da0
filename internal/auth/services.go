package auth

import (
	spotifyauth "github.com/zmb3/spotify/v2/auth"

	"github.com/escofresco/transfer/internal/shared"
)

const (
	Spotify    = "spotify"
	AppleMusic = "apple_music"
)

// SpotifyScopes covers the profile, top tracks and playlist endpoints used by a transfer.
var SpotifyScopes = []string{
	spotifyauth.ScopeUserReadPrivate,
	spotifyauth.ScopeUserReadEmail,
	spotifyauth.ScopeUserTopRead,
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopePlaylistReadCollaborative,
	spotifyauth.ScopePlaylistModifyPublic,
	spotifyauth.ScopePlaylistModifyPrivate,
}

// SpotifyConfig builds the OAuth2 client for Spotify's accounts service.
func SpotifyConfig(c shared.SpotifyConfig) Config {
	return Config{
		Service:      Spotify,
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURI,
		AuthURL:      spotifyauth.AuthURL,
		TokenURL:     spotifyauth.TokenURL,
		Scopes:       SpotifyScopes,
	}
}

// AppleMusicConfig builds the OAuth2 client that yields the Music-User-Token for library access.
func AppleMusicConfig(c shared.AppleMusicConfig) Config {
	return Config{
		Service:      AppleMusic,
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURI,
		AuthURL:      c.AuthURL,
		TokenURL:     c.TokenURL,
	}
}
