package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

const (
	DefaultConcurrency = 4
	MaxConcurrency     = 8
	DefaultRateLimit   = 10.0
	developerTokenTTL  = 12 * time.Hour
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Transfer    TransferConfig    `toml:"transfer"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify    SpotifyConfig    `toml:"spotify"`
	AppleMusic AppleMusicConfig `toml:"apple_music"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
}

// AppleMusicConfig contains Apple Music API credentials.
//
// DeveloperToken authorizes every request; the user's library token is obtained through the
// authorization endpoints and sent separately.
type AppleMusicConfig struct {
	ClientID       string `toml:"client_id"`
	ClientSecret   string `toml:"client_secret"`
	RedirectURI    string `toml:"redirect_uri"`
	AuthURL        string `toml:"auth_url"`
	TokenURL       string `toml:"token_url"`
	Storefront     string `toml:"storefront"`
	DeveloperToken string `toml:"developer_token"`
	TeamID         string `toml:"team_id"`
	KeyID          string `toml:"key_id"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains settings for the local OAuth callback listener.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns the host:port pair the callback listener binds to.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// TransferConfig tunes the transfer engine.
type TransferConfig struct {
	Concurrency int     `toml:"concurrency"`
	RateLimit   float64 `toml:"rate_limit"` // searches per second
}

// Workers returns the configured matching concurrency clamped to [1, MaxConcurrency].
func (t TransferConfig) Workers() int {
	switch {
	case t.Concurrency <= 0:
		return DefaultConcurrency
	case t.Concurrency > MaxConcurrency:
		return MaxConcurrency
	default:
		return t.Concurrency
	}
}

// Limit returns the configured search rate, falling back to [DefaultRateLimit].
func (t TransferConfig) Limit() float64 {
	if t.RateLimit <= 0 {
		return DefaultRateLimit
	}
	return t.RateLimit
}

// Validate fails fast when any required credential is blank, naming every missing key.
func (c *Config) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"credentials.spotify.client_id", c.Credentials.Spotify.ClientID},
		{"credentials.spotify.client_secret", c.Credentials.Spotify.ClientSecret},
		{"credentials.spotify.redirect_uri", c.Credentials.Spotify.RedirectURI},
		{"credentials.apple_music.client_id", c.Credentials.AppleMusic.ClientID},
		{"credentials.apple_music.client_secret", c.Credentials.AppleMusic.ClientSecret},
		{"credentials.apple_music.redirect_uri", c.Credentials.AppleMusic.RedirectURI},
		{"credentials.apple_music.developer_token", c.Credentials.AppleMusic.DeveloperToken},
	}

	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.key)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidConfig, strings.Join(missing, ", "))
	}
	return nil
}

// ResolveDeveloperToken mints an Apple Music developer token from the configured signing key when none was provided.
func (c *Config) ResolveDeveloperToken(now time.Time) error {
	am := &c.Credentials.AppleMusic
	if am.DeveloperToken != "" || am.PrivateKeyPath == "" {
		return nil
	}

	key, err := os.ReadFile(am.PrivateKeyPath)
	if err != nil {
		return fmt.Errorf("failed to read apple music private key: %w", err)
	}

	token, err := MintDeveloperToken(am.TeamID, am.KeyID, key, now, developerTokenTTL)
	if err != nil {
		return err
	}
	am.DeveloperToken = token
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// SaveConfig writes the configuration back to path as TOML.
func SaveConfig(path string, config *Config) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
