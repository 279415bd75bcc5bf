// Package config loads runtime settings from defaults, an optional TOML file
// and the environment.
package config

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

// DefaultAddr is the default server address.
// Uses 127.0.0.1 to match the Spotify loopback convention.
const DefaultAddr = "127.0.0.1:8080"

var (
	// ErrMissingCredentials is returned when the Spotify client id or secret is not set.
	ErrMissingCredentials = errors.New("missing Spotify client credentials")

	// ErrMissingDatabaseURL is returned when no database URL is configured.
	ErrMissingDatabaseURL = errors.New("missing database URL")
)

// Config holds every runtime setting.
type Config struct {
	Addr        string         `mapstructure:"addr"`
	DatabaseURL string         `mapstructure:"database_url"`
	TokenCache  string         `mapstructure:"token_cache"`
	Spotify     SpotifyConfig  `mapstructure:"spotify"`
	Log         LogConfig      `mapstructure:"log"`
	Analysis    AnalysisConfig `mapstructure:"analysis"`
}

// SpotifyConfig holds app credentials for the client-credentials flow.
type SpotifyConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

// LogConfig selects the log encoder and level.
type LogConfig struct {
	JSON  bool   `mapstructure:"json"`
	Level string `mapstructure:"level"`
}

// AnalysisConfig holds analysis defaults.
type AnalysisConfig struct {
	Algorithm    string        `mapstructure:"algorithm"`     // used when a request names none
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"` // bound on catalog lookups before analysis
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("addr", DefaultAddr)
	v.SetDefault("database_url", "")
	v.SetDefault("token_cache", "")
	v.SetDefault("spotify.client_id", "")
	v.SetDefault("spotify.client_secret", "")
	v.SetDefault("log.json", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("analysis.algorithm", "kmeans")
	v.SetDefault("analysis.fetch_timeout", 30*time.Second)
}

// New returns a viper instance wired to defaults and the environment.
// Variables use the ANALYZER_ prefix with dots replaced by underscores
// (ANALYZER_LOG_LEVEL). SPOTIFY_ID, SPOTIFY_SECRET and DATABASE_URL are
// also honoured.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("ANALYZER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("spotify.client_id", "ANALYZER_SPOTIFY_CLIENT_ID", "SPOTIFY_ID")
	_ = v.BindEnv("spotify.client_secret", "ANALYZER_SPOTIFY_CLIENT_SECRET", "SPOTIFY_SECRET")
	_ = v.BindEnv("database_url", "ANALYZER_DATABASE_URL", "DATABASE_URL")

	SetDefaults(v)
	return v
}

// Load reads configuration. path names a TOML file; when empty,
// analyzer.toml is looked up in the working directory and skipped if absent.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading config file %s", path)
		}
	} else {
		v.SetConfigName("analyzer")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.Wrap(err, "reading analyzer.toml")
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	return &cfg, nil
}

// RequireSpotify returns ErrMissingCredentials unless both credentials are set.
func (c *Config) RequireSpotify() error {
	if c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "" {
		return errors.WithHint(ErrMissingCredentials, "set SPOTIFY_ID and SPOTIFY_SECRET environment variables")
	}
	return nil
}

// RequireDatabase returns ErrMissingDatabaseURL unless a database URL is set.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return errors.WithHint(ErrMissingDatabaseURL, "set DATABASE_URL or database_url in analyzer.toml")
	}
	return nil
}
