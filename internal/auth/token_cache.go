package auth

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"golang.org/x/oauth2"
)

const (
	configDirName = "spotify-cluster-analyzer"
	tokenFileName = "app-token.json"
)

// TokenCache keeps the app access token on disk between runs so a restart
// does not request a new one while the old one is still valid.
type TokenCache struct {
	path string
}

// DefaultTokenCache returns a TokenCache at
// ~/.config/spotify-cluster-analyzer/app-token.json
func DefaultTokenCache() (*TokenCache, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, errors.Wrap(err, "getting user config dir")
	}
	return &TokenCache{path: filepath.Join(configDir, configDirName, tokenFileName)}, nil
}

// NewTokenCache creates a TokenCache with a custom path.
func NewTokenCache(path string) *TokenCache {
	return &TokenCache{path: path}
}

// Path returns the file path where tokens are stored.
func (c *TokenCache) Path() string {
	return c.path
}

// Load reads the cached token. Returns (nil, nil) if there is none.
func (c *TokenCache) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "reading token file")
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, errors.Wrap(err, "parsing token file")
	}
	return &token, nil
}

// Save writes the token with owner-only permissions, creating the parent
// directory if needed.
func (c *TokenCache) Save(token *oauth2.Token) error {
	if token == nil {
		return errors.New("cannot save nil token")
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0700); err != nil {
		return errors.Wrap(err, "creating config directory")
	}

	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding token")
	}
	if err := os.WriteFile(c.path, data, 0600); err != nil {
		return errors.Wrap(err, "writing token file")
	}
	return nil
}

// Delete removes the cached token. A missing file is not an error.
func (c *TokenCache) Delete() error {
	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "removing token file")
	}
	return nil
}
