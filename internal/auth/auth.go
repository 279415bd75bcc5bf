// Package auth obtains app access tokens for the Spotify Web API with the
// client-credentials flow and caches them on disk.
package auth

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ErrMissingCredentials is returned when the client id or secret is empty.
var ErrMissingCredentials = errors.New("missing Spotify client id or secret")

// Authenticator issues Spotify clients backed by an app token.
type Authenticator struct {
	cfg   clientcredentials.Config
	cache *TokenCache
	log   *zap.SugaredLogger
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithTokenURL overrides the token endpoint.
func WithTokenURL(url string) Option {
	return func(a *Authenticator) { a.cfg.TokenURL = url }
}

// WithLogger sets the logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(a *Authenticator) { a.log = log }
}

// New creates an Authenticator. cache may be nil to disable token caching.
func New(clientID, clientSecret string, cache *TokenCache, opts ...Option) (*Authenticator, error) {
	if clientID == "" || clientSecret == "" {
		return nil, errors.WithHint(ErrMissingCredentials, "set SPOTIFY_ID and SPOTIFY_SECRET environment variables")
	}
	a := &Authenticator{
		cfg: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     spotifyauth.TokenURL,
		},
		cache: cache,
		log:   zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// TokenSource returns a token source that starts from the cached token when
// it is still valid and writes every newly fetched token back to the cache.
func (a *Authenticator) TokenSource(ctx context.Context) oauth2.TokenSource {
	var cached *oauth2.Token
	if a.cache != nil {
		tok, err := a.cache.Load()
		if err != nil {
			a.log.Warnw("ignoring unreadable token cache", "path", a.cache.Path(), "error", err)
		} else if tok.Valid() {
			cached = tok
		}
	}

	src := &cachingSource{
		base:  a.cfg.TokenSource(ctx),
		cache: a.cache,
		last:  cached,
		log:   a.log,
	}
	return oauth2.ReuseTokenSource(cached, src)
}

// Client returns an authenticated Spotify client.
func (a *Authenticator) Client(ctx context.Context) (*spotify.Client, error) {
	src := a.TokenSource(ctx)
	// Fetch eagerly so bad credentials surface here instead of on first use.
	if _, err := src.Token(); err != nil {
		return nil, errors.Wrap(err, "requesting app token")
	}
	return spotify.New(oauth2.NewClient(ctx, src), spotify.WithRetry(true)), nil
}

// cachingSource fetches tokens from base and saves each new one.
type cachingSource struct {
	base  oauth2.TokenSource
	cache *TokenCache
	log   *zap.SugaredLogger

	mu   sync.Mutex
	last *oauth2.Token
}

func (s *cachingSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	if s.cache != nil && (s.last == nil || s.last.AccessToken != tok.AccessToken) {
		if err := s.cache.Save(tok); err != nil {
			// Log but don't fail - the token itself is usable.
			s.log.Warnw("failed to cache token", "path", s.cache.Path(), "error", err)
		}
	}
	s.last = tok
	return tok, nil
}
