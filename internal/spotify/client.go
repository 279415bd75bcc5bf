// Package spotify reads playlists and audio features from the Spotify Web API.
package spotify

import (
	"github.com/zmb3/spotify/v2"
	"go.uber.org/zap"
)

// maxTracksPerRequest is the Spotify limit for batch lookups and playlist pages.
const maxTracksPerRequest = 100

// Client wraps the Spotify API client with the lookups the analyzer needs.
type Client struct {
	api *spotify.Client
	log *zap.SugaredLogger
}

// New creates a new Spotify client wrapper.
// The underlying client should already be authenticated. A nil logger
// disables logging.
func New(api *spotify.Client, log *zap.SugaredLogger) *Client {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Client{api: api, log: log}
}
