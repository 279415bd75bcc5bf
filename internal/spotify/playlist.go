package spotify

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"

	"github.com/justestif/go-spotify-cluster-analyzer/internal/features"
)

// FetchPlaylist returns a playlist's metadata.
func (c *Client) FetchPlaylist(ctx context.Context, playlistID string) (Playlist, error) {
	p, err := c.api.GetPlaylist(ctx, spotify.ID(playlistID))
	if err != nil {
		return Playlist{}, errors.Wrapf(err, "fetching playlist %s", playlistID)
	}
	owner := p.Owner.DisplayName
	if owner == "" {
		owner = p.Owner.ID
	}
	return Playlist{
		ID:         p.ID.String(),
		Name:       p.Name,
		Owner:      owner,
		SnapshotID: p.SnapshotID,
	}, nil
}

// FetchPlaylistTracks pages through a playlist's items and returns its music
// tracks in playlist order. Episodes, local files and removed tracks are
// skipped. Returned tracks carry no audio descriptors yet.
func (c *Client) FetchPlaylistTracks(ctx context.Context, playlistID string) ([]features.Track, error) {
	var tracks []features.Track
	skipped := 0

	page, err := c.api.GetPlaylistItems(ctx, spotify.ID(playlistID), spotify.Limit(maxTracksPerRequest))
	if err != nil {
		return nil, errors.Wrapf(err, "fetching playlist %s items", playlistID)
	}

	for {
		for _, item := range page.Items {
			if item.IsLocal || item.Track.Track == nil || item.Track.Track.ID == "" {
				skipped++
				continue
			}
			tracks = append(tracks, convertTrack(item.Track.Track))
		}

		c.log.Debugw("fetched playlist page", "playlist", playlistID, "tracks", len(tracks))

		err = c.api.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "fetching next page")
		}
	}

	c.log.Infow("fetched playlist tracks", "playlist", playlistID, "tracks", len(tracks), "skipped", skipped)
	return tracks, nil
}

// convertTrack converts a Spotify FullTrack to features.Track.
func convertTrack(t *spotify.FullTrack) features.Track {
	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}

	duration := int(t.Duration)
	popularity := int(t.Popularity)

	return features.Track{
		ID:         t.ID.String(),
		Name:       t.Name,
		Artist:     strings.Join(artists, ", "),
		DurationMs: &duration,
		Popularity: &popularity,
	}
}
