package spotify

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"

	"github.com/justestif/go-spotify-cluster-analyzer/internal/features"
)

// FetchAudioFeatures looks up audio features for every track missing at least
// one descriptor and fills only the missing ones in place; measured values
// already present are never overwritten. Requests are batched 100 ids at a
// time. Returns the number of descriptor values filled.
func (c *Client) FetchAudioFeatures(ctx context.Context, tracks []features.Track) (int, error) {
	// Build ID slice and index map for fast lookup
	var ids []spotify.ID
	indexByID := make(map[string][]int)
	for i := range tracks {
		if tracks[i].Missing() == 0 {
			continue
		}
		if _, seen := indexByID[tracks[i].ID]; !seen {
			ids = append(ids, spotify.ID(tracks[i].ID))
		}
		indexByID[tracks[i].ID] = append(indexByID[tracks[i].ID], i)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	total := len(ids)
	filled := 0
	for i := 0; i < total; i += maxTracksPerRequest {
		end := min(i+maxTracksPerRequest, total)

		c.log.Debugw("fetching audio features", "from", i+1, "to", end, "total", total)

		batch, err := c.api.GetAudioFeatures(ctx, ids[i:end]...)
		if err != nil {
			return filled, errors.Wrapf(err, "fetching audio features (batch %d-%d)", i+1, end)
		}

		for _, f := range batch {
			if f == nil {
				continue // Track has no audio features
			}
			for _, idx := range indexByID[f.ID.String()] {
				filled += applyAudioFeatures(&tracks[idx], f)
			}
		}
	}

	c.log.Infow("fetched audio features", "requested", total, "values_filled", filled)
	return filled, nil
}

// applyAudioFeatures copies feature values the track is missing and returns
// how many it set.
func applyAudioFeatures(t *features.Track, f *spotify.AudioFeatures) int {
	values := [features.NumDescriptors]float64{
		features.Danceability:     float64(f.Danceability),
		features.Energy:           float64(f.Energy),
		features.Key:              float64(f.Key),
		features.Loudness:         float64(f.Loudness),
		features.Mode:             float64(f.Mode),
		features.Speechiness:      float64(f.Speechiness),
		features.Acousticness:     float64(f.Acousticness),
		features.Instrumentalness: float64(f.Instrumentalness),
		features.Liveness:         float64(f.Liveness),
		features.Valence:          float64(f.Valence),
		features.Tempo:            float64(f.Tempo),
	}

	n := 0
	for _, d := range features.All() {
		if !t.Has(d) {
			t.Set(d, values[d])
			n++
		}
	}
	return n
}
