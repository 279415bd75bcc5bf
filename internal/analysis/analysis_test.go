package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/go-spotify-cluster-analyzer/internal/clustering"
	"github.com/justestif/go-spotify-cluster-analyzer/internal/features"
)

// moodTrack builds a fully described track whose descriptors all follow level
// (0..1), nudged by jitter.
func moodTrack(id string, level, jitter float64) features.Track {
	v := level + jitter
	return features.Track{
		ID:               id,
		Name:             "Song " + id,
		Artist:           "Artist",
		Danceability:     features.Value(v),
		Energy:           features.Value(v),
		Key:              features.Value(math.Round(level * 11)),
		Loudness:         features.Value(-30 + 25*v),
		Mode:             features.Value(1),
		Speechiness:      features.Value(v / 2),
		Acousticness:     features.Value(1 - v),
		Instrumentalness: features.Value(v / 3),
		Liveness:         features.Value(v / 4),
		Valence:          features.Value(v),
		Tempo:            features.Value(80 + 80*v),
	}
}

// moodGroups returns size tracks at each level, ids prefixed by group index.
func moodGroups(size int, levels ...float64) []features.Track {
	var tracks []features.Track
	for g, level := range levels {
		for i := 0; i < size; i++ {
			jitter := float64(i%5-2) / 200
			tracks = append(tracks, moodTrack(fmt.Sprintf("g%d-%02d", g, i), level, jitter))
		}
	}
	return tracks
}

func newTestEngine() *Engine {
	return NewEngine(features.DefaultTable(), clustering.DefaultConfig(), nil)
}

func TestAnalyzeCoversEveryTrack(t *testing.T) {
	for _, alg := range clustering.Algorithms {
		t.Run(string(alg), func(t *testing.T) {
			tracks := moodGroups(10, 0.1, 0.5, 0.9)

			res, err := newTestEngine().Analyze(tracks, Options{Algorithm: alg})
			require.NoError(t, err)

			seen := make(map[string]int)
			total := 0
			for _, c := range res.Clusters {
				total += c.TrackCount
				assert.Len(t, c.TrackIDs, c.TrackCount)
				assert.NotEmpty(t, c.Label)
				for _, id := range c.TrackIDs {
					seen[id]++
				}
			}
			assert.Equal(t, len(tracks), total)
			for _, tr := range tracks {
				assert.Equal(t, 1, seen[tr.ID], "track %s", tr.ID)
			}

			for i := 1; i < len(res.Clusters); i++ {
				assert.GreaterOrEqual(t, res.Clusters[i-1].TrackCount, res.Clusters[i].TrackCount)
			}

			require.Len(t, res.PCACoordinates, len(tracks))
			for i, p := range res.PCACoordinates {
				assert.Equal(t, tracks[i].ID, p.TrackID)
			}
			assert.GreaterOrEqual(t, res.SilhouetteScore, -1.0)
			assert.LessOrEqual(t, res.SilhouetteScore, 1.0)
		})
	}
}

func TestAnalyzeKMeansFindsMoodGroups(t *testing.T) {
	tracks := moodGroups(10, 0.1, 0.5, 0.9)

	res, err := newTestEngine().Analyze(tracks, Options{})
	require.NoError(t, err)

	require.Len(t, res.Clusters, 3)
	for _, c := range res.Clusters {
		assert.Equal(t, 10, c.TrackCount)
		prefix := c.TrackIDs[0][:2]
		for _, id := range c.TrackIDs {
			assert.Equal(t, prefix, id[:2], "cluster %d mixes groups", c.ID)
		}
	}
	assert.Equal(t, clustering.KMeans, res.Metadata.Algorithm.Algorithm)
	assert.Equal(t, 3, res.Metadata.QualityMetrics.NClusters)
	assert.NotEmpty(t, res.Metadata.Algorithm.Selection)
	assert.Greater(t, res.SilhouetteScore, 0.5)

	labels := make(map[string]bool)
	for _, c := range res.Clusters {
		assert.False(t, labels[c.Label], "duplicate label %q", c.Label)
		labels[c.Label] = true
	}
}

func TestAnalyzeCentroidInNativeUnits(t *testing.T) {
	tracks := moodGroups(5, 0.2, 0.8)

	res, err := newTestEngine().Analyze(tracks, Options{Clusters: 2})
	require.NoError(t, err)

	require.Len(t, res.Clusters, 2)
	for _, c := range res.Clusters {
		tempo := c.Centroid["tempo"]
		assert.True(t, tempo > 80 && tempo < 160, "tempo centroid %v not in BPM", tempo)
		loud := c.Centroid["loudness"]
		assert.True(t, loud < 0 && loud > -30, "loudness centroid %v not in dB", loud)
	}
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	for _, alg := range clustering.Algorithms {
		t.Run(string(alg), func(t *testing.T) {
			first, err := newTestEngine().Analyze(moodGroups(8, 0.15, 0.55, 0.85), Options{Algorithm: alg})
			require.NoError(t, err)
			second, err := newTestEngine().Analyze(moodGroups(8, 0.15, 0.55, 0.85), Options{Algorithm: alg})
			require.NoError(t, err)

			if diff := cmp.Diff(first, second); diff != "" {
				t.Errorf("results differ between runs (-first +second):\n%s", diff)
			}

			a, err := json.Marshal(first)
			require.NoError(t, err)
			b, err := json.Marshal(second)
			require.NoError(t, err)
			assert.Equal(t, string(a), string(b))
		})
	}
}

func TestAnalyzeThreeTrackScenario(t *testing.T) {
	high := moodTrack("high", 0.9, 0)
	low := moodTrack("low", 0.1, 0)
	tracks := []features.Track{high, low, {ID: "blank"}}

	res, err := newTestEngine().Analyze(tracks, Options{Clusters: 2})
	require.NoError(t, err)

	blank := tracks[2]
	assert.True(t, blank.Imputed)
	for _, d := range features.All() {
		hv, _ := high.Get(d)
		lv, _ := low.Get(d)
		bv, ok := blank.Get(d)
		require.True(t, ok, "%s still missing", d)
		if hv == lv {
			continue
		}
		assert.True(t, bv > min(hv, lv) && bv < max(hv, lv), "%s = %v, not between %v and %v", d, bv, lv, hv)
	}

	clusterOf := make(map[string]int)
	for _, c := range res.Clusters {
		for _, id := range c.TrackIDs {
			clusterOf[id] = c.ID
		}
	}
	assert.NotEqual(t, clusterOf["high"], clusterOf["low"])
	assert.Equal(t, 1, res.Metadata.Imputation.Tracks)
}

func TestAnalyzeDBSCANTwoGroups(t *testing.T) {
	tracks := moodGroups(10, 0.1, 0.9)

	res, err := newTestEngine().Analyze(tracks, Options{Algorithm: clustering.DBSCAN})
	require.NoError(t, err)

	assert.Equal(t, clustering.Success, res.Metadata.Outcome.Kind)
	require.Len(t, res.Clusters, 2)
	assert.Equal(t, 10, res.Clusters[0].TrackCount)
	assert.Equal(t, 0, res.Metadata.QualityMetrics.NoisePoints)
}

func TestAnalyzePassesQualityThrough(t *testing.T) {
	tracks := moodGroups(4, 0.2, 0.8)
	tracks[0].Energy = nil
	input := features.QualityReport{TotalTracks: 99, Tier: features.TierPoor}

	res, err := newTestEngine().Analyze(tracks, Options{Quality: &input})
	require.NoError(t, err)

	require.NotNil(t, res.Metadata.InputQuality)
	assert.Equal(t, 99, res.Metadata.InputQuality.TotalTracks)
	assert.Equal(t, 8, res.QualityReport.TotalTracks)
	assert.Equal(t, 7, res.QualityReport.Features["energy"].Present)
	assert.Len(t, res.Metadata.FeatureWeights, features.NumDescriptors)
}

func TestAnalyzeRejectsInput(t *testing.T) {
	tests := []struct {
		name    string
		tracks  []features.Track
		opts    Options
		wantErr error
	}{
		{"no tracks", nil, Options{}, ErrTooFewTracks},
		{"one track", moodGroups(1, 0.5), Options{}, ErrTooFewTracks},
		{"unknown algorithm", moodGroups(3, 0.2, 0.8), Options{Algorithm: "birch"}, clustering.ErrUnsupportedAlgorithm},
		{"too many clusters", moodGroups(2, 0.2, 0.8), Options{Clusters: 5}, clustering.ErrInvalidClusterCount},
		{"one cluster", moodGroups(2, 0.2, 0.8), Options{Clusters: 1}, clustering.ErrInvalidClusterCount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := newTestEngine().Analyze(tt.tracks, tt.opts)
			assert.Nil(t, res)
			assert.True(t, errors.Is(err, tt.wantErr), "err = %v", err)
		})
	}
}
