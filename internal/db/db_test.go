package db

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/go-spotify-cluster-analyzer/internal/features"
)

// openTestDB connects to TEST_DATABASE_URL or skips the test.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	d, err := New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(d.Close)
	require.NoError(t, d.Migrate(ctx))
	return d
}

func TestRoundTrip(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	playlistID := "test-" + uuid.NewString()

	p := &Playlist{ID: playlistID, Name: "Integration", Owner: "tester"}
	require.NoError(t, d.Playlists().Upsert(ctx, p))
	assert.False(t, p.SyncedAt.IsZero())

	trackA := "ta-" + uuid.NewString()
	trackB := "tb-" + uuid.NewString()
	tracks := []features.Track{
		{ID: trackA, Name: "A", Energy: features.Value(0.8)},
		{ID: trackB, Name: "B"},
		{ID: trackA, Name: "A"},
	}
	require.NoError(t, d.Tracks().ReplaceForPlaylist(ctx, playlistID, tracks))

	got, err := d.Tracks().GetForPlaylist(ctx, playlistID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{trackA, trackB, trackA}, features.IDs(got))
	require.NotNil(t, got[0].Energy)
	assert.Equal(t, 0.8, *got[0].Energy)
	assert.Nil(t, got[1].Energy)

	got[1].Set(features.Energy, 0.3)
	got[1].Imputed = true
	require.NoError(t, d.Tracks().UpdateFeatures(ctx, got[1:2]))

	got, err = d.Tracks().GetForPlaylist(ctx, playlistID)
	require.NoError(t, err)
	assert.True(t, got[1].Imputed)
	assert.Equal(t, 0.3, *got[1].Energy)

	result, _ := json.Marshal(map[string]any{"clusters": []any{}})
	a := &Analysis{PlaylistID: playlistID, Algorithm: "kmeans", ClusterCount: 2, Silhouette: 0.4, Result: result}
	require.NoError(t, d.Analyses().Create(ctx, a))
	assert.NotEqual(t, uuid.Nil, a.ID)

	latest, err := d.Analyses().LatestForPlaylist(ctx, playlistID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, latest.ID)
	assert.JSONEq(t, string(result), string(latest.Result))

	_, err = d.Analyses().Get(ctx, uuid.New())
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = d.Playlists().Get(ctx, "missing-"+uuid.NewString())
	assert.True(t, errors.Is(err, ErrNotFound))
}
