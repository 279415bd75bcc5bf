package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/go-spotify-cluster-analyzer/internal/analysis"
	"github.com/justestif/go-spotify-cluster-analyzer/internal/config"
	"github.com/justestif/go-spotify-cluster-analyzer/internal/features"
)

func writeTrackFile(t *testing.T, dir string) string {
	t.Helper()
	var tracks []features.Track
	for i := 0; i < 8; i++ {
		level := 0.15
		if i%2 == 1 {
			level = 0.85
		}
		v := level + float64(i)/200
		tracks = append(tracks, features.Track{
			ID:               fmt.Sprintf("t%d", i),
			Name:             fmt.Sprintf("Song %d", i),
			Danceability:     features.Value(v),
			Energy:           features.Value(v),
			Key:              features.Value(2),
			Loudness:         features.Value(-25 + 20*v),
			Mode:             features.Value(1),
			Speechiness:      features.Value(0.05),
			Acousticness:     features.Value(1 - v),
			Instrumentalness: features.Value(0.1),
			Liveness:         features.Value(0.1),
			Valence:          features.Value(v),
			Tempo:            features.Value(80 + 80*v),
		})
	}
	data, err := json.Marshal(tracks)
	require.NoError(t, err)
	path := filepath.Join(dir, "tracks.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(&app{v: config.New()})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestAnalyzeFromFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	input := writeTrackFile(t, dir)
	plot := filepath.Join(dir, "clusters.png")
	html := filepath.Join(dir, "clusters.html")

	out, err := execute(t, "analyze", "--input", input, "--clusters", "2", "--json",
		"--plot", plot, "--chart", html, "--log-level", "error")
	require.NoError(t, err)

	var res analysis.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Len(t, res.Clusters, 2)
	assert.Len(t, res.PCACoordinates, 8)
	require.NotNil(t, res.Metadata.InputQuality)
	assert.Equal(t, 1.0, res.Metadata.InputQuality.OverallCompleteness)

	assert.FileExists(t, plot)
	assert.FileExists(t, html)
}

func TestAnalyzeSummary(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	input := writeTrackFile(t, dir)

	out, err := execute(t, "analyze", "-i", input, "-k", "2", "--log-level", "error")
	require.NoError(t, err)

	assert.Contains(t, out, "Song 0")
}

func TestAnalyzeNeedsOneSource(t *testing.T) {
	chdir(t, t.TempDir())

	_, err := execute(t, "analyze", "--log-level", "error")
	assert.Error(t, err)
}

func TestAnalyzeRejectsBadAlgorithm(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	input := writeTrackFile(t, dir)

	_, err := execute(t, "analyze", "-i", input, "-a", "hierarchical", "--log-level", "error")
	assert.Error(t, err)
}

func TestSyncNeedsDatabase(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DATABASE_URL", "")
	t.Setenv("ANALYZER_DATABASE_URL", "")

	_, err := execute(t, "sync", "pl1", "--log-level", "error")
	assert.ErrorIs(t, err, config.ErrMissingDatabaseURL)
}
