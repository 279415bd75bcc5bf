package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/go-spotify-cluster-analyzer/internal/features"
)

func TestToColumns(t *testing.T) {
	dur := 180000
	tracks := []features.Track{
		{ID: "a", Name: "One", Artist: "X", DurationMs: &dur, Energy: features.Value(0.7), Tempo: features.Value(120), Imputed: true},
		{ID: "b", Name: "Two"},
	}

	c := toColumns(tracks)

	assert.Equal(t, []string{"a", "b"}, c.ids)
	assert.Equal(t, []string{"One", "Two"}, c.names)
	assert.Equal(t, []bool{true, false}, c.imputed)
	require.NotNil(t, c.durations[0])
	assert.Equal(t, 180000, *c.durations[0])
	assert.Nil(t, c.durations[1])

	require.NotNil(t, c.descriptors[features.Energy][0])
	assert.Equal(t, 0.7, *c.descriptors[features.Energy][0])
	assert.Equal(t, 120.0, *c.descriptors[features.Tempo][0])
	assert.Nil(t, c.descriptors[features.Energy][1])
	assert.Nil(t, c.descriptors[features.Valence][0])

	assert.Len(t, c.args(), features.NumDescriptors)
}

func TestToColumnsCopiesValues(t *testing.T) {
	tracks := []features.Track{{ID: "a", Energy: features.Value(0.5)}}

	c := toColumns(tracks)
	*tracks[0].Energy = 0.9

	assert.Equal(t, 0.5, *c.descriptors[features.Energy][0])
}

func TestUniqueTracks(t *testing.T) {
	tracks := []features.Track{{ID: "a", Name: "first"}, {ID: "b"}, {ID: "a", Name: "again"}}

	got := uniqueTracks(tracks)

	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Name)
	assert.Equal(t, "b", got[1].ID)
}
