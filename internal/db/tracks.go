package db

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/justestif/go-spotify-cluster-analyzer/internal/features"
)

// featureColumns lists the descriptor columns in features.All() order.
const featureColumns = `danceability, energy, key, loudness, mode, speechiness,
	acousticness, instrumentalness, liveness, valence, tempo`

// TrackRepository handles track database operations.
type TrackRepository struct {
	pool *pgxpool.Pool
}

// trackColumns holds tracks as parallel arrays for unnest.
type trackColumns struct {
	ids         []string
	names       []string
	artists     []string
	durations   []*int
	popularity  []*int
	descriptors [features.NumDescriptors][]*float64
	imputed     []bool
}

func toColumns(tracks []features.Track) trackColumns {
	n := len(tracks)
	c := trackColumns{
		ids:        make([]string, n),
		names:      make([]string, n),
		artists:    make([]string, n),
		durations:  make([]*int, n),
		popularity: make([]*int, n),
		imputed:    make([]bool, n),
	}
	for d := range c.descriptors {
		c.descriptors[d] = make([]*float64, n)
	}
	for i := range tracks {
		t := &tracks[i]
		c.ids[i] = t.ID
		c.names[i] = t.Name
		c.artists[i] = t.Artist
		c.durations[i] = t.DurationMs
		c.popularity[i] = t.Popularity
		c.imputed[i] = t.Imputed
		for _, d := range features.All() {
			if v, ok := t.Get(d); ok {
				c.descriptors[d][i] = features.Value(v)
			}
		}
	}
	return c
}

// uniqueTracks drops repeated ids, keeping the first occurrence. A playlist
// may list the same track twice but an upsert may touch each row only once.
func uniqueTracks(tracks []features.Track) []features.Track {
	seen := make(map[string]bool, len(tracks))
	out := make([]features.Track, 0, len(tracks))
	for _, t := range tracks {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		out = append(out, t)
	}
	return out
}

// args returns the descriptor arrays in column order.
func (c trackColumns) args() []any {
	out := make([]any, 0, features.NumDescriptors)
	for _, col := range c.descriptors {
		out = append(out, col)
	}
	return out
}

// ReplaceForPlaylist stores tracks as the playlist's current contents in
// order. Track metadata is upserted; a descriptor already stored is kept when
// the incoming value is missing.
func (r *TrackRepository) ReplaceForPlaylist(ctx context.Context, playlistID string, tracks []features.Track) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer tx.Rollback(ctx)

	if len(tracks) > 0 {
		upsert := `
			INSERT INTO tracks (id, name, artist, duration_ms, popularity, ` + featureColumns + `, features_imputed, created_at)
			SELECT u.*, NOW() FROM unnest(
				$1::text[], $2::text[], $3::text[], $4::int[], $5::int[],
				$6::float8[], $7::float8[], $8::float8[], $9::float8[], $10::float8[], $11::float8[],
				$12::float8[], $13::float8[], $14::float8[], $15::float8[], $16::float8[],
				$17::bool[]
			) AS u
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				artist = EXCLUDED.artist,
				duration_ms = COALESCE(EXCLUDED.duration_ms, tracks.duration_ms),
				popularity = COALESCE(EXCLUDED.popularity, tracks.popularity),
				danceability = COALESCE(EXCLUDED.danceability, tracks.danceability),
				energy = COALESCE(EXCLUDED.energy, tracks.energy),
				key = COALESCE(EXCLUDED.key, tracks.key),
				loudness = COALESCE(EXCLUDED.loudness, tracks.loudness),
				mode = COALESCE(EXCLUDED.mode, tracks.mode),
				speechiness = COALESCE(EXCLUDED.speechiness, tracks.speechiness),
				acousticness = COALESCE(EXCLUDED.acousticness, tracks.acousticness),
				instrumentalness = COALESCE(EXCLUDED.instrumentalness, tracks.instrumentalness),
				liveness = COALESCE(EXCLUDED.liveness, tracks.liveness),
				valence = COALESCE(EXCLUDED.valence, tracks.valence),
				tempo = COALESCE(EXCLUDED.tempo, tracks.tempo)
		`
		c := toColumns(uniqueTracks(tracks))
		args := []any{c.ids, c.names, c.artists, c.durations, c.popularity}
		args = append(args, c.args()...)
		args = append(args, c.imputed)
		if _, err := tx.Exec(ctx, upsert, args...); err != nil {
			return errors.Wrap(err, "upserting tracks")
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM playlist_tracks WHERE playlist_id = $1`, playlistID); err != nil {
		return errors.Wrap(err, "clearing playlist tracks")
	}

	if len(tracks) > 0 {
		link := `
			INSERT INTO playlist_tracks (playlist_id, position, track_id)
			SELECT $1, ord - 1, id FROM unnest($2::text[]) WITH ORDINALITY AS t(id, ord)
		`
		if _, err := tx.Exec(ctx, link, playlistID, features.IDs(tracks)); err != nil {
			return errors.Wrap(err, "linking playlist tracks")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "committing transaction")
	}
	return nil
}

// GetForPlaylist returns the playlist's tracks in playlist order.
func (r *TrackRepository) GetForPlaylist(ctx context.Context, playlistID string) ([]features.Track, error) {
	query := `
		SELECT t.id, t.name, t.artist, t.duration_ms, t.popularity, ` + featureColumns + `, t.features_imputed
		FROM tracks t
		JOIN playlist_tracks pt ON t.id = pt.track_id
		WHERE pt.playlist_id = $1
		ORDER BY pt.position
	`
	rows, err := r.pool.Query(ctx, query, playlistID)
	if err != nil {
		return nil, errors.Wrap(err, "querying playlist tracks")
	}
	defer rows.Close()

	var tracks []features.Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning track")
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

// UpdateFeatures overwrites every descriptor and the imputed flag of the
// given tracks.
func (r *TrackRepository) UpdateFeatures(ctx context.Context, tracks []features.Track) error {
	if len(tracks) == 0 {
		return nil
	}

	query := `
		UPDATE tracks SET
			danceability = u.danceability,
			energy = u.energy,
			key = u.key,
			loudness = u.loudness,
			mode = u.mode,
			speechiness = u.speechiness,
			acousticness = u.acousticness,
			instrumentalness = u.instrumentalness,
			liveness = u.liveness,
			valence = u.valence,
			tempo = u.tempo,
			features_imputed = u.features_imputed
		FROM unnest(
			$1::text[],
			$2::float8[], $3::float8[], $4::float8[], $5::float8[], $6::float8[], $7::float8[],
			$8::float8[], $9::float8[], $10::float8[], $11::float8[], $12::float8[],
			$13::bool[]
		) AS u(id, ` + featureColumns + `, features_imputed)
		WHERE tracks.id = u.id
	`
	c := toColumns(uniqueTracks(tracks))
	args := []any{c.ids}
	args = append(args, c.args()...)
	args = append(args, c.imputed)
	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return errors.Wrap(err, "updating track features")
	}
	return nil
}

func scanTrack(row pgx.Row) (features.Track, error) {
	var t features.Track
	dest := []any{&t.ID, &t.Name, &t.Artist, &t.DurationMs, &t.Popularity}
	for _, d := range features.All() {
		dest = append(dest, t.Field(d))
	}
	dest = append(dest, &t.Imputed)
	err := row.Scan(dest...)
	return t, err
}
