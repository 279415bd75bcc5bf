package db

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const analysisColumns = `id, playlist_id, algorithm, cluster_count, silhouette_score, result, created_at`

// AnalysisRepository handles stored analysis results.
type AnalysisRepository struct {
	pool *pgxpool.Pool
}

// Create inserts an analysis, assigning an ID if it has none.
func (r *AnalysisRepository) Create(ctx context.Context, a *Analysis) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	query := `
		INSERT INTO analyses (id, playlist_id, algorithm, cluster_count, silhouette_score, result, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING created_at
	`
	err := r.pool.QueryRow(ctx, query,
		a.ID,
		a.PlaylistID,
		a.Algorithm,
		a.ClusterCount,
		a.Silhouette,
		[]byte(a.Result),
	).Scan(&a.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "inserting analysis")
	}
	return nil
}

// Get retrieves an analysis by ID.
func (r *AnalysisRepository) Get(ctx context.Context, id uuid.UUID) (*Analysis, error) {
	query := `SELECT ` + analysisColumns + ` FROM analyses WHERE id = $1`
	return scanAnalysis(r.pool.QueryRow(ctx, query, id))
}

// LatestForPlaylist retrieves the most recent analysis of a playlist.
func (r *AnalysisRepository) LatestForPlaylist(ctx context.Context, playlistID string) (*Analysis, error) {
	query := `
		SELECT ` + analysisColumns + `
		FROM analyses
		WHERE playlist_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	return scanAnalysis(r.pool.QueryRow(ctx, query, playlistID))
}

func scanAnalysis(row pgx.Row) (*Analysis, error) {
	var a Analysis
	var result []byte
	err := row.Scan(
		&a.ID,
		&a.PlaylistID,
		&a.Algorithm,
		&a.ClusterCount,
		&a.Silhouette,
		&result,
		&a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "querying analysis")
	}
	a.Result = result
	return &a, nil
}
