package db

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PlaylistRepository handles playlist database operations.
type PlaylistRepository struct {
	pool *pgxpool.Pool
}

// Upsert creates or updates a playlist and stamps its sync time.
func (r *PlaylistRepository) Upsert(ctx context.Context, p *Playlist) error {
	query := `
		INSERT INTO playlists (id, name, owner, snapshot_id, synced_at, created_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			owner = EXCLUDED.owner,
			snapshot_id = EXCLUDED.snapshot_id,
			synced_at = NOW()
		RETURNING synced_at, created_at
	`
	err := r.pool.QueryRow(ctx, query, p.ID, p.Name, p.Owner, p.SnapshotID).Scan(&p.SyncedAt, &p.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "upserting playlist")
	}
	return nil
}

// Get retrieves a playlist by ID.
func (r *PlaylistRepository) Get(ctx context.Context, id string) (*Playlist, error) {
	query := `
		SELECT id, name, owner, snapshot_id, synced_at, created_at
		FROM playlists
		WHERE id = $1
	`
	var p Playlist
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.Owner,
		&p.SnapshotID,
		&p.SyncedAt,
		&p.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "querying playlist")
	}
	return &p, nil
}
