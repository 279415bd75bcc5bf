package db

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Playlist represents a synced Spotify playlist.
type Playlist struct {
	ID         string
	Name       string
	Owner      string
	SnapshotID string
	SyncedAt   time.Time
	CreatedAt  time.Time
}

// Analysis is a stored clustering result.
type Analysis struct {
	ID           uuid.UUID
	PlaylistID   string
	Algorithm    string
	ClusterCount int
	Silhouette   float64
	Result       json.RawMessage // analysis.Result as JSON
	CreatedAt    time.Time
}
