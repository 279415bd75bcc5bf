package spotify

// Playlist is the playlist metadata stored alongside its tracks.
type Playlist struct {
	ID         string
	Name       string
	Owner      string
	SnapshotID string
}
