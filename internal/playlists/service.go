// Package playlists syncs playlists from the catalog into storage and runs
// stored analyses over them.
package playlists

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/justestif/go-spotify-cluster-analyzer/internal/analysis"
	"github.com/justestif/go-spotify-cluster-analyzer/internal/clustering"
	"github.com/justestif/go-spotify-cluster-analyzer/internal/db"
	"github.com/justestif/go-spotify-cluster-analyzer/internal/features"
	"github.com/justestif/go-spotify-cluster-analyzer/internal/spotify"
)

// Defaults for Service options.
const (
	DefaultSyncCooldown = 5 * time.Minute
	DefaultFetchTimeout = 30 * time.Second
)

// Common errors.
var (
	// ErrSyncTooRecent is returned when sync is attempted within the cooldown period.
	ErrSyncTooRecent = errors.New("sync attempted too recently")

	// ErrCatalogUnavailable is returned by Sync when no catalog client is configured.
	ErrCatalogUnavailable = errors.New("catalog client not configured")

	// ErrInvalidAnalysisID is returned for analysis ids that are not UUIDs.
	ErrInvalidAnalysisID = errors.New("invalid analysis id")
)

// Catalog reads playlists and audio features from the music catalog.
type Catalog interface {
	FetchPlaylist(ctx context.Context, playlistID string) (spotify.Playlist, error)
	FetchPlaylistTracks(ctx context.Context, playlistID string) ([]features.Track, error)
	FetchAudioFeatures(ctx context.Context, tracks []features.Track) (int, error)
}

// PlaylistStore persists playlist metadata.
type PlaylistStore interface {
	Upsert(ctx context.Context, p *db.Playlist) error
	Get(ctx context.Context, id string) (*db.Playlist, error)
}

// TrackStore persists playlist tracks and their descriptors.
type TrackStore interface {
	ReplaceForPlaylist(ctx context.Context, playlistID string, tracks []features.Track) error
	GetForPlaylist(ctx context.Context, playlistID string) ([]features.Track, error)
	UpdateFeatures(ctx context.Context, tracks []features.Track) error
}

// AnalysisStore persists analysis results.
type AnalysisStore interface {
	Create(ctx context.Context, a *db.Analysis) error
	Get(ctx context.Context, id uuid.UUID) (*db.Analysis, error)
	LatestForPlaylist(ctx context.Context, playlistID string) (*db.Analysis, error)
}

// Analyzer clusters a track list.
type Analyzer interface {
	Analyze(tracks []features.Track, opts analysis.Options) (*analysis.Result, error)
}

// Deps are the collaborators of a Service. Catalog may be nil, in which
// case Sync fails and Analyze works on stored descriptors only.
type Deps struct {
	Catalog   Catalog
	Playlists PlaylistStore
	Tracks    TrackStore
	Analyses  AnalysisStore
	Engine    Analyzer
	Log       *zap.SugaredLogger
}

// Service coordinates sync and analysis.
type Service struct {
	Deps
	syncCooldown     time.Duration
	fetchTimeout     time.Duration
	defaultAlgorithm clustering.Algorithm
	now              func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithSyncCooldown sets the minimum time between syncs of one playlist.
func WithSyncCooldown(d time.Duration) Option {
	return func(s *Service) {
		s.syncCooldown = d
	}
}

// WithFetchTimeout bounds each audio feature lookup.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.fetchTimeout = d
	}
}

// WithDefaultAlgorithm sets the algorithm used when a request names none.
func WithDefaultAlgorithm(alg clustering.Algorithm) Option {
	return func(s *Service) {
		s.defaultAlgorithm = alg
	}
}

// New creates a new playlist service.
func New(deps Deps, opts ...Option) *Service {
	if deps.Log == nil {
		deps.Log = zap.NewNop().Sugar()
	}
	s := &Service{
		Deps:             deps,
		syncCooldown:     DefaultSyncCooldown,
		fetchTimeout:     DefaultFetchTimeout,
		defaultAlgorithm: clustering.KMeans,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SyncResult contains the result of a sync operation.
type SyncResult struct {
	Playlist       db.Playlist `json:"-"`
	PlaylistID     string      `json:"playlistId"`
	Name           string      `json:"name"`
	TracksCount    int         `json:"tracksCount"`
	FeaturesFilled int         `json:"featuresFilled"`
	SyncedAt       time.Time   `json:"syncedAt"`
}

// Sync copies a playlist and its tracks from the catalog into storage and
// looks up audio features for them. A failed feature lookup is logged and
// the tracks are stored without descriptors.
func (s *Service) Sync(ctx context.Context, playlistID string) (*SyncResult, error) {
	if s.Catalog == nil {
		return nil, errors.WithHint(ErrCatalogUnavailable, "set SPOTIFY_ID and SPOTIFY_SECRET to enable sync")
	}

	if err := s.checkCooldown(ctx, playlistID); err != nil {
		return nil, err
	}

	meta, err := s.Catalog.FetchPlaylist(ctx, playlistID)
	if err != nil {
		return nil, errors.Wrap(err, "fetching playlist")
	}
	tracks, err := s.Catalog.FetchPlaylistTracks(ctx, playlistID)
	if err != nil {
		return nil, errors.Wrap(err, "fetching playlist tracks")
	}
	filled := s.fetchFeatures(ctx, playlistID, tracks)

	p := db.Playlist{ID: playlistID, Name: meta.Name, Owner: meta.Owner, SnapshotID: meta.SnapshotID}
	if err := s.Playlists.Upsert(ctx, &p); err != nil {
		return nil, errors.Wrap(err, "saving playlist")
	}
	if err := s.Tracks.ReplaceForPlaylist(ctx, playlistID, tracks); err != nil {
		return nil, errors.Wrap(err, "saving tracks")
	}

	s.Log.Infow("playlist synced", "playlist", playlistID, "tracks", len(tracks), "features_filled", filled)
	return &SyncResult{
		Playlist:       p,
		PlaylistID:     playlistID,
		Name:           p.Name,
		TracksCount:    len(tracks),
		FeaturesFilled: filled,
		SyncedAt:       p.SyncedAt,
	}, nil
}

// checkCooldown returns ErrSyncTooRecent if the playlist was synced within
// the cooldown period.
func (s *Service) checkCooldown(ctx context.Context, playlistID string) error {
	existing, err := s.Playlists.Get(ctx, playlistID)
	if errors.Is(err, db.ErrNotFound) {
		// Never synced, allow
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "getting playlist")
	}

	next := existing.SyncedAt.Add(s.syncCooldown)
	if s.now().Before(next) {
		return errors.WithHintf(ErrSyncTooRecent, "next sync available at %s", next.Format(time.RFC3339))
	}
	return nil
}

// fetchFeatures fills missing descriptors from the catalog under the fetch
// timeout. Errors are logged, not returned.
func (s *Service) fetchFeatures(ctx context.Context, playlistID string, tracks []features.Track) int {
	if s.Catalog == nil {
		return 0
	}
	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	filled, err := s.Catalog.FetchAudioFeatures(ctx, tracks)
	if err != nil {
		s.Log.Warnw("audio feature lookup failed, continuing with stored values",
			"playlist", playlistID,
			"error", err,
			"values_filled", filled,
		)
	}
	return filled
}

// AnalysisRecord is a stored analysis with its decoded result.
type AnalysisRecord struct {
	ID         uuid.UUID        `json:"id"`
	PlaylistID string           `json:"playlistId"`
	CreatedAt  time.Time        `json:"createdAt"`
	Result     *analysis.Result `json:"result"`
}

// Analyze clusters a synced playlist. Missing descriptors are looked up in
// the catalog first; whatever is still missing is imputed. Updated
// descriptors and the analysis are stored.
func (s *Service) Analyze(ctx context.Context, playlistID string, opts analysis.Options) (*AnalysisRecord, error) {
	if _, err := s.Playlists.Get(ctx, playlistID); err != nil {
		return nil, errors.Wrapf(err, "getting playlist %s", playlistID)
	}
	tracks, err := s.Tracks.GetForPlaylist(ctx, playlistID)
	if err != nil {
		return nil, errors.Wrap(err, "loading tracks")
	}

	if missing(tracks) {
		s.fetchFeatures(ctx, playlistID, tracks)
	}

	quality := features.Quality(tracks)
	opts.Quality = &quality
	if opts.Algorithm == "" {
		opts.Algorithm = s.defaultAlgorithm
	}

	res, err := s.Engine.Analyze(tracks, opts)
	if err != nil {
		return nil, err
	}

	if err := s.Tracks.UpdateFeatures(ctx, tracks); err != nil {
		return nil, errors.Wrap(err, "saving track features")
	}

	body, err := json.Marshal(res)
	if err != nil {
		return nil, errors.Wrap(err, "encoding analysis")
	}
	stored := db.Analysis{
		PlaylistID:   playlistID,
		Algorithm:    string(res.Metadata.Algorithm.Algorithm),
		ClusterCount: len(res.Clusters),
		Silhouette:   res.SilhouetteScore,
		Result:       body,
	}
	if err := s.Analyses.Create(ctx, &stored); err != nil {
		return nil, errors.Wrap(err, "saving analysis")
	}

	s.Log.Infow("analysis stored",
		"playlist", playlistID,
		"analysis", stored.ID,
		"clusters", stored.ClusterCount,
		"silhouette", stored.Silhouette,
	)
	return &AnalysisRecord{ID: stored.ID, PlaylistID: playlistID, CreatedAt: stored.CreatedAt, Result: res}, nil
}

// GetAnalysis returns a stored analysis.
func (s *Service) GetAnalysis(ctx context.Context, analysisID string) (*AnalysisRecord, error) {
	id, err := uuid.Parse(analysisID)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidAnalysisID, "%q", analysisID)
	}
	stored, err := s.Analyses.Get(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "getting analysis %s", analysisID)
	}
	return decode(stored)
}

// LatestAnalysis returns the most recent analysis of a playlist.
func (s *Service) LatestAnalysis(ctx context.Context, playlistID string) (*AnalysisRecord, error) {
	stored, err := s.Analyses.LatestForPlaylist(ctx, playlistID)
	if err != nil {
		return nil, errors.Wrapf(err, "getting latest analysis of %s", playlistID)
	}
	return decode(stored)
}

func decode(stored *db.Analysis) (*AnalysisRecord, error) {
	var res analysis.Result
	if err := json.Unmarshal(stored.Result, &res); err != nil {
		return nil, errors.Wrap(err, "decoding stored analysis")
	}
	return &AnalysisRecord{ID: stored.ID, PlaylistID: stored.PlaylistID, CreatedAt: stored.CreatedAt, Result: &res}, nil
}

// QualitySummary describes the stored descriptors of a playlist.
type QualitySummary struct {
	PlaylistID string                 `json:"playlistId"`
	Report     features.QualityReport `json:"qualityReport"`
	Stats      features.PlaylistStats `json:"stats"`
}

// Quality reports descriptor completeness and summary statistics of a
// synced playlist without modifying it.
func (s *Service) Quality(ctx context.Context, playlistID string) (*QualitySummary, error) {
	if _, err := s.Playlists.Get(ctx, playlistID); err != nil {
		return nil, errors.Wrapf(err, "getting playlist %s", playlistID)
	}
	tracks, err := s.Tracks.GetForPlaylist(ctx, playlistID)
	if err != nil {
		return nil, errors.Wrap(err, "loading tracks")
	}
	return &QualitySummary{
		PlaylistID: playlistID,
		Report:     features.Quality(tracks),
		Stats:      features.Stats(tracks),
	}, nil
}

func missing(tracks []features.Track) bool {
	for i := range tracks {
		if tracks[i].Missing() > 0 {
			return true
		}
	}
	return false
}
