package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/go-spotify-cluster-analyzer/internal/analysis"
	"github.com/justestif/go-spotify-cluster-analyzer/internal/clustering"
	"github.com/justestif/go-spotify-cluster-analyzer/internal/db"
	"github.com/justestif/go-spotify-cluster-analyzer/internal/features"
	"github.com/justestif/go-spotify-cluster-analyzer/internal/playlists"
	"github.com/justestif/go-spotify-cluster-analyzer/internal/projection"
)

var testAnalysisID = uuid.MustParse("6f1c2a9e-3b7d-4d8e-9a41-0c5b2e7f9d13")

type fakeService struct {
	err      error
	lastOpts analysis.Options
	lastID   string
}

func (f *fakeService) Sync(_ context.Context, id string) (*playlists.SyncResult, error) {
	f.lastID = id
	if f.err != nil {
		return nil, f.err
	}
	return &playlists.SyncResult{PlaylistID: id, Name: "Mix", TracksCount: 12}, nil
}

func (f *fakeService) Analyze(_ context.Context, id string, opts analysis.Options) (*playlists.AnalysisRecord, error) {
	f.lastID = id
	f.lastOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return &playlists.AnalysisRecord{ID: testAnalysisID, PlaylistID: id, Result: testResult()}, nil
}

func (f *fakeService) Quality(_ context.Context, id string) (*playlists.QualitySummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &playlists.QualitySummary{
		PlaylistID: id,
		Report:     features.QualityReport{TotalTracks: 3, Tier: features.TierFor(1)},
	}, nil
}

func (f *fakeService) GetAnalysis(_ context.Context, id string) (*playlists.AnalysisRecord, error) {
	f.lastID = id
	if f.err != nil {
		return nil, f.err
	}
	return &playlists.AnalysisRecord{ID: testAnalysisID, PlaylistID: "pl1", Result: testResult()}, nil
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func testResult() *analysis.Result {
	return &analysis.Result{
		Clusters: []analysis.Cluster{
			{ID: 1, Label: "Chill acoustic", TrackIDs: []string{"a", "b"}, TrackCount: 2},
			{ID: 2, Label: "Workout energy", TrackIDs: []string{"c"}, TrackCount: 1},
		},
		Metadata: analysis.Metadata{Algorithm: clustering.Metadata{Algorithm: clustering.KMeans}},
		PCACoordinates: []projection.Point{
			{TrackID: "a", X: -1, Y: 0},
			{TrackID: "b", X: -1.1, Y: 0.1},
			{TrackID: "c", X: 2, Y: 0},
		},
	}
}

func newTestServer(svc Service, pinger Pinger) http.Handler {
	return NewServer(ServerConfig{Addr: "127.0.0.1:0", Service: svc, DB: pinger}).Handler()
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(&fakeService{}, fakePinger{}), http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, newTestServer(&fakeService{}, fakePinger{err: errors.New("down")}), http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, newTestServer(&fakeService{}, nil), http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSyncHandler(t *testing.T) {
	svc := &fakeService{}
	rec := do(t, newTestServer(svc, nil), http.MethodPost, "/api/playlists/pl1/sync")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pl1", svc.lastID)

	var body playlists.SyncResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 12, body.TracksCount)
}

func TestAnalyzeHandler(t *testing.T) {
	svc := &fakeService{}
	rec := do(t, newTestServer(svc, nil), http.MethodPost, "/api/playlists/pl1/analyze?algorithm=dbscan&clusters=4")

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, clustering.DBSCAN, svc.lastOpts.Algorithm)
	assert.Equal(t, 4, svc.lastOpts.Clusters)

	var body struct {
		ID     uuid.UUID `json:"id"`
		Result struct {
			Clusters []analysis.Cluster `json:"clusters"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, testAnalysisID, body.ID)
	assert.Len(t, body.Result.Clusters, 2)
}

func TestAnalyzeHandlerRejectsBadClusters(t *testing.T) {
	svc := &fakeService{}
	rec := do(t, newTestServer(svc, nil), http.MethodPost, "/api/playlists/pl1/analyze?clusters=many")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.lastID, "service should not be called")
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", errors.Wrap(db.ErrNotFound, "getting playlist"), http.StatusNotFound},
		{"unsupported algorithm", clustering.ErrUnsupportedAlgorithm, http.StatusBadRequest},
		{"invalid k", errors.WithHint(clustering.ErrInvalidClusterCount, "between 2 and 5"), http.StatusBadRequest},
		{"too few tracks", analysis.ErrTooFewTracks, http.StatusBadRequest},
		{"bad analysis id", playlists.ErrInvalidAnalysisID, http.StatusBadRequest},
		{"cooldown", playlists.ErrSyncTooRecent, http.StatusTooManyRequests},
		{"no catalog", playlists.ErrCatalogUnavailable, http.StatusServiceUnavailable},
		{"unexpected", errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(&fakeService{err: tt.err}, nil)
			rec := do(t, h, http.MethodPost, "/api/playlists/pl1/analyze")

			assert.Equal(t, tt.status, rec.Code)
			var body errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestErrorHintAndInternalMasking(t *testing.T) {
	h := newTestServer(&fakeService{err: errors.WithHint(clustering.ErrInvalidClusterCount, "choose between 2 and 5")}, nil)
	rec := do(t, h, http.MethodPost, "/api/playlists/pl1/analyze")
	assert.Contains(t, rec.Body.String(), "choose between 2 and 5")

	h = newTestServer(&fakeService{err: errors.New("password=hunter2")}, nil)
	rec = do(t, h, http.MethodGet, "/api/playlists/pl1/quality")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "hunter2")
}

func TestQualityHandler(t *testing.T) {
	rec := do(t, newTestServer(&fakeService{}, nil), http.MethodGet, "/api/playlists/pl1/quality")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"totalTracks":3`)
	assert.Contains(t, rec.Body.String(), `"tier":"excellent"`)
}

func TestGetAnalysisHandler(t *testing.T) {
	svc := &fakeService{}
	rec := do(t, newTestServer(svc, nil), http.MethodGet, "/api/analyses/"+testAnalysisID.String())

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testAnalysisID.String(), svc.lastID)
	assert.Contains(t, rec.Body.String(), "Chill acoustic")
}

func TestChartHandler(t *testing.T) {
	h := newTestServer(&fakeService{}, nil)

	tests := []struct {
		name        string
		query       string
		status      int
		contentType string
	}{
		{"default html", "", http.StatusOK, "text/html"},
		{"html", "?format=html", http.StatusOK, "text/html"},
		{"png", "?format=png", http.StatusOK, "image/png"},
		{"unknown format", "?format=svg", http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, "/api/analyses/"+testAnalysisID.String()+"/chart"+tt.query)

			assert.Equal(t, tt.status, rec.Code)
			if tt.contentType != "" {
				assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), tt.contentType),
					"Content-Type = %q", rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestUnknownRoute(t *testing.T) {
	rec := do(t, newTestServer(&fakeService{}, nil), http.MethodGet, "/api/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
