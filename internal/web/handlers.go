package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/justestif/go-spotify-cluster-analyzer/internal/analysis"
	"github.com/justestif/go-spotify-cluster-analyzer/internal/chart"
	"github.com/justestif/go-spotify-cluster-analyzer/internal/clustering"
	"github.com/justestif/go-spotify-cluster-analyzer/internal/db"
	"github.com/justestif/go-spotify-cluster-analyzer/internal/playlists"
)

// errInvalidClusters is returned for a clusters parameter that is not an integer.
var errInvalidClusters = errors.New("clusters must be an integer")

// Service is the playlist service behind the API.
type Service interface {
	Sync(ctx context.Context, playlistID string) (*playlists.SyncResult, error)
	Analyze(ctx context.Context, playlistID string, opts analysis.Options) (*playlists.AnalysisRecord, error)
	Quality(ctx context.Context, playlistID string) (*playlists.QualitySummary, error)
	GetAnalysis(ctx context.Context, analysisID string) (*playlists.AnalysisRecord, error)
}

// Pinger checks a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers contains HTTP handlers for the analyzer API.
type Handlers struct {
	svc Service
	db  Pinger
	log *zap.SugaredLogger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(svc Service, pinger Pinger, log *zap.SugaredLogger) *Handlers {
	return &Handlers{
		svc: svc,
		db:  pinger,
		log: log,
	}
}

// Health reports liveness (GET /healthz).
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			h.log.Warnw("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Sync copies a playlist from the catalog (POST /api/playlists/{playlistID}/sync).
func (h *Handlers) Sync(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Sync(r.Context(), chi.URLParam(r, "playlistID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Analyze clusters a synced playlist
// (POST /api/playlists/{playlistID}/analyze?algorithm=&clusters=).
func (h *Handlers) Analyze(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := analysis.Options{Algorithm: clustering.Algorithm(q.Get("algorithm"))}
	if raw := q.Get("clusters"); raw != "" {
		k, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, r, errors.Wrapf(errInvalidClusters, "%q", raw))
			return
		}
		opts.Clusters = k
	}

	rec, err := h.svc.Analyze(r.Context(), chi.URLParam(r, "playlistID"), opts)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// Quality reports descriptor completeness (GET /api/playlists/{playlistID}/quality).
func (h *Handlers) Quality(w http.ResponseWriter, r *http.Request) {
	q, err := h.svc.Quality(r.Context(), chi.URLParam(r, "playlistID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// GetAnalysis returns a stored analysis (GET /api/analyses/{analysisID}).
func (h *Handlers) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.GetAnalysis(r.Context(), chi.URLParam(r, "analysisID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Chart renders the projection of a stored analysis
// (GET /api/analyses/{analysisID}/chart?format=html|png).
func (h *Handlers) Chart(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.GetAnalysis(r.Context(), chi.URLParam(r, "analysisID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	contentType := "text/html; charset=utf-8"
	switch r.URL.Query().Get("format") {
	case "png":
		contentType = "image/png"
		err = chart.PNG(&buf, rec.Result, chart.DefaultWidth, chart.DefaultHeight)
	case "", "html":
		err = chart.HTML(&buf, rec.Result, "Playlist "+rec.PlaylistID)
	default:
		http.Error(w, "format must be html or png", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write(buf.Bytes())
}

type errorResponse struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, clustering.ErrUnsupportedAlgorithm),
		errors.Is(err, clustering.ErrInvalidClusterCount),
		errors.Is(err, analysis.ErrTooFewTracks),
		errors.Is(err, clustering.ErrTooFewPoints),
		errors.Is(err, playlists.ErrInvalidAnalysisID),
		errors.Is(err, errInvalidClusters):
		return http.StatusBadRequest
	case errors.Is(err, chart.ErrNoPoints):
		return http.StatusUnprocessableEntity
	case errors.Is(err, playlists.ErrSyncTooRecent):
		return http.StatusTooManyRequests
	case errors.Is(err, playlists.ErrCatalogUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error(), Hint: errors.FlattenHints(err)}
	if status == http.StatusInternalServerError {
		h.log.Errorw("request failed", "path", r.URL.Path, "error", err)
		resp = errorResponse{Error: "internal error"}
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
