// Package analysis runs the full clustering pipeline over one playlist's
// tracks: imputation, preprocessing, cluster-count selection, clustering,
// labeling, projection and quality reporting.
package analysis

import (
	"sort"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/justestif/go-spotify-cluster-analyzer/internal/clustering"
	"github.com/justestif/go-spotify-cluster-analyzer/internal/features"
	"github.com/justestif/go-spotify-cluster-analyzer/internal/projection"
)

// ErrTooFewTracks is returned when fewer than two tracks are analyzed.
var ErrTooFewTracks = errors.New("at least two tracks are required for analysis")

// Options controls a single analysis.
type Options struct {
	// Algorithm is one of clustering.Algorithms. Empty means k-means.
	Algorithm clustering.Algorithm
	// Clusters is the cluster count. Zero selects it automatically.
	// Ignored by DBSCAN.
	Clusters int
	// Quality is an optional report computed earlier by the caller. It is
	// passed through into the result metadata.
	Quality *features.QualityReport
}

// Cluster is one group of tracks in a Result.
type Cluster struct {
	ID          int                `json:"id"`
	Label       string             `json:"label"`
	Description string             `json:"description"`
	TrackIDs    []string           `json:"trackIds"`
	TrackCount  int                `json:"trackCount"`
	Centroid    map[string]float64 `json:"centroid"`
}

// QualityMetrics are computed on the final assignment.
type QualityMetrics struct {
	Silhouette       float64 `json:"silhouetteScore"`
	CalinskiHarabasz float64 `json:"calinskiHarabaszScore"`
	DaviesBouldin    float64 `json:"daviesBouldinScore"`
	NClusters        int     `json:"nClusters"`
	NoisePoints      int     `json:"noisePoints"`
}

// Metadata describes how a Result was produced.
type Metadata struct {
	Algorithm         clustering.Metadata     `json:"algorithm"`
	Outcome           clustering.Outcome      `json:"outcome"`
	Preprocessing     features.Info           `json:"preprocessing"`
	Imputation        features.ImputeReport   `json:"imputation"`
	QualityMetrics    QualityMetrics          `json:"qualityMetrics"`
	FeatureWeights    map[string]float64      `json:"featureWeights"`
	InputQuality      *features.QualityReport `json:"inputQuality,omitempty"`
	ExplainedVariance [2]float64              `json:"explainedVariance"`
	ProjectionMethod  string                  `json:"projectionMethod"`
}

// Result is the outcome of one analysis.
type Result struct {
	// Clusters are ordered by size, largest first, ties by id.
	Clusters        []Cluster              `json:"clusters"`
	SilhouetteScore float64                `json:"silhouetteScore"`
	Metadata        Metadata               `json:"analysisMetadata"`
	PCACoordinates  []projection.Point     `json:"pcaCoordinates"`
	QualityReport   features.QualityReport `json:"qualityReport"`
}

// Engine runs analyses. It holds only immutable configuration and is safe
// for concurrent use.
type Engine struct {
	table features.Table
	cfg   clustering.Config
	log   *zap.SugaredLogger
}

// NewEngine creates an Engine. A nil logger disables logging.
func NewEngine(table features.Table, cfg clustering.Config, log *zap.SugaredLogger) *Engine {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Engine{table: table, cfg: cfg, log: log}
}

// Analyze clusters tracks. Missing descriptors are imputed in place and the
// touched tracks are marked as imputed.
func (e *Engine) Analyze(tracks []features.Track, opts Options) (*Result, error) {
	n := len(tracks)
	if n < 2 {
		return nil, errors.WithHint(errors.Wrapf(ErrTooFewTracks, "got %d", n), "sync a playlist with at least two tracks")
	}
	alg, err := clustering.ParseAlgorithm(string(opts.Algorithm))
	if err != nil {
		return nil, err
	}

	quality := features.Quality(tracks)
	imputed := features.NewImputer(e.table, e.log.Named("impute")).Impute(tracks)
	prep := features.Preprocess(tracks, e.table)
	rows := [][]float64(prep.Matrix)

	c := clustering.New(e.cfg, e.log.Named("clustering"))

	k := opts.Clusters
	var selection []clustering.Candidate
	if alg != clustering.DBSCAN && k == 0 {
		sel := c.SelectK(rows)
		k, selection = sel.K, sel.Candidates
	}

	res, err := c.Run(rows, alg, k)
	if err != nil {
		return nil, err
	}
	res.Metadata.Selection = selection

	scores := clustering.Evaluate(rows, res.Labels)
	if len(scores.Undefined) > 0 {
		e.log.Infow("metrics undefined for final assignment, reported as 0",
			"metrics", scores.Undefined,
			"clusters", res.K,
			"tracks", n,
		)
	}

	ids := features.IDs(tracks)
	proj, err := projection.Project(ids, prep.Matrix)
	if err != nil {
		return nil, errors.Wrap(err, "project tracks")
	}
	if proj.Method != projection.MethodPCA {
		e.log.Warnw("principal components failed, plotting raw columns", "tracks", n)
	}

	out := &Result{
		Clusters:        e.buildClusters(tracks, prep.Raw, res.Labels),
		SilhouetteScore: scores.Silhouette,
		Metadata: Metadata{
			Algorithm:     res.Metadata,
			Outcome:       res.Outcome,
			Preprocessing: prep.Info,
			Imputation:    imputed,
			QualityMetrics: QualityMetrics{
				Silhouette:       scores.Silhouette,
				CalinskiHarabasz: scores.CalinskiHarabasz,
				DaviesBouldin:    scores.DaviesBouldin,
				NClusters:        res.K,
				NoisePoints:      res.Metadata.NoisePoints,
			},
			FeatureWeights:    e.table.WeightMap(),
			InputQuality:      opts.Quality,
			ExplainedVariance: proj.ExplainedVariance,
			ProjectionMethod:  proj.Method,
		},
		PCACoordinates: proj.Points,
		QualityReport:  quality,
	}

	e.log.Infow("analysis complete",
		"tracks", n,
		"algorithm", alg,
		"executed", res.Metadata.Executed,
		"outcome", res.Outcome.Kind,
		"clusters", res.K,
		"silhouette", scores.Silhouette,
		"imputed_tracks", imputed.Tracks,
	)
	return out, nil
}

// buildClusters groups tracks by label, names each group from its mean raw
// row and reports the centroid in native descriptor units.
func (e *Engine) buildClusters(tracks []features.Track, raw features.Matrix, labels []int) []Cluster {
	members := make(map[int][]int)
	var order []int
	for i, l := range labels {
		if _, ok := members[l]; !ok {
			order = append(order, l)
		}
		members[l] = append(members[l], i)
	}
	sort.Ints(order)

	rawMeans := make([][]float64, len(order))
	clusters := make([]Cluster, len(order))
	for c, id := range order {
		idx := members[id]
		rawMeans[c] = make([]float64, raw.Cols())
		centroid := make(map[string]float64, features.NumDescriptors)
		trackIDs := make([]string, 0, len(idx))

		for _, i := range idx {
			trackIDs = append(trackIDs, tracks[i].ID)
			for j, v := range raw[i] {
				rawMeans[c][j] += v / float64(len(idx))
			}
			for _, d := range features.All() {
				v, ok := tracks[i].Get(d)
				if !ok {
					v = e.table.Defaults[d]
				}
				centroid[d.String()] += v / float64(len(idx))
			}
		}

		clusters[c] = Cluster{
			ID:         id,
			TrackIDs:   trackIDs,
			TrackCount: len(idx),
			Centroid:   centroid,
		}
	}

	for c, l := range clustering.LabelClusters(rawMeans) {
		clusters[c].Label = l.Name
		clusters[c].Description = l.Description
	}

	sort.SliceStable(clusters, func(a, b int) bool {
		if clusters[a].TrackCount != clusters[b].TrackCount {
			return clusters[a].TrackCount > clusters[b].TrackCount
		}
		return clusters[a].ID < clusters[b].ID
	})
	return clusters
}
