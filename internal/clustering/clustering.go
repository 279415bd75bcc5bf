// Package clustering groups tracks by audio descriptor similarity. It picks a
// cluster count, runs one of several algorithms and names the resulting groups.
package clustering

import (
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Algorithm names a clustering algorithm.
type Algorithm string

// Supported algorithms.
const (
	KMeans          Algorithm = "kmeans"
	GaussianMixture Algorithm = "gaussian_mixture"
	Spectral        Algorithm = "spectral"
	DBSCAN          Algorithm = "dbscan"
)

// Algorithms lists the supported algorithms.
var Algorithms = []Algorithm{KMeans, GaussianMixture, Spectral, DBSCAN}

// Noise labels a point that density clustering left unassigned.
const Noise = -1

var (
	// ErrUnsupportedAlgorithm is returned for an unknown algorithm name.
	ErrUnsupportedAlgorithm = errors.New("unsupported clustering algorithm")
	// ErrInvalidClusterCount is returned for an explicit count outside [2, N].
	ErrInvalidClusterCount = errors.New("invalid cluster count")
)

// ParseAlgorithm validates an algorithm name. An empty name selects k-means.
func ParseAlgorithm(name string) (Algorithm, error) {
	if name == "" {
		return KMeans, nil
	}
	alg := Algorithm(strings.ToLower(strings.TrimSpace(name)))
	if !slices.Contains(Algorithms, alg) {
		names := make([]string, len(Algorithms))
		for i, a := range Algorithms {
			names[i] = string(a)
		}
		err := errors.Wrapf(ErrUnsupportedAlgorithm, "%q", name)
		return "", errors.WithHintf(err, "valid algorithms: %s", strings.Join(names, ", "))
	}
	return alg, nil
}

// OutcomeKind tells which branch a clustering run took.
type OutcomeKind int

// Outcome kinds.
const (
	Success OutcomeKind = iota
	DegenerateFallback
	RejectedInput
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case DegenerateFallback:
		return "degenerate_fallback"
	case RejectedInput:
		return "rejected_input"
	}
	return "unknown"
}

// MarshalText encodes the kind by name.
func (k OutcomeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind written by MarshalText.
func (k *OutcomeKind) UnmarshalText(text []byte) error {
	for _, kind := range []OutcomeKind{Success, DegenerateFallback, RejectedInput} {
		if kind.String() == string(text) {
			*k = kind
			return nil
		}
	}
	return errors.Newf("unknown outcome kind %q", text)
}

// Outcome records how a clustering run ended.
type Outcome struct {
	Kind   OutcomeKind `json:"kind"`
	Reason string      `json:"reason,omitempty"`
}

// Metadata describes the parameters and internals of a clustering run.
type Metadata struct {
	Algorithm      Algorithm   `json:"algorithm"`
	Executed       Algorithm   `json:"executedAlgorithm"`
	NClusters      int         `json:"nClusters"`
	Inertia        float64     `json:"inertia,omitempty"`
	AIC            float64     `json:"aic,omitempty"`
	BIC            float64     `json:"bic,omitempty"`
	Radius         float64     `json:"eps,omitempty"`
	Percentile     float64     `json:"epsPercentile,omitempty"`
	MinNeighbors   int         `json:"minSamples,omitempty"`
	SearchScore    float64     `json:"searchScore,omitempty"`
	Trials         int         `json:"searchTrials,omitempty"`
	NoisePoints    int         `json:"noisePoints"`
	FallbackReason string      `json:"fallbackReason,omitempty"`
	Selection      []Candidate `json:"kSelection,omitempty"`
}

// Result is the per-row assignment produced by a clustering run.
type Result struct {
	// Labels holds a cluster id in 1..K for every row.
	Labels   []int
	K        int
	Outcome  Outcome
	Metadata Metadata
}

// Config holds clustering parameters.
type Config struct {
	Seed          int64 // Seed for every randomized step
	Restarts      int   // k-means restarts; the lowest inertia wins
	MaxIterations int   // Lloyd iteration cap per restart
	MinK          int   // Smallest automatic cluster count
	MaxK          int   // Largest automatic cluster count
}

// DefaultConfig returns the recommended default configuration.
func DefaultConfig() Config {
	return Config{
		Seed:          42,
		Restarts:      10,
		MaxIterations: 300,
		MinK:          2,
		MaxK:          8,
	}
}

// Clusterer runs cluster-count selection and clustering. It holds no state
// between calls and is safe for concurrent use.
type Clusterer struct {
	cfg Config
	log *zap.SugaredLogger
}

// New creates a Clusterer. Zero config fields take their defaults and a nil
// logger disables logging.
func New(cfg Config, log *zap.SugaredLogger) *Clusterer {
	def := DefaultConfig()
	if cfg.Restarts <= 0 {
		cfg.Restarts = def.Restarts
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = def.MaxIterations
	}
	if cfg.MinK < 2 {
		cfg.MinK = def.MinK
	}
	if cfg.MaxK < cfg.MinK {
		cfg.MaxK = def.MaxK
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Clusterer{cfg: cfg, log: log}
}

// renumber maps labels to 1..k in order of first appearance. Noise stays Noise.
func renumber(labels []int) ([]int, int) {
	ids := make(map[int]int)
	out := make([]int, len(labels))
	for i, l := range labels {
		if l == Noise {
			out[i] = Noise
			continue
		}
		id, ok := ids[l]
		if !ok {
			id = len(ids) + 1
			ids[l] = id
		}
		out[i] = id
	}
	return out, len(ids)
}

// distinct counts the non-noise labels.
func distinct(labels []int) int {
	seen := make(map[int]struct{})
	for _, l := range labels {
		if l != Noise {
			seen[l] = struct{}{}
		}
	}
	return len(seen)
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}
