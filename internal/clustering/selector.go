package clustering

import (
	"math"
)

// Composite score weights and the per-cluster simplicity penalty.
const (
	silhouetteWeight = 0.35
	chWeight         = 0.20
	elbowWeight      = 0.25
	dbWeight         = 0.20
	extraKPenalty    = 0.05
)

// Candidate holds the quality metrics of one candidate cluster count.
type Candidate struct {
	K                int     `json:"k"`
	Silhouette       float64 `json:"silhouette"`
	CalinskiHarabasz float64 `json:"calinskiHarabasz"`
	DaviesBouldin    float64 `json:"daviesBouldin"`
	WCSS             float64 `json:"wcss"`
	Elbow            float64 `json:"elbow"`
	Composite        float64 `json:"composite"`
}

// Selection is the outcome of automatic cluster-count selection.
type Selection struct {
	K          int
	Candidates []Candidate
}

// SelectK picks a cluster count for rows by scoring k = MinK..min(MaxK, N-1)
// on silhouette, Calinski-Harabasz, WCSS curvature and Davies-Bouldin. Counts
// whose reference k-means collapses to one cluster are skipped. When nothing
// can be scored the result is MinK.
func (c *Clusterer) SelectK(rows [][]float64) Selection {
	sel := Selection{K: c.cfg.MinK}
	maxK := min(c.cfg.MaxK, len(rows)-1)
	if maxK < c.cfg.MinK {
		c.log.Debugw("too few tracks for cluster count search", "tracks", len(rows), "k", sel.K)
		return sel
	}

	dist := distanceMatrix(rows)
	var cands []Candidate
	for k := c.cfg.MinK; k <= maxK; k++ {
		fit := c.kmeans(rows, k)
		if distinct(fit.labels) < 2 {
			c.log.Debugw("skipping collapsed cluster count", "k", k)
			continue
		}
		sil, _ := silhouette(dist, fit.labels)
		ch, _ := calinskiHarabasz(rows, fit.labels)
		db, _ := daviesBouldin(rows, fit.labels)
		cands = append(cands, Candidate{
			K:                k,
			Silhouette:       sil,
			CalinskiHarabasz: ch,
			DaviesBouldin:    db,
			WCSS:             fit.inertia,
		})
	}
	if len(cands) == 0 {
		c.log.Warnw("no cluster count produced valid metrics", "k", sel.K)
		return sel
	}

	score(cands)

	best := 0
	for i, cand := range cands {
		c.log.Debugw("cluster count candidate",
			"k", cand.K,
			"silhouette", cand.Silhouette,
			"calinski_harabasz", cand.CalinskiHarabasz,
			"davies_bouldin", cand.DaviesBouldin,
			"wcss", cand.WCSS,
			"elbow", cand.Elbow,
			"composite", cand.Composite,
		)
		if cand.Composite > cands[best].Composite {
			best = i
		}
	}

	sel.K = cands[best].K
	sel.Candidates = cands
	c.log.Infow("selected cluster count", "k", sel.K, "composite", cands[best].Composite, "candidates", len(cands))
	return sel
}

// score fills the Elbow and Composite fields of cands, which must be ordered by K.
func score(cands []Candidate) {
	n := len(cands)
	sil := make([]float64, n)
	ch := make([]float64, n)
	db := make([]float64, n)
	curvature := make([]float64, n)
	for i, cand := range cands {
		sil[i] = cand.Silhouette
		ch[i] = cand.CalinskiHarabasz
		db[i] = cand.DaviesBouldin
		if i > 0 && i < n-1 {
			curvature[i] = math.Abs(cands[i-1].WCSS - 2*cand.WCSS + cands[i+1].WCSS)
		}
	}

	sil = normalize(sil)
	ch = normalize(ch)
	db = invert(normalize(db))
	elbow := normalize(curvature)

	for i := range cands {
		cands[i].Elbow = elbow[i]
		cands[i].Composite = silhouetteWeight*sil[i] +
			chWeight*ch[i] +
			elbowWeight*elbow[i] +
			dbWeight*db[i] -
			extraKPenalty*float64(cands[i].K-2)
	}
}

// normalize min-max scales values to [0, 1]. A constant series maps to 1 so
// it does not separate the candidates.
func normalize(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	for i, v := range values {
		if hi == lo {
			out[i] = 1
			continue
		}
		out[i] = (v - lo) / (hi - lo)
	}
	return out
}

// invert flips a normalized lower-is-better series.
func invert(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = 1 - v
	}
	return out
}
