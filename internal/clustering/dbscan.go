package clustering

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// Density search parameters.
const (
	minDensitySample   = 6    // smaller samples skip the search
	kDistanceNeighbor  = 4    // k-distance uses the 4th nearest neighbour
	radiusFloor        = 0.1  // radius when every percentile is non-positive
	targetClusters     = 4    // cluster count the search score favours
	clusterCountWeight = 0.06 // penalty per cluster away from targetClusters
	noiseWeight        = 0.30 // penalty per unit of noise ratio
	maxNoiseRatio      = 0.5  // best trial above this falls back to k-means
	tracksPerCluster   = 15   // fallback k-means uses N/15 clusters
	minFallbackK       = 2
	maxFallbackK       = 5
)

var radiusPercentiles = []float64{60, 70, 75, 80, 85, 90, 95}

// dbscan labels each row with a 0-based cluster or Noise. A row is a core
// point when at least minPts rows, itself included, lie within eps.
func dbscan(dist [][]float64, eps float64, minPts int) []int {
	const unvisited = -2

	n := len(dist)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = unvisited
	}

	cluster := -1
	for i := 0; i < n; i++ {
		if labels[i] != unvisited {
			continue
		}

		neighbors := rangeQuery(dist, i, eps)
		if len(neighbors) < minPts {
			labels[i] = Noise
			continue
		}

		// Start a new cluster.
		cluster++
		labels[i] = cluster

		seed := make([]int, 0, len(neighbors))
		for _, j := range neighbors {
			if j != i {
				seed = append(seed, j)
			}
		}

		for len(seed) > 0 {
			q := seed[0]
			seed = seed[1:]

			if labels[q] == Noise {
				labels[q] = cluster // border point
			}
			if labels[q] != unvisited {
				continue
			}
			labels[q] = cluster

			if qn := rangeQuery(dist, q, eps); len(qn) >= minPts {
				seed = append(seed, qn...)
			}
		}
	}
	return labels
}

// rangeQuery returns the indexes of all rows within eps of row idx, itself included.
func rangeQuery(dist [][]float64, idx int, eps float64) []int {
	var out []int
	for j, d := range dist[idx] {
		if d <= eps {
			out = append(out, j)
		}
	}
	return out
}

// kDistances returns, sorted ascending, each row's distance to its k-th
// nearest other row.
func kDistances(dist [][]float64, k int) []float64 {
	out := make([]float64, len(dist))
	row := make([]float64, 0, len(dist))
	for i := range dist {
		row = row[:0]
		for j, d := range dist[i] {
			if j != i {
				row = append(row, d)
			}
		}
		slices.Sort(row)
		out[i] = row[k-1]
	}
	slices.Sort(out)
	return out
}

// radius returns the p-th percentile of sorted k-distances. A non-positive
// value is retried on the non-zero distances, then replaced by radiusFloor.
func radius(sorted []float64, p float64) float64 {
	r := stat.Quantile(p/100, stat.LinInterp, sorted, nil)
	if r > 0 {
		return r
	}
	var nonZero []float64
	for _, d := range sorted {
		if d > 0 {
			nonZero = append(nonZero, d)
		}
	}
	if len(nonZero) > 0 {
		if r = stat.Quantile(p/100, stat.LinInterp, nonZero, nil); r > 0 {
			return r
		}
	}
	return radiusFloor
}

// minNeighborCandidates derives two core-point thresholds from the sample
// size, each kept below n.
func minNeighborCandidates(n int) []int {
	base := int(math.Round(math.Log(float64(n))))
	base = min(max(base, 2), 8)
	var out []int
	for _, m := range []int{base, base + 1} {
		if m < n {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		out = append(out, max(n-1, 1))
	}
	return out
}

type densityTrial struct {
	radius     float64
	percentile float64
	minPts     int
	labels     []int
	clusters   int
	noise      int
	score      float64
}

// fallbackK is the k-means cluster count used when density clustering degenerates.
func fallbackK(n int) int {
	k := min(max(n/tracksPerCluster, minFallbackK), maxFallbackK)
	return min(k, n)
}

// density runs the density-based path: a grid search over radius percentiles
// and core thresholds, noise reassignment to the nearest centroid, and a
// k-means fallback when the data is too small, nothing is viable or the best
// trial is mostly noise.
func (c *Clusterer) density(rows [][]float64) Result {
	n := len(rows)
	meta := Metadata{Algorithm: DBSCAN, Executed: DBSCAN}

	if n < minDensitySample {
		return c.densityFallback(rows, meta, fmt.Sprintf("sample of %d tracks is too small for density clustering", n))
	}

	dist := distanceMatrix(rows)
	kd := kDistances(dist, min(kDistanceNeighbor, n-1))
	thresholds := minNeighborCandidates(n)

	var best *densityTrial
	for _, p := range radiusPercentiles {
		eps := radius(kd, p)
		for _, minPts := range thresholds {
			meta.Trials++
			labels := dbscan(dist, eps, minPts)
			clustersFound := distinct(labels)
			if clustersFound < 2 {
				c.log.Debugw("density trial degenerate", "radius", eps, "percentile", p, "min_neighbors", minPts, "clusters", clustersFound)
				continue
			}

			noise := 0
			for _, l := range labels {
				if l == Noise {
					noise++
				}
			}
			kept, keptLabels := withoutNoise(rows, labels)
			sil, _ := silhouette(distanceMatrix(kept), keptLabels)
			noiseRatio := float64(noise) / float64(n)
			s := sil - clusterCountWeight*math.Abs(float64(targetClusters-clustersFound)) - noiseWeight*noiseRatio

			c.log.Debugw("density trial",
				"radius", eps,
				"percentile", p,
				"min_neighbors", minPts,
				"clusters", clustersFound,
				"noise", noise,
				"silhouette", sil,
				"score", s,
			)

			if best == nil || s > best.score {
				best = &densityTrial{
					radius:     eps,
					percentile: p,
					minPts:     minPts,
					labels:     labels,
					clusters:   clustersFound,
					noise:      noise,
					score:      s,
				}
			}
		}
	}

	switch {
	case best == nil:
		return c.densityFallback(rows, meta, "no radius produced at least two clusters")
	case best.clusters <= 1:
		return c.densityFallback(rows, meta, "best radius produced a single cluster")
	case float64(best.noise)/float64(n) > maxNoiseRatio:
		meta.NoisePoints = best.noise
		return c.densityFallback(rows, meta, fmt.Sprintf("best radius left %d of %d tracks as noise", best.noise, n))
	}

	labels := reassignNoise(rows, best.labels)
	labels, k := renumber(labels)

	meta.NClusters = k
	meta.Radius = best.radius
	meta.Percentile = best.percentile
	meta.MinNeighbors = best.minPts
	meta.SearchScore = best.score
	meta.NoisePoints = best.noise

	c.log.Infow("density clustering selected",
		"radius", best.radius,
		"percentile", best.percentile,
		"min_neighbors", best.minPts,
		"clusters", k,
		"noise_reassigned", best.noise,
		"score", best.score,
	)
	return Result{Labels: labels, K: k, Outcome: Outcome{Kind: Success}, Metadata: meta}
}

func (c *Clusterer) densityFallback(rows [][]float64, meta Metadata, reason string) Result {
	k := fallbackK(len(rows))
	fit := c.kmeans(rows, k)
	labels, got := renumber(fit.labels)

	meta.Executed = KMeans
	meta.NClusters = got
	meta.Inertia = fit.inertia
	meta.FallbackReason = reason

	c.log.Infow("density clustering fell back to k-means", "fallback_reason", reason, "k", k)
	return Result{
		Labels:   labels,
		K:        got,
		Outcome:  Outcome{Kind: DegenerateFallback, Reason: reason},
		Metadata: meta,
	}
}

// reassignNoise moves every noise row to the cluster with the nearest
// centroid by squared Euclidean distance. Ties go to the lower label.
func reassignNoise(rows [][]float64, labels []int) []int {
	ctrs := centroids(rows, labels)
	ids, _ := groups(labels)

	out := slices.Clone(labels)
	for i, l := range labels {
		if l != Noise {
			continue
		}
		bestID, bestDist := ids[0], math.Inf(1)
		for _, id := range ids {
			if d := sqDist(rows[i], ctrs[id]); d < bestDist {
				bestID, bestDist = id, d
			}
		}
		out[i] = bestID
	}
	return out
}
