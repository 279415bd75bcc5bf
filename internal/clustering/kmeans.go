package clustering

import (
	"math"
	"math/rand"

	"github.com/muesli/clusters"
)

// rowObservation wraps a matrix row to implement clusters.Observation.
type rowObservation struct {
	coords clusters.Coordinates
}

func (o rowObservation) Coordinates() clusters.Coordinates {
	return o.coords
}

// Distance returns the squared Euclidean distance to point.
func (o rowObservation) Distance(point clusters.Coordinates) float64 {
	return o.coords.Distance(point)
}

// kmeansFit is one k-means partition. Labels are 0-based cluster indexes.
type kmeansFit struct {
	labels  []int
	centers []clusters.Coordinates
	inertia float64
}

// kmeans partitions rows into k groups. Each restart seeds centers with
// k-means++ from a generator seeded with the configured seed, so the same
// input always yields the same partition. The restart with the lowest inertia
// wins; ties keep the earlier restart.
func (c *Clusterer) kmeans(rows [][]float64, k int) kmeansFit {
	k = min(k, len(rows))
	obs := make(clusters.Observations, len(rows))
	for i, r := range rows {
		obs[i] = rowObservation{coords: r}
	}

	rng := rand.New(rand.NewSource(c.cfg.Seed))
	best := kmeansFit{inertia: math.Inf(1)}
	for run := 0; run < c.cfg.Restarts; run++ {
		fit := lloyd(obs, seedPlusPlus(rows, k, rng), c.cfg.MaxIterations)
		if fit.inertia < best.inertia {
			best = fit
		}
	}
	return best
}

// lloyd alternates assignment and recentering until no point changes cluster.
// An emptied cluster keeps its previous center.
func lloyd(obs clusters.Observations, centers []clusters.Coordinates, maxIter int) kmeansFit {
	cc := make(clusters.Clusters, len(centers))
	for i, ctr := range centers {
		cc[i] = clusters.Cluster{Center: ctr}
	}

	labels := make([]int, len(obs))
	for i := range labels {
		labels[i] = -1
	}

	for iter := 0; iter < maxIter; iter++ {
		changed := 0
		cc.Reset()
		for i, o := range obs {
			ci := cc.Nearest(o)
			cc[ci].Append(o)
			if labels[i] != ci {
				labels[i] = ci
				changed++
			}
		}
		cc.Recenter()
		if changed == 0 {
			break
		}
	}

	fit := kmeansFit{labels: labels, centers: make([]clusters.Coordinates, len(cc))}
	for i, cl := range cc {
		fit.centers[i] = cl.Center
	}
	for i, o := range obs {
		fit.inertia += o.Distance(cc[labels[i]].Center)
	}
	return fit
}

// seedPlusPlus picks k initial centers: the first uniformly, each next one
// with probability proportional to its squared distance from the nearest
// center chosen so far.
func seedPlusPlus(rows [][]float64, k int, rng *rand.Rand) []clusters.Coordinates {
	n := len(rows)
	centers := make([]clusters.Coordinates, 0, k)
	centers = append(centers, cloneRow(rows[rng.Intn(n)]))

	dists := make([]float64, n)
	for len(centers) < k {
		var total float64
		for i, r := range rows {
			d := math.Inf(1)
			for _, ctr := range centers {
				d = min(d, sqDist(r, ctr))
			}
			dists[i] = d
			total += d
		}

		// Every point already sits on a center.
		if total == 0 {
			centers = append(centers, cloneRow(rows[rng.Intn(n)]))
			continue
		}

		target := rng.Float64() * total
		chosen := n - 1
		var cumulative float64
		for i, d := range dists {
			cumulative += d
			if d > 0 && cumulative >= target {
				chosen = i
				break
			}
		}
		centers = append(centers, cloneRow(rows[chosen]))
	}
	return centers
}

func cloneRow(r []float64) clusters.Coordinates {
	out := make(clusters.Coordinates, len(r))
	copy(out, r)
	return out
}
