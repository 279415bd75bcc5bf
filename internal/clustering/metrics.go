package clustering

import (
	"math"
	"slices"
)

// distanceMatrix returns pairwise Euclidean distances.
func distanceMatrix(rows [][]float64) [][]float64 {
	n := len(rows)
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := math.Sqrt(sqDist(rows[i], rows[j]))
			dist[i][j] = d
			dist[j][i] = d
		}
	}
	return dist
}

// groups returns the row indexes of each non-noise label, ordered by label.
func groups(labels []int) (ids []int, members map[int][]int) {
	members = make(map[int][]int)
	for i, l := range labels {
		if l == Noise {
			continue
		}
		if _, ok := members[l]; !ok {
			ids = append(ids, l)
		}
		members[l] = append(members[l], i)
	}
	slices.Sort(ids)
	return ids, members
}

// centroids returns the mean row of each label.
func centroids(rows [][]float64, labels []int) map[int][]float64 {
	_, members := groups(labels)
	out := make(map[int][]float64, len(members))
	for l, idx := range members {
		out[l] = meanRow(rows, idx)
	}
	return out
}

func meanRow(rows [][]float64, idx []int) []float64 {
	if len(idx) == 0 {
		return nil
	}
	mean := make([]float64, len(rows[idx[0]]))
	for _, i := range idx {
		for j, v := range rows[i] {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= float64(len(idx))
	}
	return mean
}

// silhouette returns the mean silhouette coefficient. It is undefined, and
// reported as false, unless 2 <= clusters < points.
func silhouette(dist [][]float64, labels []int) (float64, bool) {
	ids, members := groups(labels)
	n := len(labels)
	if len(ids) < 2 || len(ids) >= n {
		return 0, false
	}

	var total float64
	for i := 0; i < n; i++ {
		own := members[labels[i]]
		if len(own) <= 1 {
			continue // singleton scores 0
		}
		var a float64
		for _, j := range own {
			a += dist[i][j]
		}
		a /= float64(len(own) - 1)

		b := math.Inf(1)
		for _, l := range ids {
			if l == labels[i] {
				continue
			}
			var s float64
			for _, j := range members[l] {
				s += dist[i][j]
			}
			b = min(b, s/float64(len(members[l])))
		}

		if m := max(a, b); m > 0 {
			total += (b - a) / m
		}
	}
	return total / float64(n), true
}

// calinskiHarabasz is the ratio of between-cluster to within-cluster dispersion.
func calinskiHarabasz(rows [][]float64, labels []int) (float64, bool) {
	ids, members := groups(labels)
	n, k := len(rows), len(ids)
	if k < 2 || k >= n {
		return 0, false
	}
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}
	mean := meanRow(rows, all)

	var between, within float64
	for _, l := range ids {
		ctr := meanRow(rows, members[l])
		between += float64(len(members[l])) * sqDist(ctr, mean)
		for _, i := range members[l] {
			within += sqDist(rows[i], ctr)
		}
	}
	if within == 0 {
		return 1, true
	}
	return between * float64(n-k) / (within * float64(k-1)), true
}

// daviesBouldin is the mean over clusters of the worst similarity ratio to any
// other cluster. Lower is better.
func daviesBouldin(rows [][]float64, labels []int) (float64, bool) {
	ids, members := groups(labels)
	k := len(ids)
	if k < 2 {
		return 0, false
	}

	ctrs := make([][]float64, k)
	scatter := make([]float64, k)
	for c, l := range ids {
		ctrs[c] = meanRow(rows, members[l])
		for _, i := range members[l] {
			scatter[c] += math.Sqrt(sqDist(rows[i], ctrs[c]))
		}
		scatter[c] /= float64(len(members[l]))
	}

	var total float64
	for i := 0; i < k; i++ {
		var worst float64
		for j := 0; j < k; j++ {
			if i == j {
				continue
			}
			sep := math.Sqrt(sqDist(ctrs[i], ctrs[j]))
			if sep == 0 {
				continue
			}
			worst = max(worst, (scatter[i]+scatter[j])/sep)
		}
		total += worst
	}
	return total / float64(k), true
}

// wcss is the within-cluster sum of squared distances to the centroids.
func wcss(rows [][]float64, labels []int) float64 {
	ctrs := centroids(rows, labels)
	var total float64
	for i, l := range labels {
		if l == Noise {
			continue
		}
		total += sqDist(rows[i], ctrs[l])
	}
	return total
}

// withoutNoise returns the rows and labels of non-noise points.
func withoutNoise(rows [][]float64, labels []int) ([][]float64, []int) {
	var r [][]float64
	var l []int
	for i, lab := range labels {
		if lab != Noise {
			r = append(r, rows[i])
			l = append(l, lab)
		}
	}
	return r, l
}

// Scores are the validity metrics of a final labelling. Undefined metrics are
// reported as 0 and named in Undefined.
type Scores struct {
	Silhouette       float64
	CalinskiHarabasz float64
	DaviesBouldin    float64
	Undefined        []string
}

// Evaluate scores labels over rows. Noise rows are excluded.
func Evaluate(rows [][]float64, labels []int) Scores {
	rows, labels = withoutNoise(rows, labels)

	var s Scores
	var ok bool
	if s.Silhouette, ok = silhouette(distanceMatrix(rows), labels); !ok {
		s.Undefined = append(s.Undefined, "silhouette")
	}
	if s.CalinskiHarabasz, ok = calinskiHarabasz(rows, labels); !ok {
		s.Undefined = append(s.Undefined, "calinski_harabasz")
	}
	if s.DaviesBouldin, ok = daviesBouldin(rows, labels); !ok {
		s.Undefined = append(s.Undefined, "davies_bouldin")
	}
	return s
}
