package clustering

import (
	"math"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/mat"
)

// minDegree keeps isolated points from dividing by zero in the normalized affinity.
const minDegree = 1e-12

var errEigenFailed = errors.New("eigendecomposition of the affinity matrix did not converge")

// spectral embeds rows with the top k eigenvectors of the symmetric
// normalized RBF affinity (gamma = 1/features), normalizes each embedded row
// to unit length and partitions the embedding with the seeded k-means.
func (c *Clusterer) spectral(rows [][]float64, k int) ([]int, error) {
	n, d := len(rows), len(rows[0])
	gamma := 1 / float64(d)

	affinity := mat.NewSymDense(n, nil)
	degree := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			w := math.Exp(-gamma * sqDist(rows[i], rows[j]))
			affinity.SetSym(i, j, w)
			degree[i] += w
			degree[j] += w
		}
	}
	for i := range degree {
		degree[i] = 1 / math.Sqrt(max(degree[i], minDegree))
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			affinity.SetSym(i, j, affinity.At(i, j)*degree[i]*degree[j])
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(affinity, true); !ok {
		return nil, errEigenFailed
	}
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	// Eigenvalues come back in ascending order; keep the last k columns.
	embed := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, k)
		var norm float64
		for j := 0; j < k; j++ {
			v := vectors.At(i, n-k+j)
			row[j] = v
			norm += v * v
		}
		if norm = math.Sqrt(norm); norm > 0 {
			for j := range row {
				row[j] /= norm
			}
		}
		embed[i] = row
	}

	return c.kmeans(embed, k).labels, nil
}
