// Package projection maps clustering rows onto two principal components for
// plotting.
package projection

import (
	"math"
	"sort"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/justestif/go-spotify-cluster-analyzer/internal/features"
)

// Methods reported on a Projection.
const (
	MethodPCA = "pca"
	// MethodColumns means the decomposition failed and the first two
	// columns were used as coordinates.
	MethodColumns = "columns"
)

// ErrShapeMismatch is returned when ids and rows differ in length.
var ErrShapeMismatch = errors.New("projection: track ids and matrix rows differ")

// Point is one track's 2D coordinate.
type Point struct {
	TrackID string  `json:"trackId"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}

// Projection is the 2D view of a clustering matrix.
type Projection struct {
	Points []Point `json:"points"`
	// ExplainedVariance is the share of total variance along each axis.
	ExplainedVariance [2]float64 `json:"explainedVariance"`
	Method            string     `json:"method"`
}

// Project returns a deterministic 2D principal-component projection of m.
// Rows are decomposed in track id order and each axis is oriented so that its
// largest-magnitude loading is positive. Points come back in input order.
func Project(ids []string, m features.Matrix) (Projection, error) {
	n := m.Rows()
	if len(ids) != n {
		return Projection{}, errors.Wrapf(ErrShapeMismatch, "%d ids, %d rows", len(ids), n)
	}

	out := Projection{Points: make([]Point, n), Method: MethodPCA}
	for i, id := range ids {
		out.Points[i].TrackID = id
	}
	d := m.Cols()
	if n < 2 || d == 0 {
		return out, nil
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return ids[order[a]] < ids[order[b]] })

	x := mat.NewDense(n, d, nil)
	for r, i := range order {
		x.SetRow(r, m[i])
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(x, nil); !ok {
		return columns(ids, m), nil
	}

	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	vars := pc.VarsTo(nil)
	_, k := vecs.Dims()
	axes := min(2, k)

	loadings := make([][]float64, axes)
	for a := range loadings {
		loadings[a] = mat.Col(nil, a, &vecs)
		orient(loadings[a])
	}

	means := make([]float64, d)
	for j := range means {
		means[j] = stat.Mean(mat.Col(nil, j, x), nil)
	}

	for r, i := range order {
		var coords [2]float64
		for a := range loadings {
			for j, w := range loadings[a] {
				coords[a] += (x.At(r, j) - means[j]) * w
			}
		}
		out.Points[i].X = coords[0]
		out.Points[i].Y = coords[1]
	}

	var total float64
	for _, v := range vars {
		total += v
	}
	if total > 0 {
		for a := 0; a < axes && a < len(vars); a++ {
			out.ExplainedVariance[a] = vars[a] / total
		}
	}
	return out, nil
}

// orient flips v in place so its largest-magnitude entry is positive. Ties go
// to the earlier entry.
func orient(v []float64) {
	best := 0
	for j := range v {
		if math.Abs(v[j]) > math.Abs(v[best]) {
			best = j
		}
	}
	if len(v) > 0 && v[best] < 0 {
		for j := range v {
			v[j] = -v[j]
		}
	}
}

func columns(ids []string, m features.Matrix) Projection {
	out := Projection{Points: make([]Point, len(ids)), Method: MethodColumns}
	for i, row := range m {
		out.Points[i].TrackID = ids[i]
		if len(row) > 0 {
			out.Points[i].X = row[0]
		}
		if len(row) > 1 {
			out.Points[i].Y = row[1]
		}
	}
	return out
}
