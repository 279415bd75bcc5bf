package features

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// outlierZ is the standardized magnitude above which a value counts as an outlier.
const outlierZ = 3.0

// Raw-matrix windows for the unbounded descriptors.
const (
	tempoFloorBPM  = 60.0
	tempoSpanBPM   = 140.0
	loudnessFloor  = -60.0
	loudnessSpanDB = 60.0
	maxKey         = 11.0
)

// Matrix is a dense row-major matrix with one row per track.
type Matrix [][]float64

// Rows returns the number of rows.
func (m Matrix) Rows() int { return len(m) }

// Cols returns the number of columns.
func (m Matrix) Cols() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

// Dense copies m into a gonum matrix.
func (m Matrix) Dense() *mat.Dense {
	r, c := m.Rows(), m.Cols()
	data := make([]float64, 0, r*c)
	for _, row := range m {
		data = append(data, row...)
	}
	return mat.NewDense(r, c, data)
}

// ColumnStats describes one descriptor column before transformation.
type ColumnStats struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
}

// Info is per-call preprocessing metadata.
type Info struct {
	LogScaled []string               `json:"logScaled"`
	Stats     map[string]ColumnStats `json:"featureStats"`
	Outliers  int                    `json:"outliers"`
}

// Prepared holds the matrices derived from one track list.
type Prepared struct {
	// Matrix is log-scaled, standardized and weighted. Clustering and
	// projection run on it.
	Matrix Matrix
	// Raw keeps every descriptor on a 0..1 scale for interpreting centroids.
	Raw  Matrix
	Info Info
}

// Preprocess builds the clustering matrix and the raw labeling matrix from
// imputed tracks. Any descriptor still missing is read as the table default.
func Preprocess(tracks []Track, table Table) Prepared {
	n := len(tracks)
	native := make(Matrix, n)
	for i := range tracks {
		row := make([]float64, NumDescriptors)
		for _, d := range All() {
			v, ok := tracks[i].Get(d)
			if !ok || math.IsNaN(v) {
				v = table.Defaults[d]
			}
			row[d] = v
		}
		native[i] = row
	}

	info := Info{
		LogScaled: []string{Tempo.String(), Loudness.String()},
		Stats:     columnStats(native),
	}

	scaled := make(Matrix, n)
	raw := make(Matrix, n)
	for i, row := range native {
		s := make([]float64, NumDescriptors)
		copy(s, row)
		s[Tempo] = math.Log(max(row[Tempo], 1))
		s[Loudness] = math.Log(max(row[Loudness]+60, 1))
		scaled[i] = s
		raw[i] = rawRow(row)
	}

	col := make([]float64, n)
	for _, d := range All() {
		for i := range scaled {
			col[i] = scaled[i][d]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		w := table.Weights[d]
		for i := range scaled {
			z := (scaled[i][d] - mean) / std * w
			scaled[i][d] = z
			if math.Abs(z) > outlierZ {
				info.Outliers++
			}
		}
	}

	return Prepared{Matrix: scaled, Raw: raw, Info: info}
}

// rawRow rescales a native descriptor row to 0..1 without log scaling or weights.
func rawRow(native []float64) []float64 {
	out := make([]float64, len(native))
	copy(out, native)
	out[Tempo] = clamp01((native[Tempo] - tempoFloorBPM) / tempoSpanBPM)
	out[Loudness] = clamp01((native[Loudness] - loudnessFloor) / loudnessSpanDB)
	out[Key] = clamp01(native[Key] / maxKey)
	return out
}

func columnStats(m Matrix) map[string]ColumnStats {
	stats := make(map[string]ColumnStats, NumDescriptors)
	if len(m) == 0 {
		return stats
	}
	col := make([]float64, len(m))
	for _, d := range All() {
		lo, hi := math.Inf(1), math.Inf(-1)
		for i := range m {
			v := m[i][d]
			col[i] = v
			lo = min(lo, v)
			hi = max(hi, v)
		}
		stats[d.String()] = ColumnStats{Min: lo, Max: hi, Mean: stat.Mean(col, nil)}
	}
	return stats
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}
