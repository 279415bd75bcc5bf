package features

import (
	"math"
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

// minKnownForEstimate is the fewest observed values a descriptor needs before
// neighbour estimation is attempted.
const minKnownForEstimate = 2

// ImputeReport summarizes one imputation pass.
type ImputeReport struct {
	Tracks        int `json:"tracksImputed"`
	Cells         int `json:"valuesImputed"`
	Defaulted     int `json:"valuesDefaulted"`
	MeanFallbacks int `json:"meanFallbacks"`
}

// Imputer fills missing descriptors. It keeps no state between calls.
type Imputer struct {
	table Table
	log   *zap.SugaredLogger
}

// NewImputer creates an imputer for the given descriptor table.
// A nil logger disables logging.
func NewImputer(table Table, log *zap.SugaredLogger) *Imputer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if table.Neighbors <= 0 {
		table.Neighbors = DefaultTable().Neighbors
	}
	return &Imputer{table: table, log: log}
}

// Impute fills every missing descriptor of tracks in place and marks the
// touched tracks as imputed. Present values are never overwritten.
//
// Descriptors missing everywhere, or observed fewer than twice, take the table
// default. Remaining gaps are estimated with a distance-weighted k-nearest
// neighbour average over standardized columns; a track sharing no observed
// descriptor with any donor takes the column mean.
func (im *Imputer) Impute(tracks []Track) ImputeReport {
	var report ImputeReport
	n := len(tracks)
	if n == 0 {
		return report
	}

	// Snapshot observed values; NaN marks a gap.
	values := make([][]float64, n)
	known := make([]int, NumDescriptors)
	totalKnown := 0
	for i := range tracks {
		row := make([]float64, NumDescriptors)
		for _, d := range All() {
			if v, ok := tracks[i].Get(d); ok && !math.IsNaN(v) && !math.IsInf(v, 0) {
				row[d] = v
				known[d]++
				totalKnown++
			} else {
				row[d] = math.NaN()
			}
		}
		values[i] = row
	}

	touched := make([]bool, n)
	fill := func(i int, d Descriptor, v float64) {
		tracks[i].Set(d, v)
		touched[i] = true
		report.Cells++
	}

	if totalKnown == 0 {
		im.log.Debugw("no descriptors observed, using defaults", "tracks", n)
		for i := range tracks {
			for _, d := range All() {
				fill(i, d, im.table.Defaults[d])
				report.Defaulted++
			}
		}
		report.Tracks = n
		im.markImputed(tracks, touched)
		return report
	}

	// Columns too sparse for estimation go straight to the default.
	var sparse []string
	for _, d := range All() {
		if known[d] >= minKnownForEstimate {
			continue
		}
		sparse = append(sparse, d.String())
		for i := range tracks {
			if math.IsNaN(values[i][d]) {
				fill(i, d, im.table.Defaults[d])
				report.Defaulted++
			}
		}
	}
	if len(sparse) > 0 {
		im.log.Debugw("descriptors too sparse for neighbour estimate", "descriptors", sparse)
	}

	scaled, means, stds := standardizeObserved(values)

	// Estimates are computed from the snapshot before anything is written back.
	type estimate struct {
		row int
		d   Descriptor
		v   float64
	}
	var estimates []estimate

	for i := range values {
		for _, d := range All() {
			if !math.IsNaN(values[i][d]) || known[d] < minKnownForEstimate {
				continue
			}
			z, ok := im.neighbourEstimate(scaled, i, d)
			if !ok {
				report.MeanFallbacks++
				z = 0
			}
			v := z*stds[d] + means[d]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = im.table.Defaults[d]
				report.Defaulted++
			}
			estimates = append(estimates, estimate{row: i, d: d, v: im.table.Ranges[d].Clamp(v)})
		}
	}

	for _, e := range estimates {
		fill(e.row, e.d, e.v)
	}

	for _, t := range touched {
		if t {
			report.Tracks++
		}
	}
	im.markImputed(tracks, touched)

	im.log.Debugw("imputation complete",
		"tracks_imputed", report.Tracks,
		"values_imputed", report.Cells,
		"values_defaulted", report.Defaulted,
		"mean_fallbacks", report.MeanFallbacks,
	)
	return report
}

func (im *Imputer) markImputed(tracks []Track, touched []bool) {
	for i := range tracks {
		if touched[i] {
			tracks[i].Imputed = true
		}
	}
}

type donor struct {
	row  int
	dist float64
}

// neighbourEstimate returns the standardized estimate for cell (i, d), or
// false when no donor shares an observed descriptor with row i.
func (im *Imputer) neighbourEstimate(scaled [][]float64, i int, d Descriptor) (float64, bool) {
	var donors []donor
	for r := range scaled {
		if r == i || math.IsNaN(scaled[r][d]) {
			continue
		}
		dist, ok := nanEuclidean(scaled[i], scaled[r])
		if !ok {
			continue
		}
		donors = append(donors, donor{row: r, dist: dist})
	}
	if len(donors) == 0 {
		return 0, false
	}

	sort.SliceStable(donors, func(a, b int) bool {
		return donors[a].dist < donors[b].dist
	})
	k := min(im.table.Neighbors, len(donors))
	donors = donors[:k]

	// Exact matches take all of the weight.
	if donors[0].dist == 0 {
		var sum float64
		var count int
		for _, dn := range donors {
			if dn.dist != 0 {
				break
			}
			sum += scaled[dn.row][d]
			count++
		}
		return sum / float64(count), true
	}

	var num, den float64
	for _, dn := range donors {
		w := 1 / dn.dist
		num += w * scaled[dn.row][d]
		den += w
	}
	return num / den, true
}

// nanEuclidean is the Euclidean distance over co-observed coordinates, scaled
// up by the fraction of coordinates that were skipped.
func nanEuclidean(a, b []float64) (float64, bool) {
	var sum float64
	shared := 0
	for j := range a {
		if math.IsNaN(a[j]) || math.IsNaN(b[j]) {
			continue
		}
		diff := a[j] - b[j]
		sum += diff * diff
		shared++
	}
	if shared == 0 {
		return 0, false
	}
	return math.Sqrt(sum * float64(len(a)) / float64(shared)), true
}

// standardizeObserved scales each column to zero mean and unit variance using
// only its observed values. Gaps stay NaN. Constant columns keep a scale of 1.
func standardizeObserved(values [][]float64) (scaled [][]float64, means, stds []float64) {
	cols := NumDescriptors
	means = make([]float64, cols)
	stds = make([]float64, cols)

	col := make([]float64, 0, len(values))
	for j := 0; j < cols; j++ {
		col = col[:0]
		for i := range values {
			if !math.IsNaN(values[i][j]) {
				col = append(col, values[i][j])
			}
		}
		if len(col) == 0 {
			stds[j] = 1
			continue
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		means[j], stds[j] = mean, std
	}

	scaled = make([][]float64, len(values))
	for i, row := range values {
		out := make([]float64, cols)
		for j, v := range row {
			if math.IsNaN(v) {
				out[j] = math.NaN()
				continue
			}
			out[j] = (v - means[j]) / stds[j]
		}
		scaled[i] = out
	}
	return scaled, means, stds
}
