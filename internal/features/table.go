package features

// Range is an inclusive value range for a descriptor.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Clamp limits v to r.
func (r Range) Clamp(v float64) float64 {
	return min(max(v, r.Min), r.Max)
}

// Table holds the fixed per-descriptor constants used by imputation and
// preprocessing. It is passed by value, so callers cannot mutate a shared copy.
type Table struct {
	// Defaults fill descriptors that cannot be estimated from neighbours.
	Defaults [NumDescriptors]float64
	// Weights scale standardized columns to favour perceptually salient descriptors.
	Weights [NumDescriptors]float64
	// Ranges bound imputed values.
	Ranges [NumDescriptors]Range
	// Neighbors is the neighbour count of the k-nearest-neighbour estimator.
	Neighbors int
}

// DefaultTable returns the descriptor constants used for playlist analysis.
func DefaultTable() Table {
	var t Table

	t.Defaults[Danceability] = 0.5
	t.Defaults[Energy] = 0.5
	t.Defaults[Key] = 0
	t.Defaults[Loudness] = -10.0
	t.Defaults[Mode] = 0
	t.Defaults[Speechiness] = 0.1
	t.Defaults[Acousticness] = 0.3
	t.Defaults[Instrumentalness] = 0.2
	t.Defaults[Liveness] = 0.15
	t.Defaults[Valence] = 0.5
	t.Defaults[Tempo] = 120.0

	t.Weights[Danceability] = 1.2
	t.Weights[Energy] = 1.2
	t.Weights[Key] = 0.3
	t.Weights[Loudness] = 0.8
	t.Weights[Mode] = 0.3
	t.Weights[Speechiness] = 0.8
	t.Weights[Acousticness] = 1.0
	t.Weights[Instrumentalness] = 0.9
	t.Weights[Liveness] = 0.7
	t.Weights[Valence] = 1.1
	t.Weights[Tempo] = 1.0

	unit := Range{Min: 0, Max: 1}
	for i := range t.Ranges {
		t.Ranges[i] = unit
	}
	t.Ranges[Key] = Range{Min: 0, Max: 11}
	t.Ranges[Loudness] = Range{Min: -60, Max: 0}
	t.Ranges[Tempo] = Range{Min: 50, Max: 200}

	t.Neighbors = 5
	return t
}

// WeightMap returns the weights keyed by descriptor name.
func (t Table) WeightMap() map[string]float64 {
	m := make(map[string]float64, NumDescriptors)
	for _, d := range All() {
		m[d.String()] = t.Weights[d]
	}
	return m
}
