package clustering

import (
	"fmt"
	"math"

	"github.com/justestif/go-spotify-cluster-analyzer/internal/features"
)

// Label is a human-readable name for a cluster.
type Label struct {
	Name        string
	Description string
}

// baseLabel maps a cluster's mean raw descriptor row (0..1 scale) to a label
// using a fixed decision tree over energy, valence, danceability,
// acousticness and instrumentalness. The first matching rule wins.
func baseLabel(raw []float64) Label {
	energy := raw[features.Energy]
	valence := raw[features.Valence]
	dance := raw[features.Danceability]
	acoustic := raw[features.Acousticness]
	instrumental := raw[features.Instrumentalness]

	switch {
	case energy > 0.7 && valence > 0.7 && dance > 0.7:
		return Label{"High-energy dance hits", "High-energy, positive vibes - perfect for dancing and celebrations"}
	case energy < 0.4 && acoustic > 0.6 && valence < 0.4:
		return Label{"Mellow & melancholic", "Soft, acoustic and wistful - ideal for quiet moments"}
	case energy < 0.4 && acoustic > 0.6:
		return Label{"Acoustic & calm", "Unplugged and relaxed - great for unwinding"}
	case instrumental > 0.5 && energy > 0.6:
		return Label{"Driving instrumentals", "Energetic tracks carried by instruments rather than vocals"}
	case instrumental > 0.5:
		return Label{"Ambient instrumentals", "Atmospheric, mostly vocal-free background listening"}
	case energy > 0.7 && valence < 0.4:
		return Label{"Intense & dark", "Intense, driving energy with darker emotional tones"}
	case valence > 0.6 && dance > 0.6:
		return Label{"Feel-good grooves", "Upbeat and danceable with a positive mood"}
	case energy < 0.4 && valence < 0.4:
		return Label{"Quiet & somber", "Contemplative and introspective - low energy, low mood"}
	case energy > 0.7:
		return Label{"High-energy anthems", "Loud, driving tracks built for peak moments"}
	default:
		return Label{"Balanced mix", "A varied mix without one dominant mood"}
	}
}

// bucket maps a 0..1 value to a coarse 1..5 level.
func bucket(v float64) int {
	return min(max(int(math.Floor(v*5))+1, 1), 5)
}

// LabelClusters names each cluster from its mean raw descriptor row. Clusters
// sharing a name get an energy/danceability/valence level suffix, and any
// names still shared after that get an ordinal, so every returned name is
// distinct.
func LabelClusters(rawMeans [][]float64) []Label {
	labels := make([]Label, len(rawMeans))
	count := make(map[string]int)
	for i, raw := range rawMeans {
		labels[i] = baseLabel(raw)
		count[labels[i].Name]++
	}

	for i, raw := range rawMeans {
		if count[labels[i].Name] > 1 {
			labels[i].Name = fmt.Sprintf("%s (E%d D%d V%d)", labels[i].Name,
				bucket(raw[features.Energy]),
				bucket(raw[features.Danceability]),
				bucket(raw[features.Valence]),
			)
		}
	}

	count = make(map[string]int)
	for _, l := range labels {
		count[l.Name]++
	}
	seen := make(map[string]int)
	for i := range labels {
		name := labels[i].Name
		if count[name] > 1 {
			seen[name]++
			labels[i].Name = fmt.Sprintf("%s #%d", name, seen[name])
		}
	}
	return labels
}
