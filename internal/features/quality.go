package features

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Tier is a coarse data quality grade.
type Tier string

// Quality tiers, best first.
const (
	TierExcellent Tier = "excellent"
	TierGood      Tier = "good"
	TierModerate  Tier = "moderate"
	TierPoor      Tier = "poor"
)

var tierRecommendations = map[Tier]string{
	TierExcellent: "Excellent data quality - clustering analysis will be highly reliable",
	TierGood:      "Good data quality - clustering analysis will be reliable with minor imputation",
	TierModerate:  "Moderate data quality - clustering analysis will be moderately reliable after imputation",
	TierPoor:      "Poor data quality - recommend fetching more complete data for reliable analysis",
}

// TierFor maps an overall completeness ratio to a tier.
func TierFor(completeness float64) Tier {
	switch {
	case completeness >= 0.9:
		return TierExcellent
	case completeness >= 0.7:
		return TierGood
	case completeness >= 0.5:
		return TierModerate
	default:
		return TierPoor
	}
}

// Recommendation returns the user-facing advice for a tier.
func (t Tier) Recommendation() string {
	return tierRecommendations[t]
}

// Completeness counts present and missing values of one descriptor.
type Completeness struct {
	Present int     `json:"present"`
	Missing int     `json:"missing"`
	Ratio   float64 `json:"completeness"`
}

// QualityReport describes how complete the descriptors of a track list are.
type QualityReport struct {
	TotalTracks         int                     `json:"totalTracks"`
	OverallCompleteness float64                 `json:"overallCompleteness"`
	Features            map[string]Completeness `json:"featureCompleteness"`
	Tier                Tier                    `json:"tier"`
	Recommendation      string                  `json:"recommendation"`
}

// Quality reports descriptor completeness. It must run before imputation to
// describe the measured data.
func Quality(tracks []Track) QualityReport {
	report := QualityReport{
		TotalTracks: len(tracks),
		Features:    make(map[string]Completeness, NumDescriptors),
	}

	totalPresent := 0
	for _, d := range All() {
		present := 0
		for i := range tracks {
			if tracks[i].Has(d) {
				present++
			}
		}
		c := Completeness{Present: present, Missing: len(tracks) - present}
		if len(tracks) > 0 {
			c.Ratio = float64(present) / float64(len(tracks))
		}
		report.Features[d.String()] = c
		totalPresent += present
	}

	if cells := len(tracks) * NumDescriptors; cells > 0 {
		report.OverallCompleteness = float64(totalPresent) / float64(cells)
	}
	report.Tier = TierFor(report.OverallCompleteness)
	report.Recommendation = report.Tier.Recommendation()
	return report
}

// FeatureRange summarizes the spread of one descriptor.
type FeatureRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Std float64 `json:"std"`
}

// PlaylistStats holds summary statistics over the present values of a track list.
type PlaylistStats struct {
	TotalTracks      int                     `json:"totalTracks"`
	AvgDurationMs    float64                 `json:"avgDurationMs"`
	AvgPopularity    float64                 `json:"avgPopularity"`
	AvgAudioFeatures map[string]float64      `json:"avgAudioFeatures"`
	FeatureRanges    map[string]FeatureRange `json:"featureRanges"`
}

// Stats computes playlist summary statistics. Descriptors with no present
// value are left out of the maps.
func Stats(tracks []Track) PlaylistStats {
	stats := PlaylistStats{
		TotalTracks:      len(tracks),
		AvgAudioFeatures: make(map[string]float64),
		FeatureRanges:    make(map[string]FeatureRange),
	}

	var durations, popularity []float64
	for i := range tracks {
		if tracks[i].DurationMs != nil {
			durations = append(durations, float64(*tracks[i].DurationMs))
		}
		if tracks[i].Popularity != nil {
			popularity = append(popularity, float64(*tracks[i].Popularity))
		}
	}
	if len(durations) > 0 {
		stats.AvgDurationMs = stat.Mean(durations, nil)
	}
	if len(popularity) > 0 {
		stats.AvgPopularity = stat.Mean(popularity, nil)
	}

	for _, d := range All() {
		var values []float64
		for i := range tracks {
			if v, ok := tracks[i].Get(d); ok {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			continue
		}
		mean, std := stat.PopMeanStdDev(values, nil)
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, v := range values {
			lo = min(lo, v)
			hi = max(hi, v)
		}
		stats.AvgAudioFeatures[d.String()] = mean
		stats.FeatureRanges[d.String()] = FeatureRange{Min: lo, Max: hi, Std: std}
	}
	return stats
}
