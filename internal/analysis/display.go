package analysis

import (
	"fmt"
	"strings"

	"github.com/justestif/go-spotify-cluster-analyzer/internal/features"
)

const sampleTrackCount = 3

// FormatSummary returns a human-readable summary of an analysis.
// Shows label, track count, and first 3 sample tracks for each cluster.
// tracks resolves ids to names; unknown ids are printed as is.
func FormatSummary(res *Result, tracks []features.Track) string {
	var sb strings.Builder

	byID := make(map[string]features.Track, len(tracks))
	for _, t := range tracks {
		byID[t.ID] = t
	}

	totalTracks := 0
	for _, c := range res.Clusters {
		totalTracks += c.TrackCount
	}

	// Header
	if len(res.Clusters) == 0 {
		sb.WriteString(fmt.Sprintf("No clusters found from %d tracks\n", totalTracks))
		return sb.String()
	}

	clusterWord := "cluster"
	if len(res.Clusters) > 1 {
		clusterWord = "clusters"
	}

	meta := res.Metadata.Algorithm
	sb.WriteString(fmt.Sprintf("Found %d %s from %d tracks using %s", len(res.Clusters), clusterWord, totalTracks, meta.Executed))
	if meta.FallbackReason != "" {
		sb.WriteString(fmt.Sprintf(" (fell back from %s: %s)", meta.Algorithm, meta.FallbackReason))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Silhouette %.3f, data quality %s\n", res.SilhouetteScore, res.QualityReport.Tier))

	// Cluster details
	for _, c := range res.Clusters {
		sb.WriteString("\n")
		sb.WriteString(formatCluster(c, byID))
	}

	return sb.String()
}

// formatCluster formats a single cluster with its sample tracks.
func formatCluster(c Cluster, byID map[string]features.Track) string {
	var sb strings.Builder

	trackWord := "track"
	if c.TrackCount > 1 {
		trackWord = "tracks"
	}

	sb.WriteString(fmt.Sprintf("Cluster %d: %s (%d %s)\n", c.ID, c.Label, c.TrackCount, trackWord))
	if c.Description != "" {
		sb.WriteString(fmt.Sprintf("  %s\n", c.Description))
	}

	sampleCount := min(sampleTrackCount, len(c.TrackIDs))
	for i := 0; i < sampleCount; i++ {
		id := c.TrackIDs[i]
		t, ok := byID[id]
		if !ok || t.Name == "" {
			sb.WriteString(fmt.Sprintf("  • %s\n", id))
			continue
		}
		sb.WriteString(fmt.Sprintf("  • \"%s\" - %s\n", t.Name, t.Artist))
	}

	// Show "and N more" if needed
	remaining := len(c.TrackIDs) - sampleTrackCount
	if remaining > 0 {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", remaining))
	}

	return sb.String()
}
