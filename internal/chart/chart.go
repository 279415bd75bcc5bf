// Package chart renders the 2D projection of an analysis as a PNG scatter
// plot or an interactive HTML page.
package chart

import (
	"fmt"
	"image/color"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/justestif/go-spotify-cluster-analyzer/internal/analysis"
)

// Default PNG size.
const (
	DefaultWidth  = 8 * vg.Inch
	DefaultHeight = 6 * vg.Inch
)

// ErrNoPoints is returned when a result has no projected points.
var ErrNoPoints = errors.New("analysis has no projected points")

// Series is the projected points of one cluster.
type Series struct {
	ClusterID int
	Label     string
	TrackIDs  []string
	Points    plotter.XYs
}

// Group splits the projected points of res by cluster, in the order of
// res.Clusters. Points of tracks that belong to no cluster are collected in a
// trailing "Unassigned" series.
func Group(res *analysis.Result) []Series {
	byTrack := make(map[string]int, len(res.PCACoordinates))
	series := make([]Series, 0, len(res.Clusters)+1)
	for i, c := range res.Clusters {
		series = append(series, Series{ClusterID: c.ID, Label: c.Label})
		for _, id := range c.TrackIDs {
			byTrack[id] = i
		}
	}

	unassigned := Series{Label: "Unassigned"}
	for _, p := range res.PCACoordinates {
		s := &unassigned
		if i, ok := byTrack[p.TrackID]; ok {
			s = &series[i]
		}
		s.TrackIDs = append(s.TrackIDs, p.TrackID)
		s.Points = append(s.Points, plotter.XY{X: p.X, Y: p.Y})
	}
	if len(unassigned.Points) > 0 {
		series = append(series, unassigned)
	}
	return series
}

// PNG writes a scatter plot of the projection of res, one colour per cluster.
func PNG(w io.Writer, res *analysis.Result, width, height vg.Length) error {
	if len(res.PCACoordinates) == 0 {
		return ErrNoPoints
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%d clusters (%s)", len(res.Clusters), res.Metadata.Algorithm.Algorithm)
	p.X.Label.Text = axisLabel("PC1", res.Metadata.ExplainedVariance[0])
	p.Y.Label.Text = axisLabel("PC2", res.Metadata.ExplainedVariance[1])
	p.Add(plotter.NewGrid())

	for i, s := range Group(res) {
		if len(s.Points) == 0 {
			continue
		}
		sc, err := plotter.NewScatter(s.Points)
		if err != nil {
			return errors.Wrapf(err, "building scatter for %q", s.Label)
		}
		sc.GlyphStyle.Color = plotutil.Color(i)
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		sc.GlyphStyle.Radius = vg.Points(3)
		p.Add(sc)
		p.Legend.Add(s.Label, sc)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return errors.Wrap(err, "creating png writer")
	}
	if _, err := wt.WriteTo(w); err != nil {
		return errors.Wrap(err, "writing png")
	}
	return nil
}

// HTML writes an interactive scatter page of the projection of res.
func HTML(w io.Writer, res *analysis.Result, title string) error {
	if len(res.PCACoordinates) == 0 {
		return ErrNoPoints
	}

	groups := Group(res)
	palette := make([]string, len(groups))
	for i := range groups {
		palette[i] = hex(plotutil.Color(i))
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "900px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("algorithm=%s clusters=%d silhouette=%.3f", res.Metadata.Algorithm.Algorithm, len(res.Clusters), res.SilhouetteScore),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithColorsOpts(opts.Colors(palette)),
		charts.WithXAxisOpts(opts.XAxis{Name: axisLabel("PC1", res.Metadata.ExplainedVariance[0]), NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: axisLabel("PC2", res.Metadata.ExplainedVariance[1]), NameLocation: "middle", NameGap: 30}),
	)

	for _, g := range groups {
		data := make([]opts.ScatterData, 0, len(g.Points))
		for i, pt := range g.Points {
			data = append(data, opts.ScatterData{Name: g.TrackIDs[i], Value: []interface{}{pt.X, pt.Y}})
		}
		scatter.AddSeries(g.Label, data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))
	}

	if err := scatter.Render(w); err != nil {
		return errors.Wrap(err, "rendering chart")
	}
	return nil
}

func axisLabel(axis string, explained float64) string {
	return fmt.Sprintf("%s (%.0f%% of variance)", axis, explained*100)
}

// hex formats c as a CSS colour.
func hex(c color.Color) string {
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8)
}
