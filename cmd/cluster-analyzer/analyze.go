package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/justestif/go-spotify-cluster-analyzer/internal/analysis"
	"github.com/justestif/go-spotify-cluster-analyzer/internal/chart"
	"github.com/justestif/go-spotify-cluster-analyzer/internal/clustering"
	"github.com/justestif/go-spotify-cluster-analyzer/internal/features"
)

type analyzeFlags struct {
	input     string
	algorithm string
	clusters  int
	plot      string
	chart     string
	json      bool
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var f analyzeFlags

	cmd := &cobra.Command{
		Use:   "analyze [playlist-id]",
		Short: "Cluster a synced playlist or a JSON track file",
		Long: `Cluster the tracks of a synced playlist, or of a JSON file holding an array
of tracks when --input is given. The file form needs no database or credentials.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (f.input == "") == (len(args) == 0) {
				return errors.WithHint(errors.New("need exactly one of a playlist id or --input"),
					"run `cluster-analyzer analyze --help` for usage")
			}
			opts := analysis.Options{Algorithm: clustering.Algorithm(f.algorithm), Clusters: f.clusters}

			var (
				res    *analysis.Result
				tracks []features.Track
				title  string
				err    error
			)
			if f.input != "" {
				tracks, err = readTracks(f.input)
				if err != nil {
					return err
				}
				if opts.Algorithm == "" {
					opts.Algorithm = clustering.Algorithm(a.cfg.Analysis.Algorithm)
				}
				quality := features.Quality(tracks)
				opts.Quality = &quality
				res, err = a.engine().Analyze(tracks, opts)
				title = f.input
			} else {
				res, tracks, err = a.analyzeStored(cmd, args[0], opts)
				title = "Playlist " + args[0]
			}
			if err != nil {
				return err
			}

			if err := writeCharts(res, f, title); err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), res, tracks, f.json)
		},
	}

	cmd.Flags().StringVarP(&f.input, "input", "i", "", "JSON file with an array of tracks")
	cmd.Flags().StringVarP(&f.algorithm, "algorithm", "a", "", "kmeans, gaussian_mixture, spectral or dbscan (default from config)")
	cmd.Flags().IntVarP(&f.clusters, "clusters", "k", 0, "number of clusters; 0 selects automatically")
	cmd.Flags().StringVar(&f.plot, "plot", "", "write a PNG scatter plot to this path")
	cmd.Flags().StringVar(&f.chart, "chart", "", "write an HTML chart to this path")
	cmd.Flags().BoolVar(&f.json, "json", false, "print the full result as JSON")
	return cmd
}

// analyzeStored runs the playlist service and returns the result with the
// stored tracks for display.
func (a *app) analyzeStored(cmd *cobra.Command, playlistID string, opts analysis.Options) (*analysis.Result, []features.Track, error) {
	svc, database, err := a.service(cmd.Context(), false)
	if err != nil {
		return nil, nil, err
	}
	defer database.Close()

	rec, err := svc.Analyze(cmd.Context(), playlistID, opts)
	if err != nil {
		return nil, nil, err
	}
	tracks, err := database.Tracks().GetForPlaylist(cmd.Context(), playlistID)
	if err != nil {
		return nil, nil, err
	}
	a.log.Infow("analysis stored", "id", rec.ID)
	return rec.Result, tracks, nil
}

func readTracks(path string) ([]features.Track, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading tracks")
	}
	var tracks []features.Track
	if err := json.Unmarshal(data, &tracks); err != nil {
		return nil, errors.Wrapf(err, "decoding %s", path)
	}
	return tracks, nil
}

func writeCharts(res *analysis.Result, f analyzeFlags, title string) error {
	if f.plot != "" {
		if err := writeFile(f.plot, func(w io.Writer) error {
			return chart.PNG(w, res, chart.DefaultWidth, chart.DefaultHeight)
		}); err != nil {
			return err
		}
	}
	if f.chart != "" {
		if err := writeFile(f.chart, func(w io.Writer) error {
			return chart.HTML(w, res, title)
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, render func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	if err := render(file); err != nil {
		file.Close()
		return err
	}
	return errors.Wrapf(file.Close(), "closing %s", path)
}

func printResult(w io.Writer, res *analysis.Result, tracks []features.Track, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	_, err := fmt.Fprint(w, analysis.FormatSummary(res, tracks))
	return err
}
