// Command cluster-analyzer groups the tracks of a Spotify playlist by audio
// descriptor similarity. It runs as an HTTP API or one-shot from the shell.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/justestif/go-spotify-cluster-analyzer/internal/analysis"
	"github.com/justestif/go-spotify-cluster-analyzer/internal/auth"
	"github.com/justestif/go-spotify-cluster-analyzer/internal/clustering"
	"github.com/justestif/go-spotify-cluster-analyzer/internal/config"
	"github.com/justestif/go-spotify-cluster-analyzer/internal/db"
	"github.com/justestif/go-spotify-cluster-analyzer/internal/features"
	"github.com/justestif/go-spotify-cluster-analyzer/internal/logger"
	"github.com/justestif/go-spotify-cluster-analyzer/internal/playlists"
	"github.com/justestif/go-spotify-cluster-analyzer/internal/spotify"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if hint := errors.FlattenHints(err); hint != "" {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
		}
		os.Exit(1)
	}
}

func run() error {
	a := &app{v: config.New()}
	return newRootCmd(a).Execute()
}

// app holds state shared by every command, filled in before a command runs.
type app struct {
	v   *viper.Viper
	cfg *config.Config
	log *zap.SugaredLogger
}

func newRootCmd(a *app) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "cluster-analyzer",
		Short: "Group playlist tracks by how they sound",
		Long: `cluster-analyzer groups the tracks of a Spotify playlist into clusters of
similar audio descriptors (energy, danceability, valence, ...) and names them.

Configuration sources (in order of precedence):
1. Command line flags
2. Environment variables (ANALYZER_* prefix, plus SPOTIFY_ID, SPOTIFY_SECRET, DATABASE_URL)
3. Config file (./analyzer.toml or --config)
4. Default values

Examples:
  cluster-analyzer serve
  cluster-analyzer sync 37i9dQZF1DXcBWIGoYBM5M
  cluster-analyzer analyze 37i9dQZF1DXcBWIGoYBM5M --algorithm gaussian_mixture
  cluster-analyzer analyze --input tracks.json --clusters 4 --chart clusters.html`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.v, configPath)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Log.JSON, cfg.Log.Level)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "path to a TOML config file")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.Bool("log-json", false, "write JSON logs")
	_ = a.v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("log.json", flags.Lookup("log-json"))

	root.AddCommand(newServeCmd(a))
	root.AddCommand(newSyncCmd(a))
	root.AddCommand(newAnalyzeCmd(a))
	return root
}

// engine builds the analysis engine from configuration.
func (a *app) engine() *analysis.Engine {
	return analysis.NewEngine(features.DefaultTable(), clustering.DefaultConfig(), a.log.Named("analysis"))
}

// catalog returns a Spotify client, or nil when no credentials are configured
// and required is false.
func (a *app) catalog(ctx context.Context, required bool) (*spotify.Client, error) {
	if err := a.cfg.RequireSpotify(); err != nil {
		if required {
			return nil, err
		}
		a.log.Warn("Spotify credentials not set, sync and descriptor lookup are disabled")
		return nil, nil
	}

	cache := auth.NewTokenCache(a.cfg.TokenCache)
	if a.cfg.TokenCache == "" {
		var err error
		if cache, err = auth.DefaultTokenCache(); err != nil {
			return nil, err
		}
	}

	authenticator, err := auth.New(a.cfg.Spotify.ClientID, a.cfg.Spotify.ClientSecret, cache,
		auth.WithLogger(a.log.Named("auth")))
	if err != nil {
		return nil, err
	}
	api, err := authenticator.Client(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "authenticating with Spotify")
	}
	return spotify.New(api, a.log.Named("spotify")), nil
}

// service opens the database and wires the playlist service. Callers close
// the returned database.
func (a *app) service(ctx context.Context, requireCatalog bool) (*playlists.Service, *db.DB, error) {
	if err := a.cfg.RequireDatabase(); err != nil {
		return nil, nil, err
	}

	database, err := db.New(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(ctx); err != nil {
		database.Close()
		return nil, nil, err
	}

	client, err := a.catalog(ctx, requireCatalog)
	if err != nil {
		database.Close()
		return nil, nil, err
	}

	deps := playlists.Deps{
		Playlists: database.Playlists(),
		Tracks:    database.Tracks(),
		Analyses:  database.Analyses(),
		Engine:    a.engine(),
		Log:       a.log.Named("playlists"),
	}
	// Leave the interface nil rather than holding a nil *spotify.Client.
	if client != nil {
		deps.Catalog = client
	}

	alg, err := clustering.ParseAlgorithm(a.cfg.Analysis.Algorithm)
	if err != nil {
		database.Close()
		return nil, nil, errors.Wrap(err, "analysis.algorithm")
	}

	svc := playlists.New(deps,
		playlists.WithFetchTimeout(a.cfg.Analysis.FetchTimeout),
		playlists.WithDefaultAlgorithm(alg),
	)
	return svc, database, nil
}
