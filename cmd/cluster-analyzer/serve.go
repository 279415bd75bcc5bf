package main

import (
	"github.com/spf13/cobra"

	"github.com/justestif/go-spotify-cluster-analyzer/internal/config"
	"github.com/justestif/go-spotify-cluster-analyzer/internal/web"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, database, err := a.service(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer database.Close()

			server := web.NewServer(web.ServerConfig{
				Addr:    a.cfg.Addr,
				Service: svc,
				DB:      database,
				Log:     a.log.Named("web"),
			})
			return server.Run()
		},
	}
	cmd.Flags().String("addr", config.DefaultAddr, "listen address")
	_ = a.v.BindPFlag("addr", cmd.Flags().Lookup("addr"))
	return cmd
}
