package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSyncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync <playlist-id>",
		Short: "Copy a playlist and its audio descriptors into the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, database, err := a.service(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer database.Close()

			res, err := svc.Sync(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Synced %q: %d tracks, %d descriptor values fetched\n",
				res.Name, res.TracksCount, res.FeaturesFilled)
			return nil
		},
	}
}
