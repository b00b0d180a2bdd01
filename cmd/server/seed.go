package main

import (
	"github.com/spf13/cobra"

	"healthsync/internal/catalog"
	"healthsync/internal/platform/database"
)

func newSeedCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the condition catalog and doctor directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer log.Sync()

			c, err := catalog.Load(file)
			if err != nil {
				return err
			}
			db, err := database.Open(cmd.Context(), cfg.Database, log)
			if err != nil {
				return err
			}
			defer db.Close()
			return catalog.Seed(cmd.Context(), db, c, log)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "catalog YAML (defaults to the built-in starter catalog)")
	return cmd
}
