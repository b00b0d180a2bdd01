package main

import (
	"github.com/spf13/cobra"

	"healthsync/internal/platform/database"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer log.Sync()
			return database.Migrate(cfg.Database, log)
		},
	}
}
