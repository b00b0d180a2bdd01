package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"healthsync/internal/config"
	"healthsync/internal/platform/logger"
)

const serviceName = "healthsync"

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "healthsync",
		Short:         "HealthSync symptom triage API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	// Directory holding config.yaml; the working directory is always searched.
	root.PersistentFlags().String("config", "", "directory containing config.yaml")

	root.AddCommand(newServeCommand(), newMigrateCommand(), newSeedCommand())
	return root
}

// bootstrap reads configuration and builds the logger for a subcommand.
func bootstrap(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	dir, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Read(dir)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.Logging, serviceName)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}
