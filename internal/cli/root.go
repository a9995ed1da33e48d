// Package cli defines and implements the commands for the starwatch executable.
package cli

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/halverson/starwatch/internal/config"
	"github.com/halverson/starwatch/internal/logging"
	"github.com/halverson/starwatch/internal/storage/postgres"
)

var cfgFile string

// NewRootCmd creates and configures the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "starwatch",
		Short: "Harvests GitHub repository star counts into Postgres.",
		Long: `starwatch walks the GitHub GraphQL search API page by page, upserting
repository metadata and appending star observations into Postgres. Every
page commits a durable cursor checkpoint, so an interrupted crawl resumes
where it stopped.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); environment variables override")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// loadConfig reads .env when present, then builds the runtime config and
// logger shared by the subcommands.
func loadConfig() (config.Config, *zap.Logger, error) {
	// .env is optional; deployed environments export variables directly.
	_ = godotenv.Load()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func poolConfig(cfg config.Config) postgres.PoolConfig {
	return postgres.PoolConfig{
		DSN:             cfg.DB.DSN,
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		MaxConnLifetime: cfg.DBMaxConnLifetime(),
	}
}
