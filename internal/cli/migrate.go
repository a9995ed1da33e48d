package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/halverson/starwatch/internal/storage/postgres"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Creates the starwatch tables",
		Long:  "Applies the idempotent schema statements for repos, repo_stars, and crawl_progress.",
		RunE:  runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()
	pool, err := postgres.NewPool(ctx, poolConfig(cfg))
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	logger.Info("schema is up to date")
	return nil
}
