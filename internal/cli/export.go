package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/halverson/starwatch/internal/export"
	"github.com/halverson/starwatch/internal/storage/postgres"
)

func newExportCmd() *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Dumps the star observation series as CSV",
		Long: `Writes every stored star observation, newest first, as CSV with a
full_name, observed_at, stargazers header row.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExport(cmd, outPath)
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "repo_stars.csv", `output file ("-" for stdout)`)
	return cmd
}

func runExport(cmd *cobra.Command, outPath string) error {
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

	if outPath == "-" {
		rows, err := export.WriteStars(ctx, pool, cmd.OutOrStdout())
		if err != nil {
			return fmt.Errorf("export stars: %w", err)
		}
		logger.Info("export complete", zap.Int("rows", rows))
		return nil
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	rows, werr := export.WriteStars(ctx, pool, f)
	cerr := f.Close()
	if werr != nil {
		return fmt.Errorf("export stars: %w", werr)
	}
	if cerr != nil {
		return fmt.Errorf("close output file: %w", cerr)
	}

	logger.Info("export complete", zap.Int("rows", rows), zap.String("out", outPath))
	return nil
}
