package cli

import (
	"context"
	"errors"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	gcsarchive "github.com/halverson/starwatch/internal/archive/gcs"
	localarchive "github.com/halverson/starwatch/internal/archive/local"
	"github.com/halverson/starwatch/internal/clock/system"
	"github.com/halverson/starwatch/internal/config"
	"github.com/halverson/starwatch/internal/crawler"
	"github.com/halverson/starwatch/internal/github"
	"github.com/halverson/starwatch/internal/metrics"
	"github.com/halverson/starwatch/internal/ops"
	kafkapub "github.com/halverson/starwatch/internal/publisher/kafka"
	memorypub "github.com/halverson/starwatch/internal/publisher/memory"
	pubsubpub "github.com/halverson/starwatch/internal/publisher/pubsub"
	"github.com/halverson/starwatch/internal/ratelimit"
	"github.com/halverson/starwatch/internal/storage/postgres"
)

func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Runs the resumable star harvest",
		Long: `Walks the configured search streams page by page, upserting repository
metadata and star observations into Postgres. Each page is committed before
the cursor checkpoint advances, so a crashed or interrupted run resumes
from the last durable page.`,
		RunE: runCrawl,
	}
}

func runCrawl(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.GitHub.Token == "" {
		return errors.New("github.token is required (set GITHUB_TOKEN)")
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	metrics.Init()

	pool, err := postgres.NewPool(ctx, poolConfig(cfg))
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	progress, err := postgres.NewProgressStore(pool)
	if err != nil {
		return err
	}
	sink, err := postgres.NewRepoSink(pool)
	if err != nil {
		return err
	}

	budget := ratelimit.NewBudget(ratelimit.BudgetConfig{
		LowWater: cfg.Budget.LowWater,
		Pad:      cfg.BudgetPad(),
	})

	// One pacer for all streams so the configured RPS bounds the whole
	// process, not each stream individually.
	var pacer crawler.Pacer
	if cfg.Crawl.RPS > 0 {
		pacer = ratelimit.NewPacer(ratelimit.PacerConfig{RPS: cfg.Crawl.RPS, Burst: cfg.Crawl.Burst})
	}

	pub, closePublisher, err := buildPublisher(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closePublisher()

	arch, closeArchive, err := buildArchive(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeArchive()

	if cfg.Ops.Enabled {
		srv := ops.NewServer(pool, logger)
		go func() {
			if err := srv.Run(ctx, fmt.Sprintf(":%d", cfg.Ops.Port)); err != nil {
				logger.Error("ops server failed", zap.Error(err))
			}
		}()
	}

	clk := system.New()

	g, gctx := errgroup.WithContext(ctx)
	summaries := make([]crawler.RunSummary, len(cfg.Crawl.Streams))
	for i, stream := range cfg.Crawl.Streams {
		g.Go(func() error {
			// Each stream gets its own API client; the client captures
			// per-request rate headers that must not interleave.
			client, err := github.NewClient(github.Config{
				Token:    cfg.GitHub.Token,
				Endpoint: cfg.GitHub.Endpoint,
				PageSize: cfg.Crawl.PageSize,
				Timeout:  cfg.GitHubTimeout(),
			}, logger.Named("github").With(zap.String("stream", stream.Name)))
			if err != nil {
				return fmt.Errorf("init github client: %w", err)
			}

			eng, err := crawler.New(crawler.Config{
				Stream:        stream.Name,
				Query:         stream.Query,
				MaxPages:      cfg.Crawl.MaxPages,
				Topic:         cfg.Publish.Topic,
				ArchivePrefix: cfg.Archive.Prefix,
				Fetcher:       client,
				Progress:      progress,
				Sink:          sink,
				Budget:        budget,
				Pacer:         pacer,
				Publisher:     pub,
				Archive:       arch,
				Clock:         clk,
				Sleeper:       clk,
				Logger:        logger.Named("crawler"),
			})
			if err != nil {
				return fmt.Errorf("init crawler for stream %q: %w", stream.Name, err)
			}

			summary, err := eng.Run(gctx)
			summaries[i] = summary
			return err
		})
	}

	runErr := g.Wait()
	cancel()

	for _, s := range summaries {
		if s.Status == "" {
			continue
		}
		logger.Info("stream finished",
			zap.String("stream", s.Stream),
			zap.String("status", string(s.Status)),
			zap.Int("pages", s.Pages),
			zap.Int("repos", s.Repos),
			zap.Duration("elapsed", s.Ended.Sub(s.Started)),
		)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("crawl: %w", runErr)
	}
	return nil
}

// buildPublisher resolves the configured page event backend. The returned
// close func is always safe to call.
func buildPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (crawler.Publisher, func(), error) {
	switch cfg.Publish.Backend {
	case "", "none":
		return nil, func() {}, nil
	case "memory":
		// Dry-run backend: events are retained in process and dropped at
		// exit, but the publish path still runs.
		return memorypub.New(), func() {}, nil
	case "kafka":
		pub, err := kafkapub.New(cfg.Publish.Kafka.Brokers)
		if err != nil {
			return nil, nil, fmt.Errorf("init kafka publisher: %w", err)
		}
		return pub, func() {
			if err := pub.Close(); err != nil {
				logger.Warn("close kafka publisher", zap.Error(err))
			}
		}, nil
	case "pubsub":
		client, err := gcppubsub.NewClient(ctx, cfg.Publish.PubSub.ProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("init pubsub client: %w", err)
		}
		pub := pubsubpub.New(client)
		return pub, func() {
			if err := pub.Close(); err != nil {
				logger.Warn("close pubsub publisher", zap.Error(err))
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("publish.backend %q is not supported", cfg.Publish.Backend)
	}
}

// buildArchive resolves the configured page snapshot backend.
func buildArchive(ctx context.Context, cfg config.Config, logger *zap.Logger) (crawler.Archive, func(), error) {
	switch cfg.Archive.Backend {
	case "", "none":
		return nil, func() {}, nil
	case "local":
		arch, err := localarchive.New(cfg.Archive.LocalDir)
		if err != nil {
			return nil, nil, fmt.Errorf("init local archive: %w", err)
		}
		return arch, func() {}, nil
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("init gcs client: %w", err)
		}
		arch, err := gcsarchive.New(client, cfg.Archive.GCSBucket)
		if err != nil {
			return nil, nil, err
		}
		return arch, func() {
			if err := client.Close(); err != nil {
				logger.Warn("close gcs client", zap.Error(err))
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("archive.backend %q is not supported", cfg.Archive.Backend)
	}
}
