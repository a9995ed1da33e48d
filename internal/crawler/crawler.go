package crawler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/halverson/starwatch/internal/metrics"
)

// Config wires one crawl stream's collaborators and knobs.
type Config struct {
	// Stream names the checkpoint row this run resumes from.
	Stream string
	// Query is the search expression sent with every page request.
	Query string
	// MaxPages caps pages fetched per run. Zero means no cap.
	MaxPages int
	// Topic is where page events are published when a Publisher is set.
	Topic string
	// ArchivePrefix is the object path prefix for page snapshots.
	ArchivePrefix string

	Fetcher   PageFetcher
	Progress  ProgressStore
	Sink      RepoSink
	Budget    BudgetPolicy
	Pacer     Pacer
	Publisher Publisher
	Archive   Archive
	Clock     Clock
	Sleeper   Sleeper
	Logger    *zap.Logger
}

// Crawler drives one stream through fetch, sink, and checkpoint until the
// results run out, the page cap is reached, or an error aborts the run.
type Crawler struct {
	cfg    Config
	logger *zap.Logger
}

// New validates the configuration and returns a Crawler.
func New(cfg Config) (*Crawler, error) {
	if cfg.Stream == "" {
		return nil, fmt.Errorf("stream is required")
	}
	if cfg.Query == "" {
		return nil, fmt.Errorf("query is required")
	}
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if cfg.Progress == nil {
		return nil, fmt.Errorf("progress store is required")
	}
	if cfg.Sink == nil {
		return nil, fmt.Errorf("sink is required")
	}
	if cfg.Budget == nil {
		return nil, fmt.Errorf("budget policy is required")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if cfg.Sleeper == nil {
		return nil, fmt.Errorf("sleeper is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ArchivePrefix == "" {
		cfg.ArchivePrefix = "snapshots"
	}
	return &Crawler{
		cfg:    cfg,
		logger: logger.With(zap.String("stream", cfg.Stream)),
	}, nil
}

// Run executes the crawl loop. The checkpoint cursor only advances after a
// page has been durably sunk, so an aborted run resumes on the page that
// failed.
func (c *Crawler) Run(ctx context.Context) (RunSummary, error) {
	summary := RunSummary{
		Stream:  c.cfg.Stream,
		Status:  RunStatusRunning,
		Started: c.cfg.Clock.Now(),
	}

	if err := c.cfg.Progress.Ensure(ctx, c.cfg.Stream); err != nil {
		return c.abort(summary, fmt.Errorf("ensure checkpoint: %w", err))
	}
	cursor, err := c.cfg.Progress.Cursor(ctx, c.cfg.Stream)
	if err != nil {
		return c.abort(summary, fmt.Errorf("read checkpoint: %w", err))
	}
	summary.Cursor = cursor
	if cursor != nil {
		c.logger.Info("resuming from checkpoint", zap.String("cursor", *cursor))
	} else {
		c.logger.Info("starting from the beginning")
	}

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return c.abort(summary, err)
		}
		if c.cfg.Pacer != nil {
			if err := c.cfg.Pacer.Wait(ctx); err != nil {
				return c.abort(summary, fmt.Errorf("pace request: %w", err))
			}
		}

		result, err := c.cfg.Fetcher.FetchPage(ctx, c.cfg.Query, cursor)
		if err != nil {
			return c.abort(summary, fmt.Errorf("fetch page %d: %w", page, err))
		}
		summary.Pages++
		metrics.ObservePage(c.cfg.Stream)
		observedAt := c.cfg.Clock.Now()

		if result.Budget != nil {
			metrics.SetRateRemaining(c.cfg.Stream, result.Budget.Remaining)
		}
		if wait := c.cfg.Budget.Evaluate(result.Budget, observedAt); wait > 0 {
			c.logger.Info("rate budget low, pausing",
				zap.Duration("wait", wait),
				zap.Int("page", page),
			)
			metrics.ObserveBudgetWait(c.cfg.Stream, wait)
			c.cfg.Sleeper.Sleep(wait)
		}

		if len(result.Repos) == 0 {
			c.logger.Info("no results returned, stopping", zap.Int("page", page))
			return c.finish(summary)
		}

		applied, err := c.cfg.Sink.SinkPage(ctx, result.Repos, observedAt)
		if err != nil {
			return c.abort(summary, fmt.Errorf("sink page %d: %w", page, err))
		}
		summary.Repos += applied
		metrics.ObserveRepos(c.cfg.Stream, applied)

		if c.cfg.Archive != nil {
			uri, err := c.archivePage(ctx, page, observedAt, result)
			if err != nil {
				return c.abort(summary, fmt.Errorf("archive page %d: %w", page, err))
			}
			c.logger.Debug("archived page snapshot", zap.String("uri", uri))
		}

		if err := c.cfg.Progress.SetCursor(ctx, c.cfg.Stream, result.EndCursor); err != nil {
			return c.abort(summary, fmt.Errorf("write checkpoint: %w", err))
		}
		metrics.ObserveCheckpoint(c.cfg.Stream)
		cursor = &result.EndCursor
		summary.Cursor = cursor

		c.publishEvent(ctx, PageEvent{
			Stream:      c.cfg.Stream,
			Page:        page,
			Repos:       len(result.Repos),
			EndCursor:   result.EndCursor,
			HasNextPage: result.HasNextPage,
			ObservedAt:  observedAt,
		})

		c.logger.Info("page complete",
			zap.Int("page", page),
			zap.Int("repos", len(result.Repos)),
			zap.String("cursor", result.EndCursor),
			zap.Bool("has_next", result.HasNextPage),
		)

		if !result.HasNextPage {
			c.logger.Info("reached the end of the result set", zap.Int("pages", page))
			return c.finish(summary)
		}
		if c.cfg.MaxPages > 0 && page >= c.cfg.MaxPages {
			c.logger.Info("page limit reached", zap.Int("max_pages", c.cfg.MaxPages))
			return c.finish(summary)
		}
	}
}

func (c *Crawler) finish(summary RunSummary) (RunSummary, error) {
	summary.Status = RunStatusDone
	summary.Ended = c.cfg.Clock.Now()
	metrics.ObserveRun(c.cfg.Stream, string(RunStatusDone))
	c.logger.Info("run complete",
		zap.Int("pages", summary.Pages),
		zap.Int("repos", summary.Repos),
	)
	return summary, nil
}

func (c *Crawler) abort(summary RunSummary, err error) (RunSummary, error) {
	summary.Status = RunStatusAborted
	summary.Ended = c.cfg.Clock.Now()
	metrics.ObserveRun(c.cfg.Stream, string(RunStatusAborted))
	c.logger.Error("run aborted", zap.Error(err))
	return summary, err
}

func (c *Crawler) publishEvent(ctx context.Context, event PageEvent) {
	if c.cfg.Publisher == nil {
		return
	}
	if _, err := c.cfg.Publisher.Publish(ctx, c.cfg.Topic, event); err != nil {
		c.logger.Warn("publish page event failed", zap.Error(err))
	}
}

func (c *Crawler) archivePage(ctx context.Context, page int, observedAt time.Time, result RepoPage) (string, error) {
	snapshot := struct {
		Stream      string       `json:"stream"`
		Page        int          `json:"page"`
		ObservedAt  time.Time    `json:"observed_at"`
		EndCursor   string       `json:"end_cursor"`
		HasNextPage bool         `json:"has_next_page"`
		Repos       []Repository `json:"repos"`
	}{
		Stream:      c.cfg.Stream,
		Page:        page,
		ObservedAt:  observedAt,
		EndCursor:   result.EndCursor,
		HasNextPage: result.HasNextPage,
		Repos:       result.Repos,
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("marshal page snapshot: %w", err)
	}
	path := fmt.Sprintf("%s/%s/%s-page-%04d.json",
		c.cfg.ArchivePrefix,
		c.cfg.Stream,
		observedAt.UTC().Format("20060102T150405Z"),
		page,
	)
	uri, err := c.cfg.Archive.PutObject(ctx, path, "application/json", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("put page snapshot: %w", err)
	}
	return uri, nil
}
