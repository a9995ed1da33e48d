package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/halverson/starwatch/internal/crawler"
)

const upsertRepoQuery = `
INSERT INTO repos (
	id,
	owner,
	name,
	full_name,
	url,
	description,
	language,
	default_branch,
	updated_at,
	first_seen_at,
	last_seen_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10
)
ON CONFLICT (id) DO UPDATE SET
	owner = EXCLUDED.owner,
	name = EXCLUDED.name,
	full_name = EXCLUDED.full_name,
	url = EXCLUDED.url,
	description = EXCLUDED.description,
	language = EXCLUDED.language,
	default_branch = EXCLUDED.default_branch,
	updated_at = EXCLUDED.updated_at,
	last_seen_at = EXCLUDED.last_seen_at;
`

const insertStarsQuery = `
INSERT INTO repo_stars (repo_id, observed_at, stargazers)
VALUES ($1, $2, $3)
ON CONFLICT DO NOTHING;
`

// RepoSink writes repository pages into the repos and repo_stars tables.
type RepoSink struct {
	pool Pool
}

// NewRepoSink creates a RepoSink on top of an existing pool.
func NewRepoSink(pool Pool) (*RepoSink, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &RepoSink{pool: pool}, nil
}

// SinkPage upserts every repository in the batch and records one star
// observation per repo at observedAt. The page commits as a single
// transaction. The upsert never touches first_seen_at, and the
// (repo_id, observed_at) uniqueness makes re-sinking the same page a no-op
// for repo_stars.
func (s *RepoSink) SinkPage(ctx context.Context, repos []crawler.Repository, observedAt time.Time) (int, error) {
	if len(repos) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin sink transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, repo := range repos {
		if repo.ID == "" {
			return 0, fmt.Errorf("repository %q has no id", repo.FullName)
		}
		_, err := tx.Exec(ctx, upsertRepoQuery,
			repo.ID,
			repo.Owner,
			repo.Name,
			repo.FullName,
			nullable(repo.URL),
			nullable(repo.Description),
			nullable(repo.Language),
			nullable(repo.DefaultBranch),
			nullableTime(repo.UpdatedAt),
			observedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("upsert repo %s: %w", repo.FullName, err)
		}
		if _, err := tx.Exec(ctx, insertStarsQuery, repo.ID, observedAt, repo.Stargazers); err != nil {
			return 0, fmt.Errorf("record stars for %s: %w", repo.FullName, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit sink transaction: %w", err)
	}
	return len(repos), nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
