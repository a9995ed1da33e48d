package postgres

import (
	"context"
	"fmt"
)

// schemaStatements create the crawl tables. Every statement is idempotent
// so migrate can run on each deploy.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS crawl_progress (
		id TEXT PRIMARY KEY,
		cursor TEXT,
		last_run TIMESTAMPTZ NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS repos (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		name TEXT NOT NULL,
		full_name TEXT NOT NULL,
		url TEXT,
		description TEXT,
		language TEXT,
		default_branch TEXT,
		updated_at TIMESTAMPTZ,
		first_seen_at TIMESTAMPTZ NOT NULL,
		last_seen_at TIMESTAMPTZ NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS repo_stars (
		repo_id TEXT NOT NULL REFERENCES repos(id),
		observed_at TIMESTAMPTZ NOT NULL,
		stargazers BIGINT NOT NULL,
		UNIQUE (repo_id, observed_at)
	);`,
	`CREATE INDEX IF NOT EXISTS repo_stars_observed_at_idx ON repo_stars (observed_at DESC);`,
}

// Migrate applies the schema statements in order.
func Migrate(ctx context.Context, pool Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}
	return nil
}
