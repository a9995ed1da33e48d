package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/halverson/starwatch/internal/crawler"
)

// ProgressStore persists crawl checkpoints in the crawl_progress table.
type ProgressStore struct {
	pool Pool
}

// NewProgressStore creates a ProgressStore on top of an existing pool.
func NewProgressStore(pool Pool) (*ProgressStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &ProgressStore{pool: pool}, nil
}

// Ensure creates the checkpoint row for key if it does not exist yet. A
// fresh row carries a null cursor so the first crawl starts from the top.
func (s *ProgressStore) Ensure(ctx context.Context, key string) error {
	query := `
		INSERT INTO crawl_progress (id, cursor, last_run)
		VALUES ($1, NULL, now())
		ON CONFLICT (id) DO NOTHING;
	`
	if _, err := s.pool.Exec(ctx, query, key); err != nil {
		return fmt.Errorf("ensure checkpoint %q: %w", key, err)
	}
	return nil
}

// Cursor returns the stored cursor for key. A nil cursor with a nil error
// means the checkpoint exists but no page has been committed yet. A missing
// checkpoint row reports crawler.ErrNotFound.
func (s *ProgressStore) Cursor(ctx context.Context, key string) (*string, error) {
	query := `SELECT cursor FROM crawl_progress WHERE id = $1;`
	var cursor *string
	err := s.pool.QueryRow(ctx, query, key).Scan(&cursor)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, crawler.ErrNotFound
		}
		return nil, fmt.Errorf("read checkpoint %q: %w", key, err)
	}
	return cursor, nil
}

// SetCursor replaces the stored cursor and stamps last_run.
func (s *ProgressStore) SetCursor(ctx context.Context, key, cursor string) error {
	query := `UPDATE crawl_progress SET cursor = $2, last_run = now() WHERE id = $1;`
	tag, err := s.pool.Exec(ctx, query, key, cursor)
	if err != nil {
		return fmt.Errorf("write checkpoint %q: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("checkpoint %q was never initialized", key)
	}
	return nil
}
