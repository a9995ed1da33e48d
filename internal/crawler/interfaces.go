package crawler

import (
	"context"
	"io"
	"time"
)

// PageFetcher retrieves one page of search results. Implementations own
// retry behavior; a returned error is final for that page.
type PageFetcher interface {
	FetchPage(ctx context.Context, query string, after *string) (RepoPage, error)
}

// ProgressStore persists the per-stream resume cursor.
type ProgressStore interface {
	Ensure(ctx context.Context, key string) error
	Cursor(ctx context.Context, key string) (*string, error)
	SetCursor(ctx context.Context, key string, cursor string) error
}

// RepoSink durably writes one page of repositories and their star
// observations, returning the number of records applied. A page must
// land atomically or not at all.
type RepoSink interface {
	SinkPage(ctx context.Context, repos []Repository, observedAt time.Time) (int, error)
}

// BudgetPolicy inspects a quota snapshot and returns how long to pause
// before the next request. Zero means proceed immediately.
type BudgetPolicy interface {
	Evaluate(snapshot *RateBudgetSnapshot, now time.Time) time.Duration
}

// Pacer spaces outbound requests, respecting the context.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Publisher pushes page events to a broker (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Archive writes raw page snapshots and returns a URI.
type Archive interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Sleeper blocks for the given duration. Budget pauses use this rather
// than the context so an in-flight pause always completes.
type Sleeper interface {
	Sleep(d time.Duration)
}
