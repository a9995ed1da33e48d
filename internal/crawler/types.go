package crawler

import (
	"time"
)

// Repository is the identity record harvested for each search hit.
// Description, URL, Language, and DefaultBranch may be empty; the sink
// stores empties as NULL.
type Repository struct {
	ID            string    `json:"id"`
	Owner         string    `json:"owner"`
	Name          string    `json:"name"`
	FullName      string    `json:"full_name"`
	URL           string    `json:"url,omitempty"`
	Description   string    `json:"description,omitempty"`
	Language      string    `json:"language,omitempty"`
	DefaultBranch string    `json:"default_branch,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
	Stargazers    int       `json:"stargazers"`
}

// RateBudgetSnapshot carries the API quota state reported alongside a page.
// A nil snapshot means the response carried no usable quota information.
type RateBudgetSnapshot struct {
	Limit     int       `json:"limit"`
	Cost      int       `json:"cost"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// RepoPage is one page of search results plus its pagination handle.
type RepoPage struct {
	Repos       []Repository
	EndCursor   string
	HasNextPage bool
	Budget      *RateBudgetSnapshot
}

// RunStatus represents the terminal state of a crawl run.
type RunStatus string

// Run status values reported in summaries and metrics.
const (
	RunStatusRunning RunStatus = "running"
	RunStatusDone    RunStatus = "done"
	RunStatusAborted RunStatus = "aborted"
)

// RunSummary reports what a single stream run accomplished.
type RunSummary struct {
	Stream  string    `json:"stream"`
	Status  RunStatus `json:"status"`
	Pages   int       `json:"pages"`
	Repos   int       `json:"repos"`
	Cursor  *string   `json:"cursor,omitempty"`
	Started time.Time `json:"started_at"`
	Ended   time.Time `json:"ended_at"`
}

// PageEvent is published after each page is durably sunk and checkpointed.
type PageEvent struct {
	Stream      string    `json:"stream"`
	Page        int       `json:"page"`
	Repos       int       `json:"repos"`
	EndCursor   string    `json:"end_cursor"`
	HasNextPage bool      `json:"has_next_page"`
	ObservedAt  time.Time `json:"observed_at"`
}
