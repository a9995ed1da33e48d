// Package github implements the GraphQL search client that harvests
// repository pages, including retry, failure classification, and shape
// validation of responses.
package github

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/halverson/starwatch/internal/crawler"
	"github.com/halverson/starwatch/internal/metrics"
)

// Config controls the GraphQL search client.
type Config struct {
	// Token is the bearer credential for the API.
	Token string
	// Endpoint overrides the GraphQL endpoint, for tests and GitHub
	// Enterprise. Empty means the public API.
	Endpoint string
	// PageSize is the number of repositories requested per page.
	PageSize int
	// Timeout bounds each HTTP request.
	Timeout time.Duration
}

// Client fetches pages of repository search results, retrying transient
// failures. Each crawl stream gets its own Client.
type Client struct {
	gql       *githubv4.Client
	transport *recordingTransport
	retry     *crawler.ExponentialRetryPolicy
	pageSize  int
	sleep     func(time.Duration)
	logger    *zap.Logger
}

// NewClient builds a Client from the config.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("github token is required")
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	httpClient := oauth2.NewClient(context.Background(), src)
	transport := &recordingTransport{base: httpClient.Transport}
	httpClient.Transport = transport
	httpClient.Timeout = timeout

	var gql *githubv4.Client
	if cfg.Endpoint == "" {
		gql = githubv4.NewClient(httpClient)
	} else {
		gql = githubv4.NewEnterpriseClient(cfg.Endpoint, httpClient)
	}

	return &Client{
		gql:       gql,
		transport: transport,
		retry:     crawler.NewExponentialRetryPolicy(),
		pageSize:  pageSize,
		sleep:     time.Sleep,
		logger:    logger,
	}, nil
}

type repositoryNode struct {
	ID             githubv4.String
	Name           githubv4.String
	Description    githubv4.String
	URL            githubv4.URI
	StargazerCount githubv4.Int
	UpdatedAt      githubv4.DateTime
	Owner          struct {
		Login githubv4.String
	}
	PrimaryLanguage struct {
		Name githubv4.String
	}
	DefaultBranchRef struct {
		Name githubv4.String
	}
}

type searchQuery struct {
	Search struct {
		RepositoryCount githubv4.Int
		PageInfo        struct {
			EndCursor   githubv4.String
			HasNextPage githubv4.Boolean
		}
		Nodes []struct {
			Repository repositoryNode `graphql:"... on Repository"`
		}
	} `graphql:"search(query: $query, type: REPOSITORY, first: $first, after: $after)"`
	RateLimit struct {
		Limit     githubv4.Int
		Cost      githubv4.Int
		Remaining githubv4.Int
		ResetAt   githubv4.DateTime
	}
}

// FetchPage runs one search page request, retrying transient failures up
// to the policy's attempt budget. The returned error is final.
func (c *Client) FetchPage(ctx context.Context, query string, after *string) (crawler.RepoPage, error) {
	variables := map[string]any{
		"query": githubv4.String(query),
		"first": githubv4.Int(c.pageSize),
		"after": (*githubv4.String)(after),
	}

	for attempt := 1; ; attempt++ {
		var q searchQuery
		err := c.gql.Query(ctx, &q, variables)
		if err == nil {
			return c.buildPage(q)
		}

		classified := c.classify(ctx, err)
		if !c.retry.ShouldRetry(classified, attempt) {
			return crawler.RepoPage{}, classified
		}
		wait := c.retry.Backoff(attempt)
		c.logger.Warn("search request failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(classified),
		)
		metrics.ObserveAPIRetry()
		c.sleep(wait)
	}
}

// classify folds the GraphQL error and the recorded HTTP status into the
// crawl error taxonomy. Auth rejections are fatal; everything else that
// reached the wire is worth retrying.
func (c *Client) classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("search request: %w", ctx.Err())
	}
	status, _ := c.transport.last()
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return &crawler.FatalError{StatusCode: status, Err: err}
	}
	return &crawler.TransientError{StatusCode: status, Err: err}
}

func (c *Client) buildPage(q searchQuery) (crawler.RepoPage, error) {
	nodes := q.Search.Nodes
	repos := make([]crawler.Repository, 0, len(nodes))
	for _, node := range nodes {
		repo := node.Repository
		if repo.ID == "" || repo.Owner.Login == "" || repo.Name == "" {
			return crawler.RepoPage{}, &crawler.MalformedResponseError{
				Reason: "repository node missing id, owner, or name",
			}
		}
		var rawURL string
		if repo.URL.URL != nil {
			rawURL = repo.URL.String()
		}
		repos = append(repos, crawler.Repository{
			ID:            string(repo.ID),
			Owner:         string(repo.Owner.Login),
			Name:          string(repo.Name),
			FullName:      fmt.Sprintf("%s/%s", repo.Owner.Login, repo.Name),
			URL:           rawURL,
			Description:   string(repo.Description),
			Language:      string(repo.PrimaryLanguage.Name),
			DefaultBranch: string(repo.DefaultBranchRef.Name),
			UpdatedAt:     repo.UpdatedAt.Time,
			Stargazers:    int(repo.StargazerCount),
		})
	}

	endCursor := string(q.Search.PageInfo.EndCursor)
	if len(repos) > 0 && endCursor == "" {
		return crawler.RepoPage{}, &crawler.MalformedResponseError{
			Reason: "results returned without an end cursor",
		}
	}

	page := crawler.RepoPage{
		Repos:       repos,
		EndCursor:   endCursor,
		HasNextPage: bool(q.Search.PageInfo.HasNextPage),
	}
	if q.RateLimit.Limit > 0 || q.RateLimit.Remaining > 0 || !q.RateLimit.ResetAt.IsZero() {
		page.Budget = &crawler.RateBudgetSnapshot{
			Limit:     int(q.RateLimit.Limit),
			Cost:      int(q.RateLimit.Cost),
			Remaining: int(q.RateLimit.Remaining),
			ResetAt:   q.RateLimit.ResetAt.Time,
		}
	} else if _, rate := c.transport.last(); rate != nil {
		page.Budget = rate
	}
	return page, nil
}
