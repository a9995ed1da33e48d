// Command starwatch harvests GitHub repository metadata and star counts
// into Postgres through the GraphQL search API.
//
// Architecture overview:
//
//   - Crawl engine (internal/crawler): walks one search stream page by page
//     through a small state machine. Every page is fetched, sunk into
//     Postgres in a single transaction, and only then checkpointed, so a
//     crash reprocesses at most one page and the upserts absorb the replay.
//   - GitHub client (internal/github): githubv4 over an oauth2 transport,
//     with bounded retries for transient failures and immediate surfacing
//     of credential problems. Each response carries the rate budget used
//     for pacing decisions.
//   - Rate control (internal/ratelimit): a budget policy that sleeps until
//     the API quota resets when remaining calls drop below the low-water
//     mark, plus an optional token-bucket pacer bounding request rate
//     across all streams.
//   - Persistence (internal/storage/postgres): pgxpool-backed stores for
//     the cursor checkpoints, repository upserts, and append-only star
//     observations. The migrate subcommand applies the idempotent schema.
//   - Optional fan-out: page events can be published to Kafka or Pub/Sub,
//     and raw page snapshots archived to the local filesystem or GCS.
//   - Ops surface (internal/ops): /healthz, /readyz (pings Postgres), and
//     Prometheus /metrics while a crawl is running.
//
// Operational notes:
//
//   - Configuration comes from STARWATCH_* environment variables, an
//     optional YAML file (--config), and an optional .env file. The
//     conventional GITHUB_TOKEN and DATABASE_URL names are honored.
//   - Interrupts are graceful: SIGINT/SIGTERM cancel the run after the
//     in-flight page commits, and the next run resumes from the stored
//     cursor.
//   - An aborted run exits non-zero; a completed or interrupted one exits
//     zero.
//
// Quick checklist for a local run:
//
//	export GITHUB_TOKEN=ghp_...
//	export DATABASE_URL=postgres://localhost:5432/starwatch
//	starwatch migrate
//	starwatch crawl
//	starwatch export --out repo_stars.csv
package main
