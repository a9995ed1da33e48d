package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://crawler:pw@localhost:5432/stars")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.DB.DSN != "postgres://crawler:pw@localhost:5432/stars" {
		t.Fatalf("expected dsn from DATABASE_URL, got %q", cfg.DB.DSN)
	}
	if cfg.Crawl.PageSize != 100 || cfg.Crawl.MaxPages != 10 {
		t.Fatalf("expected crawl defaults, got %+v", cfg.Crawl)
	}
	if cfg.Budget.LowWater != 50 || cfg.BudgetPad() != 5*time.Second {
		t.Fatalf("expected budget defaults, got %+v", cfg.Budget)
	}
	if !cfg.Ops.Enabled || cfg.Ops.Port != 9090 {
		t.Fatalf("expected ops defaults, got %+v", cfg.Ops)
	}
	if cfg.Publish.Backend != "none" || cfg.Archive.Backend != "none" {
		t.Fatalf("expected inert publish/archive defaults, got %+v %+v", cfg.Publish, cfg.Archive)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Fatalf("expected logging defaults, got %+v", cfg.Logging)
	}
	if cfg.GitHubTimeout() != 30*time.Second {
		t.Fatalf("expected 30s github timeout, got %v", cfg.GitHubTimeout())
	}
	if len(cfg.Crawl.Streams) != 1 || cfg.Crawl.Streams[0].Name != "stars" ||
		cfg.Crawl.Streams[0].Query != DefaultQuery {
		t.Fatalf("expected the stars stream to be backfilled, got %+v", cfg.Crawl.Streams)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
logging:
  level: debug
  format: console
db:
  dsn: postgres://crawler:pw@db:5432/stars
  max_conns: 8
  max_conn_lifetime_seconds: 300
github:
  token: ghp_filetoken
  timeout_seconds: 10
crawl:
  page_size: 50
  max_pages: 3
  rps: 0.5
  burst: 2
  streams:
    - name: stars
      query: "stars:>1000 sort:stars-desc"
    - name: fresh
      query: "stars:>100 created:>2024-06-01"
budget:
  low_water: 100
  pad_seconds: 10
ops:
  enabled: false
publish:
  backend: kafka
  topic: star-pages
  kafka:
    brokers: ["localhost:9092"]
archive:
  backend: local
  local_dir: /var/lib/starwatch/pages
  prefix: snaps
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "console" {
		t.Fatalf("expected logging overrides, got %+v", cfg.Logging)
	}
	if cfg.DB.MaxConns != 8 || cfg.DBMaxConnLifetime() != 5*time.Minute {
		t.Fatalf("expected db overrides, got %+v", cfg.DB)
	}
	if cfg.GitHub.Token != "ghp_filetoken" || cfg.GitHubTimeout() != 10*time.Second {
		t.Fatalf("expected github overrides to apply")
	}
	if cfg.Crawl.PageSize != 50 || cfg.Crawl.MaxPages != 3 || cfg.Crawl.RPS != 0.5 {
		t.Fatalf("expected crawl overrides, got %+v", cfg.Crawl)
	}
	if len(cfg.Crawl.Streams) != 2 || cfg.Crawl.Streams[1].Name != "fresh" {
		t.Fatalf("expected two streams, got %+v", cfg.Crawl.Streams)
	}
	if cfg.Budget.LowWater != 100 || cfg.BudgetPad() != 10*time.Second {
		t.Fatalf("expected budget overrides, got %+v", cfg.Budget)
	}
	if cfg.Ops.Enabled {
		t.Fatal("expected ops to be disabled")
	}
	if cfg.Publish.Backend != "kafka" || cfg.Publish.Topic != "star-pages" ||
		len(cfg.Publish.Kafka.Brokers) != 1 {
		t.Fatalf("expected kafka publish config, got %+v", cfg.Publish)
	}
	if cfg.Archive.Backend != "local" || cfg.Archive.LocalDir != "/var/lib/starwatch/pages" ||
		cfg.Archive.Prefix != "snaps" {
		t.Fatalf("expected local archive config, got %+v", cfg.Archive)
	}
}

func TestLoadHonorsEnvAliases(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "ghp_envtoken")
	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("STARWATCH_CRAWL_MAX_PAGES", "3")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.GitHub.Token != "ghp_envtoken" {
		t.Fatalf("expected token from GITHUB_TOKEN, got %q", cfg.GitHub.Token)
	}
	if cfg.DB.DSN != "postgres://env/db" {
		t.Fatalf("expected dsn from DATABASE_URL, got %q", cfg.DB.DSN)
	}
	if cfg.Crawl.MaxPages != 3 {
		t.Fatalf("expected prefixed env override, got %d", cfg.Crawl.MaxPages)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		DB:     DBConfig{DSN: "postgres://crawler:pw@localhost/stars"},
		Crawl:  CrawlConfig{PageSize: 100, Streams: []StreamConfig{{Name: "stars", Query: "stars:>1"}}},
		Budget: BudgetConfig{LowWater: 50, PadSeconds: 5},
		Ops:    OpsConfig{Enabled: true, Port: 9090},
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "missing dsn",
			cfg: func() Config {
				c := base
				c.DB.DSN = ""
				return c
			}(),
			want: "db.dsn",
		},
		{
			name: "page size too large",
			cfg: func() Config {
				c := base
				c.Crawl.PageSize = 200
				return c
			}(),
			want: "crawl.page_size",
		},
		{
			name: "stream without query",
			cfg: func() Config {
				c := base
				c.Crawl.Streams = []StreamConfig{{Name: "stars"}}
				return c
			}(),
			want: "crawl.streams",
		},
		{
			name: "ops port missing",
			cfg: func() Config {
				c := base
				c.Ops.Port = 0
				return c
			}(),
			want: "ops.port",
		},
		{
			name: "unknown publish backend",
			cfg: func() Config {
				c := base
				c.Publish.Backend = "carrier-pigeon"
				return c
			}(),
			want: "publish.backend",
		},
		{
			name: "kafka without brokers",
			cfg: func() Config {
				c := base
				c.Publish.Backend = "kafka"
				c.Publish.Topic = "star-pages"
				return c
			}(),
			want: "publish.kafka.brokers",
		},
		{
			name: "pubsub without project",
			cfg: func() Config {
				c := base
				c.Publish.Backend = "pubsub"
				c.Publish.Topic = "star-pages"
				return c
			}(),
			want: "publish.pubsub.project_id",
		},
		{
			name: "local archive without dir",
			cfg: func() Config {
				c := base
				c.Archive.Backend = "local"
				return c
			}(),
			want: "archive.local_dir",
		},
		{
			name: "gcs archive without bucket",
			cfg: func() Config {
				c := base
				c.Archive.Backend = "gcs"
				return c
			}(),
			want: "archive.gcs_bucket",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
