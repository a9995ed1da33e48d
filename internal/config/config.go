// Package config loads and validates starwatch configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultQuery is the search used when no streams are configured.
const DefaultQuery = "stars:>1000 pushed:>2024-01-01 sort:stars-desc"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	DB      DBConfig      `mapstructure:"db"`
	GitHub  GitHubConfig  `mapstructure:"github"`
	Crawl   CrawlConfig   `mapstructure:"crawl"`
	Budget  BudgetConfig  `mapstructure:"budget"`
	Ops     OpsConfig     `mapstructure:"ops"`
	Publish PublishConfig `mapstructure:"publish"`
	Archive ArchiveConfig `mapstructure:"archive"`
}

// LoggingConfig selects the zap encoder and level.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DBConfig controls access to Postgres.
type DBConfig struct {
	DSN                    string `mapstructure:"dsn"`
	MaxConns               int32  `mapstructure:"max_conns"`
	MinConns               int32  `mapstructure:"min_conns"`
	MaxConnLifetimeSeconds int    `mapstructure:"max_conn_lifetime_seconds"`
}

// GitHubConfig authenticates and shapes the GraphQL search client.
type GitHubConfig struct {
	Token          string `mapstructure:"token"`
	Endpoint       string `mapstructure:"endpoint"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// StreamConfig names one crawl partition and its search query.
type StreamConfig struct {
	Name  string `mapstructure:"name"`
	Query string `mapstructure:"query"`
}

// CrawlConfig governs the paginated harvest loop.
type CrawlConfig struct {
	Streams  []StreamConfig `mapstructure:"streams"`
	PageSize int            `mapstructure:"page_size"`
	MaxPages int            `mapstructure:"max_pages"`
	RPS      float64        `mapstructure:"rps"`
	Burst    int            `mapstructure:"burst"`
}

// BudgetConfig tunes the quota low-water pause policy.
type BudgetConfig struct {
	LowWater   int `mapstructure:"low_water"`
	PadSeconds int `mapstructure:"pad_seconds"`
}

// OpsConfig controls the health and metrics endpoint.
type OpsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// PublishConfig selects the page event backend.
type PublishConfig struct {
	Backend string       `mapstructure:"backend"`
	Topic   string       `mapstructure:"topic"`
	Kafka   KafkaConfig  `mapstructure:"kafka"`
	PubSub  PubSubConfig `mapstructure:"pubsub"`
}

// KafkaConfig holds broker addresses for the kafka backend.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
}

// PubSubConfig holds the GCP project for the pubsub backend.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
}

// ArchiveConfig selects where page snapshots are written.
type ArchiveConfig struct {
	Backend   string `mapstructure:"backend"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STARWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Accept the conventional unprefixed names too.
	_ = v.BindEnv("github.token", "STARWATCH_GITHUB_TOKEN", "GITHUB_TOKEN")
	_ = v.BindEnv("db.dsn", "STARWATCH_DB_DSN", "DATABASE_URL")

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.Crawl.Streams) == 0 {
		cfg.Crawl.Streams = []StreamConfig{{Name: "stars", Query: DefaultQuery}}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("github.timeout_seconds", 30)
	v.SetDefault("crawl.page_size", 100)
	v.SetDefault("crawl.max_pages", 10)
	v.SetDefault("crawl.rps", 0)
	v.SetDefault("crawl.burst", 1)
	v.SetDefault("budget.low_water", 50)
	v.SetDefault("budget.pad_seconds", 5)
	v.SetDefault("ops.enabled", true)
	v.SetDefault("ops.port", 9090)
	v.SetDefault("publish.backend", "none")
	v.SetDefault("publish.topic", "")
	v.SetDefault("archive.backend", "none")
	v.SetDefault("archive.prefix", "pages")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required (set DATABASE_URL)")
	}
	if c.Crawl.PageSize <= 0 || c.Crawl.PageSize > 100 {
		return fmt.Errorf("crawl.page_size must be between 1 and 100")
	}
	if c.Crawl.MaxPages < 0 {
		return fmt.Errorf("crawl.max_pages must be >= 0")
	}
	if c.Budget.LowWater < 0 {
		return fmt.Errorf("budget.low_water must be >= 0")
	}
	if c.Budget.PadSeconds < 0 {
		return fmt.Errorf("budget.pad_seconds must be >= 0")
	}
	if c.Ops.Enabled && c.Ops.Port <= 0 {
		return fmt.Errorf("ops.port must be > 0 when ops is enabled")
	}
	for _, s := range c.Crawl.Streams {
		if s.Name == "" || s.Query == "" {
			return fmt.Errorf("crawl.streams entries need both name and query")
		}
	}
	switch c.Publish.Backend {
	case "", "none", "memory":
	case "kafka":
		if len(c.Publish.Kafka.Brokers) == 0 {
			return fmt.Errorf("publish.kafka.brokers must be set for the kafka backend")
		}
		if c.Publish.Topic == "" {
			return fmt.Errorf("publish.topic must be set for the kafka backend")
		}
	case "pubsub":
		if c.Publish.PubSub.ProjectID == "" {
			return fmt.Errorf("publish.pubsub.project_id must be set for the pubsub backend")
		}
		if c.Publish.Topic == "" {
			return fmt.Errorf("publish.topic must be set for the pubsub backend")
		}
	default:
		return fmt.Errorf("publish.backend %q is not one of none, memory, kafka, pubsub", c.Publish.Backend)
	}
	switch c.Archive.Backend {
	case "", "none":
	case "local":
		if c.Archive.LocalDir == "" {
			return fmt.Errorf("archive.local_dir must be set for the local backend")
		}
	case "gcs":
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("archive.backend %q is not one of none, local, gcs", c.Archive.Backend)
	}
	return nil
}

// GitHubTimeout converts the configured client timeout.
func (c Config) GitHubTimeout() time.Duration {
	return time.Duration(c.GitHub.TimeoutSeconds) * time.Second
}

// BudgetPad converts the configured quota pad.
func (c Config) BudgetPad() time.Duration {
	return time.Duration(c.Budget.PadSeconds) * time.Second
}

// DBMaxConnLifetime converts the configured pool connection lifetime.
func (c Config) DBMaxConnLifetime() time.Duration {
	return time.Duration(c.DB.MaxConnLifetimeSeconds) * time.Second
}
