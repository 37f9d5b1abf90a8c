// Package config loads the daemon's configuration from environment
// variables, the way knoguchi-rag's internal/config package loads its
// Postgres/Qdrant/JWT settings: a single struct parsed by caarlos0/env,
// no config file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// DeploymentMode selects single- vs multi-tenant operation (spec §6).
type DeploymentMode string

const (
	ModeSingleTenant DeploymentMode = "single_tenant"
	ModeMultiTenant  DeploymentMode = "multi_tenant"
)

// AgentMode selects which roles this process runs (spec §6).
type AgentMode string

const (
	AgentWorker  AgentMode = "worker"
	AgentManager AgentMode = "manager"
	AgentAll     AgentMode = "all"
)

// Environment controls the default of crawling_enabled when no Setting row
// exists (spec §3, Setting entity).
type Environment string

const (
	EnvDev  Environment = "dev"
	EnvProd Environment = "prod"
)

// Config is every environment variable the daemon reads, per spec §6.
type Config struct {
	// Cluster / tenancy
	ScyllaHosts       []string `env:"SCYLLA_HOSTS" envSeparator:"," envDefault:"127.0.0.1"`
	TenantKeyspace    string   `env:"TENANT_KEYSPACE" envDefault:"lalasearch"`
	SystemKeyspace    string   `env:"SYSTEM_KEYSPACE" envDefault:"lalasearch_system"`
	MultiTenantKeyspaces []string `env:"MULTI_TENANT_KEYSPACES" envSeparator:","`

	DeploymentMode DeploymentMode `env:"DEPLOYMENT_MODE" envDefault:"single_tenant"`
	AgentMode      AgentMode      `env:"AGENT_MODE" envDefault:"all"`
	Environment    Environment    `env:"ENVIRONMENT" envDefault:"dev"`

	// Scheduler / fetch
	QueuePollIntervalSeconds int    `env:"QUEUE_POLL_INTERVAL_SECONDS" envDefault:"5"`
	UserAgent                string `env:"USER_AGENT" envDefault:"lalasearch-crawler/1.0"`

	// Search indexer
	SearchHost   string `env:"SEARCH_HOST" envDefault:"http://127.0.0.1:7700"`
	SearchIndex  string `env:"SEARCH_INDEX" envDefault:"documents"`
	SearchAPIKey string `env:"SEARCH_API_KEY"`

	// Object storage
	S3Endpoint        string `env:"S3_ENDPOINT"`
	S3Bucket          string `env:"S3_BUCKET"`
	S3AccessKey       string `env:"S3_ACCESS_KEY"`
	S3SecretKey       string `env:"S3_SECRET_KEY"`
	S3Region          string `env:"S3_REGION" envDefault:"us-east-1"`
	S3UseSSL          bool   `env:"S3_USE_SSL" envDefault:"false"`
	S3CompressContent bool   `env:"S3_COMPRESS_CONTENT" envDefault:"true"`
	S3CompressMinSize int    `env:"S3_COMPRESS_MIN_SIZE" envDefault:"1024"`

	// Auth (only consulted when an auth subsystem is wired in)
	SMTPHost     string        `env:"SMTP_HOST"`
	SMTPPort     int           `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string        `env:"SMTP_USER"`
	SMTPPassword string        `env:"SMTP_PASSWORD"`
	BaseURL      string        `env:"BASE_URL" envDefault:"http://localhost:8080"`
	SessionSecret string       `env:"SESSION_SECRET" envDefault:"change-this-in-production"`
	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"720h"`
	TokenTTL     time.Duration `env:"TOKEN_TTL" envDefault:"15m"`

	// HTTP
	HTTPPort int `env:"HTTP_PORT" envDefault:"8080"`
}

// Load parses Config from the process environment. Fatal-to-startup per
// spec §7: callers should treat a non-nil error as unrecoverable.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DeploymentMode == ModeMultiTenant && len(c.MultiTenantKeyspaces) == 0 {
		return fmt.Errorf("MULTI_TENANT_KEYSPACES is required when DEPLOYMENT_MODE=%s", ModeMultiTenant)
	}
	if c.TenantKeyspace == "" {
		return fmt.Errorf("TENANT_KEYSPACE must not be empty")
	}
	return nil
}

// DefaultCrawlingEnabled is the environment-driven default used by
// is_crawling_enabled when no Setting row is stored (spec §3, §4.1).
func (c *Config) DefaultCrawlingEnabled() bool {
	return c.Environment == EnvDev
}

// PollInterval is QueuePollIntervalSeconds as a time.Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.QueuePollIntervalSeconds) * time.Second
}

// IsMultiTenant reports whether the daemon runs in multi-tenant mode.
func (c *Config) IsMultiTenant() bool {
	return c.DeploymentMode == ModeMultiTenant
}

// SearchURL normalizes SearchHost to a full URL, the way
// original_source/services/search.rs does for a bare host:port value.
func (c *Config) SearchURL() string {
	if strings.HasPrefix(c.SearchHost, "http://") || strings.HasPrefix(c.SearchHost, "https://") {
		return c.SearchHost
	}
	return "http://" + c.SearchHost
}
