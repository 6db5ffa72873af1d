package config

import (
	"time"

	redisclient "github.com/verushub/stakewatch/internal/infra/redis"
	"github.com/verushub/stakewatch/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Node     NodeConfig         `yaml:"node"`
	Scan     ScanConfig         `yaml:"scan"`
	Redis    redisclient.Config `yaml:"redis"`
	Logging  LoggingConfig      `yaml:"logging"`
	Database postgres.Config    `yaml:"database"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// NodeConfig holds settings for the chain node connection.
type NodeConfig struct {
	Providers []ProviderConfig `yaml:"providers"`
	Retry     RetryConfig      `yaml:"retry"`
}

// ProviderConfig holds settings for one RPC endpoint. Providers after the
// first are failover targets.
type ProviderConfig struct {
	Name     string        `yaml:"name"`
	URL      string        `yaml:"url"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	Timeout  time.Duration `yaml:"timeout"`
}

// RetryConfig holds per-call RPC retry settings.
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialDelay    time.Duration `yaml:"initial_delay"`
	MaxDelay        time.Duration `yaml:"max_delay"`
	BackoffMultiple float64       `yaml:"backoff_multiple"`
}

// ScanConfig holds scanner and coordinator settings.
type ScanConfig struct {
	GenesisHeight   uint64        `yaml:"genesis_height"`
	BatchSize       int           `yaml:"batch_size"`
	FastConcurrency int           `yaml:"fast_concurrency"`
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialBackoff  time.Duration `yaml:"initial_backoff"`
	LeaseTTL        time.Duration `yaml:"lease_ttl"`
	Schedules       Schedules     `yaml:"schedules"`
}

// Schedules holds the cron expressions for periodic maintenance. An empty
// expression disables that job.
type Schedules struct {
	TipFollow string `yaml:"tip_follow"`
	Reconcile string `yaml:"reconcile"`
	Compact   string `yaml:"compact"`
}
