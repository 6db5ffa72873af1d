package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	if len(cfg.Node.Providers) == 0 {
		return nil, fmt.Errorf("config declares no node providers")
	}
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	for i := range cfg.Node.Providers {
		if cfg.Node.Providers[i].Timeout == 0 {
			cfg.Node.Providers[i].Timeout = 30 * time.Second
		}
	}
	if cfg.Node.Retry.MaxAttempts == 0 {
		cfg.Node.Retry.MaxAttempts = 5
	}
	if cfg.Node.Retry.InitialDelay == 0 {
		cfg.Node.Retry.InitialDelay = time.Second
	}
	if cfg.Node.Retry.MaxDelay == 0 {
		cfg.Node.Retry.MaxDelay = 60 * time.Second
	}
	if cfg.Node.Retry.BackoffMultiple == 0 {
		cfg.Node.Retry.BackoffMultiple = 2.0
	}
	if cfg.Scan.BatchSize == 0 {
		cfg.Scan.BatchSize = 250
	}
	if cfg.Scan.FastConcurrency == 0 {
		cfg.Scan.FastConcurrency = 8
	}
	if cfg.Scan.MaxAttempts == 0 {
		cfg.Scan.MaxAttempts = 5
	}
	if cfg.Scan.InitialBackoff == 0 {
		cfg.Scan.InitialBackoff = 2 * time.Second
	}
	if cfg.Scan.LeaseTTL == 0 {
		cfg.Scan.LeaseTTL = 60 * time.Second
	}
	if cfg.Scan.Schedules.TipFollow == "" {
		cfg.Scan.Schedules.TipFollow = "@every 1m"
	}
}
