package config

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// NodeConfig holds node identity configuration
type NodeConfig struct {
	InstanceID string `yaml:"instance_id"`
}

// TableConfig holds table layer configuration
type TableConfig struct {
	CacheShards   int `yaml:"cache_shards"`
	CommitWorkers int `yaml:"commit_workers"`
	CommitQueue   int `yaml:"commit_queue"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DevnodeConfig holds the devnode's smoke workload configuration
type DevnodeConfig struct {
	BlockInterval time.Duration `yaml:"block_interval"`
}

// Config represents the complete configuration for the table layer
type Config struct {
	Node    NodeConfig    `yaml:"node"`
	Table   TableConfig   `yaml:"table"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
	Devnode DevnodeConfig `yaml:"devnode"`
}

// LoadConfig loads configuration from a file
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with every default applied, for callers
// that run without a config file
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// setDefaults sets default values for unspecified configuration
func setDefaults(cfg *Config) {
	if cfg.Node.InstanceID == "" {
		cfg.Node.InstanceID = uuid.NewString()
	}

	if cfg.Table.CacheShards == 0 {
		cfg.Table.CacheShards = 16
	}
	if cfg.Table.CommitWorkers == 0 {
		cfg.Table.CommitWorkers = 4
	}
	if cfg.Table.CommitQueue == 0 {
		cfg.Table.CommitQueue = 64
	}

	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9464
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Devnode.BlockInterval == 0 {
		cfg.Devnode.BlockInterval = 5 * time.Second
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Table.CacheShards < 1 {
		return fmt.Errorf("table.cache_shards must be at least 1")
	}
	if c.Table.CommitWorkers < 1 {
		return fmt.Errorf("table.commit_workers must be at least 1")
	}
	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error")
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console")
	}
	return nil
}
