// Package config provides configuration management for graph-analysis.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/graph-analysis/pkg/compression"
	"github.com/graph-analysis/pkg/utils"
)

// EnvPrefix prefixes environment overrides, e.g. GRAPH_ENGINE_CONCURRENCY.
const EnvPrefix = "GRAPH"

// Config holds all configuration for the application.
type Config struct {
	Engine   EngineConfig   `mapstructure:"engine"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Log      LogConfig      `mapstructure:"log"`
	Export   ExportConfig   `mapstructure:"export"`
}

// EngineConfig holds the parallel compute settings.
type EngineConfig struct {
	Concurrency  int   `mapstructure:"concurrency"`
	MinBatchSize int64 `mapstructure:"min_batch_size"`
	PageShift    int   `mapstructure:"page_shift"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Type     string `mapstructure:"type"` // sqlite, postgres or mysql
	Path     string `mapstructure:"path"` // sqlite file, ":memory:" for tests
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	MaxConns int    `mapstructure:"max_conns"`
	RawSQL   bool   `mapstructure:"raw_sql"` // postgres only: skip the ORM
}

// StorageConfig holds object storage configuration.
type StorageConfig struct {
	Type      string `mapstructure:"type"` // cos or local
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	SecretID  string `mapstructure:"secret_id"`
	SecretKey string `mapstructure:"secret_key"`
	Domain    string `mapstructure:"domain"`     // e.g., "myqcloud.com"
	Scheme    string `mapstructure:"scheme"`     // e.g., "https" or "http"
	LocalPath string `mapstructure:"local_path"` // for local storage
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"` // empty logs to stdout
}

// ExportConfig controls how finished runs are written to storage.
type ExportConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Compression string `mapstructure:"compression"` // none, gzip or zstd
	Prefix      string `mapstructure:"prefix"`
	TopK        int    `mapstructure:"top_k"`
}

// Load reads configuration from the specified file path. Missing files fall
// back to defaults; GRAPH_* environment variables override both.
func Load(configPath string) (*Config, error) {
	v := newViper()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/graph-analysis")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			utils.GetGlobalLogger().Debug("config file not found, using defaults")
		} else if os.IsNotExist(err) {
			utils.GetGlobalLogger().Warn("config file %s not found, using defaults", configPath)
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadFromReader loads configuration from raw bytes (useful for testing).
func LoadFromReader(configType string, content []byte) (*Config, error) {
	v := newViper()

	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	// defaults alone always decode
	_ = newViper().Unmarshal(&cfg)
	return &cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Engine defaults
	v.SetDefault("engine.concurrency", runtime.NumCPU())
	v.SetDefault("engine.min_batch_size", 10000)
	v.SetDefault("engine.page_shift", 12)

	// Database defaults
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.path", "./graph-analysis.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.raw_sql", false)

	// Storage defaults
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "./results")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output_path", "")

	// Export defaults
	v.SetDefault("export.enabled", false)
	v.SetDefault("export.compression", "zstd")
	v.SetDefault("export.prefix", "runs")
	v.SetDefault("export.top_k", 20)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Engine.Concurrency < 0 {
		return fmt.Errorf("engine concurrency must not be negative")
	}
	if c.Engine.MinBatchSize < 1 {
		return fmt.Errorf("engine min_batch_size must be at least 1")
	}
	if c.Engine.PageShift < 1 || c.Engine.PageShift > 30 {
		return fmt.Errorf("engine page_shift must be in [1, 30], got %d", c.Engine.PageShift)
	}

	switch c.Database.Type {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("sqlite database path is required")
		}
	case "postgres", "mysql":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}

	// Storage config validation is delegated to storage package

	if _, err := compression.ParseType(c.Export.Compression); err != nil {
		return err
	}
	if c.Export.TopK < 0 {
		return fmt.Errorf("export top_k must not be negative")
	}

	return nil
}

// EnsureDatabaseDir creates the directory holding the sqlite file.
func (c *Config) EnsureDatabaseDir() error {
	if c.Database.Type != "sqlite" || c.Database.Path == "" || c.Database.Path == ":memory:" {
		return nil
	}
	return os.MkdirAll(filepath.Dir(c.Database.Path), 0755)
}
