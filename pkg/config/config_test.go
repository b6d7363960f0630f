package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0644))
	return configFile
}

func TestLoad_DefaultValues(t *testing.T) {
	configFile := writeConfig(t, `
storage:
  type: local
`)

	cfg, err := Load(configFile)
	require.NoError(t, err)

	assert.Equal(t, runtime.NumCPU(), cfg.Engine.Concurrency)
	assert.Equal(t, int64(10000), cfg.Engine.MinBatchSize)
	assert.Equal(t, 12, cfg.Engine.PageShift)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "./graph-analysis.db", cfg.Database.Path)
	assert.Equal(t, "./results", cfg.Storage.LocalPath)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Export.Enabled)
	assert.Equal(t, "zstd", cfg.Export.Compression)
	assert.Equal(t, "runs", cfg.Export.Prefix)
	assert.Equal(t, 20, cfg.Export.TopK)
}

func TestLoad_CustomValues(t *testing.T) {
	configFile := writeConfig(t, `
engine:
  concurrency: 3
  min_batch_size: 64
  page_shift: 8
database:
  type: postgres
  host: db.example.com
  port: 5433
  database: graphs
  user: admin
  password: secret
storage:
  type: local
  local_path: /tmp/storage
export:
  enabled: true
  compression: gzip
  top_k: 5
`)

	cfg, err := Load(configFile)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Engine.Concurrency)
	assert.Equal(t, int64(64), cfg.Engine.MinBatchSize)
	assert.Equal(t, 8, cfg.Engine.PageShift)
	assert.Equal(t, "db.example.com", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "graphs", cfg.Database.Database)
	assert.True(t, cfg.Export.Enabled)
	assert.Equal(t, "gzip", cfg.Export.Compression)
	assert.Equal(t, 5, cfg.Export.TopK)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("GRAPH_ENGINE_CONCURRENCY", "7")
	t.Setenv("GRAPH_DATABASE_PATH", "/tmp/override.db")

	cfg, err := Load(writeConfig(t, "engine:\n  concurrency: 2\n"))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Engine.Concurrency)
	assert.Equal(t, "/tmp/override.db", cfg.Database.Path)
}

func TestLoad_InvalidDatabaseType(t *testing.T) {
	_, err := Load(writeConfig(t, `
database:
  type: oracle
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database type")
}

func TestLoad_COSWithCredentials(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
storage:
  type: cos
  bucket: test-bucket
  region: ap-guangzhou
  secret_id: test-id
  secret_key: test-key
`))
	require.NoError(t, err)
	assert.Equal(t, "cos", cfg.Storage.Type)
	assert.Equal(t, "test-bucket", cfg.Storage.Bucket)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return Default()
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"negative concurrency", func(c *Config) { c.Engine.Concurrency = -1 }, "concurrency must not be negative"},
		{"zero batch", func(c *Config) { c.Engine.MinBatchSize = 0 }, "min_batch_size"},
		{"page shift", func(c *Config) { c.Engine.PageShift = 31 }, "page_shift"},
		{"sqlite path", func(c *Config) { c.Database.Path = "" }, "sqlite database path is required"},
		{"postgres host", func(c *Config) {
			c.Database.Type = "postgres"
			c.Database.Host = ""
		}, "database host is required"},
		{"compression", func(c *Config) { c.Export.Compression = "lz4" }, "unknown compression type"},
		{"top k", func(c *Config) { c.Export.TopK = -1 }, "top_k"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestEnsureDatabaseDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state", "db")
	cfg := Default()
	cfg.Database.Path = filepath.Join(dir, "runs.db")

	require.NoError(t, cfg.EnsureDatabaseDir())
	_, err := os.Stat(dir)
	assert.NoError(t, err)

	cfg.Database.Path = ":memory:"
	assert.NoError(t, cfg.EnsureDatabaseDir())
}

func TestLoad_FileNotFound(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	// Should not return error, use defaults
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Type)
}

func TestLoadFromReader(t *testing.T) {
	content := []byte(`
database:
  type: mysql
  host: mysql.local
storage:
  type: local
`)
	cfg, err := LoadFromReader("yaml", content)
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.Database.Type)
	assert.Equal(t, "mysql.local", cfg.Database.Host)
	assert.Equal(t, 12, cfg.Engine.PageShift)
}
