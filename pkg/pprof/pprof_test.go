package pprof

import (
	"errors"
	"io"
	"net/http"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graph-analysis/pkg/utils"
)

func TestParseProfileTypes(t *testing.T) {
	types, err := ParseProfileTypes("")
	require.NoError(t, err)
	assert.Equal(t, DefaultProfileTypes(), types)

	types, err = ParseProfileTypes("CPU, heap,cpu,mutex")
	require.NoError(t, err)
	assert.Equal(t, []ProfileType{ProfileCPU, ProfileHeap, ProfileMutex}, types)

	_, err = ParseProfileTypes("cpu,trace")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown profile type")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"no output dir", func(c *Config) { c.OutputDir = "" }, "output directory"},
		{"no profiles", func(c *Config) { c.Profiles = nil }, "at least one profile"},
		{"http without addr", func(c *Config) {
			c.Mode = ModeHTTP
			c.Addr = ""
		}, "listen address"},
		{"bad mode", func(c *Config) { c.Mode = "push" }, "invalid pprof mode"},
		{"negative rate", func(c *Config) { c.CPURate = -1 }, "cpu rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
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

func TestCollector_FileMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OutputDir = t.TempDir()
	cfg.Profiles = []ProfileType{ProfileCPU, ProfileHeap, ProfileGoroutine}

	c, err := NewCollector(cfg, &utils.NullLogger{})
	require.NoError(t, err)
	require.NoError(t, c.Start())
	assert.Error(t, c.Start(), "second start must fail")

	require.NoError(t, c.Stop())
	require.NoError(t, c.Stop())

	files := c.Files()
	require.Len(t, files, 3)
	for _, f := range files {
		info, err := os.Stat(f)
		require.NoError(t, err)
		assert.False(t, info.IsDir())
	}
	assert.Empty(t, c.Addr())
}

func TestCollector_HTTPMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = ModeHTTP
	cfg.Addr = "127.0.0.1:0"

	c, err := NewCollector(cfg, &utils.NullLogger{})
	require.NoError(t, err)
	require.NoError(t, c.Start())
	defer c.Stop()

	addr := c.Addr()
	require.NotEmpty(t, addr)

	resp, err := http.Get("http://" + addr + "/debug/pprof/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "goroutine")

	require.NoError(t, c.Stop())
	assert.Empty(t, c.Addr())
}

func TestNewCollector_InvalidConfig(t *testing.T) {
	_, err := NewCollector(&Config{Mode: "bogus"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestRunWithPprof(t *testing.T) {
	sentinel := errors.New("boom")

	called := false
	err := RunWithPprof(nil, nil, func() error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)

	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.OutputDir = t.TempDir()
	cfg.Profiles = []ProfileType{ProfileHeap}
	err = RunWithPprof(cfg, &utils.NullLogger{}, func() error { return sentinel })
	assert.ErrorIs(t, err, sentinel)

	entries, err := os.ReadDir(cfg.OutputDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
