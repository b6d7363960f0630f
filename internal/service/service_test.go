package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graph-analysis/internal/repository"
	"github.com/graph-analysis/pkg/config"
	"github.com/graph-analysis/pkg/utils"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Engine.Concurrency = 2
	cfg.Database.Path = filepath.Join(dir, "state", "runs.db")
	cfg.Storage.LocalPath = filepath.Join(dir, "results")
	cfg.Export.TopK = 2
	return cfg
}

func TestService_New(t *testing.T) {
	svc, err := New(testConfig(t), nil)
	require.NoError(t, err)
	require.NotNil(t, svc)

	_, err = New(nil, nil)
	assert.Error(t, err)
}

func TestService_HealthCheck_NotInitialized(t *testing.T) {
	svc, err := New(testConfig(t), &utils.NullLogger{})
	require.NoError(t, err)

	assert.Error(t, svc.HealthCheck(context.Background()))
	assert.NoError(t, svc.Close())
}

func TestService_InitializeAndRun(t *testing.T) {
	cfg := testConfig(t)
	cfg.Export.Enabled = true
	ctx := context.Background()

	svc, err := New(cfg, &utils.NullLogger{})
	require.NoError(t, err)
	require.NoError(t, svc.Initialize(ctx))
	defer svc.Close()

	require.NoError(t, svc.HealthCheck(ctx))
	require.NotNil(t, svc.Storage())

	res, err := svc.Runner().Run(ctx, RunRequest{
		Algorithm: "closeness",
		InputPath: writeEdges(t, "1 2\n2 3\n3 4\n"),
	})
	require.NoError(t, err)
	assert.Len(t, res.Top, 2)
	assert.NotEmpty(t, res.ExportKey)

	exists, err := svc.Storage().Exists(ctx, res.ExportKey)
	require.NoError(t, err)
	assert.True(t, exists)

	runs, err := svc.Runner().ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, repository.RunStatusSucceeded, runs[0].Status)

	run, scores, err := svc.Runner().ShowRun(ctx, res.Run.UUID, 0)
	require.NoError(t, err)
	assert.Equal(t, "closeness", run.Algorithm)
	assert.Len(t, scores, 2)
}

func TestService_InitializeBadStorage(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage = config.StorageConfig{Type: "cos"}

	svc, err := New(cfg, &utils.NullLogger{})
	require.NoError(t, err)

	err = svc.Initialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize storage")
	assert.Error(t, svc.HealthCheck(context.Background()))
}
