package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/graph-analysis/pkg/config"
	apperrors "github.com/graph-analysis/pkg/errors"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := NewGormDB(&config.DatabaseConfig{Type: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func setupRunRepo(t *testing.T) *GormRunRepository {
	t.Helper()
	repo := NewGormRunRepository(setupTestDB(t))
	require.NoError(t, repo.AutoMigrate(context.Background()))
	return repo
}

func TestGormRunRepository_Lifecycle(t *testing.T) {
	repo := setupRunRepo(t)
	ctx := context.Background()

	run := &Run{
		UUID:        "run-1",
		Algorithm:   "harmonic",
		InputPath:   "edges.txt",
		Concurrency: 4,
		Directed:    true,
		Params:      map[string]string{"normalize": "true"},
	}
	require.NoError(t, repo.CreateRun(ctx, run))
	assert.NotZero(t, run.ID)
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.False(t, run.StartedAt.IsZero())

	require.NoError(t, repo.UpdateGraphInfo(ctx, "run-1", 10, 25))
	require.NoError(t, repo.SaveScores(ctx, "run-1", []NodeScore{
		{Node: 3, OriginalID: 30, Score: 0.9},
		{Node: 1, OriginalID: 10, Score: 0.5},
		{Node: 7, OriginalID: 70, Score: 0.1},
	}))
	require.NoError(t, repo.SetExportKey(ctx, "run-1", "runs/run-1/scores.json.zst"))
	require.NoError(t, repo.FinishRun(ctx, "run-1", RunStatusSucceeded, "", 1500*time.Millisecond))

	got, err := repo.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "harmonic", got.Algorithm)
	assert.Equal(t, RunStatusSucceeded, got.Status)
	assert.Equal(t, int64(10), got.NodeCount)
	assert.Equal(t, int64(25), got.EdgeCount)
	assert.True(t, got.Directed)
	assert.Equal(t, 4, got.Concurrency)
	assert.Equal(t, "true", got.Params["normalize"])
	assert.Equal(t, "runs/run-1/scores.json.zst", got.ExportKey)
	assert.Equal(t, 1500*time.Millisecond, got.Duration)
	require.NotNil(t, got.FinishedAt)

	top, err := repo.TopScores(ctx, "run-1", 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, 1, top[0].Rank)
	assert.Equal(t, int64(3), top[0].Node)
	assert.Equal(t, int64(30), top[0].OriginalID)
	assert.Equal(t, 2, top[1].Rank)
	assert.Equal(t, int64(1), top[1].Node)
}

func TestGormRunRepository_SaveScoresReplaces(t *testing.T) {
	repo := setupRunRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.CreateRun(ctx, &Run{UUID: "run-1", Algorithm: "degree"}))

	require.NoError(t, repo.SaveScores(ctx, "run-1", []NodeScore{{Node: 1, Score: 1}, {Node: 2, Score: 0.5}}))
	require.NoError(t, repo.SaveScores(ctx, "run-1", []NodeScore{{Node: 9, Score: 3}}))

	top, err := repo.TopScores(ctx, "run-1", 10)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, int64(9), top[0].Node)

	require.NoError(t, repo.SaveScores(ctx, "run-1", nil))
	top, err = repo.TopScores(ctx, "run-1", 10)
	require.NoError(t, err)
	assert.Empty(t, top)
}

func TestGormRunRepository_ListRuns(t *testing.T) {
	repo := setupRunRepo(t)
	ctx := context.Background()

	runs, err := repo.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, runs)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.CreateRun(ctx, &Run{UUID: id, Algorithm: "closeness"}))
	}

	runs, err = repo.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].UUID)
	assert.Equal(t, "b", runs[1].UUID)
}

func TestGormRunRepository_NotFound(t *testing.T) {
	repo := setupRunRepo(t)
	ctx := context.Background()

	_, err := repo.GetRun(ctx, "missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Contains(t, err.Error(), "run not found")

	err = repo.FinishRun(ctx, "missing", RunStatusFailed, "boom", time.Second)
	assert.True(t, apperrors.IsNotFound(err))

	err = repo.UpdateGraphInfo(ctx, "missing", 1, 1)
	assert.True(t, apperrors.IsNotFound(err))

	err = repo.SetExportKey(ctx, "missing", "key")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestGormRunRepository_DuplicateUUID(t *testing.T) {
	repo := setupRunRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateRun(ctx, &Run{UUID: "dup", Algorithm: "degree"}))
	err := repo.CreateRun(ctx, &Run{UUID: "dup", Algorithm: "degree"})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeDatabaseError, apperrors.GetErrorCode(err))
}

func TestRankScores(t *testing.T) {
	in := []NodeScore{{Node: 1}, {Node: 2, Rank: 7}, {Node: 3}}
	out := rankScores(in)

	assert.Equal(t, []int{1, 7, 3}, []int{out[0].Rank, out[1].Rank, out[2].Rank})
	assert.Zero(t, in[0].Rank)
}

func TestRunStatus_Finished(t *testing.T) {
	assert.False(t, RunStatusRunning.Finished())
	assert.True(t, RunStatusSucceeded.Finished())
	assert.True(t, RunStatusTerminated.Finished())
	assert.True(t, RunStatusFailed.Finished())
}
