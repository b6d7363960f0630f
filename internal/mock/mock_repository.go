package mock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/graph-analysis/internal/repository"
)

// MockRunRepository is a mock implementation of the RunRepository interface.
type MockRunRepository struct {
	mock.Mock
}

// CreateRun mocks the CreateRun method.
func (m *MockRunRepository) CreateRun(ctx context.Context, run *repository.Run) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

// UpdateGraphInfo mocks the UpdateGraphInfo method.
func (m *MockRunRepository) UpdateGraphInfo(ctx context.Context, uuid string, nodeCount, edgeCount int64) error {
	args := m.Called(ctx, uuid, nodeCount, edgeCount)
	return args.Error(0)
}

// FinishRun mocks the FinishRun method.
func (m *MockRunRepository) FinishRun(ctx context.Context, uuid string, status repository.RunStatus, message string, duration time.Duration) error {
	args := m.Called(ctx, uuid, status, message, duration)
	return args.Error(0)
}

// SetExportKey mocks the SetExportKey method.
func (m *MockRunRepository) SetExportKey(ctx context.Context, uuid string, key string) error {
	args := m.Called(ctx, uuid, key)
	return args.Error(0)
}

// SaveScores mocks the SaveScores method.
func (m *MockRunRepository) SaveScores(ctx context.Context, uuid string, scores []repository.NodeScore) error {
	args := m.Called(ctx, uuid, scores)
	return args.Error(0)
}

// GetRun mocks the GetRun method.
func (m *MockRunRepository) GetRun(ctx context.Context, uuid string) (*repository.Run, error) {
	args := m.Called(ctx, uuid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Run), args.Error(1)
}

// ListRuns mocks the ListRuns method.
func (m *MockRunRepository) ListRuns(ctx context.Context, limit int) ([]*repository.Run, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.Run), args.Error(1)
}

// TopScores mocks the TopScores method.
func (m *MockRunRepository) TopScores(ctx context.Context, uuid string, k int) ([]repository.NodeScore, error) {
	args := m.Called(ctx, uuid, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.NodeScore), args.Error(1)
}

var _ repository.RunRepository = (*MockRunRepository)(nil)
