// Package repository records algorithm runs and their top scores.
package repository

import (
	"context"
	"time"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunStatusRunning    RunStatus = "running"
	RunStatusSucceeded  RunStatus = "succeeded"
	RunStatusTerminated RunStatus = "terminated"
	RunStatusFailed     RunStatus = "failed"
)

// Finished reports whether the status is terminal.
func (s RunStatus) Finished() bool {
	return s == RunStatusSucceeded || s == RunStatusTerminated || s == RunStatusFailed
}

// Run is one execution of an algorithm over an input graph.
type Run struct {
	ID          int64             `json:"id"`
	UUID        string            `json:"uuid"`
	Algorithm   string            `json:"algorithm"`
	InputPath   string            `json:"input_path"`
	Status      RunStatus         `json:"status"`
	Message     string            `json:"message,omitempty"`
	NodeCount   int64             `json:"node_count"`
	EdgeCount   int64             `json:"edge_count"`
	Concurrency int               `json:"concurrency"`
	Directed    bool              `json:"directed"`
	Params      map[string]string `json:"params,omitempty"`
	ExportKey   string            `json:"export_key,omitempty"`
	Duration    time.Duration     `json:"duration"`
	StartedAt   time.Time         `json:"started_at"`
	FinishedAt  *time.Time        `json:"finished_at,omitempty"`
}

// NodeScore is one ranked entry of a run's result.
type NodeScore struct {
	Rank       int     `json:"rank"`
	Node       int64   `json:"node"`
	OriginalID int64   `json:"original_id"`
	Score      float64 `json:"score"`
}

// RunRepository defines the run catalog operations.
type RunRepository interface {
	// CreateRun inserts run and sets its ID.
	CreateRun(ctx context.Context, run *Run) error

	// UpdateGraphInfo records the size of the loaded graph.
	UpdateGraphInfo(ctx context.Context, uuid string, nodeCount, edgeCount int64) error

	// FinishRun sets the terminal status, message and duration of a run.
	FinishRun(ctx context.Context, uuid string, status RunStatus, message string, duration time.Duration) error

	// SetExportKey records where the full result was exported.
	SetExportKey(ctx context.Context, uuid string, key string) error

	// SaveScores replaces the stored scores of a run. Entries without a rank
	// are ranked by their position.
	SaveScores(ctx context.Context, uuid string, scores []NodeScore) error

	// GetRun retrieves a run by its UUID.
	GetRun(ctx context.Context, uuid string) (*Run, error)

	// ListRuns returns the most recent runs first.
	ListRuns(ctx context.Context, limit int) ([]*Run, error)

	// TopScores returns the k best ranked scores of a run.
	TopScores(ctx context.Context, uuid string, k int) ([]NodeScore, error)
}
