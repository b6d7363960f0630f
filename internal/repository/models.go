package repository

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// AlgorithmRun represents the algorithm_runs table.
type AlgorithmRun struct {
	ID          int64      `gorm:"column:id;primaryKey;autoIncrement"`
	UUID        string     `gorm:"column:uuid;type:varchar(64);uniqueIndex"`
	Algorithm   string     `gorm:"column:algorithm;type:varchar(64);index"`
	InputPath   string     `gorm:"column:input_path;type:varchar(1024)"`
	Status      RunStatus  `gorm:"column:status;type:varchar(16);index"`
	Message     string     `gorm:"column:message;type:text"`
	NodeCount   int64      `gorm:"column:node_count"`
	EdgeCount   int64      `gorm:"column:edge_count"`
	Concurrency int        `gorm:"column:concurrency"`
	Directed    bool       `gorm:"column:directed"`
	Params      JSONField  `gorm:"column:params;type:json"`
	ExportKey   string     `gorm:"column:export_key;type:varchar(512)"`
	DurationMs  int64      `gorm:"column:duration_ms"`
	StartedAt   time.Time  `gorm:"column:started_at"`
	FinishedAt  *time.Time `gorm:"column:finished_at"`
}

// TableName returns the table name for AlgorithmRun.
func (AlgorithmRun) TableName() string {
	return "algorithm_runs"
}

// ToModel converts AlgorithmRun to Run.
func (r *AlgorithmRun) ToModel() (*Run, error) {
	run := &Run{
		ID:          r.ID,
		UUID:        r.UUID,
		Algorithm:   r.Algorithm,
		InputPath:   r.InputPath,
		Status:      r.Status,
		Message:     r.Message,
		NodeCount:   r.NodeCount,
		EdgeCount:   r.EdgeCount,
		Concurrency: r.Concurrency,
		Directed:    r.Directed,
		ExportKey:   r.ExportKey,
		Duration:    time.Duration(r.DurationMs) * time.Millisecond,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
	}

	if r.Params != nil {
		if err := json.Unmarshal(r.Params, &run.Params); err != nil {
			return nil, err
		}
	}

	return run, nil
}

// newAlgorithmRun converts a Run into its table row.
func newAlgorithmRun(run *Run) (*AlgorithmRun, error) {
	rec := &AlgorithmRun{
		UUID:        run.UUID,
		Algorithm:   run.Algorithm,
		InputPath:   run.InputPath,
		Status:      run.Status,
		Message:     run.Message,
		NodeCount:   run.NodeCount,
		EdgeCount:   run.EdgeCount,
		Concurrency: run.Concurrency,
		Directed:    run.Directed,
		ExportKey:   run.ExportKey,
		DurationMs:  run.Duration.Milliseconds(),
		StartedAt:   run.StartedAt,
		FinishedAt:  run.FinishedAt,
	}
	if rec.Status == "" {
		rec.Status = RunStatusRunning
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}

	if len(run.Params) > 0 {
		params, err := json.Marshal(run.Params)
		if err != nil {
			return nil, err
		}
		rec.Params = params
	}

	return rec, nil
}

// NodeScoreRecord represents the node_scores table.
type NodeScoreRecord struct {
	ID         int64   `gorm:"column:id;primaryKey;autoIncrement"`
	RunUUID    string  `gorm:"column:run_uuid;type:varchar(64);index:idx_run_rank,priority:1"`
	Rank       int     `gorm:"column:score_rank;index:idx_run_rank,priority:2"`
	Node       int64   `gorm:"column:node"`
	OriginalID int64   `gorm:"column:original_id"`
	Score      float64 `gorm:"column:score"`
}

// TableName returns the table name for NodeScoreRecord.
func (NodeScoreRecord) TableName() string {
	return "node_scores"
}

// ToModel converts NodeScoreRecord to NodeScore.
func (s *NodeScoreRecord) ToModel() NodeScore {
	return NodeScore{
		Rank:       s.Rank,
		Node:       s.Node,
		OriginalID: s.OriginalID,
		Score:      s.Score,
	}
}

// rankScores fills missing ranks with the 1-based position.
func rankScores(scores []NodeScore) []NodeScore {
	out := make([]NodeScore, len(scores))
	for i, s := range scores {
		if s.Rank == 0 {
			s.Rank = i + 1
		}
		out[i] = s
	}
	return out
}

// JSONField is a custom type for handling JSON fields in GORM.
type JSONField []byte

// Value implements driver.Valuer interface.
func (j JSONField) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return []byte(j), nil
}

// Scan implements sql.Scanner interface.
func (j *JSONField) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
		return nil
	case string:
		*j = []byte(v)
		return nil
	default:
		return errors.New("unsupported type for JSONField")
	}
}

// MarshalJSON implements json.Marshaler interface.
func (j JSONField) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON implements json.Unmarshaler interface.
func (j *JSONField) UnmarshalJSON(data []byte) error {
	if data == nil || string(data) == "null" {
		*j = nil
		return nil
	}
	*j = append((*j)[0:0], data...)
	return nil
}
