package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	apperrors "github.com/graph-analysis/pkg/errors"
)

// PostgresSchema creates the run tables for PostgresRunRepository.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS algorithm_runs (
	id          BIGSERIAL PRIMARY KEY,
	uuid        VARCHAR(64) NOT NULL UNIQUE,
	algorithm   VARCHAR(64) NOT NULL,
	input_path  VARCHAR(1024),
	status      VARCHAR(16) NOT NULL,
	message     TEXT,
	node_count  BIGINT NOT NULL DEFAULT 0,
	edge_count  BIGINT NOT NULL DEFAULT 0,
	concurrency INTEGER NOT NULL DEFAULT 0,
	directed    BOOLEAN NOT NULL DEFAULT FALSE,
	params      JSON,
	export_key  VARCHAR(512),
	duration_ms BIGINT NOT NULL DEFAULT 0,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS node_scores (
	id          BIGSERIAL PRIMARY KEY,
	run_uuid    VARCHAR(64) NOT NULL,
	score_rank  INTEGER NOT NULL,
	node        BIGINT NOT NULL,
	original_id BIGINT NOT NULL,
	score       DOUBLE PRECISION NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_run_rank ON node_scores (run_uuid, score_rank);
`

const runColumns = `id, uuid, algorithm, COALESCE(input_path, ''), status, COALESCE(message, ''),
	node_count, edge_count, concurrency, directed, params, COALESCE(export_key, ''),
	duration_ms, started_at, finished_at`

// PostgresRunRepository implements RunRepository for PostgreSQL with plain
// database/sql.
type PostgresRunRepository struct {
	db *sql.DB
}

// NewPostgresRunRepository creates a new PostgresRunRepository.
func NewPostgresRunRepository(db *sql.DB) *PostgresRunRepository {
	return &PostgresRunRepository{db: db}
}

// Migrate creates the run tables if they do not exist.
func (r *PostgresRunRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, PostgresSchema); err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to create run tables", err)
	}
	return nil
}

// CreateRun inserts run and sets its ID.
func (r *PostgresRunRepository) CreateRun(ctx context.Context, run *Run) error {
	rec, err := newAlgorithmRun(run)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to marshal run params", err)
	}

	query := `
		INSERT INTO algorithm_runs (uuid, algorithm, input_path, status, message, node_count, edge_count,
			concurrency, directed, params, export_key, duration_ms, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`

	err = r.db.QueryRowContext(ctx, query,
		rec.UUID, rec.Algorithm, rec.InputPath, rec.Status, rec.Message, rec.NodeCount, rec.EdgeCount,
		rec.Concurrency, rec.Directed, rec.Params, rec.ExportKey, rec.DurationMs, rec.StartedAt,
	).Scan(&run.ID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to create run", err)
	}

	run.Status = rec.Status
	run.StartedAt = rec.StartedAt
	return nil
}

// UpdateGraphInfo records the size of the loaded graph.
func (r *PostgresRunRepository) UpdateGraphInfo(ctx context.Context, uuid string, nodeCount, edgeCount int64) error {
	query := `UPDATE algorithm_runs SET node_count = $1, edge_count = $2 WHERE uuid = $3`
	return r.exec(ctx, uuid, query, nodeCount, edgeCount, uuid)
}

// FinishRun sets the terminal status, message and duration of a run.
func (r *PostgresRunRepository) FinishRun(ctx context.Context, uuid string, status RunStatus, message string, duration time.Duration) error {
	query := `UPDATE algorithm_runs SET status = $1, message = $2, duration_ms = $3, finished_at = $4 WHERE uuid = $5`
	return r.exec(ctx, uuid, query, status, message, duration.Milliseconds(), time.Now(), uuid)
}

// SetExportKey records where the full result was exported.
func (r *PostgresRunRepository) SetExportKey(ctx context.Context, uuid string, key string) error {
	query := `UPDATE algorithm_runs SET export_key = $1 WHERE uuid = $2`
	return r.exec(ctx, uuid, query, key, uuid)
}

func (r *PostgresRunRepository) exec(ctx context.Context, uuid string, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to update run", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to get affected rows", err)
	}
	if affected == 0 {
		return apperrors.Newf(apperrors.CodeNotFound, "run not found: %s", uuid)
	}

	return nil
}

// SaveScores replaces the stored scores of a run in one transaction.
func (r *PostgresRunRepository) SaveScores(ctx context.Context, uuid string, scores []NodeScore) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM node_scores WHERE run_uuid = $1`, uuid); err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to clear scores", err)
	}

	query := `
		INSERT INTO node_scores (run_uuid, score_rank, node, original_id, score)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, s := range rankScores(scores) {
		if _, err := tx.ExecContext(ctx, query, uuid, s.Rank, s.Node, s.OriginalID, s.Score); err != nil {
			return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to insert score", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to commit scores", err)
	}
	return nil
}

// GetRun retrieves a run by its UUID.
func (r *PostgresRunRepository) GetRun(ctx context.Context, uuid string) (*Run, error) {
	query := `SELECT ` + runColumns + ` FROM algorithm_runs WHERE uuid = $1`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, uuid))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Newf(apperrors.CodeNotFound, "run not found: %s", uuid)
		}
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to get run", err)
	}

	return run, nil
}

// ListRuns returns the most recent runs first.
func (r *PostgresRunRepository) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM algorithm_runs ORDER BY id DESC LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to list runs", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to scan run", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to list runs", err)
	}

	return runs, nil
}

// TopScores returns the k best ranked scores of a run.
func (r *PostgresRunRepository) TopScores(ctx context.Context, uuid string, k int) ([]NodeScore, error) {
	query := `
		SELECT score_rank, node, original_id, score
		FROM node_scores
		WHERE run_uuid = $1
		ORDER BY score_rank ASC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, uuid, k)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to query scores", err)
	}
	defer rows.Close()

	var scores []NodeScore
	for rows.Next() {
		var s NodeScore
		if err := rows.Scan(&s.Rank, &s.Node, &s.OriginalID, &s.Score); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to scan score", err)
		}
		scores = append(scores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to query scores", err)
	}

	return scores, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	run := &Run{}
	var params []byte
	var durationMs int64
	var finishedAt sql.NullTime

	err := row.Scan(
		&run.ID, &run.UUID, &run.Algorithm, &run.InputPath, &run.Status, &run.Message,
		&run.NodeCount, &run.EdgeCount, &run.Concurrency, &run.Directed, &params, &run.ExportKey,
		&durationMs, &run.StartedAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}

	run.Duration = time.Duration(durationMs) * time.Millisecond
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	if params != nil {
		if err := json.Unmarshal(params, &run.Params); err != nil {
			return nil, err
		}
	}

	return run, nil
}
