package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "github.com/graph-analysis/pkg/errors"
)

// scoreBatchSize bounds the rows per INSERT when saving scores.
const scoreBatchSize = 500

// GormRunRepository implements RunRepository using GORM.
type GormRunRepository struct {
	db *gorm.DB
}

// NewGormRunRepository creates a new GormRunRepository.
func NewGormRunRepository(db *gorm.DB) *GormRunRepository {
	return &GormRunRepository{db: db}
}

// AutoMigrate creates or updates the run tables.
func (r *GormRunRepository) AutoMigrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&AlgorithmRun{}, &NodeScoreRecord{}); err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to migrate run tables", err)
	}
	return nil
}

// CreateRun inserts run and sets its ID.
func (r *GormRunRepository) CreateRun(ctx context.Context, run *Run) error {
	rec, err := newAlgorithmRun(run)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to marshal run params", err)
	}

	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to create run", err)
	}

	run.ID = rec.ID
	run.Status = rec.Status
	run.StartedAt = rec.StartedAt
	return nil
}

// UpdateGraphInfo records the size of the loaded graph.
func (r *GormRunRepository) UpdateGraphInfo(ctx context.Context, uuid string, nodeCount, edgeCount int64) error {
	return r.update(ctx, uuid, map[string]interface{}{
		"node_count": nodeCount,
		"edge_count": edgeCount,
	})
}

// FinishRun sets the terminal status, message and duration of a run.
func (r *GormRunRepository) FinishRun(ctx context.Context, uuid string, status RunStatus, message string, duration time.Duration) error {
	return r.update(ctx, uuid, map[string]interface{}{
		"status":      status,
		"message":     message,
		"duration_ms": duration.Milliseconds(),
		"finished_at": time.Now(),
	})
}

// SetExportKey records where the full result was exported.
func (r *GormRunRepository) SetExportKey(ctx context.Context, uuid string, key string) error {
	return r.update(ctx, uuid, map[string]interface{}{"export_key": key})
}

func (r *GormRunRepository) update(ctx context.Context, uuid string, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).
		Model(&AlgorithmRun{}).
		Where("uuid = ?", uuid).
		Updates(fields)

	if res.Error != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to update run", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.Newf(apperrors.CodeNotFound, "run not found: %s", uuid)
	}

	return nil
}

// SaveScores replaces the stored scores of a run.
func (r *GormRunRepository) SaveScores(ctx context.Context, uuid string, scores []NodeScore) error {
	ranked := rankScores(scores)
	records := make([]NodeScoreRecord, len(ranked))
	for i, s := range ranked {
		records[i] = NodeScoreRecord{
			RunUUID:    uuid,
			Rank:       s.Rank,
			Node:       s.Node,
			OriginalID: s.OriginalID,
			Score:      s.Score,
		}
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_uuid = ?", uuid).Delete(&NodeScoreRecord{}).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		return tx.CreateInBatches(records, scoreBatchSize).Error
	})
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to save scores", err)
	}

	return nil
}

// GetRun retrieves a run by its UUID.
func (r *GormRunRepository) GetRun(ctx context.Context, uuid string) (*Run, error) {
	var rec AlgorithmRun

	err := r.db.WithContext(ctx).Where("uuid = ?", uuid).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Newf(apperrors.CodeNotFound, "run not found: %s", uuid)
		}
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to get run", err)
	}

	return rec.ToModel()
}

// ListRuns returns the most recent runs first.
func (r *GormRunRepository) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	var recs []AlgorithmRun

	err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to list runs", err)
	}

	runs := make([]*Run, 0, len(recs))
	for i := range recs {
		run, err := recs[i].ToModel()
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to decode run", err)
		}
		runs = append(runs, run)
	}

	return runs, nil
}

// TopScores returns the k best ranked scores of a run.
func (r *GormRunRepository) TopScores(ctx context.Context, uuid string, k int) ([]NodeScore, error) {
	var recs []NodeScoreRecord

	err := r.db.WithContext(ctx).
		Where("run_uuid = ?", uuid).
		Order("score_rank ASC").
		Limit(k).
		Find(&recs).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to query scores", err)
	}

	scores := make([]NodeScore, len(recs))
	for i := range recs {
		scores[i] = recs[i].ToModel()
	}

	return scores, nil
}
