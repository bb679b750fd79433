package repository

import (
	"context"

	"github.com/timmy/vibesearch/internal/domain"
	"gorm.io/gorm"
)

// RunRepository stores the history of finished pipeline runs.
type RunRepository struct {
	db *gorm.DB
}

// NewRunRepository creates a new RunRepository.
func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a run record.
func (r *RunRepository) Create(ctx context.Context, run *domain.PipelineRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// List returns the most recent runs, newest first. An empty pipeline lists all.
func (r *RunRepository) List(ctx context.Context, pipeline domain.Pipeline, limit int) ([]domain.PipelineRun, error) {
	var runs []domain.PipelineRun
	q := r.db.WithContext(ctx).Order("finished_at DESC, created_at DESC")
	if pipeline != "" {
		q = q.Where("pipeline = ?", pipeline)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&runs).Error
	return runs, err
}
