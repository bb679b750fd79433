package service

import (
	"context"

	"github.com/timmy/vibesearch/internal/domain"
	"github.com/timmy/vibesearch/internal/logger"
)

// RunStore persists finished runs.
type RunStore interface {
	Create(ctx context.Context, run *domain.PipelineRun) error
	List(ctx context.Context, pipeline domain.Pipeline, limit int) ([]domain.PipelineRun, error)
}

// RunHistory records every finished pipeline run. A nil *RunHistory is a no-op.
type RunHistory struct {
	runs RunStore
}

// NewRunHistory creates a RunHistory backed by runs.
func NewRunHistory(runs RunStore) *RunHistory {
	return &RunHistory{runs: runs}
}

// Record stores the terminal snapshot st. Failures are logged only.
func (h *RunHistory) Record(ctx context.Context, st domain.RunState, source domain.SourceKind, params domain.RunParams) {
	if h == nil || h.runs == nil || st.RunID == "" {
		return
	}
	if err := h.runs.Create(ctx, domain.RunFromState(st, source, params)); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Failed to record pipeline run")
	}
}

// List returns recent runs, newest first.
func (h *RunHistory) List(ctx context.Context, pipeline domain.Pipeline, limit int) ([]domain.PipelineRun, error) {
	if h == nil || h.runs == nil {
		return []domain.PipelineRun{}, nil
	}
	return h.runs.List(ctx, pipeline, limit)
}
