package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/vibesearch/internal/domain"
	"github.com/timmy/vibesearch/internal/logger"
)

// Start result statuses.
const (
	StatusStarted   = "started"
	StatusNoPending = "no_pending"
)

// Run is a handle on a batch launched in the background.
type Run struct {
	ID   string
	done chan struct{}
}

func newRun() *Run {
	return &Run{ID: uuid.NewString(), done: make(chan struct{})}
}

// Done is closed when the batch has finished.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the batch finishes or ctx is done.
func (r *Run) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StartResult is returned by a pipeline trigger.
type StartResult struct {
	Status  string `json:"status"`
	Total   int    `json:"total"`
	RunID   string `json:"run_id,omitempty"`
	Message string `json:"message,omitempty"`
	Run     *Run   `json:"-"`
}

// backgroundContext detaches a run from the request that started it while
// keeping the request's logger, tagged with the run and pipeline.
func backgroundContext(ctx context.Context, run *Run, pipeline domain.Pipeline) context.Context {
	bg := context.WithoutCancel(ctx)
	bg = logger.WithFields(bg, logger.Fields{
		logger.FieldRunID:    run.ID,
		logger.FieldPipeline: string(pipeline),
	})
	return bg
}

func elapsedMs(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
