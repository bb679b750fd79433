package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/timmy/vibesearch/internal/domain"
	"github.com/timmy/vibesearch/internal/logger"
	"github.com/timmy/vibesearch/internal/repository"
)

// VectorIndex is the vector store used by the embed and search pipelines.
type VectorIndex interface {
	Upsert(ctx context.Context, trackID string, vector []float32, payload *repository.TrackPayload) error
	Search(ctx context.Context, vector []float32, topK int) ([]repository.VectorHit, error)
	Count(ctx context.Context) (int64, error)
	Delete(ctx context.Context, trackID string) error
}

// EmbedService runs the embed pipeline one track at a time.
type EmbedService struct {
	tracks      TrackStore
	model       *ModelHolder
	index       VectorIndex
	tracker     *RunTracker
	history     *RunHistory
	itemTimeout time.Duration

	startMu sync.Mutex
}

// NewEmbedService creates a new embed scheduler. itemTimeout of 0 disables the per-item bound.
func NewEmbedService(tracks TrackStore, model *ModelHolder, index VectorIndex, history *RunHistory, itemTimeout time.Duration) *EmbedService {
	return &EmbedService{
		tracks:      tracks,
		model:       model,
		index:       index,
		tracker:     NewRunTracker(domain.PipelineEmbed),
		history:     history,
		itemTimeout: itemTimeout,
	}
}

// Tracker exposes the run state for progress streams.
func (s *EmbedService) Tracker() *RunTracker {
	return s.tracker
}

// Status returns the current run snapshot.
func (s *EmbedService) Status() domain.RunState {
	return s.tracker.Snapshot()
}

// Start loads the model if needed, selects downloaded but unembedded tracks
// and embeds them in the background. A model load failure is returned as
// ErrModelUnavailable before any record is touched.
func (s *EmbedService) Start(ctx context.Context) (*StartResult, error) {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	if s.tracker.Running() {
		return nil, ErrRunInProgress
	}

	if _, err := s.model.Ensure(ctx); err != nil {
		return nil, err
	}

	// Nothing is in flight, so any processing record was interrupted.
	if n, err := s.tracks.ResetEmbeds(ctx, domain.EmbedProcessing); err != nil {
		return nil, fmt.Errorf("failed to reset interrupted embeds: %w", err)
	} else if n > 0 {
		logger.CtxWarn(ctx, "Reset %d interrupted embeds to pending", n)
	}

	tracks, err := s.tracks.ListEmbeddable(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list embeddable tracks: %w", err)
	}
	if len(tracks) == 0 {
		return &StartResult{Status: StatusNoPending, Message: "No songs to embed"}, nil
	}

	run := newRun()
	if err := s.tracker.Begin(run.ID, len(tracks)); err != nil {
		return nil, err
	}

	runCtx := backgroundContext(ctx, run, domain.PipelineEmbed)
	go s.process(runCtx, run, tracks)

	return &StartResult{Status: StatusStarted, Total: len(tracks), RunID: run.ID, Run: run}, nil
}

// RetryFailed returns failed embeds to pending.
func (s *EmbedService) RetryFailed(ctx context.Context) (int64, error) {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	if s.tracker.Running() {
		return 0, ErrRunInProgress
	}
	return s.tracks.ResetEmbeds(ctx, domain.EmbedFailed)
}

func (s *EmbedService) process(ctx context.Context, run *Run, tracks []domain.Track) {
	defer close(run.done)
	start := time.Now()

	logger.CtxInfo(ctx, "Starting embed run for %d tracks", len(tracks))

	for _, t := range tracks {
		s.tracker.ItemStarted(domain.SummaryOf(&t))
		ok := s.embedOne(logger.WithField(ctx, logger.FieldTrackID, t.ID), t)
		s.tracker.ItemFinished(t.ID, ok)
	}

	final := s.tracker.Complete()
	s.history.Record(ctx, final, "", nil)

	logger.With(logger.Fields{
		"success":              final.Success,
		"failed":               final.Failed,
		logger.FieldDurationMs: elapsedMs(start),
	}).Info(ctx, "Embed run completed")
}

func (s *EmbedService) embedOne(ctx context.Context, t domain.Track) bool {
	claimed, err := s.tracks.MarkEmbedProcessing(ctx, t.ID)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Error("Failed to claim track for embedding")
		return false
	}
	if !claimed {
		// The download was reset since selection; the record stays pending.
		logger.CtxWarn(ctx, "Track %s is no longer embeddable, skipping", t.ID)
		return false
	}

	if err := s.embedAndStore(ctx, t); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Embed failed")
		if markErr := s.tracks.MarkEmbedFailed(ctx, t.ID); markErr != nil {
			logger.FromContext(ctx).WithError(markErr).Error("Failed to mark embed failed")
		}
		return false
	}

	if err := s.tracks.MarkEmbedStored(ctx, t.ID); err != nil {
		logger.FromContext(ctx).WithError(err).Error("Failed to mark embed stored")
		// The vector is already in the index; a retry overwrites it.
		if markErr := s.tracks.MarkEmbedFailed(ctx, t.ID); markErr != nil {
			logger.FromContext(ctx).WithError(markErr).Error("Failed to mark embed failed")
		}
		return false
	}
	return true
}

func (s *EmbedService) embedAndStore(ctx context.Context, t domain.Track) error {
	if s.itemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.itemTimeout)
		defer cancel()
	}

	if !fileExists(t.FilePath) {
		return fmt.Errorf("audio file %s is missing", t.FilePath)
	}

	vector, err := s.model.EmbedAudio(ctx, t.FilePath)
	if err != nil {
		return fmt.Errorf("failed to embed audio: %w", err)
	}

	err = s.index.Upsert(ctx, t.ID, vector, &repository.TrackPayload{
		TrackID:     t.ID,
		Title:       t.Title,
		Artist:      t.Artist,
		Album:       t.Album,
		AlbumArtURL: t.AlbumArtURL,
		ExternalURL: t.ExternalURL,
	})
	if err != nil {
		return fmt.Errorf("failed to store vector: %w", err)
	}
	return nil
}
