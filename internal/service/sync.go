package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/timmy/vibesearch/internal/domain"
	"github.com/timmy/vibesearch/internal/logger"
	"github.com/timmy/vibesearch/internal/source"
	"github.com/timmy/vibesearch/internal/source/manifest"
)

const defaultSyncPageSize = 50

// PlaylistProvider builds sources for a streaming account.
type PlaylistProvider interface {
	Authenticated() bool
	Playlist(playlistID string) source.TrackSource
	Liked() source.TrackSource
}

// SyncService imports track metadata from a source into the track store.
// Existing records are never modified.
type SyncService struct {
	tracks   TrackStore
	provider PlaylistProvider
	tracker  *RunTracker
	history  *RunHistory
	pageSize int

	startMu sync.Mutex
}

// NewSyncService creates a new sync service. provider may be nil when no
// streaming account is configured.
func NewSyncService(tracks TrackStore, provider PlaylistProvider, history *RunHistory, pageSize int) *SyncService {
	if pageSize <= 0 {
		pageSize = defaultSyncPageSize
	}
	return &SyncService{
		tracks:   tracks,
		provider: provider,
		tracker:  NewRunTracker(domain.PipelineSync),
		history:  history,
		pageSize: pageSize,
	}
}

// Tracker exposes the run state for progress streams.
func (s *SyncService) Tracker() *RunTracker {
	return s.tracker
}

// Status returns the current run snapshot.
func (s *SyncService) Status() domain.RunState {
	return s.tracker.Snapshot()
}

// Authenticated reports whether the streaming account can be read.
func (s *SyncService) Authenticated() bool {
	return s.provider != nil && s.provider.Authenticated()
}

// SyncPlaylist imports the tracks of a playlist.
func (s *SyncService) SyncPlaylist(ctx context.Context, playlistID string) (*StartResult, error) {
	if !s.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	if playlistID == "" {
		return nil, fmt.Errorf("%w: playlist id is required", ErrUnknownSource)
	}
	return s.Start(ctx, s.provider.Playlist(playlistID), domain.RunParams{"playlist_id": playlistID})
}

// SyncLiked imports the account's saved tracks.
func (s *SyncService) SyncLiked(ctx context.Context) (*StartResult, error) {
	if !s.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	return s.Start(ctx, s.provider.Liked(), nil)
}

// SyncManifest imports tracks listed in a local JSONL manifest.
func (s *SyncService) SyncManifest(ctx context.Context, path string) (*StartResult, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: manifest path is required", ErrUnknownSource)
	}
	return s.Start(ctx, manifest.NewAdapter(path), domain.RunParams{"path": path})
}

// Start runs a sync from src in the background.
func (s *SyncService) Start(ctx context.Context, src source.TrackSource, params domain.RunParams) (*StartResult, error) {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	if s.tracker.Running() {
		return nil, ErrRunInProgress
	}

	run := newRun()
	if err := s.tracker.Begin(run.ID, 0); err != nil {
		return nil, err
	}

	runCtx := backgroundContext(ctx, run, domain.PipelineSync)
	runCtx = logger.WithField(runCtx, logger.FieldSource, string(src.Kind()))
	go s.process(runCtx, run, src, params)

	return &StartResult{Status: StatusStarted, RunID: run.ID, Run: run}, nil
}

func (s *SyncService) process(ctx context.Context, run *Run, src source.TrackSource, params domain.RunParams) {
	defer close(run.done)
	start := time.Now()

	added, existing, err := s.importAll(ctx, src)

	var final domain.RunState
	if err != nil {
		logger.FromContext(ctx).WithError(err).Error("Sync failed")
		final = s.tracker.Fail(err.Error())
	} else {
		final = s.tracker.Complete()
	}
	s.history.Record(ctx, final, src.Kind(), params)

	logger.With(logger.Fields{
		"added":                added,
		"existing":             existing,
		logger.FieldDurationMs: elapsedMs(start),
	}).Info(ctx, "Sync from %s finished", src.DisplayName())
}

func (s *SyncService) importAll(ctx context.Context, src source.TrackSource) (added, existing int, err error) {
	cursor := ""
	for {
		items, next, total, err := src.FetchBatch(ctx, cursor, s.pageSize)
		if err != nil {
			return added, existing, fmt.Errorf("failed to fetch page: %w", err)
		}
		if total > 0 {
			s.tracker.SetTotal(total)
		}

		for _, item := range items {
			if item.ID == "" {
				continue
			}

			created, err := s.tracks.CreateIfAbsent(ctx, item.ToTrack())
			if err != nil {
				return added, existing, fmt.Errorf("failed to save track %s: %w", item.ID, err)
			}
			if !created {
				existing++
				s.tracker.Count(true)
				continue
			}

			added++
			summary := domain.ItemSummary{ID: item.ID, Title: item.Title, Artist: item.Artist}
			s.tracker.ItemStarted(summary)
			s.tracker.ItemFinished(item.ID, true)
		}

		if next == "" {
			return added, existing, nil
		}
		cursor = next
	}
}
