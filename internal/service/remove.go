package service

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/timmy/vibesearch/internal/logger"
	"github.com/timmy/vibesearch/internal/storage"
	"gorm.io/gorm"
)

// RemoveService deletes a track together with its audio file, archived copy
// and embedding.
type RemoveService struct {
	tracks   TrackStore
	index    VectorIndex
	archive  AudioArchive
	audioDir string
	download *DownloadService
	embed    *EmbedService
}

// NewRemoveService creates a RemoveService. archive may be nil.
func NewRemoveService(
	tracks TrackStore,
	index VectorIndex,
	archive AudioArchive,
	audioDir string,
	download *DownloadService,
	embed *EmbedService,
) *RemoveService {
	return &RemoveService{
		tracks:   tracks,
		index:    index,
		archive:  archive,
		audioDir: audioDir,
		download: download,
		embed:    embed,
	}
}

// Remove deletes track id. It is rejected while a download or embed run is
// active, and holds both start locks so neither can begin midway.
func (s *RemoveService) Remove(ctx context.Context, id string) error {
	s.download.startMu.Lock()
	defer s.download.startMu.Unlock()
	s.embed.startMu.Lock()
	defer s.embed.startMu.Unlock()

	if s.download.tracker.Running() || s.embed.tracker.Running() {
		return ErrRunInProgress
	}

	track, err := s.tracks.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrTrackNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to load track: %w", err)
	}

	ctx = logger.WithField(ctx, logger.FieldTrackID, id)

	if err := s.index.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete embedding: %w", err)
	}

	if s.archive != nil {
		if err := s.archive.Delete(ctx, storage.AudioKey(id)); err != nil {
			logger.FromContext(ctx).WithError(err).Warn("Failed to delete archived audio")
		}
	}

	if err := os.Remove(AudioPath(s.audioDir, id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete audio file: %w", err)
	}

	if err := s.tracks.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete track: %w", err)
	}

	logger.CtxInfo(ctx, "Removed track %q by %q", track.Title, track.Artist)
	return nil
}
