package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/timmy/vibesearch/internal/domain"
	"github.com/timmy/vibesearch/internal/logger"
)

// TrackStore is the subset of the track repository the pipelines need.
type TrackStore interface {
	CreateIfAbsent(ctx context.Context, track *domain.Track) (bool, error)
	Exists(ctx context.Context, id string) (bool, error)
	GetByID(ctx context.Context, id string) (*domain.Track, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]domain.Track, error)
	ListByDownloadStatus(ctx context.Context, status domain.DownloadStatus) ([]domain.Track, error)
	ListEmbeddable(ctx context.Context) ([]domain.Track, error)
	Stats(ctx context.Context) (domain.LibraryStats, error)

	MarkDownloading(ctx context.Context, id string) (bool, error)
	MarkDownloadDone(ctx context.Context, id, filePath string) error
	MarkDownloadFailed(ctx context.Context, id string) error
	ReconcileDone(ctx context.Context, id, filePath string) (bool, error)
	ReconcilePending(ctx context.Context, id string) (bool, error)
	ResetDownloads(ctx context.Context, from ...domain.DownloadStatus) (int64, error)

	MarkEmbedProcessing(ctx context.Context, id string) (bool, error)
	MarkEmbedStored(ctx context.Context, id string) error
	MarkEmbedFailed(ctx context.Context, id string) error
	ResetEmbeds(ctx context.Context, from ...domain.EmbedStatus) (int64, error)
}

// AudioPath is where the audio for track id lives under dir.
func AudioPath(dir, id string) string {
	return filepath.Join(dir, id+".mp3")
}

// ReconcileResult counts the corrections made by one reconcile pass.
type ReconcileResult struct {
	MarkedDone    int `json:"marked_done"`
	MarkedPending int `json:"marked_pending"`
}

// Reconciler makes download_status agree with the audio directory.
type Reconciler struct {
	tracks   TrackStore
	audioDir string
}

// NewReconciler creates a Reconciler over audioDir.
func NewReconciler(tracks TrackStore, audioDir string) *Reconciler {
	return &Reconciler{tracks: tracks, audioDir: audioDir}
}

// Reconcile marks tracks done when their file exists and pending when a
// done track has lost its file. Other combinations are left untouched.
func (r *Reconciler) Reconcile(ctx context.Context) (ReconcileResult, error) {
	var result ReconcileResult

	tracks, err := r.tracks.List(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list tracks: %w", err)
	}

	for _, t := range tracks {
		path := AudioPath(r.audioDir, t.ID)
		exists := fileExists(path)

		switch {
		case exists && t.DownloadStatus != domain.DownloadDone:
			changed, err := r.tracks.ReconcileDone(ctx, t.ID, path)
			if err != nil {
				return result, fmt.Errorf("failed to mark %s done: %w", t.ID, err)
			}
			if changed {
				result.MarkedDone++
			}
		case !exists && t.DownloadStatus == domain.DownloadDone:
			changed, err := r.tracks.ReconcilePending(ctx, t.ID)
			if err != nil {
				return result, fmt.Errorf("failed to mark %s pending: %w", t.ID, err)
			}
			if changed {
				result.MarkedPending++
			}
		}
	}

	if result.MarkedDone > 0 || result.MarkedPending > 0 {
		logger.With(logger.Fields{
			"marked_done":    result.MarkedDone,
			"marked_pending": result.MarkedPending,
		}).Info(ctx, "Reconciled download state")
	}
	return result, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
