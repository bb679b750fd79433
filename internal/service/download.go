package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/timmy/vibesearch/internal/domain"
	"github.com/timmy/vibesearch/internal/logger"
	"github.com/timmy/vibesearch/internal/storage"
)

const (
	defaultMaxConcurrent   = 4
	defaultDownloadTimeout = 120 * time.Second
)

// AudioFetcher retrieves the audio for a track into outDir as <id>.mp3.
// It must stop when ctx is done.
type AudioFetcher interface {
	Fetch(ctx context.Context, track domain.Track, outDir string) error
}

// AudioArchive is the object store subset used to archive downloaded audio.
type AudioArchive interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// DownloadConfig holds configuration for the download scheduler
type DownloadConfig struct {
	AudioDir      string
	MaxConcurrent int
	Timeout       time.Duration
}

// DownloadService runs the download pipeline: reconcile, then fetch every
// pending track with bounded concurrency.
type DownloadService struct {
	tracks     TrackStore
	reconciler *Reconciler
	fetcher    AudioFetcher
	archive    AudioArchive
	tracker    *RunTracker
	history    *RunHistory

	audioDir      string
	maxConcurrent int
	timeout       time.Duration

	startMu sync.Mutex
}

// NewDownloadService creates a new download scheduler. archive and history may be nil.
func NewDownloadService(
	tracks TrackStore,
	reconciler *Reconciler,
	fetcher AudioFetcher,
	archive AudioArchive,
	history *RunHistory,
	cfg *DownloadConfig,
) *DownloadService {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultDownloadTimeout
	}

	return &DownloadService{
		tracks:        tracks,
		reconciler:    reconciler,
		fetcher:       fetcher,
		archive:       archive,
		tracker:       NewRunTracker(domain.PipelineDownload),
		history:       history,
		audioDir:      cfg.AudioDir,
		maxConcurrent: maxConcurrent,
		timeout:       timeout,
	}
}

// Tracker exposes the run state for progress streams.
func (s *DownloadService) Tracker() *RunTracker {
	return s.tracker
}

// Status returns the current run snapshot.
func (s *DownloadService) Status() domain.RunState {
	return s.tracker.Snapshot()
}

// Verify reconciles download status against the audio directory.
func (s *DownloadService) Verify(ctx context.Context) (ReconcileResult, error) {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	if s.tracker.Running() {
		return ReconcileResult{}, ErrRunInProgress
	}
	return s.reconciler.Reconcile(ctx)
}

// RetryFailed returns failed downloads to pending so the next run picks them up.
func (s *DownloadService) RetryFailed(ctx context.Context) (int64, error) {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	if s.tracker.Running() {
		return 0, ErrRunInProgress
	}
	return s.tracks.ResetDownloads(ctx, domain.DownloadFailed)
}

// Restore copies archived audio back into the audio directory for every
// track that is not downloaded, then reconciles so restored files count as done.
func (s *DownloadService) Restore(ctx context.Context) (int, error) {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	if s.tracker.Running() {
		return 0, ErrRunInProgress
	}
	if s.archive == nil {
		return 0, nil
	}
	if err := os.MkdirAll(s.audioDir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create audio directory: %w", err)
	}

	restored := 0
	for _, status := range []domain.DownloadStatus{domain.DownloadPending, domain.DownloadFailed} {
		tracks, err := s.tracks.ListByDownloadStatus(ctx, status)
		if err != nil {
			return restored, fmt.Errorf("failed to list %s tracks: %w", status, err)
		}
		for _, t := range tracks {
			ok, err := s.restoreOne(ctx, t.ID)
			if err != nil {
				s.log(ctx).WithError(err).WithField(logger.FieldTrackID, t.ID).Warn("Failed to restore audio")
				continue
			}
			if ok {
				restored++
			}
		}
	}

	if _, err := s.reconciler.Reconcile(ctx); err != nil {
		return restored, err
	}

	logger.With(logger.Fields{logger.FieldCount: restored}).Info(ctx, "Restored audio from archive")
	return restored, nil
}

func (s *DownloadService) restoreOne(ctx context.Context, id string) (bool, error) {
	path := AudioPath(s.audioDir, id)
	if fileExists(path) {
		return false, nil
	}

	key := storage.AudioKey(id)
	exists, err := s.archive.Exists(ctx, key)
	if err != nil || !exists {
		return false, err
	}

	rc, err := s.archive.Download(ctx, key)
	if err != nil {
		return false, err
	}
	defer rc.Close()

	tmp := path + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return false, err
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		os.Remove(tmp)
		return false, err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return false, err
	}
	return true, os.Rename(tmp, path)
}

// Start reconciles, selects pending tracks and launches the batch in the
// background. It returns ErrRunInProgress while a previous batch is active.
func (s *DownloadService) Start(ctx context.Context) (*StartResult, error) {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	if s.tracker.Running() {
		return nil, ErrRunInProgress
	}

	// Nothing is in flight, so any downloading record was interrupted.
	if n, err := s.tracks.ResetDownloads(ctx, domain.DownloadDownloading); err != nil {
		return nil, fmt.Errorf("failed to reset interrupted downloads: %w", err)
	} else if n > 0 {
		logger.CtxWarn(ctx, "Reset %d interrupted downloads to pending", n)
	}

	if _, err := s.reconciler.Reconcile(ctx); err != nil {
		return nil, err
	}

	pending, err := s.tracks.ListByDownloadStatus(ctx, domain.DownloadPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending tracks: %w", err)
	}
	if len(pending) == 0 {
		return &StartResult{Status: StatusNoPending, Message: "No songs to download"}, nil
	}

	if err := os.MkdirAll(s.audioDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audio directory: %w", err)
	}

	run := newRun()
	if err := s.tracker.Begin(run.ID, len(pending)); err != nil {
		return nil, err
	}

	runCtx := backgroundContext(ctx, run, domain.PipelineDownload)
	go s.process(runCtx, run, pending)

	return &StartResult{Status: StatusStarted, Total: len(pending), RunID: run.ID, Run: run}, nil
}

// process feeds tracks in selection order to maxConcurrent workers.
func (s *DownloadService) process(ctx context.Context, run *Run, tracks []domain.Track) {
	defer close(run.done)
	start := time.Now()

	s.log(ctx).WithFields(logger.Fields{
		"total":          len(tracks),
		"max_concurrent": s.maxConcurrent,
	}).Info("Starting download run")

	items := make(chan domain.Track)
	var wg sync.WaitGroup
	for i := 0; i < s.maxConcurrent; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range items {
				s.processOne(ctx, t)
			}
		}()
	}

	for _, t := range tracks {
		items <- t
	}
	close(items)
	wg.Wait()

	final := s.tracker.Complete()
	s.history.Record(ctx, final, "", nil)

	logger.With(logger.Fields{
		"success":              final.Success,
		"failed":               final.Failed,
		logger.FieldDurationMs: elapsedMs(start),
	}).Info(ctx, "Download run completed")
}

func (s *DownloadService) processOne(ctx context.Context, t domain.Track) {
	ctx = logger.WithField(ctx, logger.FieldTrackID, t.ID)

	claimed, err := s.tracks.MarkDownloading(ctx, t.ID)
	if err != nil || !claimed {
		if err != nil {
			s.log(ctx).WithError(err).Error("Failed to claim track")
		} else {
			s.log(ctx).Warn("Track is no longer pending, skipping")
		}
		s.tracker.Count(false)
		return
	}

	s.tracker.ItemStarted(domain.SummaryOf(&t))
	ok := s.download(ctx, t)
	s.tracker.ItemFinished(t.ID, ok)
}

func (s *DownloadService) download(ctx context.Context, t domain.Track) bool {
	start := time.Now()
	path := AudioPath(s.audioDir, t.ID)

	err := s.fetch(ctx, t)
	if err == nil && !fileExists(path) {
		err = fmt.Errorf("fetch reported success but %s is missing", path)
	}
	if err != nil {
		s.log(ctx).WithError(err).Warn("Download failed")
		if markErr := s.tracks.MarkDownloadFailed(ctx, t.ID); markErr != nil {
			s.log(ctx).WithError(markErr).Error("Failed to mark download failed")
		}
		return false
	}

	if err := s.tracks.MarkDownloadDone(ctx, t.ID, path); err != nil {
		s.log(ctx).WithError(err).Error("Failed to mark download done")
		if markErr := s.tracks.MarkDownloadFailed(ctx, t.ID); markErr != nil {
			s.log(ctx).WithError(markErr).Error("Failed to mark download failed")
		}
		return false
	}

	logger.With(logger.Fields{logger.FieldDurationMs: elapsedMs(start)}).Info(ctx, "Downloaded %q", t.Title)
	s.archiveAudio(ctx, t.ID, path)
	return true
}

// fetch runs the fetcher under the per-item timeout. A fetcher that ignores
// cancellation is abandoned when the deadline passes.
func (s *DownloadService) fetch(ctx context.Context, t domain.Track) error {
	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.fetcher.Fetch(fetchCtx, t, s.audioDir)
	}()

	select {
	case err := <-errCh:
		if err != nil && fetchCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("download timed out after %s: %w", s.timeout, err)
		}
		return err
	case <-fetchCtx.Done():
		return fmt.Errorf("download timed out after %s: %w", s.timeout, fetchCtx.Err())
	}
}

// archiveAudio copies the file to the object store. It never affects the item outcome.
func (s *DownloadService) archiveAudio(ctx context.Context, id, path string) {
	if s.archive == nil {
		return
	}
	key := storage.AudioKey(id)

	exists, err := s.archive.Exists(ctx, key)
	if err == nil && exists {
		return
	}

	f, err := os.Open(path)
	if err != nil {
		s.log(ctx).WithError(err).Warn("Failed to open audio for archive")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.log(ctx).WithError(err).Warn("Failed to stat audio for archive")
		return
	}

	if err := s.archive.Upload(ctx, key, f, info.Size(), "audio/mpeg"); err != nil {
		s.log(ctx).WithError(err).WithField("key", key).Warn("Failed to archive audio")
	}
}

func (s *DownloadService) log(ctx context.Context) *logger.Logger {
	return logger.FromContext(ctx).WithField(logger.FieldComponent, "download")
}
