package service

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/timmy/vibesearch/internal/domain"
	"github.com/timmy/vibesearch/internal/repository"
	"github.com/timmy/vibesearch/internal/storage"
)

// fakeFetcher writes <id>.mp3 unless the track is listed in hang or fail.
type fakeFetcher struct {
	hang    map[string]bool // ignores ctx until release is closed
	fail    map[string]bool
	release chan struct{}
	delay   time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32

	mu    sync.Mutex
	order []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{hang: map[string]bool{}, fail: map[string]bool{}, release: make(chan struct{})}
}

func (f *fakeFetcher) Fetch(ctx context.Context, track domain.Track, outDir string) error {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		max := f.maxInFlight.Load()
		if n <= max || f.maxInFlight.CompareAndSwap(max, n) {
			break
		}
	}

	f.mu.Lock()
	f.order = append(f.order, track.ID)
	f.mu.Unlock()

	if f.hang[track.ID] {
		<-f.release
		return nil
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.fail[track.ID] {
		return errors.New("no match found")
	}
	return os.WriteFile(AudioPath(outDir, track.ID), []byte("mp3 "+track.ID), 0644)
}

func newDownloadService(t *testing.T, store *repository.TrackRepository, fetcher AudioFetcher, archive AudioArchive, n int, timeout time.Duration) (*DownloadService, string) {
	t.Helper()
	dir := t.TempDir()
	svc := NewDownloadService(store, NewReconciler(store, dir), fetcher, archive, nil, &DownloadConfig{
		AudioDir:      dir,
		MaxConcurrent: n,
		Timeout:       timeout,
	})
	return svc, dir
}

func waitRun(t *testing.T, res *StartResult) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := res.Run.Wait(ctx); err != nil {
		t.Fatalf("run did not finish: %v", err)
	}
}

func TestDownloadService_TimeoutCountsAsFailure(t *testing.T) {
	store := newTestStore(t)
	seedTracks(t, store, "t1", "t2", "t3", "t4", "t5")

	fetcher := newFakeFetcher()
	fetcher.hang["t3"] = true
	t.Cleanup(func() { close(fetcher.release) })

	svc, dir := newDownloadService(t, store, fetcher, nil, 2, 100*time.Millisecond)

	res, err := svc.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if res.Status != StatusStarted || res.Total != 5 {
		t.Fatalf("Start() = %+v, want started with 5", res)
	}
	waitRun(t, res)

	st := svc.Status()
	if st.Status != domain.RunComplete {
		t.Errorf("status = %s, want complete", st.Status)
	}
	if st.Current != 5 || st.Success != 4 || st.Failed != 1 || st.Active != 0 {
		t.Errorf("final state = current %d success %d failed %d active %d", st.Current, st.Success, st.Failed, st.Active)
	}

	for _, id := range []string{"t1", "t2", "t4", "t5"} {
		track := getTrack(t, store, id)
		if track.DownloadStatus != domain.DownloadDone || track.FilePath != AudioPath(dir, id) {
			t.Errorf("%s = %s %q, want done", id, track.DownloadStatus, track.FilePath)
		}
	}
	if s := getTrack(t, store, "t3").DownloadStatus; s != domain.DownloadFailed {
		t.Errorf("t3 status = %s, want failed", s)
	}
}

func TestDownloadService_BoundedConcurrency(t *testing.T) {
	store := newTestStore(t)
	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	seedTracks(t, store, ids...)

	fetcher := newFakeFetcher()
	fetcher.delay = 20 * time.Millisecond
	fetcher.fail["c"] = true

	svc, _ := newDownloadService(t, store, fetcher, nil, 3, time.Second)
	res, err := svc.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitRun(t, res)

	if max := fetcher.maxInFlight.Load(); max > 3 {
		t.Errorf("max in flight = %d, want <= 3", max)
	}
	st := svc.Status()
	if st.Current != len(ids) || st.Success != len(ids)-1 || st.Failed != 1 {
		t.Errorf("final state = %+v", st)
	}
	if len(fetcher.order) != len(ids) {
		t.Errorf("fetched %d tracks, want %d", len(fetcher.order), len(ids))
	}
}

func TestDownloadService_MissingFileIsFailure(t *testing.T) {
	store := newTestStore(t)
	seedTracks(t, store, "t1")

	svc, _ := newDownloadService(t, store, fetchFunc(func(ctx context.Context, track domain.Track, outDir string) error {
		return nil
	}), nil, 1, time.Second)

	res, err := svc.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitRun(t, res)

	if st := svc.Status(); st.Failed != 1 || st.Success != 0 {
		t.Errorf("final state = %+v, want one failure", st)
	}
	if s := getTrack(t, store, "t1").DownloadStatus; s != domain.DownloadFailed {
		t.Errorf("status = %s, want failed", s)
	}
}

func TestDownloadService_NoPending(t *testing.T) {
	store := newTestStore(t)
	svc, dir := newDownloadService(t, store, newFakeFetcher(), nil, 2, time.Second)

	res, err := svc.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if res.Status != StatusNoPending || res.Run != nil {
		t.Errorf("Start() = %+v, want no_pending", res)
	}

	// A file already on disk is reconciled to done before selection.
	seedTracks(t, store, "t1")
	os.WriteFile(AudioPath(dir, "t1"), []byte("x"), 0644)

	res, err = svc.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if res.Status != StatusNoPending {
		t.Errorf("Start() = %+v, want no_pending", res)
	}
	if s := getTrack(t, store, "t1").DownloadStatus; s != domain.DownloadDone {
		t.Errorf("status = %s, want done", s)
	}
	if st := svc.Status(); st.Status != domain.RunIdle {
		t.Errorf("tracker status = %s, want idle", st.Status)
	}
}

func TestDownloadService_RejectsOverlap(t *testing.T) {
	store := newTestStore(t)
	seedTracks(t, store, "t1", "t2")

	fetcher := newFakeFetcher()
	fetcher.hang["t1"] = true
	svc, _ := newDownloadService(t, store, fetcher, nil, 1, 5*time.Second)

	res, err := svc.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if _, err := svc.Start(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("second Start() error = %v, want ErrRunInProgress", err)
	}
	if _, err := svc.Verify(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("Verify() error = %v, want ErrRunInProgress", err)
	}

	close(fetcher.release)
	waitRun(t, res)

	// t1's fetcher returned without writing a file.
	st := svc.Status()
	if st.Success != 1 || st.Failed != 1 {
		t.Errorf("final state = %+v", st)
	}
}

func TestDownloadService_ResetsInterruptedAndRetries(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedTracks(t, store, "stuck", "broken")

	store.MarkDownloading(ctx, "stuck")
	store.MarkDownloading(ctx, "broken")
	store.MarkDownloadFailed(ctx, "broken")

	fetcher := newFakeFetcher()
	svc, _ := newDownloadService(t, store, fetcher, nil, 2, time.Second)

	res, err := svc.Start(ctx)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if res.Total != 1 {
		t.Fatalf("Start() total = %d, want only the interrupted track", res.Total)
	}
	waitRun(t, res)

	n, err := svc.RetryFailed(ctx)
	if err != nil || n != 1 {
		t.Fatalf("RetryFailed() = %d, %v", n, err)
	}
	res, err = svc.Start(ctx)
	if err != nil || res.Total != 1 {
		t.Fatalf("Start() after retry = %+v, %v", res, err)
	}
	waitRun(t, res)

	for _, id := range []string{"stuck", "broken"} {
		if s := getTrack(t, store, id).DownloadStatus; s != domain.DownloadDone {
			t.Errorf("%s status = %s, want done", id, s)
		}
	}
}

func TestDownloadService_ArchiveAndRestore(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedTracks(t, store, "t1", "t2")

	archive := newMemArchive()
	svc, dir := newDownloadService(t, store, newFakeFetcher(), archive, 2, time.Second)

	res, err := svc.Start(ctx)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitRun(t, res)

	for _, id := range []string{"t1", "t2"} {
		if ok, _ := archive.Exists(ctx, storage.AudioKey(id)); !ok {
			t.Errorf("%s was not archived", id)
		}
	}

	os.Remove(AudioPath(dir, "t1"))
	if _, err := svc.Verify(ctx); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if s := getTrack(t, store, "t1").DownloadStatus; s != domain.DownloadPending {
		t.Fatalf("t1 status = %s, want pending", s)
	}

	restored, err := svc.Restore(ctx)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if restored != 1 {
		t.Errorf("Restore() = %d, want 1", restored)
	}
	if s := getTrack(t, store, "t1").DownloadStatus; s != domain.DownloadDone {
		t.Errorf("t1 status after restore = %s, want done", s)
	}
	data, err := os.ReadFile(AudioPath(dir, "t1"))
	if err != nil || string(data) != "mp3 t1" {
		t.Errorf("restored file = %q, %v", data, err)
	}
}

type fetchFunc func(ctx context.Context, track domain.Track, outDir string) error

func (f fetchFunc) Fetch(ctx context.Context, track domain.Track, outDir string) error {
	return f(ctx, track, outDir)
}

func TestDownloadService_MarkDoneFailure(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t)
	seedTracks(t, repo, "t1")
	store := &flakyStore{TrackRepository: repo, downloadDoneErr: errors.New("database is locked")}

	dir := t.TempDir()
	svc := NewDownloadService(store, NewReconciler(store, dir), newFakeFetcher(), nil, nil, &DownloadConfig{
		AudioDir:      dir,
		MaxConcurrent: 1,
		Timeout:       5 * time.Second,
	})

	res, err := svc.Start(ctx)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitRun(t, res)

	if st := svc.Status(); st.Success != 0 || st.Failed != 1 {
		t.Errorf("final state = %+v, want 0 success 1 failed", st)
	}
	if s := getTrack(t, repo, "t1").DownloadStatus; s != domain.DownloadFailed {
		t.Errorf("download_status = %s, want failed", s)
	}
}
