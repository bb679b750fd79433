package service

import (
	"context"
	"errors"
	"testing"

	"github.com/timmy/vibesearch/internal/domain"
	"github.com/timmy/vibesearch/internal/repository"
)

func TestEmbedService_ContinuesAfterFailure(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	dir := t.TempDir()
	seedTracks(t, store, "good1", "bad2", "good3", "notdownloaded")
	for _, id := range []string{"good1", "bad2", "good3"} {
		writeAudio(t, store, dir, id)
	}

	index := repository.NewMemoryIndex(3)
	svc := NewEmbedService(store, NewModelHolder(&fakeEmbedder{}), index, nil, 0)

	res, err := svc.Start(ctx)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if res.Status != StatusStarted || res.Total != 3 {
		t.Fatalf("Start() = %+v, want started with 3", res)
	}
	waitRun(t, res)

	st := svc.Status()
	if st.Status != domain.RunComplete || st.Current != 3 || st.Success != 2 || st.Failed != 1 {
		t.Errorf("final state = %+v", st)
	}
	if n, _ := index.Count(ctx); n != 2 {
		t.Errorf("index size = %d, want 2", n)
	}

	tests := []struct {
		id   string
		want domain.EmbedStatus
	}{
		{"good1", domain.EmbedStored},
		{"bad2", domain.EmbedFailed},
		{"good3", domain.EmbedStored},
		{"notdownloaded", domain.EmbedPending},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := getTrack(t, store, tt.id).EmbedStatus; got != tt.want {
				t.Errorf("embed_status = %s, want %s", got, tt.want)
			}
		})
	}

	res, err = svc.Start(ctx)
	if err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	if res.Status != StatusNoPending {
		t.Errorf("second Start() = %+v, want no_pending", res)
	}
}

func TestEmbedService_ModelUnavailable(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedTracks(t, store, "t1")
	writeAudio(t, store, t.TempDir(), "t1")

	embedder := &fakeEmbedder{loadErr: errors.New("out of memory")}
	model := NewModelHolder(embedder)
	svc := NewEmbedService(store, model, repository.NewMemoryIndex(3), nil, 0)

	_, err := svc.Start(ctx)
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("Start() error = %v, want ErrModelUnavailable", err)
	}
	if st := svc.Status(); st.Status != domain.RunIdle {
		t.Errorf("tracker status = %s, want idle", st.Status)
	}
	if s := getTrack(t, store, "t1").EmbedStatus; s != domain.EmbedPending {
		t.Errorf("embed_status = %s, want pending", s)
	}
	if state, lastErr := model.State(); state != ModelFailed || lastErr == nil {
		t.Errorf("model state = %s, %v", state, lastErr)
	}

	// The next trigger retries the load.
	embedder.setLoadErr(nil)
	res, err := svc.Start(ctx)
	if err != nil {
		t.Fatalf("Start() after recovery error = %v", err)
	}
	waitRun(t, res)
	if s := getTrack(t, store, "t1").EmbedStatus; s != domain.EmbedStored {
		t.Errorf("embed_status = %s, want stored", s)
	}
	if embedder.loadCount() != 2 {
		t.Errorf("loads = %d, want 2", embedder.loadCount())
	}
}

func TestEmbedService_PreconditionLostMidRun(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	dir := t.TempDir()
	seedTracks(t, store, "t1")
	writeAudio(t, store, dir, "t1")

	tracks, err := store.ListEmbeddable(ctx)
	if err != nil || len(tracks) != 1 {
		t.Fatalf("ListEmbeddable() = %v, %v", tracks, err)
	}

	// Download reset after selection.
	store.ReconcilePending(ctx, "t1")

	svc := NewEmbedService(store, NewModelHolder(&fakeEmbedder{}), repository.NewMemoryIndex(3), nil, 0)
	if ok := svc.embedOne(ctx, tracks[0]); ok {
		t.Error("embedOne() = true, want false")
	}
	if s := getTrack(t, store, "t1").EmbedStatus; s != domain.EmbedPending {
		t.Errorf("embed_status = %s, want pending", s)
	}
}

func TestEmbedService_RetryFailed(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedTracks(t, store, "t1")
	writeAudio(t, store, t.TempDir(), "t1")
	store.MarkEmbedProcessing(ctx, "t1")
	store.MarkEmbedFailed(ctx, "t1")

	svc := NewEmbedService(store, NewModelHolder(&fakeEmbedder{}), repository.NewMemoryIndex(3), nil, 0)
	n, err := svc.RetryFailed(ctx)
	if err != nil || n != 1 {
		t.Fatalf("RetryFailed() = %d, %v", n, err)
	}
	if s := getTrack(t, store, "t1").EmbedStatus; s != domain.EmbedPending {
		t.Errorf("embed_status = %s, want pending", s)
	}
}

func TestEmbedService_MarkStoredFailure(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t)
	seedTracks(t, repo, "t1")
	writeAudio(t, repo, t.TempDir(), "t1")

	store := &flakyStore{TrackRepository: repo, embedStoredErr: errors.New("database is locked")}
	index := repository.NewMemoryIndex(3)
	svc := NewEmbedService(store, NewModelHolder(&fakeEmbedder{}), index, nil, 0)

	res, err := svc.Start(ctx)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitRun(t, res)

	if st := svc.Status(); st.Success != 0 || st.Failed != 1 {
		t.Errorf("final state = %+v, want 0 success 1 failed", st)
	}
	if s := getTrack(t, repo, "t1").EmbedStatus; s != domain.EmbedFailed {
		t.Fatalf("embed_status = %s, want failed", s)
	}

	// Retrying overwrites the orphaned vector.
	store.embedStoredErr = nil
	if n, err := svc.RetryFailed(ctx); err != nil || n != 1 {
		t.Fatalf("RetryFailed() = %d, %v", n, err)
	}
	res, err = svc.Start(ctx)
	if err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	waitRun(t, res)

	if s := getTrack(t, repo, "t1").EmbedStatus; s != domain.EmbedStored {
		t.Errorf("embed_status = %s, want stored", s)
	}
	if n, _ := index.Count(ctx); n != 1 {
		t.Errorf("index size = %d, want 1", n)
	}
}
