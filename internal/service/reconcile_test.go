package service

import (
	"context"
	"os"
	"testing"

	"github.com/timmy/vibesearch/internal/domain"
)

func TestReconciler_Reconcile(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	dir := t.TempDir()
	seedTracks(t, store, "kept", "lost", "found", "missing")

	writeAudio(t, store, dir, "kept")
	lost := writeAudio(t, store, dir, "lost")
	if err := os.Remove(lost); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(AudioPath(dir, "found"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	r := NewReconciler(store, dir)
	got, err := r.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if got.MarkedDone != 1 || got.MarkedPending != 1 {
		t.Errorf("Reconcile() = %+v, want 1 done and 1 pending", got)
	}

	tests := []struct {
		id     string
		status domain.DownloadStatus
		path   string
	}{
		{"kept", domain.DownloadDone, AudioPath(dir, "kept")},
		{"lost", domain.DownloadPending, ""},
		{"found", domain.DownloadDone, AudioPath(dir, "found")},
		{"missing", domain.DownloadPending, ""},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			track := getTrack(t, store, tt.id)
			if track.DownloadStatus != tt.status {
				t.Errorf("status = %s, want %s", track.DownloadStatus, tt.status)
			}
			if track.FilePath != tt.path {
				t.Errorf("file_path = %q, want %q", track.FilePath, tt.path)
			}
		})
	}

	again, err := r.Reconcile(ctx)
	if err != nil {
		t.Fatalf("second Reconcile() error = %v", err)
	}
	if again.MarkedDone != 0 || again.MarkedPending != 0 {
		t.Errorf("second Reconcile() = %+v, want no changes", again)
	}
}

func TestReconciler_FailedWithFile(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	dir := t.TempDir()
	seedTracks(t, store, "t1")

	store.MarkDownloading(ctx, "t1")
	store.MarkDownloadFailed(ctx, "t1")
	os.WriteFile(AudioPath(dir, "t1"), []byte("x"), 0644)

	got, err := NewReconciler(store, dir).Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if got.MarkedDone != 1 {
		t.Errorf("MarkedDone = %d, want 1", got.MarkedDone)
	}
	if s := getTrack(t, store, "t1").DownloadStatus; s != domain.DownloadDone {
		t.Errorf("status = %s, want done", s)
	}
}
