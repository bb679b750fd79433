package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/timmy/vibesearch/internal/config"
	"github.com/timmy/vibesearch/internal/domain"
	"github.com/timmy/vibesearch/internal/repository"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repository.InitDB(&config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 1,
		AutoMigrate:  true,
	})
	if err != nil {
		t.Fatalf("InitDB() error = %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newTestStore(t *testing.T) *repository.TrackRepository {
	t.Helper()
	return repository.NewTrackRepository(newTestDB(t))
}

func seedTracks(t *testing.T, store *repository.TrackRepository, ids ...string) {
	t.Helper()
	for _, id := range ids {
		created, err := store.CreateIfAbsent(context.Background(), &domain.Track{
			ID:     id,
			Title:  "Song " + id,
			Artist: "Artist " + id,
		})
		if err != nil || !created {
			t.Fatalf("CreateIfAbsent(%s) = %v, %v", id, created, err)
		}
	}
}

// writeAudio creates a fake audio file for id and marks the track downloaded.
func writeAudio(t *testing.T, store *repository.TrackRepository, dir, id string) string {
	t.Helper()
	path := AudioPath(dir, id)
	if err := os.WriteFile(path, []byte("audio "+id), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := store.ReconcileDone(context.Background(), id, path); err != nil {
		t.Fatalf("ReconcileDone(%s) error = %v", id, err)
	}
	return path
}

func getTrack(t *testing.T, store *repository.TrackRepository, id string) *domain.Track {
	t.Helper()
	track, err := store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID(%s) error = %v", id, err)
	}
	return track
}

// fakeEmbedder returns a vector derived from the input. Paths containing
// "bad" fail to embed.
type fakeEmbedder struct {
	mu      sync.Mutex
	loadErr error
	loads   int
	texts   []string
}

func (f *fakeEmbedder) Load(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	return f.loadErr
}

func (f *fakeEmbedder) EmbedAudio(ctx context.Context, path string) ([]float32, error) {
	if strings.Contains(filepath.Base(path), "bad") {
		return nil, errors.New("decode failed")
	}
	return []float32{1, float32(len(path)), 0.5}, nil
}

func (f *fakeEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	return []float32{1, 0, 0}, nil
}

func (f *fakeEmbedder) setLoadErr(err error) {
	f.mu.Lock()
	f.loadErr = err
	f.mu.Unlock()
}

func (f *fakeEmbedder) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads
}

// memArchive is an in-memory AudioArchive.
type memArchive struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemArchive() *memArchive {
	return &memArchive{objects: map[string][]byte{}}
}

func (a *memArchive) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.objects[key] = data
	a.mu.Unlock()
	return nil
}

func (a *memArchive) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	data, ok := a.objects[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (a *memArchive) Exists(ctx context.Context, key string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.objects[key]
	return ok, nil
}

func (a *memArchive) Delete(ctx context.Context, key string) error {
	a.mu.Lock()
	delete(a.objects, key)
	a.mu.Unlock()
	return nil
}

// flakyStore fails the status writes that have an error set.
type flakyStore struct {
	*repository.TrackRepository
	downloadDoneErr error
	embedStoredErr  error
}

func (s *flakyStore) MarkDownloadDone(ctx context.Context, id, filePath string) error {
	if s.downloadDoneErr != nil {
		return s.downloadDoneErr
	}
	return s.TrackRepository.MarkDownloadDone(ctx, id, filePath)
}

func (s *flakyStore) MarkEmbedStored(ctx context.Context, id string) error {
	if s.embedStoredErr != nil {
		return s.embedStoredErr
	}
	return s.TrackRepository.MarkEmbedStored(ctx, id)
}
