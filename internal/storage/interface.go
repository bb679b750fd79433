package storage

import (
	"context"
	"io"
)

// ObjectStorage defines the interface for the audio archive.
type ObjectStorage interface {
	// EnsureBucket creates the bucket if the backend allows it.
	EnsureBucket(ctx context.Context) error

	// Upload uploads an object to storage
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Download opens an object for reading. The caller closes it.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete deletes an object from storage
	Delete(ctx context.Context, key string) error

	// Exists checks if an object exists
	Exists(ctx context.Context, key string) (bool, error)
}

// AudioKey is the object key of the archived audio for a track.
func AudioKey(trackID string) string {
	return "audio/" + trackID + ".mp3"
}
