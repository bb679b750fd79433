package repository

import "context"

// TrackPayload is the display metadata stored alongside each embedding.
type TrackPayload struct {
	TrackID     string `json:"track_id"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album"`
	AlbumArtURL string `json:"album_art_url"`
	ExternalURL string `json:"external_url"`
}

// VectorHit is one nearest-neighbour result. Distance is cosine distance,
// 0 for identical direction.
type VectorHit struct {
	ID       string
	Distance float64
	Payload  *TrackPayload
}

// VectorIndex is implemented by QdrantRepository and MemoryIndex.
type VectorIndex interface {
	EnsureCollection(ctx context.Context) error
	Upsert(ctx context.Context, trackID string, vector []float32, payload *TrackPayload) error
	Search(ctx context.Context, vector []float32, topK int) ([]VectorHit, error)
	Count(ctx context.Context) (int64, error)
	Delete(ctx context.Context, trackID string) error
}

var (
	_ VectorIndex = (*QdrantRepository)(nil)
	_ VectorIndex = (*MemoryIndex)(nil)
)
