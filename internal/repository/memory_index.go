package repository

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

type memoryEntry struct {
	vector  []float32
	norm    float64
	payload TrackPayload
}

// MemoryIndex is an exact, process-local cosine index. It backs tests and
// single-node setups that run without Qdrant (vector.backend: memory).
type MemoryIndex struct {
	mu        sync.RWMutex
	dimension int
	entries   map[string]memoryEntry
}

// NewMemoryIndex creates an empty index for vectors of the given dimension.
// A dimension of 0 accepts the size of the first vector written.
func NewMemoryIndex(dimension int) *MemoryIndex {
	return &MemoryIndex{dimension: dimension, entries: make(map[string]memoryEntry)}
}

func (m *MemoryIndex) EnsureCollection(ctx context.Context) error {
	return nil
}

func (m *MemoryIndex) Upsert(ctx context.Context, trackID string, vector []float32, payload *TrackPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dimension == 0 {
		m.dimension = len(vector)
	}
	if len(vector) != m.dimension {
		return fmt.Errorf("vector has %d dimensions, index expects %d", len(vector), m.dimension)
	}

	entry := memoryEntry{vector: append([]float32(nil), vector...), norm: norm(vector)}
	if payload != nil {
		entry.payload = *payload
	}
	entry.payload.TrackID = trackID
	m.entries[trackID] = entry
	return nil
}

// Search scans every entry. Ties are broken by track id so results are stable.
func (m *MemoryIndex) Search(ctx context.Context, vector []float32, topK int) ([]VectorHit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.entries) > 0 && len(vector) != m.dimension {
		return nil, fmt.Errorf("query has %d dimensions, index expects %d", len(vector), m.dimension)
	}

	qn := norm(vector)
	hits := make([]VectorHit, 0, len(m.entries))
	for id, e := range m.entries {
		payload := e.payload
		hits = append(hits, VectorHit{
			ID:       id,
			Distance: cosineDistance(vector, qn, e.vector, e.norm),
			Payload:  &payload,
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].ID < hits[j].ID
	})
	if topK >= 0 && topK < len(hits) {
		hits = hits[:topK]
	}
	return hits, nil
}

func (m *MemoryIndex) Count(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.entries)), nil
}

func (m *MemoryIndex) Delete(ctx context.Context, trackID string) error {
	m.mu.Lock()
	delete(m.entries, trackID)
	m.mu.Unlock()
	return nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// cosineDistance is 1 - cos(a, b); a zero vector is treated as orthogonal.
func cosineDistance(a []float32, an float64, b []float32, bn float64) float64 {
	if an == 0 || bn == 0 {
		return 1
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return 1 - dot/(an*bn)
}
