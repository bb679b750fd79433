package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/timmy/vibesearch/internal/logger"
)

const (
	defaultSearchResults = 20
	maxSearchResults     = 100
)

// ErrEmptyQuery is returned for a blank search query.
var ErrEmptyQuery = errors.New("query is required")

// SearchResult is one ranked track.
type SearchResult struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Artist     string  `json:"artist"`
	Album      string  `json:"album"`
	Art        string  `json:"art"`
	Link       string  `json:"link"`
	Similarity float64 `json:"similarity"`
}

// SearchConfig holds result count limits.
type SearchConfig struct {
	DefaultResults int
	MaxResults     int
}

// SearchService answers free-text queries against the audio embeddings.
type SearchService struct {
	model          *ModelHolder
	index          VectorIndex
	defaultResults int
	maxResults     int
}

// NewSearchService creates a new search gateway
func NewSearchService(model *ModelHolder, index VectorIndex, cfg *SearchConfig) *SearchService {
	s := &SearchService{
		model:          model,
		index:          index,
		defaultResults: defaultSearchResults,
		maxResults:     maxSearchResults,
	}
	if cfg != nil {
		if cfg.DefaultResults > 0 {
			s.defaultResults = cfg.DefaultResults
		}
		if cfg.MaxResults > 0 {
			s.maxResults = cfg.MaxResults
		}
	}
	return s
}

// Search embeds query and returns up to n nearest tracks, nearest first.
// An empty index yields an empty list without loading the model.
func (s *SearchService) Search(ctx context.Context, query string, n int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	n = s.clamp(n)
	start := time.Now()

	size, err := s.index.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count index: %w", err)
	}
	if size == 0 {
		return []SearchResult{}, nil
	}
	if int64(n) > size {
		n = int(size)
	}

	vector, err := s.model.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := s.index.Search(ctx, vector, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}

	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		r := SearchResult{ID: h.ID, Similarity: Similarity(h.Distance)}
		if p := h.Payload; p != nil {
			r.Title = p.Title
			r.Artist = p.Artist
			r.Album = p.Album
			r.Art = p.AlbumArtURL
			r.Link = p.ExternalURL
		}
		results = append(results, r)
	}

	logger.With(logger.Fields{
		logger.FieldCount:      len(results),
		logger.FieldDurationMs: elapsedMs(start),
	}).Info(ctx, "Search completed")

	return results, nil
}

func (s *SearchService) clamp(n int) int {
	if n <= 0 {
		return s.defaultResults
	}
	if n > s.maxResults {
		return s.maxResults
	}
	return n
}

// Similarity converts a cosine distance to 1-d rounded to 4 decimals.
func Similarity(distance float64) float64 {
	return math.Round((1-distance)*10000) / 10000
}
