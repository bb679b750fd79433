package service

import (
	"context"
	"fmt"

	"github.com/timmy/vibesearch/internal/domain"
)

// Library is the full track listing with coverage counts.
type Library struct {
	Songs []domain.Track      `json:"songs"`
	Stats domain.LibraryStats `json:"stats"`
}

// LibraryService reads the track store for display.
type LibraryService struct {
	tracks TrackStore
}

// NewLibraryService creates a new LibraryService.
func NewLibraryService(tracks TrackStore) *LibraryService {
	return &LibraryService{tracks: tracks}
}

// Get returns every track and the library counts.
func (s *LibraryService) Get(ctx context.Context) (*Library, error) {
	songs, err := s.tracks.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracks: %w", err)
	}
	stats, err := s.tracks.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count tracks: %w", err)
	}
	if songs == nil {
		songs = []domain.Track{}
	}
	return &Library{Songs: songs, Stats: stats}, nil
}
