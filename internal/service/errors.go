package service

import (
	"errors"

	"github.com/timmy/vibesearch/internal/source"
)

var (
	// ErrRunInProgress is returned when a pipeline is triggered while its previous run is still active.
	ErrRunInProgress = errors.New("run already in progress")
	// ErrModelUnavailable wraps any failure to load the embedding model.
	ErrModelUnavailable = errors.New("embedding model unavailable")
	// ErrNotAuthenticated means the playlist source has no usable credentials.
	ErrNotAuthenticated = source.ErrNotAuthenticated
	// ErrTrackNotFound is returned when a track id has no record.
	ErrTrackNotFound = errors.New("track not found")
	// ErrUnknownSource is returned for a sync source that is not configured.
	ErrUnknownSource = errors.New("unknown source")
)
