package source

import (
	"context"
	"errors"

	"github.com/timmy/vibesearch/internal/domain"
)

// ErrNotAuthenticated is returned by sources that need credentials they do not have.
var ErrNotAuthenticated = errors.New("not authenticated")

// TrackItem is one track as reported by a source.
type TrackItem struct {
	ID          string // Stable track ID within the source; empty for local files
	Title       string
	Artist      string // Artist names joined with ", "
	Album       string
	AlbumArtURL string
	ExternalURL string
	URI         string
	AddedAt     string
}

// ToTrack converts the item to a new pending Track.
func (i TrackItem) ToTrack() *domain.Track {
	return &domain.Track{
		ID:             i.ID,
		Title:          i.Title,
		Artist:         i.Artist,
		Album:          i.Album,
		AlbumArtURL:    i.AlbumArtURL,
		ExternalURL:    i.ExternalURL,
		URI:            i.URI,
		AddedAt:        i.AddedAt,
		DownloadStatus: domain.DownloadPending,
		EmbedStatus:    domain.EmbedPending,
	}
}

// TrackSource defines the interface for library metadata sources.
type TrackSource interface {
	// Kind returns the source kind recorded with sync runs.
	Kind() domain.SourceKind

	// DisplayName returns a human-readable name for this source.
	DisplayName() string

	// FetchBatch fetches a page of tracks starting from the given cursor.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - cursor: pagination cursor or empty for first page.
	//   - limit: maximum number of items to fetch.
	// Returns:
	//   - items: page of tracks.
	//   - nextCursor: cursor for the next page or empty if done.
	//   - total: total number of tracks in the source, if known.
	//   - err: non-nil if fetching fails.
	FetchBatch(ctx context.Context, cursor string, limit int) (items []TrackItem, nextCursor string, total int, err error)
}
