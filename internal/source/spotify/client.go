// Package spotify reads playlist and liked-song metadata from the Spotify Web API.
//
// Response types follow https://developer.spotify.com/documentation/web-api/reference/
package spotify

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/vibesearch/internal/domain"
	"github.com/timmy/vibesearch/internal/source"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL   = "https://api.spotify.com/v1"
	defaultPageDelay = 100 * time.Millisecond
	trackURLPrefix   = "https://open.spotify.com/track/"
)

type image struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type album struct {
	Name   string  `json:"name"`
	Images []image `json:"images"`
}

type track struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Artists []artist `json:"artists"`
	Album   album    `json:"album"`
	URI     string   `json:"uri"`
	IsLocal bool     `json:"is_local"`
}

type savedTrack struct {
	AddedAt string `json:"added_at"`
	Track   *track `json:"track"`
}

// paging is shared by /playlists/{id}/tracks and /me/tracks.
type paging struct {
	Items  []savedTrack `json:"items"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
	Next   *string      `json:"next"`
}

type apiError struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// Config holds configuration for the Spotify client.
type Config struct {
	AccessToken string
	BaseURL     string
	PageDelay   time.Duration // minimum gap between page requests
}

// Client is a rate-limited Spotify Web API client authenticated with a bearer token.
type Client struct {
	http          *resty.Client
	limiter       *rate.Limiter
	authenticated bool
}

// NewClient creates a Spotify client. An empty access token yields a client
// whose sources fail with source.ErrNotAuthenticated.
func NewClient(cfg *Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	delay := cfg.PageDelay
	if delay <= 0 {
		delay = defaultPageDelay
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken, TokenType: "Bearer"})
	httpClient := oauth2.NewClient(context.Background(), ts)

	return &Client{
		http:          resty.NewWithClient(httpClient).SetBaseURL(strings.TrimRight(baseURL, "/")),
		limiter:       rate.NewLimiter(rate.Every(delay), 1),
		authenticated: cfg.AccessToken != "",
	}
}

// Authenticated reports whether an access token is configured.
func (c *Client) Authenticated() bool {
	return c.authenticated
}

// Playlist returns a source over the tracks of playlistID.
func (c *Client) Playlist(playlistID string) source.TrackSource {
	return &pagedSource{
		client: c,
		kind:   domain.SourcePlaylist,
		name:   "Spotify playlist " + playlistID,
		path:   "/playlists/" + playlistID + "/tracks",
	}
}

// Liked returns a source over the user's saved tracks.
func (c *Client) Liked() source.TrackSource {
	return &pagedSource{
		client: c,
		kind:   domain.SourceLiked,
		name:   "Spotify liked songs",
		path:   "/me/tracks",
	}
}

func (c *Client) page(ctx context.Context, path string, offset, limit int) (*paging, error) {
	if !c.authenticated {
		return nil, source.ErrNotAuthenticated
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var result paging
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"offset": strconv.Itoa(offset),
			"limit":  strconv.Itoa(limit),
		}).
		SetResult(&result).
		SetError(&apiErr).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("failed to call Spotify API: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		return &result, nil
	case http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: %s", source.ErrNotAuthenticated, apiErr.Error.Message)
	default:
		if apiErr.Error.Message != "" {
			return nil, fmt.Errorf("Spotify API error: %s", apiErr.Error.Message)
		}
		return nil, fmt.Errorf("Spotify API error: status %d", resp.StatusCode())
	}
}

// pagedSource walks an offset-paginated track listing.
type pagedSource struct {
	client *Client
	kind   domain.SourceKind
	name   string
	path   string
}

func (s *pagedSource) Kind() domain.SourceKind { return s.kind }

func (s *pagedSource) DisplayName() string { return s.name }

// FetchBatch fetches one page. The cursor is the offset of the page.
func (s *pagedSource) FetchBatch(ctx context.Context, cursor string, limit int) ([]source.TrackItem, string, int, error) {
	offset := 0
	if cursor != "" {
		var err error
		if offset, err = strconv.Atoi(cursor); err != nil {
			return nil, "", 0, fmt.Errorf("invalid cursor: %w", err)
		}
	}

	page, err := s.client.page(ctx, s.path, offset, limit)
	if err != nil {
		return nil, "", 0, err
	}

	items := make([]source.TrackItem, 0, len(page.Items))
	for _, it := range page.Items {
		if it.Track == nil || it.Track.IsLocal || it.Track.ID == "" {
			continue
		}
		items = append(items, toItem(it))
	}

	next := ""
	if page.Next != nil && *page.Next != "" {
		next = strconv.Itoa(offset + len(page.Items))
	}
	return items, next, page.Total, nil
}

func toItem(st savedTrack) source.TrackItem {
	t := st.Track

	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}

	art := ""
	if len(t.Album.Images) > 0 {
		art = t.Album.Images[0].URL
	}

	return source.TrackItem{
		ID:          t.ID,
		Title:       t.Name,
		Artist:      strings.Join(names, ", "),
		Album:       t.Album.Name,
		AlbumArtURL: art,
		ExternalURL: trackURLPrefix + t.ID,
		URI:         t.URI,
		AddedAt:     st.AddedAt,
	}
}
