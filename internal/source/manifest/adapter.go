package manifest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/timmy/vibesearch/internal/domain"
	"github.com/timmy/vibesearch/internal/source"
)

// Entry is one line of a JSONL track manifest.
type Entry struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Artist      string   `json:"artist"`
	Artists     []string `json:"artists"`
	Album       string   `json:"album"`
	AlbumArtURL string   `json:"album_art_url"`
	ExternalURL string   `json:"external_url"`
	URI         string   `json:"uri"`
	AddedAt     string   `json:"added_at"`
}

// Adapter implements source.TrackSource over a JSONL manifest file.
// Lines keep their file order.
type Adapter struct {
	path   string
	items  []source.TrackItem
	loaded bool
}

// NewAdapter creates a manifest adapter for the file at path.
// Parameters:
//   - path: JSONL file, one Entry per line.
//
// Returns:
//   - *Adapter: initialized manifest adapter.
func NewAdapter(path string) *Adapter {
	return &Adapter{path: path}
}

func (a *Adapter) Kind() domain.SourceKind {
	return domain.SourceManifest
}

func (a *Adapter) DisplayName() string {
	return fmt.Sprintf("Manifest (%s)", a.path)
}

// FetchBatch returns up to limit entries starting at the index in cursor.
func (a *Adapter) FetchBatch(ctx context.Context, cursor string, limit int) ([]source.TrackItem, string, int, error) {
	if !a.loaded {
		if err := a.load(); err != nil {
			return nil, "", 0, err
		}
		a.loaded = true
	}

	start := 0
	if cursor != "" {
		var err error
		start, err = strconv.Atoi(cursor)
		if err != nil {
			return nil, "", 0, fmt.Errorf("invalid cursor: %w", err)
		}
	}
	if start >= len(a.items) {
		return []source.TrackItem{}, "", len(a.items), nil
	}

	end := start + limit
	if limit <= 0 || end > len(a.items) {
		end = len(a.items)
	}

	next := ""
	if end < len(a.items) {
		next = strconv.Itoa(end)
	}
	return a.items[start:end], next, len(a.items), nil
}

func (a *Adapter) load() error {
	file, err := os.Open(a.path)
	if err != nil {
		return fmt.Errorf("failed to open manifest: %w", err)
	}
	defer file.Close()

	a.items = []source.TrackItem{}

	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return fmt.Errorf("manifest line %d: %w", lineNo, err)
		}

		artist := e.Artist
		if artist == "" && len(e.Artists) > 0 {
			artist = strings.Join(e.Artists, ", ")
		}

		a.items = append(a.items, source.TrackItem{
			ID:          strings.TrimSpace(e.ID),
			Title:       e.Title,
			Artist:      artist,
			Album:       e.Album,
			AlbumArtURL: e.AlbumArtURL,
			ExternalURL: e.ExternalURL,
			URI:         e.URI,
			AddedAt:     e.AddedAt,
		})
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading manifest: %w", err)
	}
	return nil
}
