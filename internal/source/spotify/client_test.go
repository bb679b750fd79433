package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/timmy/vibesearch/internal/source"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func newTestServer(t *testing.T, tracks []savedTrack) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/playlists/p1/tracks", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token-1" {
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
				"error": map[string]interface{}{"status": 401, "message": "The access token expired"},
			})
			return
		}

		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		end := offset + limit
		if end > len(tracks) {
			end = len(tracks)
		}

		page := paging{Items: tracks[offset:end], Total: len(tracks), Offset: offset, Limit: limit}
		if end < len(tracks) {
			next := "https://api.spotify.com/v1/playlists/p1/tracks?offset=" + strconv.Itoa(end)
			page.Next = &next
		}
		writeJSON(w, http.StatusOK, page)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func sampleTracks() []savedTrack {
	return []savedTrack{
		{AddedAt: "2024-01-01T00:00:00Z", Track: &track{
			ID:      "a1",
			Name:    "Song A",
			Artists: []artist{{Name: "X"}, {Name: "Y"}},
			Album:   album{Name: "Album", Images: []image{{URL: "https://i.scdn.co/large"}, {URL: "https://i.scdn.co/small"}}},
			URI:     "spotify:track:a1",
		}},
		{Track: &track{ID: "", Name: "Local", IsLocal: true}},
		{Track: nil},
		{Track: &track{ID: "b2", Name: "Song B", Artists: []artist{{Name: "Z"}}}},
		{Track: &track{ID: "c3", Name: "Song C"}},
	}
}

func TestClient_Playlist(t *testing.T) {
	srv := newTestServer(t, sampleTracks())
	client := NewClient(&Config{AccessToken: "token-1", BaseURL: srv.URL, PageDelay: time.Millisecond})
	src := client.Playlist("p1")

	var all []source.TrackItem
	cursor := ""
	pages := 0
	for {
		items, next, total, err := src.FetchBatch(context.Background(), cursor, 2)
		if err != nil {
			t.Fatalf("FetchBatch(%q) error = %v", cursor, err)
		}
		if total != 5 {
			t.Errorf("total = %d, want 5", total)
		}
		all = append(all, items...)
		pages++
		if next == "" {
			break
		}
		cursor = next
	}

	if pages != 3 {
		t.Errorf("pages = %d, want 3", pages)
	}
	if len(all) != 3 {
		t.Fatalf("got %d items, want 3", len(all))
	}

	first := all[0]
	if first.Artist != "X, Y" {
		t.Errorf("artist = %q, want %q", first.Artist, "X, Y")
	}
	if first.AlbumArtURL != "https://i.scdn.co/large" {
		t.Errorf("art = %q, want first image", first.AlbumArtURL)
	}
	if first.ExternalURL != "https://open.spotify.com/track/a1" {
		t.Errorf("link = %q", first.ExternalURL)
	}
	if all[1].ID != "b2" || all[2].ID != "c3" {
		t.Errorf("ids = %s, %s", all[1].ID, all[2].ID)
	}
}

func TestClient_NotAuthenticated(t *testing.T) {
	srv := newTestServer(t, sampleTracks())

	t.Run("no token", func(t *testing.T) {
		client := NewClient(&Config{BaseURL: srv.URL})
		if client.Authenticated() {
			t.Error("Authenticated() = true without token")
		}
		_, _, _, err := client.Liked().FetchBatch(context.Background(), "", 50)
		if !errors.Is(err, source.ErrNotAuthenticated) {
			t.Errorf("error = %v, want ErrNotAuthenticated", err)
		}
	})

	t.Run("rejected token", func(t *testing.T) {
		client := NewClient(&Config{AccessToken: "stale", BaseURL: srv.URL})
		_, _, _, err := client.Playlist("p1").FetchBatch(context.Background(), "", 50)
		if !errors.Is(err, source.ErrNotAuthenticated) {
			t.Errorf("error = %v, want ErrNotAuthenticated", err)
		}
	})
}
