package manifest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/timmy/vibesearch/internal/domain"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracks.jsonl")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAdapter_FetchBatch(t *testing.T) {
	path := writeFile(t, strings.Join([]string{
		`# comment`,
		`{"id": "1", "title": "One", "artist": "Solo"}`,
		``,
		`{"id": " 2 ", "title": "Two", "artists": ["A", "B"]}`,
		`{"id": "3", "title": "Three", "artist": "Solo", "artists": ["ignored"]}`,
	}, "\n"))

	a := NewAdapter(path)
	if a.Kind() != domain.SourceManifest {
		t.Errorf("Kind() = %s", a.Kind())
	}

	tests := []struct {
		cursor   string
		wantIDs  []string
		wantNext string
	}{
		{"", []string{"1", "2"}, "2"},
		{"2", []string{"3"}, ""},
		{"9", nil, ""},
	}
	for _, tt := range tests {
		t.Run("cursor="+tt.cursor, func(t *testing.T) {
			items, next, total, err := a.FetchBatch(context.Background(), tt.cursor, 2)
			if err != nil {
				t.Fatalf("FetchBatch() error = %v", err)
			}
			if total != 3 {
				t.Errorf("total = %d, want 3", total)
			}
			if next != tt.wantNext {
				t.Errorf("next = %q, want %q", next, tt.wantNext)
			}
			if len(items) != len(tt.wantIDs) {
				t.Fatalf("got %d items, want %d", len(items), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if items[i].ID != id {
					t.Errorf("items[%d].ID = %q, want %q", i, items[i].ID, id)
				}
			}
		})
	}

	items, _, _, _ := a.FetchBatch(context.Background(), "", 0)
	if items[1].Artist != "A, B" || items[2].Artist != "Solo" {
		t.Errorf("artists = %q, %q", items[1].Artist, items[2].Artist)
	}
}

func TestAdapter_Errors(t *testing.T) {
	if _, _, _, err := NewAdapter(filepath.Join(t.TempDir(), "missing.jsonl")).FetchBatch(context.Background(), "", 10); err == nil {
		t.Error("expected error for missing file")
	}

	path := writeFile(t, "{\"id\": \"1\"}\n{broken\n")
	_, _, _, err := NewAdapter(path).FetchBatch(context.Background(), "", 10)
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("error = %v, want line number", err)
	}

	a := NewAdapter(writeFile(t, "{\"id\": \"1\"}\n"))
	if _, _, _, err := a.FetchBatch(context.Background(), "abc", 10); err == nil {
		t.Error("expected error for bad cursor")
	}
}
