package fetcher

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/timmy/vibesearch/internal/domain"
)

func TestYTDLPArgs(t *testing.T) {
	y := NewYTDLP("")
	track := domain.Track{ID: "abc123", Title: "Teardrop", Artist: "Massive Attack"}

	got := strings.Join(y.Args(track, "/data/audio"), " ")
	want := "ytsearch1:Massive Attack - Teardrop -x --audio-format mp3 --audio-quality 5 " +
		"-o /data/audio/abc123.%(ext)s --no-playlist --quiet --no-warnings"
	if got != want {
		t.Errorf("Args() =\n%s\nwant\n%s", got, want)
	}
	if y.binary != "yt-dlp" {
		t.Errorf("binary = %q, want yt-dlp", y.binary)
	}
}

// writeScript creates an executable shell script standing in for yt-dlp.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "fake-ytdlp")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestYTDLPFetch(t *testing.T) {
	track := domain.Track{ID: "t1", Title: "Song", Artist: "Band"}

	t.Run("success", func(t *testing.T) {
		y := NewYTDLP(writeScript(t, "exit 0"))
		if err := y.Fetch(context.Background(), track, t.TempDir()); err != nil {
			t.Errorf("Fetch() error = %v", err)
		}
	})

	t.Run("non-zero exit includes stderr", func(t *testing.T) {
		y := NewYTDLP(writeScript(t, "echo 'no results' >&2; exit 2"))
		err := y.Fetch(context.Background(), track, t.TempDir())
		if err == nil || !strings.Contains(err.Error(), "no results") {
			t.Errorf("Fetch() error = %v, want stderr in message", err)
		}
	})

	t.Run("killed on timeout", func(t *testing.T) {
		y := NewYTDLP(writeScript(t, "exec sleep 10"))
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		start := time.Now()
		err := y.Fetch(ctx, track, t.TempDir())
		if err == nil {
			t.Fatal("expected timeout error")
		}
		if time.Since(start) > 5*time.Second {
			t.Errorf("Fetch took %v, process was not killed", time.Since(start))
		}
	})

	t.Run("child holding stderr does not block", func(t *testing.T) {
		// The background sleep inherits stderr and outlives the killed shell.
		y := NewYTDLP(writeScript(t, "sleep 10 &\nexec sleep 10"))
		y.waitDelay = 200 * time.Millisecond
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		start := time.Now()
		if err := y.Fetch(ctx, track, t.TempDir()); err == nil {
			t.Fatal("expected timeout error")
		}
		if elapsed := time.Since(start); elapsed > 3*time.Second {
			t.Errorf("Fetch took %v, want return shortly after the wait delay", elapsed)
		}
	})

	t.Run("default wait delay", func(t *testing.T) {
		if y := NewYTDLP(""); y.waitDelay != defaultWaitDelay {
			t.Errorf("waitDelay = %v, want %v", y.waitDelay, defaultWaitDelay)
		}
	})
}
