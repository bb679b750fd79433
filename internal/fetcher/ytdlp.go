// Package fetcher downloads track audio with yt-dlp.
package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/timmy/vibesearch/internal/domain"
	"github.com/timmy/vibesearch/internal/logger"
)

const (
	defaultBinary = "yt-dlp"

	// defaultWaitDelay bounds how long Fetch waits for stderr after the
	// process is killed. ffmpeg children can keep the pipe open.
	defaultWaitDelay = 5 * time.Second
)

// YTDLP searches YouTube for "<artist> - <title>" and extracts the first hit as mp3.
type YTDLP struct {
	binary    string
	waitDelay time.Duration
}

// NewYTDLP creates a fetcher that runs binary, or yt-dlp from PATH when empty.
func NewYTDLP(binary string) *YTDLP {
	if binary == "" {
		binary = defaultBinary
	}
	return &YTDLP{binary: binary, waitDelay: defaultWaitDelay}
}

// Args returns the command line used for track.
func (y *YTDLP) Args(track domain.Track, outDir string) []string {
	return []string{
		fmt.Sprintf("ytsearch1:%s - %s", track.Artist, track.Title),
		"-x",
		"--audio-format", "mp3",
		"--audio-quality", "5",
		"-o", filepath.Join(outDir, track.ID+".%(ext)s"),
		"--no-playlist",
		"--quiet",
		"--no-warnings",
	}
}

// Fetch runs yt-dlp and waits for it. The process is killed when ctx is done.
func (y *YTDLP) Fetch(ctx context.Context, track domain.Track, outDir string) error {
	args := y.Args(track, outDir)

	cmd := exec.CommandContext(ctx, y.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = y.waitDelay

	logger.CtxDebug(ctx, "Executing %s %v", y.binary, args)
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("yt-dlp killed: %w", ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("yt-dlp exited with code %d: %s", exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return fmt.Errorf("yt-dlp execution failed: %w", err)
	}
	return nil
}
