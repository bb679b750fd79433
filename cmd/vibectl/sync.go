package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/timmy/vibesearch/internal/app"
	"github.com/timmy/vibesearch/internal/service"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Import track metadata from a source",
}

var syncManifestCmd = &cobra.Command{
	Use:   "manifest <path>",
	Short: "Import tracks from a JSON Lines manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(cmd, func(ctx context.Context, s *service.SyncService) (*service.StartResult, error) {
			return s.SyncManifest(ctx, args[0])
		})
	},
}

var syncPlaylistCmd = &cobra.Command{
	Use:   "playlist <playlist-id>",
	Short: "Import tracks from a Spotify playlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(cmd, func(ctx context.Context, s *service.SyncService) (*service.StartResult, error) {
			return s.SyncPlaylist(ctx, args[0])
		})
	},
}

var syncLikedCmd = &cobra.Command{
	Use:   "liked",
	Short: "Import the authenticated user's liked tracks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(cmd, func(ctx context.Context, s *service.SyncService) (*service.StartResult, error) {
			return s.SyncLiked(ctx)
		})
	},
}

func runSync(cmd *cobra.Command, start func(context.Context, *service.SyncService) (*service.StartResult, error)) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		res, err := start(ctx, a.Sync)
		if err != nil {
			return err
		}
		return waitRun(ctx, res, a.Sync.Status)
	})
}

func init() {
	syncCmd.AddCommand(syncManifestCmd, syncPlaylistCmd, syncLikedCmd)
	rootCmd.AddCommand(syncCmd)
}
