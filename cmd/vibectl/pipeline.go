package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/timmy/vibesearch/internal/app"
	"github.com/timmy/vibesearch/internal/domain"
	"github.com/timmy/vibesearch/internal/logger"
)

var (
	retryPipeline string
	searchResults int
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Make download status agree with the audio directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			res, err := a.Download.Verify(ctx)
			if err != nil {
				return err
			}
			logger.CtxInfo(ctx, "Reconciled: marked_done=%d, marked_pending=%d", res.MarkedDone, res.MarkedPending)
			return nil
		})
	},
}

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download audio for every pending track",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			res, err := a.Download.Start(ctx)
			if err != nil {
				return err
			}
			return waitRun(ctx, res, a.Download.Status)
		})
	},
}

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Embed every downloaded track that has no embedding yet",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			res, err := a.Embed.Start(ctx)
			if err != nil {
				return err
			}
			return waitRun(ctx, res, a.Embed.Status)
		})
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Copy archived audio back into the audio directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			n, err := a.Download.Restore(ctx)
			if err != nil {
				return err
			}
			logger.CtxInfo(ctx, "Restored %d files from archive", n)
			return nil
		})
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry-failed",
	Short: "Return failed downloads or embeds to pending",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			var (
				n   int64
				err error
			)
			switch domain.Pipeline(retryPipeline) {
			case domain.PipelineDownload:
				n, err = a.Download.RetryFailed(ctx)
			case domain.PipelineEmbed:
				n, err = a.Embed.RetryFailed(ctx)
			default:
				return fmt.Errorf("unknown pipeline %q, want download or embed", retryPipeline)
			}
			if err != nil {
				return err
			}
			logger.CtxInfo(ctx, "Reset %d failed %s records to pending", n, retryPipeline)
			return nil
		})
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <track-id>...",
	Short: "Delete tracks with their audio, archived copy and embedding",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			for _, id := range args {
				if err := a.Remove.Remove(ctx, id); err != nil {
					return err
				}
			}
			logger.CtxInfo(ctx, "Removed %d tracks", len(args))
			return nil
		})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find tracks that match a free-text description",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			results, err := a.Search.Search(ctx, query, searchResults)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, r := range results {
				fmt.Fprintf(out, "%2d. %.4f  %s - %s\n", i+1, r.Similarity, r.Artist, r.Title)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd, downloadCmd, embedCmd, restoreCmd, retryCmd, removeCmd, searchCmd)

	retryCmd.Flags().StringVarP(&retryPipeline, "pipeline", "p", string(domain.PipelineDownload), "pipeline to retry: download or embed")
	searchCmd.Flags().IntVarP(&searchResults, "results", "n", 0, "number of results (default from config)")
}
