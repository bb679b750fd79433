package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/timmy/vibesearch/internal/app"
	"github.com/timmy/vibesearch/internal/config"
	"github.com/timmy/vibesearch/internal/domain"
	"github.com/timmy/vibesearch/internal/logger"
	"github.com/timmy/vibesearch/internal/service"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "vibectl",
	Short: "Run the vibe search pipelines from the command line.",
	Long: `vibectl drives the same sync, download and embed pipelines as the API server,
in the foreground, and exits when the run finishes.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.SetDefaultLogger(logger.NewFromEnv(logger.LoadFromEnv()))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CONFIG_PATH"), "path to config file")
}

// Execute executes the root command.
func Execute() {
	defer logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withApp loads config, builds the app and runs fn with a context that is
// cancelled on SIGINT or SIGTERM.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.SetComponent(logger.GetDefault().WithContext(ctx), "cli")

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

// waitRun blocks on a started run and reports its final counters. An
// interrupted wait leaves in-flight records to be reset by the next start.
func waitRun(ctx context.Context, res *service.StartResult, status func() domain.RunState) error {
	if res.Status == service.StatusNoPending {
		logger.CtxInfo(ctx, "%s", res.Message)
		return nil
	}

	logger.CtxInfo(ctx, "Run started: run_id=%s, total=%d", res.RunID, res.Total)
	if err := res.Run.Wait(ctx); err != nil {
		return fmt.Errorf("interrupted: %w", err)
	}

	final := status()
	logger.With(logger.Fields{
		"status":  final.Status,
		"current": final.Current,
		"total":   final.Total,
		"success": final.Success,
		"failed":  final.Failed,
	}).Info(ctx, "Run finished")

	if final.Status == domain.RunError {
		return fmt.Errorf("run failed: %s", final.Message)
	}
	return nil
}
