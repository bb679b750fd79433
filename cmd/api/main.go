package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/vibesearch/internal/api"
	"github.com/timmy/vibesearch/internal/app"
	"github.com/timmy/vibesearch/internal/config"
	"github.com/timmy/vibesearch/internal/logger"
)

func main() {
	log := logger.NewFromEnv(logger.LoadFromEnv())
	logger.SetDefaultLogger(log)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		fatal("Failed to load config: %v", err)
	}

	ctx := logger.SetComponent(log.WithContext(context.Background()), "api")

	a, err := app.New(ctx, cfg)
	if err != nil {
		fatal("Failed to initialize: %v", err)
	}
	defer a.Close()

	router := api.SetupRouter(a.Services(), &cfg.Server, log)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.CtxInfo(ctx, "Starting API server: port=%d, mode=%s", cfg.Server.Port, cfg.Server.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.CtxInfo(ctx, "Shutting down server...")

	// Event streams stay open until their run ends, so they are cut off here
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.CtxWarn(ctx, "Server forced to shutdown: %v", err)
	}

	logger.CtxInfo(ctx, "Server exited")
}

func fatal(format string, args ...interface{}) {
	logger.Error(format, args...)
	_ = logger.Sync()
	os.Exit(1)
}
