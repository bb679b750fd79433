// Package app wires configuration into the repositories and services shared
// by the API server and the command line tool.
package app

import (
	"context"
	"fmt"

	"github.com/timmy/vibesearch/internal/api"
	"github.com/timmy/vibesearch/internal/config"
	"github.com/timmy/vibesearch/internal/fetcher"
	"github.com/timmy/vibesearch/internal/logger"
	"github.com/timmy/vibesearch/internal/repository"
	"github.com/timmy/vibesearch/internal/service"
	"github.com/timmy/vibesearch/internal/source/spotify"
	"github.com/timmy/vibesearch/internal/storage"
	"gorm.io/gorm"
)

// App holds every long-lived component.
type App struct {
	Config *config.Config

	DB      *gorm.DB
	Tracks  *repository.TrackRepository
	Index   repository.VectorIndex
	History *service.RunHistory
	Model   *service.ModelHolder

	Download *service.DownloadService
	Embed    *service.EmbedService
	Sync     *service.SyncService
	Search   *service.SearchService
	Library  *service.LibraryService
	Remove   *service.RemoveService

	closers []func() error
}

// New connects the stores and builds the services described by cfg.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a.DB = db
	a.closers = append(a.closers, func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	index, err := a.openIndex(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Index = index

	archive, err := openArchive(ctx, &cfg.Storage)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Tracks = repository.NewTrackRepository(db)
	a.History = service.NewRunHistory(repository.NewRunRepository(db))
	a.Model = service.NewModelHolder(service.NewClapClient(&service.ClapConfig{
		BaseURL:    cfg.Model.BaseURL,
		APIKey:     cfg.Model.APIKey,
		Model:      cfg.Model.Name,
		Dimensions: cfg.Model.Dimensions,
		Timeout:    cfg.Model.Timeout,
	}))

	reconciler := service.NewReconciler(a.Tracks, cfg.Download.AudioDir)
	a.Download = service.NewDownloadService(a.Tracks, reconciler, fetcher.NewYTDLP(cfg.Download.Binary), archive, a.History,
		&service.DownloadConfig{
			AudioDir:      cfg.Download.AudioDir,
			MaxConcurrent: cfg.Download.MaxConcurrent,
			Timeout:       cfg.Download.Timeout,
		})
	a.Embed = service.NewEmbedService(a.Tracks, a.Model, a.Index, a.History, cfg.Embed.ItemTimeout)

	spotifyClient := spotify.NewClient(&spotify.Config{
		AccessToken: cfg.Spotify.AccessToken,
		BaseURL:     cfg.Spotify.BaseURL,
		PageDelay:   cfg.Sync.PageDelay,
	})
	a.Sync = service.NewSyncService(a.Tracks, spotifyClient, a.History, cfg.Sync.PageSize)

	a.Search = service.NewSearchService(a.Model, a.Index, &service.SearchConfig{
		DefaultResults: cfg.Search.DefaultResults,
		MaxResults:     cfg.Search.MaxResults,
	})
	a.Library = service.NewLibraryService(a.Tracks)
	a.Remove = service.NewRemoveService(a.Tracks, a.Index, archive, cfg.Download.AudioDir, a.Download, a.Embed)

	return a, nil
}

func (a *App) openIndex(ctx context.Context) (repository.VectorIndex, error) {
	cfg := a.Config
	switch cfg.Vector.Backend {
	case "memory":
		logger.CtxWarn(ctx, "Using in-memory vector index, embeddings are lost on restart")
		return repository.NewMemoryIndex(cfg.Model.Dimensions), nil
	case "", "qdrant":
		qdrantRepo, err := repository.NewQdrantRepository(&repository.QdrantConnectionConfig{
			Host:            cfg.Qdrant.Host,
			Port:            cfg.Qdrant.Port,
			Collection:      cfg.Qdrant.Collection,
			APIKey:          cfg.Qdrant.APIKey,
			UseTLS:          cfg.Qdrant.UseTLS,
			VectorDimension: cfg.Model.Dimensions,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Qdrant repository: %w", err)
		}
		a.closers = append(a.closers, qdrantRepo.Close)

		if err := qdrantRepo.EnsureCollection(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure Qdrant collection: %w", err)
		}
		return qdrantRepo, nil
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.Vector.Backend)
	}
}

// openArchive returns nil when archiving is disabled.
func openArchive(ctx context.Context, cfg *config.StorageConfig) (service.AudioArchive, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	store, err := storage.NewStorage(&storage.Config{
		Type:      storage.StorageType(cfg.Type),
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		UseSSL:    cfg.UseSSL,
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
		Prefix:    cfg.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure storage bucket: %w", err)
	}

	logger.CtxInfo(ctx, "Audio archive enabled: type=%s, bucket=%s", cfg.Type, cfg.Bucket)
	return store, nil
}

// Services returns the HTTP layer's view of the app.
func (a *App) Services() *api.Services {
	return &api.Services{
		Download: a.Download,
		Embed:    a.Embed,
		Sync:     a.Sync,
		Search:   a.Search,
		Library:  a.Library,
		Remove:   a.Remove,
		Model:    a.Model,
		History:  a.History,
	}
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("Close failed: %v", err)
		}
	}
	a.closers = nil
}
