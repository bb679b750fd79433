package api

import (
	"github.com/gin-gonic/gin"
	"github.com/timmy/vibesearch/internal/api/handler"
	"github.com/timmy/vibesearch/internal/api/middleware"
	"github.com/timmy/vibesearch/internal/config"
	"github.com/timmy/vibesearch/internal/domain"
	"github.com/timmy/vibesearch/internal/logger"
	"github.com/timmy/vibesearch/internal/service"
)

// Services bundles everything the HTTP layer calls into.
type Services struct {
	Download *service.DownloadService
	Embed    *service.EmbedService
	Sync     *service.SyncService
	Search   *service.SearchService
	Library  *service.LibraryService
	Remove   *service.RemoveService
	Model    *service.ModelHolder
	History  *service.RunHistory
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(svc *Services, cfg *config.ServerConfig, log *logger.Logger) *gin.Engine {
	// Set Gin mode
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(cfg.CORS))

	// Create handlers
	healthHandler := handler.NewHealthHandler(svc.Model, map[domain.Pipeline]*service.RunTracker{
		domain.PipelineDownload: svc.Download.Tracker(),
		domain.PipelineEmbed:    svc.Embed.Tracker(),
		domain.PipelineSync:     svc.Sync.Tracker(),
	})
	pipelineHandler := handler.NewPipelineHandler(svc.Download, svc.Embed)
	searchHandler := handler.NewSearchHandler(svc.Search)
	libraryHandler := handler.NewLibraryHandler(svc.Library, svc.Remove, svc.History)
	syncHandler := handler.NewSyncHandler(svc.Sync)
	modelHandler := handler.NewModelHandler(svc.Model)

	// Health check
	r.GET("/health", healthHandler.Health)

	v := r.Group("/api")
	{
		// Download pipeline
		v.POST("/download", pipelineHandler.StartDownload)
		v.POST("/download/verify", pipelineHandler.VerifyDownloads)
		v.POST("/download/retry-failed", pipelineHandler.RetryFailedDownloads)
		v.POST("/download/restore", pipelineHandler.RestoreDownloads)
		v.GET("/download/status", pipelineHandler.DownloadStatus)
		v.GET("/download/stream", pipelineHandler.DownloadStream)

		// Embed pipeline
		v.POST("/embed", pipelineHandler.StartEmbed)
		v.POST("/embed/retry-failed", pipelineHandler.RetryFailedEmbeds)
		v.GET("/embed/status", pipelineHandler.EmbedStatus)
		v.GET("/embed/stream", pipelineHandler.EmbedStream)

		// Sync
		v.POST("/sync", syncHandler.SyncPlaylist)
		v.POST("/sync/liked", syncHandler.SyncLiked)
		v.POST("/sync/manifest", syncHandler.SyncManifest)
		v.GET("/sync/status", syncHandler.SyncStatus)
		v.GET("/sync/stream", syncHandler.SyncStream)
		v.GET("/auth/status", syncHandler.AuthStatus)

		// Model
		v.POST("/load-model", modelHandler.LoadModel)
		v.GET("/model", modelHandler.ModelState)

		// Search and library
		v.POST("/search", searchHandler.Search)
		v.GET("/library", libraryHandler.GetLibrary)
		v.DELETE("/tracks/:id", libraryHandler.DeleteTrack)
		v.GET("/runs", libraryHandler.ListRuns)
	}

	return r
}
