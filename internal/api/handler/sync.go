package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/vibesearch/internal/logger"
	"github.com/timmy/vibesearch/internal/service"
)

// SyncHandler imports library metadata from the configured sources.
type SyncHandler struct {
	sync *service.SyncService
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(sync *service.SyncService) *SyncHandler {
	return &SyncHandler{sync: sync}
}

// SyncPlaylistRequest is the body of POST /api/sync.
type SyncPlaylistRequest struct {
	PlaylistID string `json:"playlist_id" binding:"required"`
}

// SyncManifestRequest is the body of POST /api/sync/manifest.
type SyncManifestRequest struct {
	Path string `json:"path" binding:"required"`
}

// SyncPlaylist handles POST /api/sync.
func (h *SyncHandler) SyncPlaylist(c *gin.Context) {
	var req SyncPlaylistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	logger.CtxInfo(c.Request.Context(), "Sync requested: playlist_id=%s", req.PlaylistID)
	res, err := h.sync.SyncPlaylist(c.Request.Context(), req.PlaylistID)
	respondStart(c, res, err)
}

// SyncLiked handles POST /api/sync/liked.
func (h *SyncHandler) SyncLiked(c *gin.Context) {
	res, err := h.sync.SyncLiked(c.Request.Context())
	respondStart(c, res, err)
}

// SyncManifest handles POST /api/sync/manifest.
func (h *SyncHandler) SyncManifest(c *gin.Context) {
	var req SyncManifestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	res, err := h.sync.SyncManifest(c.Request.Context(), req.Path)
	respondStart(c, res, err)
}

// SyncStatus handles GET /api/sync/status.
func (h *SyncHandler) SyncStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.sync.Status())
}

// SyncStream handles GET /api/sync/stream.
func (h *SyncHandler) SyncStream(c *gin.Context) {
	streamProgress(c, h.sync.Tracker(), syncComplete)
}

// AuthStatus handles GET /api/auth/status.
func (h *SyncHandler) AuthStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"authenticated": h.sync.Authenticated()})
}
