package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/vibesearch/internal/logger"
	"github.com/timmy/vibesearch/internal/service"
)

// PipelineHandler exposes the download and embed pipelines.
type PipelineHandler struct {
	download *service.DownloadService
	embed    *service.EmbedService
}

// NewPipelineHandler creates a new pipeline handler.
// Parameters:
//   - download: download scheduler.
//   - embed: embed scheduler.
// Returns:
//   - *PipelineHandler: initialized handler.
func NewPipelineHandler(download *service.DownloadService, embed *service.EmbedService) *PipelineHandler {
	return &PipelineHandler{download: download, embed: embed}
}

// StartDownload handles POST /api/download.
func (h *PipelineHandler) StartDownload(c *gin.Context) {
	res, err := h.download.Start(c.Request.Context())
	if err == nil {
		logger.CtxInfo(c.Request.Context(), "Download trigger: status=%s, total=%d", res.Status, res.Total)
	}
	respondStart(c, res, err)
}

// VerifyDownloads handles POST /api/download/verify.
func (h *PipelineHandler) VerifyDownloads(c *gin.Context) {
	fixed, err := h.download.Verify(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "verified", "fixed": fixed})
}

// RetryFailedDownloads handles POST /api/download/retry-failed.
func (h *PipelineHandler) RetryFailedDownloads(c *gin.Context) {
	n, err := h.download.RetryFailed(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset": n})
}

// RestoreDownloads handles POST /api/download/restore.
func (h *PipelineHandler) RestoreDownloads(c *gin.Context) {
	n, err := h.download.Restore(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"restored": n})
}

// DownloadStatus handles GET /api/download/status.
func (h *PipelineHandler) DownloadStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.download.Status())
}

// DownloadStream handles GET /api/download/stream.
func (h *PipelineHandler) DownloadStream(c *gin.Context) {
	streamProgress(c, h.download.Tracker(), downloadComplete)
}

// StartEmbed handles POST /api/embed.
func (h *PipelineHandler) StartEmbed(c *gin.Context) {
	res, err := h.embed.Start(c.Request.Context())
	if err == nil {
		logger.CtxInfo(c.Request.Context(), "Embed trigger: status=%s, total=%d", res.Status, res.Total)
	}
	respondStart(c, res, err)
}

// RetryFailedEmbeds handles POST /api/embed/retry-failed.
func (h *PipelineHandler) RetryFailedEmbeds(c *gin.Context) {
	n, err := h.embed.RetryFailed(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset": n})
}

// EmbedStatus handles GET /api/embed/status.
func (h *PipelineHandler) EmbedStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.embed.Status())
}

// EmbedStream handles GET /api/embed/stream.
func (h *PipelineHandler) EmbedStream(c *gin.Context) {
	streamProgress(c, h.embed.Tracker(), embedComplete)
}
