package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/timmy/vibesearch/internal/domain"
	"github.com/timmy/vibesearch/internal/service"
)

const defaultRunsLimit = 20

// LibraryHandler serves the track listing, track removal and run history.
type LibraryHandler struct {
	library *service.LibraryService
	remover *service.RemoveService
	history *service.RunHistory
}

// NewLibraryHandler creates a new library handler.
func NewLibraryHandler(library *service.LibraryService, remover *service.RemoveService, history *service.RunHistory) *LibraryHandler {
	return &LibraryHandler{library: library, remover: remover, history: history}
}

// GetLibrary handles GET /api/library.
func (h *LibraryHandler) GetLibrary(c *gin.Context) {
	lib, err := h.library.Get(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lib)
}

// DeleteTrack handles DELETE /api/tracks/:id.
func (h *LibraryHandler) DeleteTrack(c *gin.Context) {
	id := c.Param("id")
	if err := h.remover.Remove(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "id": id})
}

// ListRuns handles GET /api/runs?pipeline=&limit=.
func (h *LibraryHandler) ListRuns(c *gin.Context) {
	limit := defaultRunsLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	pipeline := domain.Pipeline(c.Query("pipeline"))
	switch pipeline {
	case "", domain.PipelineDownload, domain.PipelineEmbed, domain.PipelineSync:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown pipeline: " + string(pipeline)})
		return
	}

	runs, err := h.history.List(c.Request.Context(), pipeline, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "total": len(runs)})
}
