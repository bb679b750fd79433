package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/vibesearch/internal/domain"
	"github.com/timmy/vibesearch/internal/service"
)

// HealthHandler reports liveness plus model and pipeline state.
type HealthHandler struct {
	model     *service.ModelHolder
	pipelines map[domain.Pipeline]*service.RunTracker
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(model *service.ModelHolder, pipelines map[domain.Pipeline]*service.RunTracker) *HealthHandler {
	return &HealthHandler{model: model, pipelines: pipelines}
}

// Health handles GET /health. It never fails; a broken model is reported, not fatal.
func (h *HealthHandler) Health(c *gin.Context) {
	state, _ := h.model.State()

	running := make(map[domain.Pipeline]bool, len(h.pipelines))
	for name, tracker := range h.pipelines {
		running[name] = tracker.Running()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"model":   state,
		"running": running,
	})
}
