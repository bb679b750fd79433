package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/vibesearch/internal/service"
)

// ModelHandler controls the embedding model lifecycle.
type ModelHandler struct {
	model *service.ModelHolder
}

// NewModelHandler creates a new model handler.
func NewModelHandler(model *service.ModelHolder) *ModelHandler {
	return &ModelHandler{model: model}
}

// LoadModel handles POST /api/load-model.
func (h *ModelHandler) LoadModel(c *gin.Context) {
	loadedNow, err := h.model.Ensure(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": err.Error()})
		return
	}
	if !loadedNow {
		c.JSON(http.StatusOK, gin.H{"status": "already_loaded", "message": "Model already loaded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "loaded", "message": "Model loaded"})
}

// ModelState handles GET /api/model.
func (h *ModelHandler) ModelState(c *gin.Context) {
	state, lastErr := h.model.State()
	resp := gin.H{"state": state}
	if lastErr != nil {
		resp["error"] = lastErr.Error()
	}
	c.JSON(http.StatusOK, resp)
}
