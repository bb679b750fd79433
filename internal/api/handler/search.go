package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/vibesearch/internal/service"
)

// SearchHandler handles search-related endpoints.
type SearchHandler struct {
	searchService *service.SearchService
}

// NewSearchHandler creates a new search handler.
// Parameters:
//   - searchService: search service instance.
// Returns:
//   - *SearchHandler: initialized handler.
func NewSearchHandler(searchService *service.SearchService) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
	}
}

// SearchRequest is the body of POST /api/search.
type SearchRequest struct {
	Query    string `json:"query"`
	NResults int    `json:"n_results"`
}

// Search handles POST /api/search.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *SearchHandler) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	results, err := h.searchService.Search(c.Request.Context(), req.Query, req.NResults)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}
