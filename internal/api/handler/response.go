package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/vibesearch/internal/logger"
	"github.com/timmy/vibesearch/internal/service"
)

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, service.ErrModelUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrTrackNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrUnknownSource), errors.Is(err, service.ErrEmptyQuery):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {"error": ...} with the status for err.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	ctx := c.Request.Context()
	if status >= http.StatusInternalServerError {
		logger.CtxError(ctx, "Request failed: path=%s, error=%v", c.FullPath(), err)
	} else {
		logger.CtxWarn(ctx, "Request rejected: path=%s, status=%d, error=%v", c.FullPath(), status, err)
	}

	msg := err.Error()
	if errors.Is(err, service.ErrNotAuthenticated) {
		msg = "not authenticated"
	}
	c.JSON(status, gin.H{"error": msg})
}

// respondStart writes the result of a pipeline trigger.
func respondStart(c *gin.Context, res *service.StartResult, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
