package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/timmy/vibesearch/internal/logger"
)

const requestIDHeader = "X-Request-ID"

// LoggerMiddleware returns a Gin middleware that injects a request-scoped logger.
// Parameters:
//   - log: base logger to enrich with request fields.
// Returns:
//   - gin.HandlerFunc: middleware handler.
func LoggerMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		// Keep the caller's request id so logs correlate across hops
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := log.WithFields(logger.Fields{
			logger.FieldRequestID: requestID,
			logger.FieldComponent: "api",
		}).WithContext(c.Request.Context())
		c.Request = c.Request.WithContext(ctx)

		c.Set("logger", logger.FromContext(ctx))
		c.Header(requestIDHeader, requestID)

		// Status polls and streams are frequent; only their completion is logged
		if !isQuiet(path) {
			logger.CtxInfo(ctx, "Request started: method=%s, path=%s, client_ip=%s",
				c.Request.Method, path, c.ClientIP())
		}

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		fullPath := path
		if query != "" {
			fullPath = path + "?" + query
		}

		entry := logger.With(logger.Fields{
			logger.FieldStatus:     status,
			logger.FieldDurationMs: latency.Milliseconds(),
			logger.FieldSize:       c.Writer.Size(),
		})
		if status >= 500 {
			entry.Error(ctx, "Request completed: method=%s, path=%s", c.Request.Method, fullPath)
			return
		}
		entry.Info(ctx, "Request completed: method=%s, path=%s", c.Request.Method, fullPath)
	}
}

func isQuiet(path string) bool {
	return strings.HasSuffix(path, "/status") || strings.HasSuffix(path, "/stream") || path == "/health"
}

// GetLogger extracts logger from Gin context or request context.
// Parameters:
//   - c: Gin request context.
// Returns:
//   - *logger.Logger: request-scoped logger or default logger.
func GetLogger(c *gin.Context) *logger.Logger {
	if l, exists := c.Get("logger"); exists {
		if log, ok := l.(*logger.Logger); ok {
			return log
		}
	}
	return logger.FromContext(c.Request.Context())
}
