package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/timmy/vibesearch/internal/config"
)

const (
	corsAllowHeaders  = "Content-Type, Content-Length, Accept-Encoding, Authorization, Accept, Origin, Cache-Control, X-Requested-With, X-Request-ID"
	corsAllowMethods  = "POST, OPTIONS, GET, DELETE"
	corsExposeHeaders = "Content-Length, X-Request-ID"
)

// CORS returns a middleware that handles Cross-Origin Resource Sharing.
// Event streams are plain GETs, so they need no extra handling here.
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		switch {
		case cfg.AllowAllOrigins:
			// When using *, credentials must be false
			c.Header("Access-Control-Allow-Origin", "*")
			c.Header("Access-Control-Allow-Credentials", "false")
		case origin != "" && IsOriginAllowed(origin, cfg):
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Vary", "Origin")
		default:
			// Origin not allowed, don't set CORS headers
			c.Next()
			return
		}

		c.Header("Access-Control-Allow-Headers", corsAllowHeaders)
		c.Header("Access-Control-Allow-Methods", corsAllowMethods)
		c.Header("Access-Control-Expose-Headers", corsExposeHeaders)

		// Handle preflight requests
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// IsOriginAllowed checks if an origin is allowed based on the configuration
func IsOriginAllowed(origin string, cfg config.CORSConfig) bool {
	if cfg.AllowAllOrigins {
		return true
	}

	for _, allowed := range cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(origin, allowed) {
			return true
		}
	}

	return false
}
