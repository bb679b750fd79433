package handler

import (
	"io"

	"github.com/gin-gonic/gin"
	"github.com/timmy/vibesearch/internal/domain"
	"github.com/timmy/vibesearch/internal/logger"
	"github.com/timmy/vibesearch/internal/service"
)

// completePayload builds the body of a pipeline's terminal complete event.
type completePayload func(st domain.RunState) gin.H

func downloadComplete(st domain.RunState) gin.H {
	return gin.H{"event": service.EventComplete, "success": st.Success, "failed": st.Failed}
}

func embedComplete(st domain.RunState) gin.H {
	return gin.H{"event": service.EventComplete, "count": st.Current, "success": st.Success, "failed": st.Failed}
}

func syncComplete(st domain.RunState) gin.H {
	return gin.H{"event": service.EventComplete, "count": st.Current}
}

func progressPayload(st domain.RunState) gin.H {
	return gin.H{
		"event":   service.EventProgress,
		"current": st.Current,
		"total":   st.Total,
		"success": st.Success,
		"failed":  st.Failed,
		"active":  st.Active,
		"item":    st.Item,
		"items":   st.Items,
	}
}

// streamProgress relays tracker events as server-sent events until the
// terminal event is written or the client goes away.
func streamProgress(c *gin.Context, tracker *service.RunTracker, complete completePayload) {
	ctx := c.Request.Context()
	events := tracker.Watch(ctx)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	logger.CtxDebug(ctx, "Progress stream opened: client_ip=%s", c.ClientIP())

	c.Stream(func(w io.Writer) bool {
		ev, ok := <-events
		if !ok {
			return false
		}

		switch ev.Name {
		case service.EventProgress:
			c.SSEvent(service.EventProgress, progressPayload(ev.State))
			return true
		case service.EventComplete:
			c.SSEvent(service.EventComplete, complete(ev.State))
		default:
			c.SSEvent(service.EventError, gin.H{"event": service.EventError, "message": ev.State.Message})
		}
		return false
	})
}
