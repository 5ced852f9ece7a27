package webapi

import (
	"net/http"
	"time"

	"transcribecore/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const writeWait = 10 * time.Second

// Stream handles WS /jobs/{job_id}/stream: it bridges the Job Store's
// EventBus subscription onto a websocket connection, per spec.md §6's
// streaming-events contract. The stream is hint-only (spec.md §4.1); a
// disconnecting reader simply unsubscribes without affecting the job.
func (h *Handler) Stream(c *gin.Context) {
	jobID := c.Param("job_id")
	if _, err := h.store.Get(c.Request.Context(), jobID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("webapi: websocket upgrade failed", "job_id", jobID, "error", err)
		return
	}
	defer conn.Close()

	events := h.store.Subscribe(jobID)
	defer h.store.Unsubscribe(jobID, events)

	// detect client disconnects without blocking the event loop
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
			if ev.Type == "completed" || ev.Type == "error" {
				return
			}
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}
