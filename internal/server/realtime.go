package server

import (
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/realtime"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	realtimeEventChange    = "change"
	realtimeEventHeartbeat = "heartbeat"
)

// publish announces a committed change to the caller's other sessions. Failures are logged only.
func (h *httpHandler) publish(c *gin.Context, entity realtime.Entity, action realtime.Action, entityID, noteID string) {
	event := realtime.Event{
		Entity:    entity,
		Action:    action,
		UserID:    userID(c).String(),
		EntityID:  entityID,
		NoteID:    noteID,
		Timestamp: h.clock().UTC(),
	}
	if err := h.publisher.Publish(c.Request.Context(), event); err != nil {
		h.logger.Warn("realtime publish failed",
			zap.String("entity", string(entity)),
			zap.String("action", string(action)),
			zap.String("entity_id", entityID),
			zap.Error(err),
		)
	}
}

// handleEvents streams the caller's entity events as Server-Sent Events with periodic heartbeats.
func (h *httpHandler) handleEvents(c *gin.Context) {
	ctx := c.Request.Context()
	stream, cleanup := h.subscriber.Subscribe(ctx, userID(c).String())
	defer cleanup()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			c.SSEvent(realtimeEventHeartbeat, gin.H{"timestamp": h.clock().UTC()})
			c.Writer.Flush()
		case event, ok := <-stream:
			if !ok {
				return
			}
			c.SSEvent(realtimeEventChange, event)
			c.Writer.Flush()
		}
	}
}
