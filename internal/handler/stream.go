package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// StreamEvents sends attendance_marked events for one session as Server-Sent Events.
func (h *Handler) StreamEvents(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.registry.Owned(ctx, id, subject(c)); err != nil {
		fail(c, err)
		return
	}
	events, err := h.hub.Subscribe(ctx, id)
	if err != nil {
		log.Error().Err(err).Int64("session_id", id).Msg("subscribe failed")
		writeError(c, http.StatusServiceUnavailable, "StreamUnavailable", "live updates unavailable")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	_, _ = io.WriteString(c.Writer, ": connected\n\n")
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.opts.HeartbeatInterval)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case evt, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(evt.Type, evt)
			return true
		case <-heartbeat.C:
			_, err := io.WriteString(w, ": ping\n\n")
			return err == nil
		case <-ctx.Done():
			return false
		}
	})
}
