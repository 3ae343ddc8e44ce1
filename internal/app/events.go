package app

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"meeting-scheduler/internal/availability"
	"meeting-scheduler/internal/notify"
)

const sseKeepAlive = 25 * time.Second

// GET /api/events?date=yyyy-mm-dd
// Streams booking events as Server-Sent Events. With a date only that
// day's events are sent.
func (a *App) EventsHandler(c *gin.Context) {
	date := c.Query("date")
	if date != "" {
		if _, err := availability.ParseDate(date); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	events, unsubscribe := a.Hub.Subscribe()
	defer unsubscribe()
	a.Logger.Debug("event stream opened", zap.String("date", date))
	defer a.Logger.Debug("event stream closed", zap.String("date", date))

	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			if date != "" && evt.Date != date {
				continue
			}
			c.SSEvent(evt.Type, evt)
			c.Writer.Flush()
		case <-ticker.C:
			c.SSEvent("ping", notify.Event{Type: "ping"})
			c.Writer.Flush()
		}
	}
}
