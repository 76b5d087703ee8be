package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/eventdesk/checkin-service/internal/auth"
	"github.com/eventdesk/checkin-service/internal/models"
)

// EventQueue is the append side of the attendance queue.
type EventQueue interface {
	Append(ctx context.Context, ev models.AttendanceEvent) error
}

// RegisterCheckinRoutes registers the high-QPS ingestion endpoint.
//
// POST /checkin
// - Write-around: the event goes to the queue only; neither the cache nor the
//   DB is touched, so response latency is bounded by the queue append alone.
// - A failed append is a 503, never a false "queued".
// - limit is the per-user rate limiter for this route.
func RegisterCheckinRoutes(r gin.IRoutes, limit gin.HandlerFunc, q EventQueue) {
	r.POST("/checkin", limit, func(c *gin.Context) {
		userID := auth.UserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		// Body is optional; meta defaults to empty.
		var req models.CheckinRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
			return
		}

		now := time.Now().UTC()
		ev := models.AttendanceEvent{
			EventID:   uuid.New().String(),
			UserID:    userID,
			Day:       now.Format(models.DayFormat),
			CheckinTS: now,
			Meta:      req.Meta,
		}

		if err := q.Append(c.Request.Context(), ev); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "check-in queue unavailable"})
			return
		}

		c.JSON(http.StatusAccepted, gin.H{"status": "queued", "event_id": ev.EventID})
	})
}
