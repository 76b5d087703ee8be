package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// QueueStats exposes queue depth for operational monitoring.
type QueueStats interface {
	Len(ctx context.Context) (int64, error)
}

// RegisterOpsRoutes registers authenticated operational endpoints.
//
// GET /health/queue-length — pending check-ins not yet flushed by the worker.
func RegisterOpsRoutes(r gin.IRoutes, q QueueStats) {
	r.GET("/health/queue-length", func(c *gin.Context) {
		n, err := q.Len(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"queue_length": n})
	})
}
