package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eventdesk/checkin-service/internal/auth"
	"github.com/eventdesk/checkin-service/internal/models"
)

// TaskCache is the per-user task hash in Redis.
type TaskCache interface {
	TasksExist(ctx context.Context, userID string) (bool, error)
	GetTasks(ctx context.Context, userID string) (map[string]models.TaskRecord, error)
	SetTask(ctx context.Context, userID string, rec models.TaskRecord) error
	SetTasks(ctx context.Context, userID string, tasks map[string]models.TaskRecord) error
}

// TaskStore is the authoritative task persistence.
type TaskStore interface {
	UpsertTask(ctx context.Context, userID, taskName, status string, data map[string]any) (models.TaskRecord, error)
	ListTasks(ctx context.Context, userID string) (map[string]models.TaskRecord, error)
}

// RegisterTaskRoutes registers the task read/write paths.
//
// PUT /tasks/:task_name
// - Write-through: DB upsert first, then the cache hash field is written and
//   the hash TTL refreshed in the same request. A read immediately after a
//   successful update is a cache hit with the just-written value.
//
// GET /tasks
// - Read-through over the whole hash: present hash is returned as-is
//   (source=redis); otherwise all rows are loaded, the hash repopulated in one
//   pass and the result tagged source=db. An empty task set is a valid
//   response and is not cached.
//
// updateLimit is the per-user rate limiter applied to the write path only.
func RegisterTaskRoutes(r gin.IRoutes, updateLimit gin.HandlerFunc, ch TaskCache, st TaskStore) {
	r.PUT("/tasks/:task_name", updateLimit, func(c *gin.Context) {
		userID := auth.UserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		taskName := c.Param("task_name")

		var req models.TaskUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "status required"})
			return
		}

		ctx := c.Request.Context()

		rec, err := st.UpsertTask(ctx, userID, taskName, req.Status, req.Data)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db upsert failed"})
			return
		}

		// The DB write committed; a cache failure only costs the next reader
		// a read-through.
		if err := ch.SetTask(ctx, userID, rec); err != nil {
			log.Printf("tasks: write-through cache update failed for %s/%s: %v", userID, taskName, err)
		}

		c.JSON(http.StatusOK, gin.H{
			"task":         rec.TaskName,
			"status":       rec.Status,
			"data":         rec.Data,
			"last_updated": rec.LastUpdated,
		})
	})

	r.GET("/tasks", func(c *gin.Context) {
		userID := auth.UserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx := c.Request.Context()

		exists, err := ch.TasksExist(ctx, userID)
		if err != nil {
			log.Printf("tasks: cache existence check failed for %s: %v", userID, err)
			exists = false
		}
		if exists {
			tasks, err := ch.GetTasks(ctx, userID)
			if err == nil {
				c.JSON(http.StatusOK, gin.H{"tasks": tasks, "source": "redis"})
				return
			}
			log.Printf("tasks: cache read failed for %s: %v", userID, err)
		}

		tasks, err := st.ListTasks(ctx, userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db query failed"})
			return
		}

		if len(tasks) > 0 {
			if err := ch.SetTasks(ctx, userID, tasks); err != nil {
				log.Printf("tasks: cache populate failed for %s: %v", userID, err)
			}
		}

		c.JSON(http.StatusOK, gin.H{"tasks": tasks, "source": "db"})
	})
}
