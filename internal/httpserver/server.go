package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/eventdesk/checkin-service/internal/auth"
	"github.com/eventdesk/checkin-service/internal/cache"
	"github.com/eventdesk/checkin-service/internal/config"
	"github.com/eventdesk/checkin-service/internal/handlers"
	"github.com/eventdesk/checkin-service/internal/queue"
	"github.com/eventdesk/checkin-service/internal/ratelimit"
	"github.com/eventdesk/checkin-service/internal/store"
)

// Per-user rate limits, matching the original deployment.
const (
	checkinPerMinute    = 120
	taskUpdatePerMinute = 60
)

// NewRouter wires public endpoints and authenticated APIs.
// Public: /health, /ready
// Authenticated: /checkin, /attendance, /tasks, /health/queue-length
// Staff only: /food/*
func NewRouter(cfg config.Config, st *store.PostgresStore, ch *cache.RedisCache, q *queue.RedisQueue, rdb *redis.Client) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	// Liveness: confirms the process is running.
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Readiness: confirms both backing dependencies are reachable.
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if err := st.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}
		if err := ch.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	// Auth group enforces a verified user identity via Bearer token.
	authGroup := r.Group("/")
	authGroup.Use(auth.Middleware(cfg.JWTSecret))

	handlers.RegisterCheckinRoutes(authGroup,
		ratelimit.PerUser(rdb, "checkin", checkinPerMinute, time.Minute), q)
	handlers.RegisterAttendanceRoutes(authGroup, ch, st)
	handlers.RegisterTaskRoutes(authGroup,
		ratelimit.PerUser(rdb, "tasks", taskUpdatePerMinute, time.Minute), ch, st)
	handlers.RegisterOpsRoutes(authGroup, q)

	// Meal endpoints are for staff scanning participant QR codes.
	staff := authGroup.Group("/")
	staff.Use(auth.RequireStaff())
	handlers.RegisterMealRoutes(staff, st)

	return r
}
