package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eventdesk/checkin-service/internal/auth"
	"github.com/eventdesk/checkin-service/internal/models"
)

// AttendanceCache is the read-through cache for attendance entries.
type AttendanceCache interface {
	GetAttendance(ctx context.Context, userID, day string) (models.AttendanceEvent, bool, error)
	SetAttendance(ctx context.Context, rec models.AttendanceEvent) error
}

// AttendanceStore is the authoritative lookup for attendance rows.
type AttendanceStore interface {
	GetAttendance(ctx context.Context, userID, day string) (models.AttendanceEvent, bool, error)
}

// RegisterAttendanceRoutes registers the attendance read path.
//
// GET /attendance/:user_id/:day
// - Read-through, cache-aside: cache hit is tagged source=redis, a DB fetch
//   repopulates the cache with the bounded TTL and is tagged source=db.
// - No attendance recorded is a 200 with a null record, not an error.
// - Callers may only read their own attendance unless they hold staff role.
func RegisterAttendanceRoutes(r gin.IRoutes, ch AttendanceCache, st AttendanceStore) {
	r.GET("/attendance/:user_id/:day", func(c *gin.Context) {
		caller := auth.UserID(c)
		if caller == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		userID := c.Param("user_id")
		if userID != caller && auth.Role(c) != auth.RoleStaff {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		day := c.Param("day")
		if _, err := time.Parse(models.DayFormat, day); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "day must be YYYY-MM-DD"})
			return
		}

		ctx := c.Request.Context()

		// Cache errors degrade to a DB read; the store is always authoritative.
		rec, hit, err := ch.GetAttendance(ctx, userID, day)
		if err != nil {
			log.Printf("attendance: cache read failed for %s/%s: %v", userID, day, err)
		}
		if hit {
			c.JSON(http.StatusOK, gin.H{"attendance": rec, "source": "redis"})
			return
		}

		rec, found, err := st.GetAttendance(ctx, userID, day)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db query failed"})
			return
		}
		if !found {
			c.JSON(http.StatusOK, gin.H{"attendance": nil})
			return
		}

		if err := ch.SetAttendance(ctx, rec); err != nil {
			log.Printf("attendance: cache populate failed for %s/%s: %v", userID, day, err)
		}

		c.JSON(http.StatusOK, gin.H{"attendance": rec, "source": "db"})
	})
}
