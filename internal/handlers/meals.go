package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eventdesk/checkin-service/internal/auth"
	"github.com/eventdesk/checkin-service/internal/models"
)

// MealStore covers the QR lookup and meal-marking persistence.
type MealStore interface {
	LookupQR(ctx context.Context, qrHash string) (assignedTo string, found bool, err error)
	GetUser(ctx context.Context, id string) (models.User, bool, error)
	GetMeal(ctx context.Context, userID, day string) (models.MealRecord, bool, error)
	CreateMealWithBreakfast(ctx context.Context, userID, day, staffID string) (models.MealRecord, error)
	MarkMeal(ctx context.Context, id int64, meal, staffID string) error
}

// RegisterMealRoutes registers the staff-facing QR/meal endpoints.
//
// GET  /food/look_up/:qr_hash — resolve a scanned code to its participant and
// today's meal state. Unassigned codes are a 200, unknown codes a 404.
//
// POST /food/mark — mark the participant's next unconsumed meal of the day,
// in order breakfast → lunch → hi-tea. The staff identity comes from the
// verified token.
func RegisterMealRoutes(r gin.IRoutes, st MealStore) {
	r.GET("/food/look_up/:qr_hash", func(c *gin.Context) {
		ctx := c.Request.Context()

		assignedTo, found, err := st.LookupQR(ctx, c.Param("qr_hash"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db query failed"})
			return
		}
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "invalid QR"})
			return
		}
		if assignedTo == "" {
			c.JSON(http.StatusOK, gin.H{
				"status":  "unassigned",
				"message": "QR not assigned to anyone",
			})
			return
		}

		user, found, err := st.GetUser(ctx, assignedTo)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db query failed"})
			return
		}
		if !found {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "user assigned but record missing"})
			return
		}

		today := time.Now().UTC().Format(models.DayFormat)
		meal, found, err := st.GetMeal(ctx, assignedTo, today)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db query failed"})
			return
		}

		// Missing row just means nothing consumed yet today.
		mealsToday := gin.H{"breakfast": false, "lunch": false, "tea": false}
		if found {
			mealsToday = gin.H{"breakfast": meal.Breakfast, "lunch": meal.Lunch, "tea": meal.Tea}
		}

		c.JSON(http.StatusOK, gin.H{
			"status":      "assigned",
			"assigned_to": assignedTo,
			"user":        user,
			"meals_today": mealsToday,
		})
	})

	r.POST("/food/mark", func(c *gin.Context) {
		staffID := auth.UserID(c)

		var req models.MealMarkRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id required"})
			return
		}

		ctx := c.Request.Context()
		today := time.Now().UTC().Format(models.DayFormat)

		meal, found, err := st.GetMeal(ctx, req.UserID, today)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db query failed"})
			return
		}

		if !found {
			if _, err := st.CreateMealWithBreakfast(ctx, req.UserID, today, staffID); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "db insert failed"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"message": "breakfast marked", "meal": "breakfast"})
			return
		}

		var name, label string
		switch {
		case !meal.Breakfast:
			name, label = "breakfast", "breakfast"
		case !meal.Lunch:
			name, label = "lunch", "lunch"
		case !meal.Tea:
			name, label = "tea", "hitea"
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "all meals already consumed"})
			return
		}

		if err := st.MarkMeal(ctx, meal.ID, name, staffID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db update failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": label + " marked", "meal": label})
	})
}
