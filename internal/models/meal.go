package models

// User is the participant profile read during QR lookup.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
	Role  int    `json:"role"`
}

// MealRecord tracks which meals a participant has consumed on one event day.
type MealRecord struct {
	ID            int64  `json:"id"`
	UserID        string `json:"user_id"`
	Date          string `json:"date"`
	Breakfast     bool   `json:"breakfast"`
	Lunch         bool   `json:"lunch"`
	Tea           bool   `json:"tea"`
	LastUpdatedBy string `json:"last_updated_by,omitempty"`
}

// MealMarkRequest is the POST /food/mark payload. The staff identity comes
// from the verified token, not the body.
type MealMarkRequest struct {
	UserID string `json:"user_id" binding:"required"`
}
