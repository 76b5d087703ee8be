package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Gin context keys for the verified caller identity.
const (
	userCtxKey = "user_id"
	roleCtxKey = "user_role"
)

// RoleStaff marks callers allowed to scan QR codes and mark meals.
const RoleStaff = "staff"

// Middleware verifies the Bearer token (HS256, Supabase-style: user id in the
// "sub" claim, optional "role" claim) and stores the identity on the request
// context. Handlers trust this identity for authorization decisions.
func Middleware(secret string) gin.HandlerFunc {
	keyFunc := func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	}

	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		token := header
		if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
			token = strings.TrimSpace(header[7:])
		}

		claims := jwt.MapClaims{}
		parsed, err := jwt.ParseWithClaims(token, claims, keyFunc)
		if err != nil || !parsed.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		sub, _ := claims["sub"].(string)
		if sub == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token missing sub"})
			return
		}
		role, _ := claims["role"].(string)

		SetUser(c, sub, role)
		c.Next()
	}
}

// RequireStaff rejects callers whose token does not carry the staff role.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		if Role(c) != RoleStaff {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "staff role required"})
			return
		}
		c.Next()
	}
}

// SetUser stores the verified identity on the request context. Exposed for
// handler tests that bypass token verification.
func SetUser(c *gin.Context, userID, role string) {
	c.Set(userCtxKey, userID)
	c.Set(roleCtxKey, role)
}

// UserID returns the authenticated user id from the request context.
func UserID(c *gin.Context) string {
	v, _ := c.Get(userCtxKey)
	s, _ := v.(string)
	return s
}

// Role returns the authenticated caller's role, empty when the token had none.
func Role(c *gin.Context) string {
	v, _ := c.Get(roleCtxKey)
	s, _ := v.(string)
	return s
}
