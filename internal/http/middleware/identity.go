package middleware

import (
	"net/http"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"

	"infiya.app/relay/common/logger"
)

const (
	UserIDHeader = "X-User-ID"
	userIDQuery  = "user_id"
	userIDKey    = "user_id"

	maxUserIDLength = 128
)

// Identity resolves the caller from the trusted X-User-ID header set by the
// upstream auth layer. EventSource and browser WebSocket clients cannot set
// headers, so the user_id query parameter is accepted as a fallback.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(UserIDHeader))
		if userID == "" {
			userID = strings.TrimSpace(c.Query(userIDQuery))
		}

		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
			return
		}
		if !validUserID(userID) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid user identity"})
			return
		}

		c.Set(userIDKey, userID)
		ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{UserID: &userID})
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// UserID returns the identity stored by Identity.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

func validUserID(id string) bool {
	if len(id) > maxUserIDLength {
		return false
	}
	for _, r := range id {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return false
		}
	}
	return true
}
