package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// FarmIDHeader carries the farm identity for service-to-service calls.
	FarmIDHeader = "X-Farm-ID"
	// SessionCookie holds the login session written by the web client.
	SessionCookie = "session"

	farmIDKey = "farm_id"
)

type sessionData struct {
	UserID string `json:"userId"`
	FarmID string `json:"farmId"`
}

// RequireFarm resolves the caller's farm and aborts with 401 when none can be
// found. Handlers read the result through FarmID.
func RequireFarm() gin.HandlerFunc {
	return func(c *gin.Context) {
		farmID := resolveFarmID(c)
		if farmID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": "no farm context", "code": "unauthorized"},
			})
			return
		}
		c.Set(farmIDKey, farmID)
		c.Next()
	}
}

// FarmID returns the farm resolved by RequireFarm.
func FarmID(c *gin.Context) string {
	return c.GetString(farmIDKey)
}

func resolveFarmID(c *gin.Context) string {
	if farmID := strings.TrimSpace(c.GetHeader(FarmIDHeader)); farmID != "" {
		return farmID
	}

	raw, err := c.Cookie(SessionCookie)
	if err != nil || raw == "" {
		return ""
	}
	var session sessionData
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return ""
	}
	if session.UserID == "" {
		return ""
	}
	return strings.TrimSpace(session.FarmID)
}
