package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wspjoy2011/assistant-relay/internal/auth"
	"github.com/wspjoy2011/assistant-relay/internal/common"
)

// UserIDKey is where AuthRequired stores the authenticated user id in the
// gin context.
const UserIDKey = "user_id"

// AuthRequired rejects requests without a valid Bearer token and exposes
// the token's user id to downstream handlers.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			common.Fail(c, http.StatusUnauthorized, 40100, "missing authorization header")
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			common.Fail(c, http.StatusUnauthorized, 40100, "invalid authorization header")
			c.Abort()
			return
		}

		uid, err := auth.ParseJWT(parts[1], secret)
		if err != nil {
			common.Fail(c, http.StatusUnauthorized, 40100, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(UserIDKey, uid)
		c.Next()
	}
}
