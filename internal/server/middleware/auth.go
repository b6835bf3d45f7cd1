package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hungle-ag/task-manager-server/internal/security"
)

const bearerPrefix = "bearer "

// SessionValidator validates a session token and returns its claims.
type SessionValidator interface {
	ValidateSession(token string) (*security.SessionClaims, error)
}

// BearerAuth validates the Bearer session token and sets user_id and role in the request context.
// Requests without a valid token are rejected with 401.
func BearerAuth(tokens SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearer(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Missing or invalid authorization"})
			return
		}
		claims, err := tokens.ValidateSession(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Missing or invalid authorization"})
			return
		}
		c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), claims.UserID, claims.Role))
		c.Set("claims", claims)
		c.Next()
	}
}

// Claims returns the session claims set by BearerAuth, or nil.
func Claims(c *gin.Context) *security.SessionClaims {
	v, ok := c.Get("claims")
	if !ok {
		return nil
	}
	claims, _ := v.(*security.SessionClaims)
	return claims
}

// extractBearer returns the token from an Authorization header value, or "" if missing or malformed.
func extractBearer(header string) string {
	v := strings.TrimSpace(header)
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
