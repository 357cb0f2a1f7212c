package middleware

import (
	"net/http"
	"strings"

	"github.com/exotech/urchat-api/services"
	"github.com/gin-gonic/gin"
)

// ctxUsernameKey is the gin context key holding the verified username
const ctxUsernameKey = "username"

// CheckAuth extracts and verifies the bearer token on every request, storing
// the verified username into the context when present. It never rejects on
// its own; RequireLogin does that for the routes that need it.
func CheckAuth(tokens *services.TokensService) gin.HandlerFunc {
	return func(c *gin.Context) {

		// Pull the token out of the Authorization header
		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header {
			c.Next()
			return
		}

		// Verify the token and remember who this is
		username, err := tokens.VerifyToken(token)
		if err == nil {
			c.Set(ctxUsernameKey, username)
		}
		c.Next()

	}
}

// RequireLogin rejects any request that did not carry a valid token
func RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if Username(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required"})
			return
		}
		c.Next()
	}
}

// Username returns the verified username for the request, or "" if none
func Username(c *gin.Context) string {
	username, _ := c.Get(ctxUsernameKey)
	str, _ := username.(string)
	return str
}
