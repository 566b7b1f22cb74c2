package server

import (
	"net/http"
	"strings"

	"github.com/bagula/platform/internal/config"
	"github.com/gin-gonic/gin"
)

// minKeyLength is the floor applied when no explicit key list is configured.
const minKeyLength = 10

// requireAPIKey checks the Authorization header for a Bearer API key. With
// a configured key list the key must match exactly; without one any key of
// plausible length is accepted (local deployments).
func requireAPIKey(provider *config.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if !strings.HasPrefix(authz, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}
		key := strings.TrimPrefix(authz, "Bearer ")

		keys := provider.Snapshot().Server.APIKeys
		if len(keys) == 0 {
			if len(key) < minKeyLength {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
				return
			}
			c.Next()
			return
		}
		for _, k := range keys {
			if key == k {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
	}
}
