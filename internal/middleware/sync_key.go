package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SyncKeyMiddleware creates a Gin middleware that validates the X-Sync-Key
// header against the configured sync ingestion key. It guards the endpoint
// where remote peers push change batches.
func SyncKeyMiddleware(syncKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if syncKey == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				gin.H{"error": gin.H{"code": "SYNC_NOT_CONFIGURED", "message": "Sync ingestion is not configured"}})
			return
		}
		key := c.GetHeader("X-Sync-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(syncKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				gin.H{"error": gin.H{"code": "INVALID_SYNC_KEY", "message": "Invalid or missing sync key"}})
			return
		}
		c.Next()
	}
}
