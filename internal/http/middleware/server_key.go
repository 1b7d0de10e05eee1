package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edubridge/progress-backend/internal/logger"
)

// ServerKeyHeader carries the shared key external systems authenticate
// their webhooks with.
const ServerKeyHeader = "X-Server-Key"

// ServerKeyMiddleware gates webhook routes on the shared server key. The
// key is a server-to-server secret, not a user credential.
type ServerKeyMiddleware struct {
	log       *logger.Logger
	serverKey string
}

func NewServerKeyMiddleware(log *logger.Logger, serverKey string) *ServerKeyMiddleware {
	return &ServerKeyMiddleware{
		log:       log.With("middleware", "ServerKeyMiddleware"),
		serverKey: serverKey,
	}
}

func (sm *ServerKeyMiddleware) RequireServerKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		received := c.GetHeader(ServerKeyHeader)
		if sm.serverKey == "" || subtle.ConstantTimeCompare([]byte(received), []byte(sm.serverKey)) != 1 {
			sm.log.Warn("invalid server key on webhook", "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": "invalid server key", "code": "unauthorized"},
			})
			return
		}
		c.Next()
	}
}
