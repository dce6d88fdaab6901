package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"membership-service/internal/observability"
)

// RequestIDKey is the gin context key carrying the request id.
const RequestIDKey = "request_id"

const requestIDMaxLen = 64

// RequestID reads X-Request-ID or generates one, and echoes it on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader("X-Request-ID")
		if rid == "" || len(rid) > requestIDMaxLen {
			rid = uuid.NewString()
		}
		c.Set(RequestIDKey, rid)
		c.Request = c.Request.WithContext(observability.WithRequestID(c.Request.Context(), rid))
		c.Header("X-Request-ID", rid)
		c.Next()
	}
}
