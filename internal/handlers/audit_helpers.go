package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"membership-service/internal/middleware"
	"membership-service/internal/models"
)

// AuditEmitter records handler outcomes on the audit stream.
type AuditEmitter interface {
	Emit(ctx context.Context, level, text, code, requestID string, userID *string)
}

type auditor struct {
	audit AuditEmitter
}

func (a auditor) emitAudit(c *gin.Context, level, text, code string) {
	if a.audit == nil {
		return
	}
	a.audit.Emit(c.Request.Context(), level, text, code, requestIDFromContext(c), userIDFromContext(c))
}

func requestIDFromContext(c *gin.Context) string {
	if id := c.GetString(middleware.RequestIDKey); id != "" {
		return id
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(middleware.RequestIDKey, requestID)
	return requestID
}

func userIDFromContext(c *gin.Context) *string {
	if userID := c.GetString("userID"); userID != "" {
		return &userID
	}
	if header := c.GetHeader("X-User-ID"); header != "" {
		return &header
	}
	return nil
}

// identityFromContext returns the caller set by the auth middleware.
func identityFromContext(c *gin.Context) models.User {
	if val, ok := c.Get(middleware.IdentityKey); ok {
		if user, ok := val.(models.User); ok {
			return user
		}
	}
	return models.User{ID: c.GetString("userID")}
}
