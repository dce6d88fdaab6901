package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"membership-service/internal/models"
	"membership-service/internal/services"
)

type joinRequestService interface {
	CreateRequest(ctx context.Context, groupID string, user models.User) (models.JoinRequest, error)
	Decide(ctx context.Context, groupID, requestID, callerID string, decision services.Decision) (services.DecisionResult, error)
	ListPending(ctx context.Context, groupID, callerID string) ([]models.JoinRequest, error)
}

// JoinRequestHandler manages the request and approval endpoints.
type JoinRequestHandler struct {
	auditor
	requests joinRequestService
}

// NewJoinRequestHandler constructs a JoinRequestHandler.
func NewJoinRequestHandler(requests joinRequestService, audit AuditEmitter) *JoinRequestHandler {
	return &JoinRequestHandler{auditor: auditor{audit: audit}, requests: requests}
}

// CreateRequest handles POST /groups/:group_id/requests.
func (h *JoinRequestHandler) CreateRequest(c *gin.Context) {
	req, err := h.requests.CreateRequest(c.Request.Context(), c.Param("group_id"), identityFromContext(c))
	if err != nil {
		h.fail(c, err)
		return
	}

	h.emitAudit(c, "INFO", "Join request created", "")
	c.JSON(http.StatusCreated, req)
}

// ListPending handles GET /groups/:group_id/requests.
func (h *JoinRequestHandler) ListPending(c *gin.Context) {
	reqs, err := h.requests.ListPending(c.Request.Context(), c.Param("group_id"), c.GetString("userID"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": reqs})
}

// Decide handles POST /groups/:group_id/requests/:request_id/decision.
func (h *JoinRequestHandler) Decide(c *gin.Context) {
	var body struct {
		Decision services.Decision `json:"decision" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, err)
		return
	}

	res, err := h.requests.Decide(c.Request.Context(), c.Param("group_id"), c.Param("request_id"), c.GetString("userID"), body.Decision)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.emitAudit(c, "INFO", "Join request "+string(res.Request.Status), "")
	c.JSON(http.StatusOK, res)
}
