package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"membership-service/internal/models"
	"membership-service/internal/services"
)

type inviteService interface {
	Create(ctx context.Context, groupID, inviterID string, in services.CreateInviteInput) (models.Invite, error)
	Link(code string) (string, error)
	FindRedeemable(ctx context.Context, code string) (models.Invite, error)
	Revoke(ctx context.Context, inviteID, callerID string) error
	ListForGroup(ctx context.Context, groupID, callerID string) ([]models.Invite, error)
	Redeem(ctx context.Context, code string, user models.User) (services.AdmissionResult, error)
	RedeemLink(ctx context.Context, rawLink string, user models.User) (services.AdmissionResult, error)
}

// InviteHandler manages invite endpoints.
type InviteHandler struct {
	auditor
	invites inviteService
}

// NewInviteHandler constructs an InviteHandler.
func NewInviteHandler(invites inviteService, audit AuditEmitter) *InviteHandler {
	return &InviteHandler{auditor: auditor{audit: audit}, invites: invites}
}

type createInviteRequest struct {
	MaxUses    int         `json:"max_uses"`
	Role       models.Role `json:"role"`
	TTLSeconds int64       `json:"ttl_seconds"`
}

// CreateInvite handles POST /groups/:group_id/invites.
func (h *InviteHandler) CreateInvite(c *gin.Context) {
	var req createInviteRequest
	// An empty body, chunked or not, selects the defaults.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.badRequest(c, err)
		return
	}
	if req.MaxUses < 0 || req.TTLSeconds < 0 {
		h.badRequest(c, errors.New("max_uses and ttl_seconds must not be negative"))
		return
	}

	invite, err := h.invites.Create(c.Request.Context(), c.Param("group_id"), c.GetString("userID"), services.CreateInviteInput{
		MaxUses: req.MaxUses,
		Role:    req.Role,
		TTL:     time.Duration(req.TTLSeconds) * time.Second,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	link, err := h.invites.Link(invite.Code)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.emitAudit(c, "INFO", "Invite created", "")
	c.JSON(http.StatusCreated, gin.H{"invite": invite, "link": link})
}

// ListInvites handles GET /groups/:group_id/invites.
func (h *InviteHandler) ListInvites(c *gin.Context) {
	invites, err := h.invites.ListForGroup(c.Request.Context(), c.Param("group_id"), c.GetString("userID"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invites": invites})
}

// GetInvite handles GET /invites/:code. Unknown, revoked and expired codes
// all answer 404.
func (h *InviteHandler) GetInvite(c *gin.Context) {
	invite, err := h.invites.FindRedeemable(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, invite)
}

// RevokeInvite handles DELETE /invites/:invite_id.
func (h *InviteHandler) RevokeInvite(c *gin.Context) {
	if err := h.invites.Revoke(c.Request.Context(), c.Param("invite_id"), c.GetString("userID")); err != nil {
		h.fail(c, err)
		return
	}

	h.emitAudit(c, "INFO", "Invite revoked", "")
	c.Status(http.StatusNoContent)
}

type redeemRequest struct {
	Code string `json:"code"`
	Link string `json:"link"`
}

// RedeemInvite handles POST /invites/redeem with either a bare code or a deep link.
func (h *InviteHandler) RedeemInvite(c *gin.Context) {
	var req redeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	var (
		res services.AdmissionResult
		err error
	)
	switch {
	case req.Link != "":
		res, err = h.invites.RedeemLink(c.Request.Context(), req.Link, identityFromContext(c))
	case req.Code != "":
		res, err = h.invites.Redeem(c.Request.Context(), req.Code, identityFromContext(c))
	default:
		h.badRequest(c, errors.New("code or link is required"))
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	h.emitAudit(c, "INFO", "Invite redeemed", "")
	c.JSON(admissionStatus(res), res)
}
