package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"membership-service/internal/models"
	"membership-service/internal/services"
)

type groupService interface {
	CreateGroup(ctx context.Context, creator models.User, in services.CreateGroupInput) (models.Group, error)
	Join(ctx context.Context, groupID string, user models.User) (services.AdmissionResult, error)
	RemoveMember(ctx context.Context, groupID, callerID, targetID string) error
	UpdateSettings(ctx context.Context, groupID, callerID string, settings models.GroupSettings) (models.Group, error)
	Deactivate(ctx context.Context, groupID, callerID string) error
	GetGroup(ctx context.Context, groupID, callerID string) (models.Group, error)
	ListMembers(ctx context.Context, groupID, callerID string) ([]models.Membership, error)
	ListGroupsForUser(ctx context.Context, userID string) ([]models.Group, error)
}

// GroupHandler manages group lifecycle endpoints.
type GroupHandler struct {
	auditor
	groups groupService
}

// NewGroupHandler constructs a GroupHandler.
func NewGroupHandler(groups groupService, audit AuditEmitter) *GroupHandler {
	return &GroupHandler{auditor: auditor{audit: audit}, groups: groups}
}

// CreateGroup handles POST /groups.
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	var req services.CreateGroupInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	group, err := h.groups.CreateGroup(c.Request.Context(), identityFromContext(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.emitAudit(c, "INFO", "Group created", "")
	c.JSON(http.StatusCreated, group)
}

// ListGroups returns groups the caller belongs to.
func (h *GroupHandler) ListGroups(c *gin.Context) {
	groups, err := h.groups.ListGroupsForUser(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

// GetGroup handles GET /groups/:group_id.
func (h *GroupHandler) GetGroup(c *gin.Context) {
	group, err := h.groups.GetGroup(c.Request.Context(), c.Param("group_id"), c.GetString("userID"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

// UpdateSettings handles PATCH /groups/:group_id/settings.
func (h *GroupHandler) UpdateSettings(c *gin.Context) {
	var req models.GroupSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	group, err := h.groups.UpdateSettings(c.Request.Context(), c.Param("group_id"), c.GetString("userID"), req)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.emitAudit(c, "INFO", "Group settings updated", "")
	c.JSON(http.StatusOK, group)
}

// DeactivateGroup handles DELETE /groups/:group_id.
func (h *GroupHandler) DeactivateGroup(c *gin.Context) {
	if err := h.groups.Deactivate(c.Request.Context(), c.Param("group_id"), c.GetString("userID")); err != nil {
		h.fail(c, err)
		return
	}

	h.emitAudit(c, "INFO", "Group deactivated", "")
	c.Status(http.StatusNoContent)
}

// JoinGroup handles POST /groups/:group_id/join for open groups.
func (h *GroupHandler) JoinGroup(c *gin.Context) {
	res, err := h.groups.Join(c.Request.Context(), c.Param("group_id"), identityFromContext(c))
	if err != nil {
		h.fail(c, err)
		return
	}

	h.emitAudit(c, "INFO", "Group joined", "")
	c.JSON(admissionStatus(res), res)
}

// ListMembers handles GET /groups/:group_id/members.
func (h *GroupHandler) ListMembers(c *gin.Context) {
	members, err := h.groups.ListMembers(c.Request.Context(), c.Param("group_id"), c.GetString("userID"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

// RemoveMember handles DELETE /groups/:group_id/members/:user_id. Callers may
// remove themselves; admins may remove anyone.
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	err := h.groups.RemoveMember(c.Request.Context(), c.Param("group_id"), c.GetString("userID"), c.Param("user_id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	h.emitAudit(c, "INFO", "Member removed", "")
	c.Status(http.StatusNoContent)
}

func admissionStatus(res services.AdmissionResult) int {
	if res.AlreadyMember {
		return http.StatusOK
	}
	return http.StatusCreated
}
