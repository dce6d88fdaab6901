package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"membership-service/internal/models"
)

type likeService interface {
	Toggle(ctx context.Context, videoID, userID string) (models.LikeResult, error)
}

// LikeHandler serves the like toggle.
type LikeHandler struct {
	auditor
	likes likeService
}

// NewLikeHandler constructs a LikeHandler.
func NewLikeHandler(likes likeService, audit AuditEmitter) *LikeHandler {
	return &LikeHandler{auditor: auditor{audit: audit}, likes: likes}
}

// ToggleLike handles POST /videos/:video_id/like.
func (h *LikeHandler) ToggleLike(c *gin.Context) {
	res, err := h.likes.Toggle(c.Request.Context(), c.Param("video_id"), c.GetString("userID"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
