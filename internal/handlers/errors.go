package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"membership-service/internal/apperrors"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, apperrors.ErrInvalidInvite), errors.Is(err, apperrors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrInviteExhausted):
		return http.StatusGone
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrAlreadyPending),
		errors.Is(err, apperrors.ErrConflict),
		errors.Is(err, apperrors.ErrAlreadyMember),
		errors.Is(err, apperrors.ErrAlreadyDecided):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// fail writes the error response for err and audits it. Internal errors are
// reported without their text.
func (a auditor) fail(c *gin.Context, err error) {
	status := statusFor(err)
	code := apperrors.Code(err)
	msg := err.Error()
	level := "WARN"
	if status == http.StatusInternalServerError {
		msg = "internal error"
		level = "ERROR"
		_ = c.Error(err)
	}

	a.emitAudit(c, level, msg, code)
	c.JSON(status, gin.H{"error": msg, "code": code, "retryable": apperrors.Retryable(err)})
}

func (a auditor) badRequest(c *gin.Context, err error) {
	a.emitAudit(c, "ERROR", "invalid request payload", "invalid_input")
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "invalid_input", "retryable": false})
}
