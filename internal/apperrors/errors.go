// Package apperrors holds the error taxonomy shared by repositories,
// services and handlers. Callers branch on these with errors.Is.
package apperrors

import "errors"

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidInvite    = errors.New("invalid invite")
	ErrInviteExhausted  = errors.New("invite exhausted")
	ErrAlreadyPending   = errors.New("join request already pending")
	ErrConflict         = errors.New("concurrent update conflict")
	ErrNotFound         = errors.New("not found")
	ErrAlreadyMember    = errors.New("already a member")
	ErrAlreadyDecided   = errors.New("join request already decided")
	ErrInvalidInput     = errors.New("invalid input")
)

// Retryable reports whether the caller may retry the operation after a backoff.
func Retryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

// Code returns a stable machine-readable code for an error.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrInvalidInvite):
		return "invalid_invite"
	case errors.Is(err, ErrInviteExhausted):
		return "invite_exhausted"
	case errors.Is(err, ErrAlreadyPending):
		return "already_pending"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyMember):
		return "already_member"
	case errors.Is(err, ErrAlreadyDecided):
		return "already_decided"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	}
	return "internal"
}

var byCode = map[string]error{
	"permission_denied": ErrPermissionDenied,
	"invalid_invite":    ErrInvalidInvite,
	"invite_exhausted":  ErrInviteExhausted,
	"already_pending":   ErrAlreadyPending,
	"conflict":          ErrConflict,
	"not_found":         ErrNotFound,
	"already_member":    ErrAlreadyMember,
	"already_decided":   ErrAlreadyDecided,
	"invalid_input":     ErrInvalidInput,
}

// FromCode is the inverse of Code. It returns nil for "internal" and unknown codes.
func FromCode(code string) error {
	return byCode[code]
}
