package models

import "time"

// Invite is a redeemable code that grants membership in a group.
type Invite struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	GroupID   string    `db:"group_id" json:"group_id"`
	InviterID string    `db:"inviter_id" json:"inviter_id"`
	MaxUses   int       `db:"max_uses" json:"max_uses"`
	UsedCount int       `db:"used_count" json:"used_count"`
	Role      Role      `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	IsRevoked bool      `db:"is_revoked" json:"is_revoked"`
}

// Usable reports whether the invite is neither revoked nor expired at now.
func (i Invite) Usable(now time.Time) bool {
	return !i.IsRevoked && now.Before(i.ExpiresAt)
}

// Redeemable reports whether the invite can still admit a user at now.
func (i Invite) Redeemable(now time.Time) bool {
	return i.Usable(now) && i.UsedCount < i.MaxUses
}

// JoinRequestStatus is the lifecycle state of a JoinRequest.
type JoinRequestStatus string

const (
	JoinRequestPending  JoinRequestStatus = "pending"
	JoinRequestApproved JoinRequestStatus = "approved"
	JoinRequestRejected JoinRequestStatus = "rejected"
)

// JoinRequest asks the admins of a closed group for membership.
type JoinRequest struct {
	ID        string            `db:"id" json:"id"`
	GroupID   string            `db:"group_id" json:"group_id"`
	UserID    string            `db:"user_id" json:"user_id"`
	Status    JoinRequestStatus `db:"status" json:"status"`
	DecidedBy *string           `db:"decided_by" json:"decided_by,omitempty"`
	Username  string            `db:"username" json:"username,omitempty"`
	PhotoURL  string            `db:"photo_url" json:"photo_url,omitempty"`
	CreatedAt time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt time.Time         `db:"updated_at" json:"updated_at"`
}
