package models

import "time"

// Visibility controls whether a group is listed publicly.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// MembershipPolicy decides how users may enter a group.
type MembershipPolicy string

const (
	PolicyOpen       MembershipPolicy = "open"
	PolicyInviteOnly MembershipPolicy = "invite-only"
	PolicyClosed     MembershipPolicy = "closed"
)

// Role is the permission level a member holds inside a group.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleMember, RoleViewer:
		return true
	}
	return false
}

// PostingGoal describes how often members are expected to post.
type PostingGoal struct {
	Count     int    `db:"goal_count" json:"goal_count"`
	Frequency string `db:"goal_frequency" json:"goal_frequency"`
	Scope     string `db:"goal_scope" json:"goal_scope"`
}

// GroupSettings are admin-editable toggles.
type GroupSettings struct {
	AllowMemberInvites   bool `db:"allow_member_invites" json:"allow_member_invites"`
	RequireAdminApproval bool `db:"require_admin_approval" json:"require_admin_approval"`
	NotificationsEnabled bool `db:"notifications_enabled" json:"notifications_enabled"`
}

// Group is a video-sharing group. MemberCount is a denormalized count of
// active memberships and is only ever changed together with them.
type Group struct {
	ID               string           `db:"id" json:"id"`
	Name             string           `db:"name" json:"name"`
	Description      string           `db:"description" json:"description"`
	Category         string           `db:"category" json:"category"`
	Visibility       Visibility       `db:"visibility" json:"visibility"`
	MembershipPolicy MembershipPolicy `db:"membership_policy" json:"membership_policy"`
	PostingGoal
	GroupSettings
	MemberCount int       `db:"member_count" json:"member_count"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedBy   string    `db:"created_by" json:"created_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Membership links a user to a group. Username and PhotoURL are snapshots
// taken from the identity provider at join time.
type Membership struct {
	GroupID  string    `db:"group_id" json:"group_id"`
	UserID   string    `db:"user_id" json:"user_id"`
	Role     Role      `db:"role" json:"role"`
	JoinedAt time.Time `db:"joined_at" json:"joined_at"`
	IsActive bool      `db:"is_active" json:"is_active"`
	Username string    `db:"username" json:"username,omitempty"`
	PhotoURL string    `db:"photo_url" json:"photo_url,omitempty"`
}

// LegacyMemberRoles is the old userID -> role map stored on group rows.
type LegacyMemberRoles struct {
	GroupID string
	Roles   map[string]string
}
