package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"membership-service/internal/apperrors"
	"membership-service/internal/models"
)

const groupColumns = `id, name, description, category, visibility, membership_policy, goal_count, goal_frequency, goal_scope,
    allow_member_invites, require_admin_approval, notifications_enabled, member_count, is_active, created_by, created_at, updated_at`

// GroupRepository abstracts group persistence.
type GroupRepository interface {
	Create(ctx context.Context, g models.Group) (models.Group, error)
	Get(ctx context.Context, groupID string) (models.Group, error)
	GetForUpdate(ctx context.Context, groupID string) (models.Group, error)
	AdjustMemberCount(ctx context.Context, groupID string, delta int) (int, error)
	UpdateSettings(ctx context.Context, groupID string, settings models.GroupSettings) error
	Deactivate(ctx context.Context, groupID string) error
	ListForUser(ctx context.Context, userID string) ([]models.Group, error)
	ListLegacyRoles(ctx context.Context, afterID string, limit int) ([]models.LegacyMemberRoles, error)
	ClearLegacyRoles(ctx context.Context, groupID string) error
}

// GroupRepo is a sqlx implementation of GroupRepository.
type GroupRepo struct {
	db sqlx.ExtContext
}

// NewGroupRepo constructs a GroupRepo.
func NewGroupRepo(db sqlx.ExtContext) *GroupRepo {
	return &GroupRepo{db: db}
}

// Create inserts a group row. MemberCount is stored as given; callers create
// the matching memberships in the same transaction.
func (r *GroupRepo) Create(ctx context.Context, g models.Group) (models.Group, error) {
	var out models.Group
	err := sqlx.GetContext(ctx, r.db, &out, `INSERT INTO groups (id, name, description, category, visibility, membership_policy,
        goal_count, goal_frequency, goal_scope, allow_member_invites, require_admin_approval, notifications_enabled,
        member_count, is_active, created_by)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
        RETURNING `+groupColumns,
		g.ID, g.Name, g.Description, g.Category, g.Visibility, g.MembershipPolicy,
		g.Count, g.Frequency, g.Scope, g.AllowMemberInvites, g.RequireAdminApproval, g.NotificationsEnabled,
		g.MemberCount, g.IsActive, g.CreatedBy)
	return out, err
}

// Get fetches a single group.
func (r *GroupRepo) Get(ctx context.Context, groupID string) (models.Group, error) {
	var g models.Group
	err := sqlx.GetContext(ctx, r.db, &g, `SELECT `+groupColumns+` FROM groups WHERE id=$1`, groupID)
	return g, notFound(err, "group "+groupID)
}

// GetForUpdate fetches a group and locks its row until the transaction ends.
func (r *GroupRepo) GetForUpdate(ctx context.Context, groupID string) (models.Group, error) {
	var g models.Group
	err := sqlx.GetContext(ctx, r.db, &g, `SELECT `+groupColumns+` FROM groups WHERE id=$1 FOR UPDATE`, groupID)
	return g, notFound(err, "group "+groupID)
}

// AdjustMemberCount adds delta to member_count in place and returns the new value.
// The update refuses to take the counter below zero.
func (r *GroupRepo) AdjustMemberCount(ctx context.Context, groupID string, delta int) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, r.db, &count, `UPDATE groups SET member_count = member_count + $2, updated_at = NOW()
        WHERE id=$1 AND member_count + $2 >= 0 RETURNING member_count`, groupID, delta)
	return count, notFound(err, "group "+groupID)
}

// UpdateSettings replaces the admin-editable toggles.
func (r *GroupRepo) UpdateSettings(ctx context.Context, groupID string, s models.GroupSettings) error {
	res, err := r.db.ExecContext(ctx, `UPDATE groups SET allow_member_invites=$2, require_admin_approval=$3, notifications_enabled=$4, updated_at=NOW()
        WHERE id=$1`, groupID, s.AllowMemberInvites, s.RequireAdminApproval, s.NotificationsEnabled)
	return requireRow(res, err, "group "+groupID)
}

// Deactivate soft-deletes a group.
func (r *GroupRepo) Deactivate(ctx context.Context, groupID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE groups SET is_active = FALSE, updated_at = NOW() WHERE id=$1`, groupID)
	return requireRow(res, err, "group "+groupID)
}

// ListForUser returns active groups the user is an active member of.
func (r *GroupRepo) ListForUser(ctx context.Context, userID string) ([]models.Group, error) {
	groups := []models.Group{}
	err := sqlx.SelectContext(ctx, r.db, &groups, `SELECT g.id, g.name, g.description, g.category, g.visibility, g.membership_policy,
        g.goal_count, g.goal_frequency, g.goal_scope, g.allow_member_invites, g.require_admin_approval, g.notifications_enabled,
        g.member_count, g.is_active, g.created_by, g.created_at, g.updated_at
        FROM groups g INNER JOIN memberships m ON m.group_id = g.id
        WHERE m.user_id=$1 AND m.is_active AND g.is_active ORDER BY g.created_at DESC`, userID)
	return groups, err
}

// ListLegacyRoles pages through groups that still carry a member_roles map,
// ordered by id and starting after afterID.
func (r *GroupRepo) ListLegacyRoles(ctx context.Context, afterID string, limit int) ([]models.LegacyMemberRoles, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT id, member_roles FROM groups
        WHERE member_roles IS NOT NULL AND member_roles <> '{}'::jsonb AND id > $1 ORDER BY id LIMIT $2`, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.LegacyMemberRoles
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		roles := map[string]string{}
		if err := json.Unmarshal(raw, &roles); err != nil {
			return nil, fmt.Errorf("decode member_roles of group %s: %w", id, err)
		}
		out = append(out, models.LegacyMemberRoles{GroupID: id, Roles: roles})
	}
	return out, rows.Err()
}

// ClearLegacyRoles drops the member_roles map once it has been migrated.
func (r *GroupRepo) ClearLegacyRoles(ctx context.Context, groupID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE groups SET member_roles = NULL WHERE id=$1`, groupID)
	return err
}

func requireRow(res interface{ RowsAffected() (int64, error) }, err error, what string) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, apperrors.ErrNotFound)
	}
	return nil
}
