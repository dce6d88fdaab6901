package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"membership-service/internal/models"
)

const membershipColumns = `group_id, user_id, role, joined_at, is_active, username, photo_url`

// MembershipRepository abstracts membership persistence.
type MembershipRepository interface {
	Get(ctx context.Context, groupID, userID string) (models.Membership, error)
	Activate(ctx context.Context, m models.Membership) (models.Membership, bool, error)
	InsertIfAbsent(ctx context.Context, m models.Membership) (bool, error)
	Deactivate(ctx context.Context, groupID, userID string) (bool, error)
	CountActive(ctx context.Context, groupID string, role models.Role) (int, error)
	ListActive(ctx context.Context, groupID string) ([]models.Membership, error)
}

// MembershipRepo is a sqlx implementation of MembershipRepository.
type MembershipRepo struct {
	db sqlx.ExtContext
}

// NewMembershipRepo constructs a MembershipRepo.
func NewMembershipRepo(db sqlx.ExtContext) *MembershipRepo {
	return &MembershipRepo{db: db}
}

// Get returns the membership record for (groupID, userID), active or not.
func (r *MembershipRepo) Get(ctx context.Context, groupID, userID string) (models.Membership, error) {
	var m models.Membership
	err := sqlx.GetContext(ctx, r.db, &m, `SELECT `+membershipColumns+` FROM memberships WHERE group_id=$1 AND user_id=$2`, groupID, userID)
	return m, notFound(err, "membership")
}

// Activate inserts an active membership or re-activates an inactive one.
// The boolean is false when the user was already an active member, in which
// case nothing is written.
func (r *MembershipRepo) Activate(ctx context.Context, m models.Membership) (models.Membership, bool, error) {
	var out models.Membership
	err := sqlx.GetContext(ctx, r.db, &out, `INSERT INTO memberships (group_id, user_id, role, joined_at, is_active, username, photo_url)
        VALUES ($1, $2, $3, $4, TRUE, $5, $6)
        ON CONFLICT (group_id, user_id) DO UPDATE
        SET role = EXCLUDED.role, joined_at = EXCLUDED.joined_at, is_active = TRUE,
            username = EXCLUDED.username, photo_url = EXCLUDED.photo_url
        WHERE memberships.is_active = FALSE
        RETURNING `+membershipColumns,
		m.GroupID, m.UserID, m.Role, m.JoinedAt, m.Username, m.PhotoURL)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			existing, getErr := r.Get(ctx, m.GroupID, m.UserID)
			return existing, false, getErr
		}
		return models.Membership{}, false, err
	}
	return out, true, nil
}

// InsertIfAbsent creates the record only when none exists for the pair.
func (r *MembershipRepo) InsertIfAbsent(ctx context.Context, m models.Membership) (bool, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO memberships (group_id, user_id, role, joined_at, is_active, username, photo_url)
        VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (group_id, user_id) DO NOTHING`,
		m.GroupID, m.UserID, m.Role, m.JoinedAt, m.IsActive, m.Username, m.PhotoURL)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// Deactivate flips an active membership to inactive. It reports false when
// there was no active record.
func (r *MembershipRepo) Deactivate(ctx context.Context, groupID, userID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE memberships SET is_active = FALSE WHERE group_id=$1 AND user_id=$2 AND is_active`, groupID, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// CountActive counts active members of a group, optionally restricted to a role.
func (r *MembershipRepo) CountActive(ctx context.Context, groupID string, role models.Role) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, r.db, &n, `SELECT COUNT(*) FROM memberships
        WHERE group_id=$1 AND is_active AND ($2::text = '' OR role = $2::text)`, groupID, string(role))
	return n, err
}

// ListActive returns the active members of a group, oldest first.
func (r *MembershipRepo) ListActive(ctx context.Context, groupID string) ([]models.Membership, error) {
	members := []models.Membership{}
	err := sqlx.SelectContext(ctx, r.db, &members, `SELECT `+membershipColumns+` FROM memberships
        WHERE group_id=$1 AND is_active ORDER BY joined_at`, groupID)
	return members, err
}
