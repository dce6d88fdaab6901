package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"membership-service/internal/apperrors"
	"membership-service/internal/models"
)

const inviteColumns = `id, code, group_id, inviter_id, max_uses, used_count, role, created_at, expires_at, is_revoked`

// InviteRepository abstracts invite persistence.
type InviteRepository interface {
	Create(ctx context.Context, inv models.Invite) (models.Invite, error)
	FindRedeemable(ctx context.Context, code string, now time.Time) (models.Invite, error)
	GetByCodeForUpdate(ctx context.Context, code string) (models.Invite, error)
	GetByID(ctx context.Context, id string) (models.Invite, error)
	IncrementUsed(ctx context.Context, id string) (int, error)
	Revoke(ctx context.Context, id string) (bool, error)
	ListByGroup(ctx context.Context, groupID string) ([]models.Invite, error)
}

// InviteRepo is a sqlx implementation of InviteRepository.
type InviteRepo struct {
	db sqlx.ExtContext
}

// NewInviteRepo constructs an InviteRepo.
func NewInviteRepo(db sqlx.ExtContext) *InviteRepo {
	return &InviteRepo{db: db}
}

// Create stores a new invite. A code collision returns ErrDuplicateCode.
func (r *InviteRepo) Create(ctx context.Context, inv models.Invite) (models.Invite, error) {
	var out models.Invite
	err := sqlx.GetContext(ctx, r.db, &out, `INSERT INTO invites (id, code, group_id, inviter_id, max_uses, used_count, role, created_at, expires_at, is_revoked)
        VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8, FALSE) RETURNING `+inviteColumns,
		inv.ID, inv.Code, inv.GroupID, inv.InviterID, inv.MaxUses, inv.Role, inv.CreatedAt, inv.ExpiresAt)
	if isUniqueViolation(err, "invites_code_key") {
		return models.Invite{}, ErrDuplicateCode
	}
	return out, err
}

// FindRedeemable returns the invite only when it can still admit someone.
// Wrong, revoked, expired and exhausted codes all yield ErrNotFound.
func (r *InviteRepo) FindRedeemable(ctx context.Context, code string, now time.Time) (models.Invite, error) {
	var inv models.Invite
	err := sqlx.GetContext(ctx, r.db, &inv, `SELECT `+inviteColumns+` FROM invites
        WHERE code=$1 AND NOT is_revoked AND expires_at > $2 AND used_count < max_uses`, code, now)
	return inv, notFound(err, "invite")
}

// GetByCodeForUpdate loads an invite and locks its row.
func (r *InviteRepo) GetByCodeForUpdate(ctx context.Context, code string) (models.Invite, error) {
	var inv models.Invite
	err := sqlx.GetContext(ctx, r.db, &inv, `SELECT `+inviteColumns+` FROM invites WHERE code=$1 FOR UPDATE`, code)
	return inv, notFound(err, "invite")
}

// GetByID loads an invite by primary key.
func (r *InviteRepo) GetByID(ctx context.Context, id string) (models.Invite, error) {
	var inv models.Invite
	err := sqlx.GetContext(ctx, r.db, &inv, `SELECT `+inviteColumns+` FROM invites WHERE id=$1`, id)
	return inv, notFound(err, "invite "+id)
}

// IncrementUsed consumes one use. It never exceeds max_uses; when no use is
// left it returns apperrors.ErrInviteExhausted.
func (r *InviteRepo) IncrementUsed(ctx context.Context, id string) (int, error) {
	var used int
	err := sqlx.GetContext(ctx, r.db, &used, `UPDATE invites SET used_count = used_count + 1
        WHERE id=$1 AND used_count < max_uses RETURNING used_count`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("invite %s: %w", id, apperrors.ErrInviteExhausted)
	}
	return used, err
}

// Revoke marks the invite revoked. It reports false when it already was.
func (r *InviteRepo) Revoke(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE invites SET is_revoked = TRUE WHERE id=$1 AND NOT is_revoked`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// ListByGroup returns every invite of a group, newest first.
func (r *InviteRepo) ListByGroup(ctx context.Context, groupID string) ([]models.Invite, error) {
	invites := []models.Invite{}
	err := sqlx.SelectContext(ctx, r.db, &invites, `SELECT `+inviteColumns+` FROM invites WHERE group_id=$1 ORDER BY created_at DESC`, groupID)
	return invites, err
}
