package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"membership-service/internal/apperrors"
	"membership-service/internal/models"
)

const joinRequestColumns = `id, group_id, user_id, status, decided_by, username, photo_url, created_at, updated_at`

// JoinRequestRepository abstracts join request persistence.
type JoinRequestRepository interface {
	Create(ctx context.Context, req models.JoinRequest) (models.JoinRequest, error)
	FindPending(ctx context.Context, groupID, userID string) (models.JoinRequest, error)
	GetForUpdate(ctx context.Context, groupID, requestID string) (models.JoinRequest, error)
	UpdateStatus(ctx context.Context, requestID string, status models.JoinRequestStatus, decidedBy string) (models.JoinRequest, error)
	ListPending(ctx context.Context, groupID string) ([]models.JoinRequest, error)
}

// JoinRequestRepo is a sqlx implementation of JoinRequestRepository.
type JoinRequestRepo struct {
	db sqlx.ExtContext
}

// NewJoinRequestRepo constructs a JoinRequestRepo.
func NewJoinRequestRepo(db sqlx.ExtContext) *JoinRequestRepo {
	return &JoinRequestRepo{db: db}
}

// Create stores a pending request. A second pending request for the same
// user and group violates join_requests_one_pending_key and yields
// apperrors.ErrAlreadyPending.
func (r *JoinRequestRepo) Create(ctx context.Context, req models.JoinRequest) (models.JoinRequest, error) {
	var out models.JoinRequest
	err := sqlx.GetContext(ctx, r.db, &out, `INSERT INTO join_requests (id, group_id, user_id, status, username, photo_url)
        VALUES ($1, $2, $3, 'pending', $4, $5) RETURNING `+joinRequestColumns,
		req.ID, req.GroupID, req.UserID, req.Username, req.PhotoURL)
	if isUniqueViolation(err, "join_requests_one_pending_key") {
		return models.JoinRequest{}, apperrors.ErrAlreadyPending
	}
	return out, err
}

// FindPending returns the pending request of a user for a group.
func (r *JoinRequestRepo) FindPending(ctx context.Context, groupID, userID string) (models.JoinRequest, error) {
	var req models.JoinRequest
	err := sqlx.GetContext(ctx, r.db, &req, `SELECT `+joinRequestColumns+` FROM join_requests
        WHERE group_id=$1 AND user_id=$2 AND status='pending'`, groupID, userID)
	return req, notFound(err, "join request")
}

// GetForUpdate loads a request of the group and locks its row.
func (r *JoinRequestRepo) GetForUpdate(ctx context.Context, groupID, requestID string) (models.JoinRequest, error) {
	var req models.JoinRequest
	err := sqlx.GetContext(ctx, r.db, &req, `SELECT `+joinRequestColumns+` FROM join_requests
        WHERE id=$1 AND group_id=$2 FOR UPDATE`, requestID, groupID)
	return req, notFound(err, "join request "+requestID)
}

// UpdateStatus records a decision.
func (r *JoinRequestRepo) UpdateStatus(ctx context.Context, requestID string, status models.JoinRequestStatus, decidedBy string) (models.JoinRequest, error) {
	var req models.JoinRequest
	err := sqlx.GetContext(ctx, r.db, &req, `UPDATE join_requests SET status=$2, decided_by=$3, updated_at=NOW()
        WHERE id=$1 RETURNING `+joinRequestColumns, requestID, status, decidedBy)
	return req, notFound(err, "join request "+requestID)
}

// ListPending returns the open requests of a group, oldest first.
func (r *JoinRequestRepo) ListPending(ctx context.Context, groupID string) ([]models.JoinRequest, error) {
	reqs := []models.JoinRequest{}
	err := sqlx.SelectContext(ctx, r.db, &reqs, `SELECT `+joinRequestColumns+` FROM join_requests
        WHERE group_id=$1 AND status='pending' ORDER BY created_at`, groupID)
	return reqs, err
}
