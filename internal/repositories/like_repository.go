package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"membership-service/internal/models"
)

// LikeRepository abstracts like rows and the per-video counter.
type LikeRepository interface {
	GetVideoForUpdate(ctx context.Context, videoID string) (models.Video, error)
	Insert(ctx context.Context, userID, videoID string) (bool, error)
	Delete(ctx context.Context, userID, videoID string) (bool, error)
	AdjustLikes(ctx context.Context, videoID string, delta int) (int, error)
}

// LikeRepo is a sqlx implementation of LikeRepository.
type LikeRepo struct {
	db sqlx.ExtContext
}

// NewLikeRepo constructs a LikeRepo.
func NewLikeRepo(db sqlx.ExtContext) *LikeRepo {
	return &LikeRepo{db: db}
}

// GetVideoForUpdate loads a video and locks it for the rest of the transaction.
func (r *LikeRepo) GetVideoForUpdate(ctx context.Context, videoID string) (models.Video, error) {
	var v models.Video
	err := sqlx.GetContext(ctx, r.db, &v, `SELECT id, group_id, owner_id, likes FROM videos WHERE id=$1 FOR UPDATE`, videoID)
	return v, notFound(err, "video "+videoID)
}

// Insert records a like and reports whether a row was created.
func (r *LikeRepo) Insert(ctx context.Context, userID, videoID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO likes (user_id, video_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, videoID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// Delete removes a like and reports whether one existed.
func (r *LikeRepo) Delete(ctx context.Context, userID, videoID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM likes WHERE user_id=$1 AND video_id=$2`, userID, videoID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// AdjustLikes moves the counter by delta, clamping at zero, and returns it.
func (r *LikeRepo) AdjustLikes(ctx context.Context, videoID string, delta int) (int, error) {
	var likes int
	err := sqlx.GetContext(ctx, r.db, &likes, `UPDATE videos SET likes = GREATEST(likes + $2, 0) WHERE id=$1 RETURNING likes`, videoID, delta)
	return likes, notFound(err, "video "+videoID)
}
