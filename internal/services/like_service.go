package services

import (
	"context"

	"membership-service/internal/models"
	"membership-service/internal/observability"
	"membership-service/internal/repositories"
)

// LikeService toggles likes on group videos.
type LikeService struct {
	uow      repositories.UnitOfWork
	retry    RetryPolicy
	notifier Notifier
}

// NewLikeService constructs a LikeService.
func NewLikeService(uow repositories.UnitOfWork, retry RetryPolicy, notifier Notifier) *LikeService {
	return &LikeService{uow: uow, retry: retry, notifier: orNoop(notifier)}
}

// Toggle flips userID's like on videoID and returns the new state. The like
// row and the video counter change together; the counter never goes negative.
func (s *LikeService) Toggle(ctx context.Context, videoID, userID string) (models.LikeResult, error) {
	ctx, span := tracer.Start(ctx, "LikeService.Toggle")

	var (
		res     models.LikeResult
		groupID string
	)
	err := s.retry.run(ctx, "like_toggle", func() error {
		return s.uow.WithinTx(ctx, func(ctx context.Context, r repositories.Repos) error {
			video, err := r.Likes.GetVideoForUpdate(ctx, videoID)
			if err != nil {
				return err
			}
			if _, err := activeMember(ctx, r, video.GroupID, userID); err != nil {
				return err
			}
			groupID = video.GroupID

			removed, err := r.Likes.Delete(ctx, userID, videoID)
			if err != nil {
				return err
			}
			if removed {
				count, err := r.Likes.AdjustLikes(ctx, videoID, -1)
				res = models.LikeResult{Liked: false, NewCount: count}
				return err
			}

			inserted, err := r.Likes.Insert(ctx, userID, videoID)
			if err != nil {
				return err
			}
			count := video.Likes
			if inserted {
				if count, err = r.Likes.AdjustLikes(ctx, videoID, 1); err != nil {
					return err
				}
			}
			res = models.LikeResult{Liked: true, NewCount: count}
			return nil
		})
	})

	if err == nil {
		observability.IncLikeToggle(res.Liked)
		likes := res.NewCount
		s.notifier.Notify(ctx, models.GroupEvent{Type: models.EventLikesChanged, GroupID: groupID, VideoID: videoID, Likes: &likes})
	}
	endSpan(span, err)
	return res, err
}
