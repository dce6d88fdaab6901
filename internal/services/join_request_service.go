package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"membership-service/internal/apperrors"
	"membership-service/internal/models"
	"membership-service/internal/repositories"
)

// Decision is an admin's answer to a join request.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// DecisionResult is the decided request and, for approvals, the membership.
type DecisionResult struct {
	Request    models.JoinRequest `json:"request"`
	Membership *models.Membership `json:"membership,omitempty"`
}

// JoinRequestService drives the request and approval workflow.
type JoinRequestService struct {
	uow      repositories.UnitOfWork
	retry    RetryPolicy
	notifier Notifier
	now      func() time.Time
}

// NewJoinRequestService constructs a JoinRequestService.
func NewJoinRequestService(uow repositories.UnitOfWork, retry RetryPolicy, notifier Notifier) *JoinRequestService {
	return &JoinRequestService{uow: uow, retry: retry, notifier: orNoop(notifier), now: time.Now}
}

// CreateRequest files a pending request for user to join groupID.
func (s *JoinRequestService) CreateRequest(ctx context.Context, groupID string, user models.User) (models.JoinRequest, error) {
	ctx, span := tracer.Start(ctx, "JoinRequestService.CreateRequest")
	req, err := s.createRequest(ctx, groupID, user)
	endSpan(span, err)
	return req, err
}

func (s *JoinRequestService) createRequest(ctx context.Context, groupID string, user models.User) (models.JoinRequest, error) {
	repos := s.uow.Repos()
	g, err := activeGroup(ctx, repos, groupID)
	if err != nil {
		return models.JoinRequest{}, err
	}
	if directJoin(g) {
		return models.JoinRequest{}, fmt.Errorf("%w: group %s is open, join it directly", apperrors.ErrInvalidInput, groupID)
	}

	m, err := repos.Memberships.Get(ctx, groupID, user.ID)
	switch {
	case err == nil && m.IsActive:
		return models.JoinRequest{}, fmt.Errorf("group %s: %w", groupID, apperrors.ErrAlreadyMember)
	case err != nil && !errors.Is(err, apperrors.ErrNotFound):
		return models.JoinRequest{}, err
	}

	_, err = repos.JoinRequests.FindPending(ctx, groupID, user.ID)
	switch {
	case err == nil:
		return models.JoinRequest{}, apperrors.ErrAlreadyPending
	case !errors.Is(err, apperrors.ErrNotFound):
		return models.JoinRequest{}, err
	}

	return repos.JoinRequests.Create(ctx, models.JoinRequest{
		ID:       uuid.NewString(),
		GroupID:  groupID,
		UserID:   user.ID,
		Status:   models.JoinRequestPending,
		Username: user.Username,
		PhotoURL: user.PhotoURL,
	})
}

// Decide approves or rejects a pending request. Deciding a request twice
// answers ErrAlreadyDecided and never creates a second membership.
func (s *JoinRequestService) Decide(ctx context.Context, groupID, requestID, callerID string, decision Decision) (DecisionResult, error) {
	ctx, span := tracer.Start(ctx, "JoinRequestService.Decide")

	var (
		res     DecisionResult
		count   int
		created bool
		err     error
	)
	if decision != DecisionApprove && decision != DecisionReject {
		err = fmt.Errorf("%w: unknown decision %q", apperrors.ErrInvalidInput, decision)
	} else {
		err = s.retry.run(ctx, "decide", func() error {
			res, count, created = DecisionResult{}, 0, false
			return s.uow.WithinTx(ctx, func(ctx context.Context, r repositories.Repos) error {
				var txErr error
				res, count, created, txErr = s.decide(ctx, r, groupID, requestID, callerID, decision)
				return txErr
			})
		})
	}

	if err == nil && created {
		s.notifier.Notify(ctx, memberJoined(*res.Membership, count))
	}
	endSpan(span, err)
	return res, err
}

func (s *JoinRequestService) decide(ctx context.Context, r repositories.Repos, groupID, requestID, callerID string, decision Decision) (DecisionResult, int, bool, error) {
	if _, err := requireAdmin(ctx, r, groupID, callerID); err != nil {
		return DecisionResult{}, 0, false, err
	}

	req, err := r.JoinRequests.GetForUpdate(ctx, groupID, requestID)
	if err != nil {
		return DecisionResult{}, 0, false, err
	}
	if req.Status != models.JoinRequestPending {
		return DecisionResult{}, 0, false, fmt.Errorf("join request %s is %s: %w", req.ID, req.Status, apperrors.ErrAlreadyDecided)
	}

	if decision == DecisionReject {
		req, err = r.JoinRequests.UpdateStatus(ctx, req.ID, models.JoinRequestRejected, callerID)
		return DecisionResult{Request: req}, 0, false, err
	}

	if _, err := activeGroup(ctx, r, groupID); err != nil {
		return DecisionResult{}, 0, false, err
	}
	req, err = r.JoinRequests.UpdateStatus(ctx, req.ID, models.JoinRequestApproved, callerID)
	if err != nil {
		return DecisionResult{}, 0, false, err
	}
	m, created, err := r.Memberships.Activate(ctx, models.Membership{
		GroupID:  groupID,
		UserID:   req.UserID,
		Role:     models.RoleMember,
		JoinedAt: s.now(),
		IsActive: true,
		Username: req.Username,
		PhotoURL: req.PhotoURL,
	})
	if err != nil {
		return DecisionResult{}, 0, false, err
	}
	count := 0
	if created {
		if count, err = r.Groups.AdjustMemberCount(ctx, groupID, 1); err != nil {
			return DecisionResult{}, 0, false, err
		}
	}
	return DecisionResult{Request: req, Membership: &m}, count, created, nil
}

// ListPending returns the open requests of a group for its admins.
func (s *JoinRequestService) ListPending(ctx context.Context, groupID, callerID string) ([]models.JoinRequest, error) {
	repos := s.uow.Repos()
	if _, err := requireAdmin(ctx, repos, groupID, callerID); err != nil {
		return nil, err
	}
	return repos.JoinRequests.ListPending(ctx, groupID)
}
