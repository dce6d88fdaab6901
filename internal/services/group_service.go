package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"membership-service/internal/apperrors"
	"membership-service/internal/models"
	"membership-service/internal/repositories"
)

// CreateGroupInput holds the attributes of a new group.
type CreateGroupInput struct {
	Name             string                  `json:"name" binding:"required"`
	Description      string                  `json:"description"`
	Category         string                  `json:"category"`
	Visibility       models.Visibility       `json:"visibility"`
	MembershipPolicy models.MembershipPolicy `json:"membership_policy"`
	PostingGoal      models.PostingGoal      `json:"posting_goal"`
	Settings         models.GroupSettings    `json:"settings"`
}

// GroupService owns group lifecycle and direct membership changes.
type GroupService struct {
	uow      repositories.UnitOfWork
	retry    RetryPolicy
	notifier Notifier
	now      func() time.Time
}

// NewGroupService constructs a GroupService.
func NewGroupService(uow repositories.UnitOfWork, retry RetryPolicy, notifier Notifier) *GroupService {
	return &GroupService{uow: uow, retry: retry, notifier: orNoop(notifier), now: time.Now}
}

// CreateGroup creates a group with creator as its only admin.
func (s *GroupService) CreateGroup(ctx context.Context, creator models.User, in CreateGroupInput) (models.Group, error) {
	ctx, span := tracer.Start(ctx, "GroupService.CreateGroup")
	g, err := s.createGroup(ctx, creator, in)
	endSpan(span, err)
	return g, err
}

func (s *GroupService) createGroup(ctx context.Context, creator models.User, in CreateGroupInput) (models.Group, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return models.Group{}, fmt.Errorf("%w: name is required", apperrors.ErrInvalidInput)
	}
	switch in.Visibility {
	case "":
		in.Visibility = models.VisibilityPublic
	case models.VisibilityPublic, models.VisibilityPrivate:
	default:
		return models.Group{}, fmt.Errorf("%w: unknown visibility %q", apperrors.ErrInvalidInput, in.Visibility)
	}
	switch in.MembershipPolicy {
	case "":
		in.MembershipPolicy = models.PolicyInviteOnly
	case models.PolicyOpen, models.PolicyInviteOnly, models.PolicyClosed:
	default:
		return models.Group{}, fmt.Errorf("%w: unknown membership policy %q", apperrors.ErrInvalidInput, in.MembershipPolicy)
	}

	var out models.Group
	err := s.uow.WithinTx(ctx, func(ctx context.Context, r repositories.Repos) error {
		g, err := r.Groups.Create(ctx, models.Group{
			ID:               uuid.NewString(),
			Name:             in.Name,
			Description:      in.Description,
			Category:         in.Category,
			Visibility:       in.Visibility,
			MembershipPolicy: in.MembershipPolicy,
			PostingGoal:      in.PostingGoal,
			GroupSettings:    in.Settings,
			IsActive:         true,
			CreatedBy:        creator.ID,
		})
		if err != nil {
			return err
		}
		if _, _, err := r.Memberships.Activate(ctx, models.Membership{
			GroupID:  g.ID,
			UserID:   creator.ID,
			Role:     models.RoleAdmin,
			JoinedAt: s.now(),
			IsActive: true,
			Username: creator.Username,
			PhotoURL: creator.PhotoURL,
		}); err != nil {
			return err
		}
		if g.MemberCount, err = r.Groups.AdjustMemberCount(ctx, g.ID, 1); err != nil {
			return err
		}
		out = g
		return nil
	})
	return out, err
}

// Join admits user directly into an open group that does not require
// approval. Other groups answer ErrPermissionDenied.
func (s *GroupService) Join(ctx context.Context, groupID string, user models.User) (AdmissionResult, error) {
	ctx, span := tracer.Start(ctx, "GroupService.Join")

	var res AdmissionResult
	err := s.retry.run(ctx, "join", func() error {
		res = AdmissionResult{}
		return s.uow.WithinTx(ctx, func(ctx context.Context, r repositories.Repos) error {
			g, err := activeGroup(ctx, r, groupID)
			if err != nil {
				return err
			}
			if !directJoin(g) {
				return fmt.Errorf("%w: group requires an invite or an approved request", apperrors.ErrPermissionDenied)
			}
			m, created, err := r.Memberships.Activate(ctx, models.Membership{
				GroupID:  groupID,
				UserID:   user.ID,
				Role:     models.RoleMember,
				JoinedAt: s.now(),
				IsActive: true,
				Username: user.Username,
				PhotoURL: user.PhotoURL,
			})
			if err != nil {
				return err
			}
			if !created {
				res = AdmissionResult{Membership: m, AlreadyMember: true}
				return nil
			}
			count, err := r.Groups.AdjustMemberCount(ctx, groupID, 1)
			if err != nil {
				return err
			}
			res = AdmissionResult{Membership: m, MemberCount: count}
			return nil
		})
	})

	if err == nil && !res.AlreadyMember {
		s.notifier.Notify(ctx, memberJoined(res.Membership, res.MemberCount))
	}
	endSpan(span, err)
	return res, err
}

// RemoveMember deactivates targetID's membership. Members may remove
// themselves; removing someone else needs the admin role. The last active
// admin cannot be removed.
func (s *GroupService) RemoveMember(ctx context.Context, groupID, callerID, targetID string) error {
	ctx, span := tracer.Start(ctx, "GroupService.RemoveMember")

	var (
		removed models.Membership
		count   int
	)
	err := s.retry.run(ctx, "remove_member", func() error {
		return s.uow.WithinTx(ctx, func(ctx context.Context, r repositories.Repos) error {
			if _, err := r.Groups.GetForUpdate(ctx, groupID); err != nil {
				return err
			}
			target, err := r.Memberships.Get(ctx, groupID, targetID)
			if err != nil {
				return err
			}
			if !target.IsActive {
				return fmt.Errorf("membership: %w", apperrors.ErrNotFound)
			}
			if callerID != targetID {
				if _, err := requireAdmin(ctx, r, groupID, callerID); err != nil {
					return err
				}
			}
			if target.Role == models.RoleAdmin {
				admins, err := r.Memberships.CountActive(ctx, groupID, models.RoleAdmin)
				if err != nil {
					return err
				}
				if admins <= 1 {
					return fmt.Errorf("%w: cannot remove the last admin", apperrors.ErrPermissionDenied)
				}
			}

			ok, err := r.Memberships.Deactivate(ctx, groupID, targetID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("membership: %w", apperrors.ErrNotFound)
			}
			if count, err = r.Groups.AdjustMemberCount(ctx, groupID, -1); err != nil {
				return err
			}
			target.IsActive = false
			removed = target
			return nil
		})
	})

	if err == nil {
		s.notifier.Notify(ctx, memberRemoved(removed, count))
	}
	endSpan(span, err)
	return err
}

// UpdateSettings replaces the group toggles. Admin only.
func (s *GroupService) UpdateSettings(ctx context.Context, groupID, callerID string, settings models.GroupSettings) (models.Group, error) {
	var out models.Group
	err := s.uow.WithinTx(ctx, func(ctx context.Context, r repositories.Repos) error {
		if _, err := activeGroup(ctx, r, groupID); err != nil {
			return err
		}
		if _, err := requireAdmin(ctx, r, groupID, callerID); err != nil {
			return err
		}
		if err := r.Groups.UpdateSettings(ctx, groupID, settings); err != nil {
			return err
		}
		var err error
		out, err = r.Groups.Get(ctx, groupID)
		return err
	})
	return out, err
}

// Deactivate soft-deletes a group. Admin only.
func (s *GroupService) Deactivate(ctx context.Context, groupID, callerID string) error {
	return s.uow.WithinTx(ctx, func(ctx context.Context, r repositories.Repos) error {
		if _, err := activeGroup(ctx, r, groupID); err != nil {
			return err
		}
		if _, err := requireAdmin(ctx, r, groupID, callerID); err != nil {
			return err
		}
		return r.Groups.Deactivate(ctx, groupID)
	})
}

// GetGroup returns an active group. Private groups are visible to members only.
func (s *GroupService) GetGroup(ctx context.Context, groupID, callerID string) (models.Group, error) {
	repos := s.uow.Repos()
	g, err := activeGroup(ctx, repos, groupID)
	if err != nil {
		return models.Group{}, err
	}
	if g.Visibility == models.VisibilityPrivate {
		if _, err := activeMember(ctx, repos, groupID, callerID); err != nil {
			return models.Group{}, err
		}
	}
	return g, nil
}

// ListMembers returns the active members of a group to one of its members.
func (s *GroupService) ListMembers(ctx context.Context, groupID, callerID string) ([]models.Membership, error) {
	repos := s.uow.Repos()
	if _, err := activeGroup(ctx, repos, groupID); err != nil {
		return nil, err
	}
	if _, err := activeMember(ctx, repos, groupID, callerID); err != nil {
		return nil, err
	}
	return repos.Memberships.ListActive(ctx, groupID)
}

// ListGroupsForUser returns the active groups userID belongs to.
func (s *GroupService) ListGroupsForUser(ctx context.Context, userID string) ([]models.Group, error) {
	return s.uow.Repos().Groups.ListForUser(ctx, userID)
}

// IsMember reports whether userID holds an active membership in groupID.
func (s *GroupService) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	_, err := activeMember(ctx, s.uow.Repos(), groupID, userID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, apperrors.ErrPermissionDenied) {
		return false, nil
	}
	return false, err
}
