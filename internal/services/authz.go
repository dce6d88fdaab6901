package services

import (
	"context"
	"errors"
	"fmt"

	"membership-service/internal/apperrors"
	"membership-service/internal/models"
	"membership-service/internal/repositories"
)

// activeMember returns the caller's active membership or ErrPermissionDenied.
func activeMember(ctx context.Context, r repositories.Repos, groupID, userID string) (models.Membership, error) {
	m, err := r.Memberships.Get(ctx, groupID, userID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return models.Membership{}, fmt.Errorf("%w: not a member of group %s", apperrors.ErrPermissionDenied, groupID)
	}
	if err != nil {
		return models.Membership{}, err
	}
	if !m.IsActive {
		return models.Membership{}, fmt.Errorf("%w: not a member of group %s", apperrors.ErrPermissionDenied, groupID)
	}
	return m, nil
}

func requireAdmin(ctx context.Context, r repositories.Repos, groupID, userID string) (models.Membership, error) {
	m, err := activeMember(ctx, r, groupID, userID)
	if err != nil {
		return m, err
	}
	if m.Role != models.RoleAdmin {
		return models.Membership{}, fmt.Errorf("%w: admin role required", apperrors.ErrPermissionDenied)
	}
	return m, nil
}

// activeGroup loads a group and treats a deactivated one as missing.
func activeGroup(ctx context.Context, r repositories.Repos, groupID string) (models.Group, error) {
	g, err := r.Groups.Get(ctx, groupID)
	if err != nil {
		return models.Group{}, err
	}
	if !g.IsActive {
		return models.Group{}, fmt.Errorf("group %s: %w", groupID, apperrors.ErrNotFound)
	}
	return g, nil
}

// directJoin reports whether users may join g without an invite or approval.
func directJoin(g models.Group) bool {
	return g.MembershipPolicy == models.PolicyOpen && !g.RequireAdminApproval
}
