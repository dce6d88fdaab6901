package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"membership-service/internal/models"
	"membership-service/internal/services"
)

type GroupServiceMock struct {
	mock.Mock
}

func (m *GroupServiceMock) CreateGroup(ctx context.Context, creator models.User, in services.CreateGroupInput) (models.Group, error) {
	args := m.Called(ctx, creator, in)
	var group models.Group
	if val := args.Get(0); val != nil {
		group = val.(models.Group)
	}
	return group, args.Error(1)
}

func (m *GroupServiceMock) Join(ctx context.Context, groupID string, user models.User) (services.AdmissionResult, error) {
	args := m.Called(ctx, groupID, user)
	var res services.AdmissionResult
	if val := args.Get(0); val != nil {
		res = val.(services.AdmissionResult)
	}
	return res, args.Error(1)
}

func (m *GroupServiceMock) RemoveMember(ctx context.Context, groupID, callerID, targetID string) error {
	args := m.Called(ctx, groupID, callerID, targetID)
	return args.Error(0)
}

func (m *GroupServiceMock) UpdateSettings(ctx context.Context, groupID, callerID string, settings models.GroupSettings) (models.Group, error) {
	args := m.Called(ctx, groupID, callerID, settings)
	var group models.Group
	if val := args.Get(0); val != nil {
		group = val.(models.Group)
	}
	return group, args.Error(1)
}

func (m *GroupServiceMock) Deactivate(ctx context.Context, groupID, callerID string) error {
	args := m.Called(ctx, groupID, callerID)
	return args.Error(0)
}

func (m *GroupServiceMock) GetGroup(ctx context.Context, groupID, callerID string) (models.Group, error) {
	args := m.Called(ctx, groupID, callerID)
	var group models.Group
	if val := args.Get(0); val != nil {
		group = val.(models.Group)
	}
	return group, args.Error(1)
}

func (m *GroupServiceMock) ListMembers(ctx context.Context, groupID, callerID string) ([]models.Membership, error) {
	args := m.Called(ctx, groupID, callerID)
	var members []models.Membership
	if val := args.Get(0); val != nil {
		members = val.([]models.Membership)
	}
	return members, args.Error(1)
}

func (m *GroupServiceMock) ListGroupsForUser(ctx context.Context, userID string) ([]models.Group, error) {
	args := m.Called(ctx, userID)
	var groups []models.Group
	if val := args.Get(0); val != nil {
		groups = val.([]models.Group)
	}
	return groups, args.Error(1)
}

func (m *GroupServiceMock) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	args := m.Called(ctx, groupID, userID)
	return args.Bool(0), args.Error(1)
}

type InviteServiceMock struct {
	mock.Mock
}

func (m *InviteServiceMock) Create(ctx context.Context, groupID, inviterID string, in services.CreateInviteInput) (models.Invite, error) {
	args := m.Called(ctx, groupID, inviterID, in)
	var invite models.Invite
	if val := args.Get(0); val != nil {
		invite = val.(models.Invite)
	}
	return invite, args.Error(1)
}

func (m *InviteServiceMock) Link(code string) (string, error) {
	args := m.Called(code)
	return args.String(0), args.Error(1)
}

func (m *InviteServiceMock) FindRedeemable(ctx context.Context, code string) (models.Invite, error) {
	args := m.Called(ctx, code)
	var invite models.Invite
	if val := args.Get(0); val != nil {
		invite = val.(models.Invite)
	}
	return invite, args.Error(1)
}

func (m *InviteServiceMock) Revoke(ctx context.Context, inviteID, callerID string) error {
	args := m.Called(ctx, inviteID, callerID)
	return args.Error(0)
}

func (m *InviteServiceMock) ListForGroup(ctx context.Context, groupID, callerID string) ([]models.Invite, error) {
	args := m.Called(ctx, groupID, callerID)
	var invites []models.Invite
	if val := args.Get(0); val != nil {
		invites = val.([]models.Invite)
	}
	return invites, args.Error(1)
}

func (m *InviteServiceMock) Redeem(ctx context.Context, code string, user models.User) (services.AdmissionResult, error) {
	args := m.Called(ctx, code, user)
	var res services.AdmissionResult
	if val := args.Get(0); val != nil {
		res = val.(services.AdmissionResult)
	}
	return res, args.Error(1)
}

func (m *InviteServiceMock) RedeemLink(ctx context.Context, rawLink string, user models.User) (services.AdmissionResult, error) {
	args := m.Called(ctx, rawLink, user)
	var res services.AdmissionResult
	if val := args.Get(0); val != nil {
		res = val.(services.AdmissionResult)
	}
	return res, args.Error(1)
}

type JoinRequestServiceMock struct {
	mock.Mock
}

func (m *JoinRequestServiceMock) CreateRequest(ctx context.Context, groupID string, user models.User) (models.JoinRequest, error) {
	args := m.Called(ctx, groupID, user)
	var req models.JoinRequest
	if val := args.Get(0); val != nil {
		req = val.(models.JoinRequest)
	}
	return req, args.Error(1)
}

func (m *JoinRequestServiceMock) Decide(ctx context.Context, groupID, requestID, callerID string, decision services.Decision) (services.DecisionResult, error) {
	args := m.Called(ctx, groupID, requestID, callerID, decision)
	var res services.DecisionResult
	if val := args.Get(0); val != nil {
		res = val.(services.DecisionResult)
	}
	return res, args.Error(1)
}

func (m *JoinRequestServiceMock) ListPending(ctx context.Context, groupID, callerID string) ([]models.JoinRequest, error) {
	args := m.Called(ctx, groupID, callerID)
	var reqs []models.JoinRequest
	if val := args.Get(0); val != nil {
		reqs = val.([]models.JoinRequest)
	}
	return reqs, args.Error(1)
}

type LikeServiceMock struct {
	mock.Mock
}

func (m *LikeServiceMock) Toggle(ctx context.Context, videoID, userID string) (models.LikeResult, error) {
	args := m.Called(ctx, videoID, userID)
	var res models.LikeResult
	if val := args.Get(0); val != nil {
		res = val.(models.LikeResult)
	}
	return res, args.Error(1)
}
