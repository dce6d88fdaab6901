package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"membership-service/internal/apperrors"
	"membership-service/internal/config"
	"membership-service/internal/invitecode"
	"membership-service/internal/models"
	"membership-service/internal/observability"
	"membership-service/internal/repositories"
)

// errLostActivation aborts a redemption whose membership was activated by a
// concurrent transaction after the pre-check; the rollback undoes the use.
var errLostActivation = errors.New("membership activated concurrently")

// CreateInviteInput carries the optional invite parameters. Zero values
// select the configured defaults.
type CreateInviteInput struct {
	MaxUses int           `json:"max_uses"`
	Role    models.Role   `json:"role"`
	TTL     time.Duration `json:"-"`
}

// AdmissionResult describes the membership a user holds after joining.
// AlreadyMember is set when nothing changed because the user was already in.
type AdmissionResult struct {
	Membership    models.Membership `json:"membership"`
	AlreadyMember bool              `json:"already_member"`
	MemberCount   int               `json:"member_count,omitempty"`
}

// InviteService issues, revokes and redeems invites.
type InviteService struct {
	uow      repositories.UnitOfWork
	codes    invitecode.Generator
	cfg      config.InviteConfig
	retry    RetryPolicy
	notifier Notifier
	now      func() time.Time
}

// NewInviteService constructs an InviteService.
func NewInviteService(uow repositories.UnitOfWork, codes invitecode.Generator, cfg config.InviteConfig, retry RetryPolicy, notifier Notifier) *InviteService {
	return &InviteService{
		uow:      uow,
		codes:    codes,
		cfg:      cfg,
		retry:    retry,
		notifier: orNoop(notifier),
		now:      time.Now,
	}
}

// Create issues an invite for groupID on behalf of inviterID.
func (s *InviteService) Create(ctx context.Context, groupID, inviterID string, in CreateInviteInput) (models.Invite, error) {
	ctx, span := tracer.Start(ctx, "InviteService.Create")
	inv, err := s.create(ctx, groupID, inviterID, in)
	endSpan(span, err)
	return inv, err
}

func (s *InviteService) create(ctx context.Context, groupID, inviterID string, in CreateInviteInput) (models.Invite, error) {
	if in.MaxUses == 0 {
		in.MaxUses = s.cfg.DefaultMaxUses
	}
	if in.MaxUses < 1 {
		return models.Invite{}, fmt.Errorf("%w: max_uses must be at least 1", apperrors.ErrInvalidInput)
	}
	if in.Role == "" {
		in.Role = models.RoleMember
	}
	if !in.Role.Valid() {
		return models.Invite{}, fmt.Errorf("%w: unknown role %q", apperrors.ErrInvalidInput, in.Role)
	}
	if in.TTL <= 0 {
		in.TTL = s.cfg.DefaultTTL
	}

	repos := s.uow.Repos()
	group, err := activeGroup(ctx, repos, groupID)
	if err != nil {
		return models.Invite{}, err
	}
	inviter, err := activeMember(ctx, repos, groupID, inviterID)
	if err != nil {
		return models.Invite{}, err
	}
	if inviter.Role != models.RoleAdmin && !group.AllowMemberInvites {
		return models.Invite{}, fmt.Errorf("%w: only admins may invite to this group", apperrors.ErrPermissionDenied)
	}
	if in.Role == models.RoleAdmin && inviter.Role != models.RoleAdmin {
		return models.Invite{}, fmt.Errorf("%w: only admins may grant the admin role", apperrors.ErrPermissionDenied)
	}

	attempts := s.cfg.CodeAttempts
	if attempts < 1 {
		attempts = 1
	}
	now := s.now()
	for i := 0; i < attempts; i++ {
		code, err := s.codes.Generate()
		if err != nil {
			return models.Invite{}, err
		}
		inv, err := repos.Invites.Create(ctx, models.Invite{
			ID:        uuid.NewString(),
			Code:      code,
			GroupID:   groupID,
			InviterID: inviterID,
			MaxUses:   in.MaxUses,
			Role:      in.Role,
			CreatedAt: now,
			ExpiresAt: now.Add(in.TTL),
		})
		if errors.Is(err, repositories.ErrDuplicateCode) {
			continue
		}
		return inv, err
	}
	return models.Invite{}, fmt.Errorf("%w: no unique invite code after %d attempts", apperrors.ErrConflict, attempts)
}

// Link renders the deep link that carries an invite code.
func (s *InviteService) Link(code string) (string, error) {
	return invitecode.BuildLink(s.cfg.LinkBase, code)
}

// FindRedeemable looks up an invite that can still admit someone. Unknown,
// revoked, expired and exhausted codes all answer ErrNotFound.
func (s *InviteService) FindRedeemable(ctx context.Context, code string) (models.Invite, error) {
	if !invitecode.Valid(code) {
		return models.Invite{}, fmt.Errorf("invite: %w", apperrors.ErrNotFound)
	}
	return s.uow.Repos().Invites.FindRedeemable(ctx, code, s.now())
}

// Revoke disables an invite. Revoking an already revoked invite succeeds
// without changing anything.
func (s *InviteService) Revoke(ctx context.Context, inviteID, callerID string) error {
	ctx, span := tracer.Start(ctx, "InviteService.Revoke")
	err := s.revoke(ctx, inviteID, callerID)
	endSpan(span, err)
	return err
}

func (s *InviteService) revoke(ctx context.Context, inviteID, callerID string) error {
	repos := s.uow.Repos()
	inv, err := repos.Invites.GetByID(ctx, inviteID)
	if err != nil {
		return err
	}
	if _, err := requireAdmin(ctx, repos, inv.GroupID, callerID); err != nil {
		return err
	}
	_, err = repos.Invites.Revoke(ctx, inviteID)
	return err
}

// ListForGroup returns the invites of a group for its admins.
func (s *InviteService) ListForGroup(ctx context.Context, groupID, callerID string) ([]models.Invite, error) {
	repos := s.uow.Repos()
	if _, err := requireAdmin(ctx, repos, groupID, callerID); err != nil {
		return nil, err
	}
	return repos.Invites.ListByGroup(ctx, groupID)
}

// RedeemLink extracts the code from a deep link and redeems it.
func (s *InviteService) RedeemLink(ctx context.Context, rawLink string, user models.User) (AdmissionResult, error) {
	code, err := invitecode.ExtractCode(rawLink)
	if err != nil {
		observability.IncRedemption(apperrors.Code(err))
		return AdmissionResult{}, err
	}
	return s.Redeem(ctx, code, user)
}

// Redeem admits user into the invite's group. Consuming a use, creating or
// re-activating the membership and incrementing the member count happen in
// one transaction; conflicts are retried with backoff.
func (s *InviteService) Redeem(ctx context.Context, code string, user models.User) (AdmissionResult, error) {
	ctx, span := tracer.Start(ctx, "InviteService.Redeem")
	span.SetAttributes(attribute.String("user.id", user.ID))

	var res AdmissionResult
	var err error
	if !invitecode.Valid(code) {
		err = fmt.Errorf("%w: malformed code", apperrors.ErrInvalidInvite)
	} else {
		err = s.retry.run(ctx, "redeem", func() error {
			var attemptErr error
			res, attemptErr = s.redeemOnce(ctx, code, user)
			return attemptErr
		})
	}

	switch {
	case err != nil:
		observability.IncRedemption(apperrors.Code(err))
	case res.AlreadyMember:
		observability.IncRedemption("already_member")
	default:
		observability.IncRedemption("admitted")
		s.notifier.Notify(ctx, memberJoined(res.Membership, res.MemberCount))
	}
	endSpan(span, err)
	return res, err
}

func (s *InviteService) redeemOnce(ctx context.Context, code string, user models.User) (AdmissionResult, error) {
	now := s.now()
	var res AdmissionResult
	err := s.uow.WithinTx(ctx, func(ctx context.Context, r repositories.Repos) error {
		inv, err := r.Invites.GetByCodeForUpdate(ctx, code)
		if errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("%w: unknown code", apperrors.ErrInvalidInvite)
		}
		if err != nil {
			return err
		}
		if !inv.Usable(now) {
			return fmt.Errorf("%w: revoked or expired", apperrors.ErrInvalidInvite)
		}
		if _, err := activeGroup(ctx, r, inv.GroupID); err != nil {
			return err
		}

		existing, err := r.Memberships.Get(ctx, inv.GroupID, user.ID)
		switch {
		case err == nil && existing.IsActive:
			res = AdmissionResult{Membership: existing, AlreadyMember: true}
			return nil
		case err != nil && !errors.Is(err, apperrors.ErrNotFound):
			return err
		}

		if inv.UsedCount >= inv.MaxUses {
			return fmt.Errorf("invite %s: %w", inv.ID, apperrors.ErrInviteExhausted)
		}
		if _, err := r.Invites.IncrementUsed(ctx, inv.ID); err != nil {
			return err
		}

		m, created, err := r.Memberships.Activate(ctx, models.Membership{
			GroupID:  inv.GroupID,
			UserID:   user.ID,
			Role:     inv.Role,
			JoinedAt: now,
			IsActive: true,
			Username: user.Username,
			PhotoURL: user.PhotoURL,
		})
		if err != nil {
			return err
		}
		if !created {
			res = AdmissionResult{Membership: m, AlreadyMember: true}
			return errLostActivation
		}

		count, err := r.Groups.AdjustMemberCount(ctx, inv.GroupID, 1)
		if err != nil {
			return err
		}
		res = AdmissionResult{Membership: m, MemberCount: count}
		return nil
	})
	if errors.Is(err, errLostActivation) {
		return res, nil
	}
	return res, err
}
