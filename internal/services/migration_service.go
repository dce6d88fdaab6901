package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"membership-service/internal/models"
	"membership-service/internal/repositories"
)

// MigrationReport summarizes a legacy role migration run.
type MigrationReport struct {
	Groups   int
	Inserted int
}

// MigrationService moves legacy member_roles maps into membership records.
type MigrationService struct {
	uow repositories.UnitOfWork
	log *zap.Logger
	now func() time.Time
}

// NewMigrationService constructs a MigrationService.
func NewMigrationService(uow repositories.UnitOfWork, log *zap.Logger) *MigrationService {
	return &MigrationService{uow: uow, log: log, now: time.Now}
}

// MigrateLegacyRoles pages through groups that still carry a role map and
// migrates each in its own transaction. Existing memberships are left as
// they are, so the run can be repeated after a partial failure.
func (s *MigrationService) MigrateLegacyRoles(ctx context.Context, batchSize int) (MigrationReport, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	var report MigrationReport
	after := ""
	for {
		batch, err := s.uow.Repos().Groups.ListLegacyRoles(ctx, after, batchSize)
		if err != nil {
			return report, fmt.Errorf("list legacy roles after %q: %w", after, err)
		}
		for _, legacy := range batch {
			inserted, err := s.migrateGroup(ctx, legacy)
			if err != nil {
				return report, fmt.Errorf("migrate group %s: %w", legacy.GroupID, err)
			}
			report.Groups++
			report.Inserted += inserted
			after = legacy.GroupID
			s.log.Info("migrated legacy roles", zap.String("group_id", legacy.GroupID), zap.Int("inserted", inserted), zap.Int("entries", len(legacy.Roles)))
		}
		if len(batch) < batchSize {
			return report, nil
		}
	}
}

func (s *MigrationService) migrateGroup(ctx context.Context, legacy models.LegacyMemberRoles) (int, error) {
	userIDs := make([]string, 0, len(legacy.Roles))
	for userID := range legacy.Roles {
		userIDs = append(userIDs, userID)
	}
	sort.Strings(userIDs)

	inserted := 0
	err := s.uow.WithinTx(ctx, func(ctx context.Context, r repositories.Repos) error {
		inserted = 0
		for _, userID := range userIDs {
			role := models.Role(legacy.Roles[userID])
			if !role.Valid() {
				s.log.Warn("unknown legacy role, using member", zap.String("group_id", legacy.GroupID), zap.String("user_id", userID), zap.String("role", string(role)))
				role = models.RoleMember
			}
			ok, err := r.Memberships.InsertIfAbsent(ctx, models.Membership{
				GroupID:  legacy.GroupID,
				UserID:   userID,
				Role:     role,
				JoinedAt: s.now(),
				IsActive: true,
			})
			if err != nil {
				return err
			}
			if ok {
				inserted++
			}
		}
		if inserted > 0 {
			if _, err := r.Groups.AdjustMemberCount(ctx, legacy.GroupID, inserted); err != nil {
				return err
			}
		}
		return r.Groups.ClearLegacyRoles(ctx, legacy.GroupID)
	})
	return inserted, err
}
