// Package testutil opens the live PostgreSQL database used by integration
// tests and seeds rows into it.
package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"membership-service/internal/config"
	"membership-service/internal/db"
	"membership-service/internal/invitecode"
	"membership-service/internal/models"
)

// DSNEnv names the variable holding the test database DSN.
const DSNEnv = "MEMBERSHIP_TEST_DSN"

// OpenPostgres connects to the database named by MEMBERSHIP_TEST_DSN and
// applies migrations. The test is skipped when the variable is unset.
// Packages run in parallel against the same database, so fixtures use
// fresh ids and nothing is truncated.
func OpenPostgres(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv(DSNEnv)
	if dsn == "" {
		t.Skipf("%s not set, skipping PostgreSQL integration test", DSNEnv)
	}

	database, err := db.Connect(config.DatabaseConfig{
		DSN:             dsn,
		MaxOpenConns:    40,
		MaxIdleConns:    10,
		ConnMaxLifetime: time.Minute,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

// Fixtures inserts test rows directly with SQL.
type Fixtures struct {
	db *sqlx.DB
	t  *testing.T
}

func NewFixtures(t *testing.T, db *sqlx.DB) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// ID returns a unique id with a readable prefix.
func ID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// CreateGroup inserts an active invite-only group with adminID as its only
// member, so member_count starts at 1.
func (f *Fixtures) CreateGroup(ctx context.Context, adminID string, mutate ...func(*models.Group)) models.Group {
	f.t.Helper()

	g := models.Group{
		ID:               ID("g"),
		Name:             "test group",
		Visibility:       models.VisibilityPublic,
		MembershipPolicy: models.PolicyInviteOnly,
		MemberCount:      1,
		IsActive:         true,
		CreatedBy:        adminID,
	}
	for _, fn := range mutate {
		fn(&g)
	}

	_, err := f.db.ExecContext(ctx, `INSERT INTO groups (id, name, visibility, membership_policy, allow_member_invites,
        require_admin_approval, member_count, is_active, created_by) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		g.ID, g.Name, g.Visibility, g.MembershipPolicy, g.AllowMemberInvites, g.RequireAdminApproval, g.MemberCount, g.IsActive, g.CreatedBy)
	if err != nil {
		f.t.Fatalf("failed to create test group: %v", err)
	}
	f.CreateMembership(ctx, g.ID, adminID, models.RoleAdmin, true)
	return g
}

// CreateMembership inserts a membership row without touching member_count.
func (f *Fixtures) CreateMembership(ctx context.Context, groupID, userID string, role models.Role, active bool) {
	f.t.Helper()
	_, err := f.db.ExecContext(ctx, `INSERT INTO memberships (group_id, user_id, role, is_active) VALUES ($1, $2, $3, $4)`,
		groupID, userID, role, active)
	if err != nil {
		f.t.Fatalf("failed to create test membership: %v", err)
	}
}

// CreateInvite inserts an unused member invite valid for a day.
func (f *Fixtures) CreateInvite(ctx context.Context, groupID string, maxUses int) models.Invite {
	f.t.Helper()

	code, err := invitecode.NewRandomGenerator().Generate()
	if err != nil {
		f.t.Fatalf("failed to generate invite code: %v", err)
	}
	inv := models.Invite{
		ID:        ID("inv"),
		Code:      code,
		GroupID:   groupID,
		InviterID: "fixture",
		MaxUses:   maxUses,
		Role:      models.RoleMember,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
	_, err = f.db.ExecContext(ctx, `INSERT INTO invites (id, code, group_id, inviter_id, max_uses, role, expires_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`, inv.ID, inv.Code, inv.GroupID, inv.InviterID, inv.MaxUses, inv.Role, inv.ExpiresAt)
	if err != nil {
		f.t.Fatalf("failed to create test invite: %v", err)
	}
	return inv
}

// CreateVideo inserts a video with no likes.
func (f *Fixtures) CreateVideo(ctx context.Context, groupID, ownerID string) models.Video {
	f.t.Helper()
	v := models.Video{ID: ID("v"), GroupID: groupID, OwnerID: ownerID}
	_, err := f.db.ExecContext(ctx, `INSERT INTO videos (id, group_id, owner_id) VALUES ($1, $2, $3)`, v.ID, v.GroupID, v.OwnerID)
	if err != nil {
		f.t.Fatalf("failed to create test video: %v", err)
	}
	return v
}

// ActiveMembers counts active memberships of a group.
func (f *Fixtures) ActiveMembers(ctx context.Context, groupID string) int {
	f.t.Helper()
	var n int
	if err := f.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM memberships WHERE group_id=$1 AND is_active`, groupID); err != nil {
		f.t.Fatalf("failed to count members: %v", err)
	}
	return n
}
