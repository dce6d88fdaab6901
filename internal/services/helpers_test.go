package services

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"membership-service/internal/config"
	"membership-service/internal/models"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func noRetry() RetryPolicy { return RetryPolicy{} }

func fastRetry(n uint64) RetryPolicy {
	return RetryPolicy{MaxRetries: n, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond, Log: zap.NewNop()}
}

func testInviteConfig() config.InviteConfig {
	return config.InviteConfig{DefaultTTL: 7 * 24 * time.Hour, DefaultMaxUses: 1, LinkBase: "vidgroups://join", CodeAttempts: 3}
}

// seedGroup stores an active invite-only group whose only member is the admin "admin-1".
func seedGroup(t *testing.T, store *fakeStore, id string, mutate ...func(*models.Group)) models.Group {
	t.Helper()
	g := models.Group{
		ID:               id,
		Name:             "group " + id,
		Visibility:       models.VisibilityPublic,
		MembershipPolicy: models.PolicyInviteOnly,
		MemberCount:      1,
		IsActive:         true,
		CreatedBy:        "admin-1",
	}
	for _, fn := range mutate {
		fn(&g)
	}
	store.addGroup(g)
	store.addMember(models.Membership{GroupID: id, UserID: "admin-1", Role: models.RoleAdmin, IsActive: true, JoinedAt: testNow})
	return g
}

func seedMember(store *fakeStore, groupID, userID string, role models.Role) {
	store.addMember(models.Membership{GroupID: groupID, UserID: userID, Role: role, IsActive: true, JoinedAt: testNow})
	store.read(func(st *memState) {
		g := st.groups[groupID]
		g.MemberCount++
		st.groups[groupID] = g
	})
}

func seedInvite(store *fakeStore, id, code, groupID string, maxUses int, mutate ...func(*models.Invite)) models.Invite {
	inv := models.Invite{
		ID:        id,
		Code:      code,
		GroupID:   groupID,
		InviterID: "admin-1",
		MaxUses:   maxUses,
		Role:      models.RoleMember,
		CreatedAt: testNow.Add(-time.Hour),
		ExpiresAt: testNow.Add(24 * time.Hour),
	}
	for _, fn := range mutate {
		fn(&inv)
	}
	store.addInvite(inv)
	return inv
}

func user(id string) models.User {
	return models.User{ID: id, Username: "name-" + id, PhotoURL: "https://cdn.example.com/" + id + ".jpg"}
}

// assertCountConsistent checks that member_count matches the active memberships.
func assertCountConsistent(t *testing.T, store *fakeStore, groupID string) {
	t.Helper()
	if got, want := store.group(groupID).MemberCount, store.activeMembers(groupID); got != want {
		t.Fatalf("member_count=%d but %d active memberships", got, want)
	}
}
