package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"membership-service/internal/apperrors"
	"membership-service/internal/models"
	"membership-service/internal/testutil"
)

func TestMembershipActivateAgainstPostgres(t *testing.T) {
	db := testutil.OpenPostgres(t)
	fx := testutil.NewFixtures(t, db)
	ctx := context.Background()
	g := fx.CreateGroup(ctx, "admin-1")
	repo := NewMembershipRepo(db)

	t.Run("missing row is inserted", func(t *testing.T) {
		userID := testutil.ID("u")
		m, created, err := repo.Activate(ctx, models.Membership{GroupID: g.ID, UserID: userID, Role: models.RoleMember, JoinedAt: time.Now()})
		require.NoError(t, err)
		assert.True(t, created)
		assert.True(t, m.IsActive)
		assert.Equal(t, models.RoleMember, m.Role)
	})

	t.Run("active row is left untouched", func(t *testing.T) {
		m, created, err := repo.Activate(ctx, models.Membership{GroupID: g.ID, UserID: "admin-1", Role: models.RoleViewer, JoinedAt: time.Now()})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, models.RoleAdmin, m.Role)
		assert.True(t, m.IsActive)
	})

	t.Run("inactive row is reactivated with the new role", func(t *testing.T) {
		userID := testutil.ID("u")
		fx.CreateMembership(ctx, g.ID, userID, models.RoleMember, true)
		ok, err := repo.Deactivate(ctx, g.ID, userID)
		require.NoError(t, err)
		require.True(t, ok)

		m, created, err := repo.Activate(ctx, models.Membership{GroupID: g.ID, UserID: userID, Role: models.RoleViewer, JoinedAt: time.Now()})
		require.NoError(t, err)
		assert.True(t, created)
		assert.True(t, m.IsActive)
		assert.Equal(t, models.RoleViewer, m.Role)
	})
}

func TestInviteIncrementUsedStopsAtMaxUses(t *testing.T) {
	db := testutil.OpenPostgres(t)
	fx := testutil.NewFixtures(t, db)
	ctx := context.Background()
	g := fx.CreateGroup(ctx, "admin-1")
	inv := fx.CreateInvite(ctx, g.ID, 2)
	repo := NewInviteRepo(db)

	used, err := repo.IncrementUsed(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, 1, used)
	used, err = repo.IncrementUsed(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, 2, used)

	_, err = repo.IncrementUsed(ctx, inv.ID)
	require.ErrorIs(t, err, apperrors.ErrInviteExhausted)

	got, err := repo.GetByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.UsedCount)
}

func TestJoinRequestSinglePendingAgainstPostgres(t *testing.T) {
	db := testutil.OpenPostgres(t)
	fx := testutil.NewFixtures(t, db)
	ctx := context.Background()
	g := fx.CreateGroup(ctx, "admin-1")
	repo := NewJoinRequestRepo(db)
	userID := testutil.ID("u")

	first, err := repo.Create(ctx, models.JoinRequest{ID: testutil.ID("jr"), GroupID: g.ID, UserID: userID})
	require.NoError(t, err)
	require.Equal(t, models.JoinRequestPending, first.Status)

	_, err = repo.Create(ctx, models.JoinRequest{ID: testutil.ID("jr"), GroupID: g.ID, UserID: userID})
	require.ErrorIs(t, err, apperrors.ErrAlreadyPending)

	_, err = repo.UpdateStatus(ctx, first.ID, models.JoinRequestRejected, "admin-1")
	require.NoError(t, err)

	// Decided requests no longer count against the pending index.
	_, err = repo.Create(ctx, models.JoinRequest{ID: testutil.ID("jr"), GroupID: g.ID, UserID: userID})
	require.NoError(t, err)
}

func TestCountersClampAgainstPostgres(t *testing.T) {
	db := testutil.OpenPostgres(t)
	fx := testutil.NewFixtures(t, db)
	ctx := context.Background()
	g := fx.CreateGroup(ctx, "admin-1")
	v := fx.CreateVideo(ctx, g.ID, "admin-1")

	likes, err := NewLikeRepo(db).AdjustLikes(ctx, v.ID, -1)
	require.NoError(t, err)
	assert.Equal(t, 0, likes)

	groups := NewGroupRepo(db)
	_, err = groups.AdjustMemberCount(ctx, g.ID, -2)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	count, err := groups.AdjustMemberCount(ctx, g.ID, -1)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestInviteRowLockTimesOutAsConflict(t *testing.T) {
	db := testutil.OpenPostgres(t)
	fx := testutil.NewFixtures(t, db)
	ctx := context.Background()
	g := fx.CreateGroup(ctx, "admin-1")
	inv := fx.CreateInvite(ctx, g.ID, 1)

	holder := NewStore(db, 0)
	waiter := NewStore(db, 50*time.Millisecond)

	locked := make(chan struct{})
	release := make(chan struct{})
	holderErr := make(chan error, 1)
	go func() {
		holderErr <- holder.WithinTx(ctx, func(ctx context.Context, r Repos) error {
			if _, err := r.Invites.GetByCodeForUpdate(ctx, inv.Code); err != nil {
				close(locked)
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	err := waiter.WithinTx(ctx, func(ctx context.Context, r Repos) error {
		_, err := r.Invites.GetByCodeForUpdate(ctx, inv.Code)
		return err
	})
	close(release)
	require.NoError(t, <-holderErr)
	require.True(t, errors.Is(err, apperrors.ErrConflict), "expected conflict, got %v", err)

	// Once the holder commits the row is free again.
	err = waiter.WithinTx(ctx, func(ctx context.Context, r Repos) error {
		_, err := r.Invites.GetByCodeForUpdate(ctx, inv.Code)
		return err
	})
	require.NoError(t, err)
}
