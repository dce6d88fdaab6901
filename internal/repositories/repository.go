package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Repos bundles every repository bound to the same connection or transaction.
type Repos struct {
	Groups       GroupRepository
	Memberships  MembershipRepository
	Invites      InviteRepository
	JoinRequests JoinRequestRepository
	Likes        LikeRepository
}

// UnitOfWork hands out repositories and runs functions inside a transaction.
// A function passed to WithinTx must only use the Repos it is given; an error
// returned from it rolls back every write made through them.
type UnitOfWork interface {
	Repos() Repos
	WithinTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
}

// Store is the PostgreSQL UnitOfWork.
type Store struct {
	db          *sqlx.DB
	lockTimeout time.Duration
}

// NewStore constructs a Store. A positive lockTimeout bounds how long a
// transaction waits on a row lock before failing with ErrConflict.
func NewStore(db *sqlx.DB, lockTimeout time.Duration) *Store {
	return &Store{db: db, lockTimeout: lockTimeout}
}

func newRepos(q sqlx.ExtContext) Repos {
	return Repos{
		Groups:       &GroupRepo{db: q},
		Memberships:  &MembershipRepo{db: q},
		Invites:      &InviteRepo{db: q},
		JoinRequests: &JoinRequestRepo{db: q},
		Likes:        &LikeRepo{db: q},
	}
}

// Repos returns repositories that run outside any transaction.
func (s *Store) Repos() Repos {
	return newRepos(s.db)
}

// WithinTx runs fn in a single transaction. Serialization failures, deadlocks
// and lock timeouts are reported as apperrors.ErrConflict.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return mapError(err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if s.lockTimeout > 0 {
		if _, err = tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = %d", s.lockTimeout.Milliseconds())); err != nil {
			return mapError(err)
		}
	}

	if err = fn(ctx, newRepos(tx)); err != nil {
		return mapError(err)
	}
	if err = tx.Commit(); err != nil {
		return mapError(err)
	}
	return nil
}
