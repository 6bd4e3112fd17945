package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
)

type userRepo struct{ base }

func copyUser(u models.User) *models.User {
	if u.StorageQuotaBytes != nil {
		q := *u.StorageQuotaBytes
		u.StorageQuotaBytes = &q
	}
	u.PasswordHash = append([]byte(nil), u.PasswordHash...)
	return &u
}

func (r *userRepo) Create(_ context.Context, user *models.User) (*models.User, error) {
	err := r.run(func(st *state, now time.Time) error {
		for _, u := range st.users {
			if u.UserName == user.UserName {
				return fmt.Errorf("%w: users_username_key", common.ErrConstraintViolation)
			}
			if u.Email == user.Email {
				return fmt.Errorf("%w: users_email_key", common.ErrConstraintViolation)
			}
		}
		user.ID = newID()
		user.CreatedAt = now
		st.users[user.ID] = *copyUser(*user)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepo) GetByUserName(_ context.Context, userName string) (*models.User, error) {
	var out *models.User
	err := r.run(func(st *state, _ time.Time) error {
		for _, u := range st.users {
			if u.UserName == userName {
				out = copyUser(u)
				return nil
			}
		}
		return common.ErrorNotFound
	})
	return out, err
}

func (r *userRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	var out *models.User
	err := r.run(func(st *state, _ time.Time) error {
		u, ok := st.users[id]
		if !ok {
			return common.ErrorNotFound
		}
		out = copyUser(u)
		return nil
	})
	return out, err
}

func (r *userRepo) AdjustStorageUsed(_ context.Context, id string, delta int64) error {
	return r.run(func(st *state, _ time.Time) error {
		u, ok := st.users[id]
		if !ok {
			return common.ErrorNotFound
		}
		u.StorageUsedBytes = max(u.StorageUsedBytes+delta, 0)
		st.users[id] = u
		return nil
	})
}

// LockOwner is a no-op: transactions already hold the manager lock.
func (r *userRepo) LockOwner(context.Context, string) error { return nil }
