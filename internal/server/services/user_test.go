package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/dbx"
	"github.com/dmitrijs2005/gophdrive/internal/server/auth"
	"github.com/dmitrijs2005/gophdrive/internal/server/config"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/memory"
	usersrepo "github.com/dmitrijs2005/gophdrive/internal/server/repositories/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newUserService(t *testing.T, rm *memory.Manager) *UserService {
	t.Helper()
	cfg := &config.Config{
		SecretKey:                   "k",
		AccessTokenValidityDuration: time.Hour,
		DefaultUserQuotaBytes:       1 << 20,
	}
	s := NewUserService(rm, rm, cfg, nil)
	s.cost = bcrypt.MinCost
	return s
}

func TestUserService_RegisterAppliesQuotaByRole(t *testing.T) {
	m := memory.New()
	s := newUserService(t, m)
	ctx := context.Background()

	u, err := s.Register(ctx, "alice", "Alice <alice@example.com>", "password1", "")
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, u.Role)
	assert.Equal(t, "alice@example.com", u.Email)
	require.NotNil(t, u.StorageQuotaBytes)
	assert.Equal(t, int64(1<<20), *u.StorageQuotaBytes)
	assert.NotEqual(t, []byte("password1"), u.PasswordHash)

	admin, err := s.Register(ctx, "root", "root@example.com", "password2", models.RoleAdmin)
	require.NoError(t, err)
	assert.Nil(t, admin.StorageQuotaBytes)
}

func TestUserService_RegisterValidation(t *testing.T) {
	m := memory.New()
	s := newUserService(t, m)
	ctx := context.Background()
	_, err := s.Register(ctx, "alice", "alice@example.com", "password1", models.RoleUser)
	require.NoError(t, err)

	tests := []struct {
		name     string
		username string
		email    string
		password string
		wantErr  error
	}{
		{"duplicate username", "alice", "other@example.com", "password1", common.ErrAlreadyExists},
		{"duplicate email", "bob", "alice@example.com", "password1", common.ErrAlreadyExists},
		{"blank username", "  ", "bob@example.com", "password1", common.ErrInvalidArgument},
		{"bad email", "bob", "not-an-email", "password1", common.ErrInvalidArgument},
		{"short password", "bob", "bob@example.com", "short", common.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Register(ctx, tt.username, tt.email, tt.password, models.RoleUser)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestUserService_LoginAndMe(t *testing.T) {
	m := memory.New()
	s := newUserService(t, m)
	ctx := context.Background()
	u, err := s.Register(ctx, "alice", "alice@example.com", "password1", models.RoleUser)
	require.NoError(t, err)

	token, err := s.Login(ctx, "alice", "password1")
	require.NoError(t, err)
	id, err := auth.ParseToken(token, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, u.ID, id.UserID)
	assert.Equal(t, models.RoleUser, id.Role)

	_, err = s.Login(ctx, "alice", "wrong-password")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	_, err = s.Login(ctx, "nobody", "password1")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)

	me, err := s.Me(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", me.UserName)
	_, err = s.Me(ctx, "gone")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

type brokenUsers struct {
	usersrepo.Repository
}

func (brokenUsers) GetByUserName(context.Context, string) (*models.User, error) {
	return nil, errors.New("connection reset")
}

type brokenUsersManager struct {
	*memory.Manager
}

func (brokenUsersManager) Users(dbx.DBTX) usersrepo.Repository { return brokenUsers{} }

func TestUserService_LoginHidesStorageErrors(t *testing.T) {
	m := memory.New()
	s := NewUserService(m, brokenUsersManager{m}, &config.Config{SecretKey: "k"}, nil)

	_, err := s.Login(context.Background(), "alice", "password1")
	assert.ErrorIs(t, err, common.ErrorInternal)
}
