package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/dbx"
	"github.com/dmitrijs2005/gophdrive/internal/logging"
	"github.com/dmitrijs2005/gophdrive/internal/server/auth"
	"github.com/dmitrijs2005/gophdrive/internal/server/config"
	"github.com/dmitrijs2005/gophdrive/internal/server/metrics"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/repomanager"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password Register accepts.
const MinPasswordLength = 8

// UserService registers accounts and exchanges credentials for access tokens.
type UserService struct {
	base
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
	defaultQuota                int64
	cost                        int
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(tx dbx.Transactor, rm repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *UserService {
	return &UserService{
		base:                        newBase(tx, rm, logger, "users"),
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
		defaultQuota:                cfg.DefaultUserQuotaBytes,
		cost:                        bcrypt.DefaultCost,
	}
}

// Register creates an account. Regular users get the default quota, admins
// are unlimited. A taken username or email yields common.ErrAlreadyExists.
func (s *UserService) Register(ctx context.Context, username, email, password string, role models.Role) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || len(username) > MaxNameLength {
		return nil, common.ErrInvalidArgument
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return nil, common.ErrInvalidArgument
	}
	if len(password) < MinPasswordLength {
		return nil, common.ErrInvalidArgument
	}

	if role == "" {
		role = models.RoleUser
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		s.logger.Error(ctx, "password hashing failed", "error", err)
		return nil, common.ErrorInternal
	}

	user := &models.User{
		UserName:     username,
		Email:        addr.Address,
		PasswordHash: hash,
		Role:         role,
	}
	if role != models.RoleAdmin {
		quota := s.defaultQuota
		user.StorageQuotaBytes = &quota
	}

	u, err := s.read().users.Create(ctx, user)
	if errors.Is(err, common.ErrConstraintViolation) {
		return nil, common.ErrAlreadyExists
	}
	if err != nil {
		s.logger.Error(ctx, "error creating user", "username", username, "error", err)
		return nil, common.ErrorInternal
	}
	return u, nil
}

// Login verifies the password and returns a signed access token.
func (s *UserService) Login(ctx context.Context, userName, password string) (string, error) {
	user, err := s.read().users.GetByUserName(ctx, userName)
	if errors.Is(err, common.ErrorNotFound) {
		metrics.RecordAuthAttempt(false)
		return "", common.ErrInvalidCredentials
	}
	if err != nil {
		s.logger.Error(ctx, "error loading user", "username", userName, "error", err)
		return "", common.ErrorInternal
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		metrics.RecordAuthAttempt(false)
		return "", common.ErrInvalidCredentials
	}
	metrics.RecordAuthAttempt(true)

	token, err := auth.GenerateToken(user.ID, user.Role, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		s.logger.Error(ctx, "error signing token", "user_id", user.ID, "error", err)
		return "", common.ErrorInternal
	}
	return token, nil
}

// Me returns the account of the authenticated caller.
func (s *UserService) Me(ctx context.Context, userID string) (*models.User, error) {
	u, err := s.read().users.GetByID(ctx, userID)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrorUnauthorized
	}
	if err != nil {
		s.logger.Error(ctx, "error loading user", "user_id", userID, "error", err)
		return nil, common.ErrorInternal
	}
	return u, nil
}
