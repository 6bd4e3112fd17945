package users

import (
	"context"

	"github.com/dmitrijs2005/gophdrive/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByUserName(ctx context.Context, userName string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	// AdjustStorageUsed adds delta to the used-bytes counter, clamping at zero.
	AdjustStorageUsed(ctx context.Context, id string, delta int64) error
	// LockOwner serialises tree mutations of one owner until the surrounding
	// transaction ends.
	LockOwner(ctx context.Context, ownerID string) error
}
