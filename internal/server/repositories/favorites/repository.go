// Package favorites stores per-owner favorite marks on files and folders.
package favorites

import (
	"context"

	"github.com/dmitrijs2005/gophdrive/internal/server/models"
)

type Repository interface {
	Add(ctx context.Context, f *models.Favorite) (*models.Favorite, error)
	Remove(ctx context.Context, ownerID string, ref models.ItemRef) error
	// List returns favorites whose target row is not soft-deleted, newest first.
	List(ctx context.Context, ownerID string) ([]*models.Favorite, error)
}
