// Package files stores file metadata. File contents live in the blob store.
package files

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/server/models"
)

// Repository is the file part of the entity store. Every method except
// ListExpired is scoped by owner.
type Repository interface {
	Create(ctx context.Context, f *models.File) (*models.File, error)
	// Get loads a file and locks its row for the rest of the transaction.
	Get(ctx context.Context, ownerID, id string, scope models.Scope) (*models.File, error)
	// FindByName looks up an active file by its unique key.
	FindByName(ctx context.Context, ownerID string, folderID *string, name string) (*models.File, error)
	ListChildren(ctx context.Context, ownerID string, folderID *string, scope models.Scope) ([]*models.File, error)
	UpdateName(ctx context.Context, ownerID, id, name string) error
	UpdateFolder(ctx context.Context, ownerID, id string, folderID *string) error
	SoftDelete(ctx context.Context, ownerID, id string, at time.Time) error
	Restore(ctx context.Context, ownerID, id string) error
	HardDelete(ctx context.Context, ownerID, id string) error
	ListTrashed(ctx context.Context, ownerID string) ([]*models.File, error)
	ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]*models.File, error)
	Search(ctx context.Context, ownerID, query string, limit int) ([]*models.File, error)
}
