// Package folders stores the folder nodes of each owner's tree.
package folders

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/server/models"
)

// Repository is the folder part of the entity store. Every method except
// ListExpired is scoped by owner.
type Repository interface {
	Create(ctx context.Context, f *models.Folder) (*models.Folder, error)
	// Get loads a folder and locks its row for the rest of the transaction.
	Get(ctx context.Context, ownerID, id string, scope models.Scope) (*models.Folder, error)
	// FindByName looks up an active folder by its unique key.
	FindByName(ctx context.Context, ownerID string, parentID *string, name string) (*models.Folder, error)
	ListChildren(ctx context.Context, ownerID string, parentID *string, scope models.Scope) ([]*models.Folder, error)
	UpdateName(ctx context.Context, ownerID, id, name string) error
	UpdateParent(ctx context.Context, ownerID, id string, parentID *string) error
	SoftDelete(ctx context.Context, ownerID, id string, at time.Time) error
	Restore(ctx context.Context, ownerID, id string) error
	HardDelete(ctx context.Context, ownerID, id string) error
	ListTrashed(ctx context.Context, ownerID string) ([]*models.Folder, error)
	// ListExpired returns trashed folders of all owners deleted before cutoff,
	// oldest first.
	ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]*models.Folder, error)
	Search(ctx context.Context, ownerID, query string, limit int) ([]*models.Folder, error)
}
