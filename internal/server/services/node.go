package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
)

// node is the part of a folder or file that tree operations act on.
type node struct {
	ref        models.ItemRef
	name       string
	parentID   *string
	deletedAt  *time.Time
	sizeBytes  int64
	storageKey string
}

func folderNode(f *models.Folder) *node {
	return &node{ref: f.Ref(), name: f.Name, parentID: f.ParentID, deletedAt: f.DeletedAt}
}

func fileNode(f *models.File) *node {
	return &node{ref: f.Ref(), name: f.Name, parentID: f.FolderID, deletedAt: f.DeletedAt,
		sizeBytes: f.SizeBytes, storageKey: f.StorageKey}
}

func (r *repos) getNode(ctx context.Context, ownerID string, ref models.ItemRef, scope models.Scope) (*node, error) {
	switch ref.Type {
	case models.ItemFolder:
		f, err := r.folders.Get(ctx, ownerID, ref.ID, scope)
		if err != nil {
			return nil, err
		}
		return folderNode(f), nil
	case models.ItemFile:
		f, err := r.files.Get(ctx, ownerID, ref.ID, scope)
		if err != nil {
			return nil, err
		}
		return fileNode(f), nil
	default:
		return nil, common.ErrInvalidItemType
	}
}

// nameTaken reports whether an active sibling of the same type other than
// exceptID already uses name under parentID.
func (r *repos) nameTaken(ctx context.Context, ownerID string, t models.ItemType, parentID *string, name, exceptID string) (bool, error) {
	var (
		id  string
		err error
	)
	if t == models.ItemFolder {
		var f *models.Folder
		if f, err = r.folders.FindByName(ctx, ownerID, parentID, name); err == nil {
			id = f.ID
		}
	} else {
		var f *models.File
		if f, err = r.files.FindByName(ctx, ownerID, parentID, name); err == nil {
			id = f.ID
		}
	}
	if errors.Is(err, common.ErrorNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return id != exceptID, nil
}

func (r *repos) rename(ctx context.Context, ownerID string, n *node, name string) error {
	if n.ref.Type == models.ItemFolder {
		return r.folders.UpdateName(ctx, ownerID, n.ref.ID, name)
	}
	return r.files.UpdateName(ctx, ownerID, n.ref.ID, name)
}

func (r *repos) setParent(ctx context.Context, ownerID string, n *node, parentID *string) error {
	if n.ref.Type == models.ItemFolder {
		return r.folders.UpdateParent(ctx, ownerID, n.ref.ID, parentID)
	}
	return r.files.UpdateFolder(ctx, ownerID, n.ref.ID, parentID)
}

func (r *repos) softDelete(ctx context.Context, ownerID string, n *node, at time.Time) error {
	if n.ref.Type == models.ItemFolder {
		return r.folders.SoftDelete(ctx, ownerID, n.ref.ID, at)
	}
	return r.files.SoftDelete(ctx, ownerID, n.ref.ID, at)
}

func (r *repos) restore(ctx context.Context, ownerID string, n *node) error {
	if n.ref.Type == models.ItemFolder {
		return r.folders.Restore(ctx, ownerID, n.ref.ID)
	}
	return r.files.Restore(ctx, ownerID, n.ref.ID)
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// activeFolder loads an active folder, replacing a not-found result with
// notFound.
func (r *repos) activeFolder(ctx context.Context, ownerID string, id *string, notFound error) error {
	if id == nil {
		return nil
	}
	_, err := r.folders.Get(ctx, ownerID, *id, models.ActiveOnly)
	if errors.Is(err, common.ErrorNotFound) {
		return notFound
	}
	return err
}

// isWithin reports whether folder start is target or lies below it. The walk
// follows parent links of active and trashed folders alike; it ends at the
// root or at a missing record, and a revisited id counts as a cycle.
func (r *repos) isWithin(ctx context.Context, ownerID, start, target string) (bool, error) {
	seen := map[string]bool{}
	cur := &start
	for cur != nil {
		if *cur == target || seen[*cur] {
			return true, nil
		}
		seen[*cur] = true

		f, err := r.folders.Get(ctx, ownerID, *cur, models.IncludeDeleted)
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		cur = f.ParentID
	}
	return false, nil
}
