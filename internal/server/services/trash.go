package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/dbx"
	"github.com/dmitrijs2005/gophdrive/internal/logging"
	"github.com/dmitrijs2005/gophdrive/internal/server/blobstore"
	"github.com/dmitrijs2005/gophdrive/internal/server/metrics"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/repomanager"
	"github.com/sethvargo/go-retry"
)

// Purge triggers, used as metric labels.
const (
	TriggerManual = "manual"
	TriggerReaper = "reaper"
)

// newBlobBackoff controls how often a failing blob delete is retried during
// a purge before the purge is aborted.
var newBlobBackoff = func() retry.Backoff {
	return retry.WithMaxRetries(3, retry.NewExponential(100*time.Millisecond))
}

// TrashService moves items to and from the trash and purges them.
//
// Trash is shallow: only the trashed item carries deleted_at. Its subtree
// stays attached and is restored or purged together with it.
type TrashService struct {
	base
	blobs blobstore.Store
}

func NewTrashService(tx dbx.Transactor, rm repomanager.RepositoryManager, blobs blobstore.Store, logger logging.Logger) *TrashService {
	return &TrashService{base: newBase(tx, rm, logger, "trash"), blobs: blobs}
}

// PurgeResult describes what one purge removed. Found is false when the item
// did not exist, which callers treat as a skip.
type PurgeResult struct {
	Found         bool
	Files         int
	Folders       int
	BytesReleased int64
}

func (p *PurgeResult) add(o PurgeResult) {
	p.Files += o.Files
	p.Folders += o.Folders
	p.BytesReleased += o.BytesReleased
}

// EmptyTrashResult is returned by EmptyTrash. AlreadyEmpty is set when there
// was nothing to purge.
type EmptyTrashResult struct {
	AlreadyEmpty bool
	PurgeResult
}

// ExpiredItem is a purge candidate selected by the reaper.
type ExpiredItem struct {
	OwnerID   string
	Ref       models.ItemRef
	DeletedAt time.Time
}

// MoveToTrash soft-deletes an active item.
func (s *TrashService) MoveToTrash(ctx context.Context, ownerID string, ref models.ItemRef) error {
	if err := ref.Validate(); err != nil {
		return s.finish(ctx, "trash", err)
	}
	err := s.mutate(ctx, ownerID, func(ctx context.Context, r *repos) error {
		n, err := r.getNode(ctx, ownerID, ref, models.ActiveOnly)
		if err != nil {
			return err
		}
		return r.softDelete(ctx, ownerID, n, s.now())
	})
	return s.finish(ctx, "trash", err, "owner_id", ownerID, "item", ref.String())
}

// Restore takes an item out of the trash at its original location. The
// location must still be an active folder (or the root) and must not hold an
// active sibling with the same name.
func (s *TrashService) Restore(ctx context.Context, ownerID string, ref models.ItemRef) error {
	if err := ref.Validate(); err != nil {
		return s.finish(ctx, "restore", err)
	}
	err := s.mutate(ctx, ownerID, func(ctx context.Context, r *repos) error {
		n, err := r.getNode(ctx, ownerID, ref, models.IncludeDeleted)
		if err != nil {
			return err
		}
		if n.deletedAt == nil {
			return common.ErrNotInTrash
		}
		if err := r.activeFolder(ctx, ownerID, n.parentID, common.ErrParentGone); err != nil {
			return err
		}
		taken, err := r.nameTaken(ctx, ownerID, ref.Type, n.parentID, n.name, ref.ID)
		if err != nil {
			return err
		}
		if taken {
			return common.ErrRestoreConflict
		}
		return r.restore(ctx, ownerID, n)
	})
	return s.finish(ctx, "restore", err, "owner_id", ownerID, "item", ref.String())
}

// Purge permanently removes an item, trashed or not, with its whole subtree
// and content. A missing item yields a result with Found unset.
func (s *TrashService) Purge(ctx context.Context, ownerID string, ref models.ItemRef) (PurgeResult, error) {
	if err := ref.Validate(); err != nil {
		return PurgeResult{}, s.finish(ctx, "purge", err)
	}

	p := s.newPurger()
	var res PurgeResult
	err := s.mutate(ctx, ownerID, func(ctx context.Context, r *repos) error {
		var err error
		res, err = p.purge(ctx, r, ownerID, ref, nil)
		return err
	})
	if err != nil {
		p.rolledBack(ctx)
		return PurgeResult{}, s.finish(ctx, "purge", err, "owner_id", ownerID, "item", ref.String())
	}
	metrics.RecordPurge(TriggerManual, res.Files, res.Folders, res.BytesReleased)
	return res, s.finish(ctx, "purge", nil)
}

// EmptyTrash purges every trashed item of the owner as one unit of work.
// Any failure rolls back all of it.
func (s *TrashService) EmptyTrash(ctx context.Context, ownerID string) (EmptyTrashResult, error) {
	p := s.newPurger()
	var out EmptyTrashResult
	err := s.mutate(ctx, ownerID, func(ctx context.Context, r *repos) error {
		out = EmptyTrashResult{}
		folders, err := r.folders.ListTrashed(ctx, ownerID)
		if err != nil {
			return err
		}
		files, err := r.files.ListTrashed(ctx, ownerID)
		if err != nil {
			return err
		}
		if len(folders) == 0 && len(files) == 0 {
			out.AlreadyEmpty = true
			return nil
		}

		refs := make([]models.ItemRef, 0, len(folders)+len(files))
		for _, f := range folders {
			refs = append(refs, f.Ref())
		}
		for _, f := range files {
			refs = append(refs, f.Ref())
		}
		// Nested trashed items may already be gone with their ancestor.
		for _, ref := range refs {
			res, err := p.purge(ctx, r, ownerID, ref, nil)
			if err != nil {
				return err
			}
			out.add(res)
		}
		out.Found = true
		return nil
	})
	if err != nil {
		p.rolledBack(ctx)
		return EmptyTrashResult{}, s.finish(ctx, "empty_trash", err, "owner_id", ownerID)
	}
	metrics.RecordPurge(TriggerManual, out.Files, out.Folders, out.BytesReleased)
	return out, s.finish(ctx, "empty_trash", nil)
}

// ListTrash returns the owner's trashed items, most recently trashed first.
func (s *TrashService) ListTrash(ctx context.Context, ownerID string) ([]models.TrashItem, error) {
	r := s.read()
	folders, err := r.folders.ListTrashed(ctx, ownerID)
	if err != nil {
		return nil, s.finish(ctx, "list_trash", err, "owner_id", ownerID)
	}
	files, err := r.files.ListTrashed(ctx, ownerID)
	if err != nil {
		return nil, s.finish(ctx, "list_trash", err, "owner_id", ownerID)
	}

	items := make([]models.TrashItem, 0, len(folders)+len(files))
	for _, f := range folders {
		items = append(items, models.TrashItem{Type: models.ItemFolder, ID: f.ID, Name: f.Name,
			ParentID: f.ParentID, DeletedAt: *f.DeletedAt})
	}
	for _, f := range files {
		items = append(items, models.TrashItem{Type: models.ItemFile, ID: f.ID, Name: f.Name,
			ParentID: f.FolderID, SizeBytes: f.SizeBytes, DeletedAt: *f.DeletedAt})
	}
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].DeletedAt.Equal(items[j].DeletedAt) {
			return items[i].DeletedAt.After(items[j].DeletedAt)
		}
		return items[i].Name < items[j].Name
	})
	return items, s.finish(ctx, "list_trash", nil)
}

// ListExpired selects up to limit items of any owner trashed before cutoff,
// oldest first. Folders sort ahead of files trashed at the same instant.
// limit must be positive.
func (s *TrashService) ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]ExpiredItem, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("list expired: limit %d: %w", limit, common.ErrInvalidArgument)
	}
	r := s.read()
	folders, err := r.folders.ListExpired(ctx, cutoff, limit)
	if err != nil {
		return nil, err
	}
	files, err := r.files.ListExpired(ctx, cutoff, limit)
	if err != nil {
		return nil, err
	}

	items := make([]ExpiredItem, 0, len(folders)+len(files))
	for _, f := range folders {
		items = append(items, ExpiredItem{OwnerID: f.OwnerID, Ref: f.Ref(), DeletedAt: *f.DeletedAt})
	}
	for _, f := range files {
		items = append(items, ExpiredItem{OwnerID: f.OwnerID, Ref: f.Ref(), DeletedAt: *f.DeletedAt})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].DeletedAt.Before(items[j].DeletedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// PurgeExpired purges one reaper candidate in its own unit of work. The item
// is skipped unless it is still trashed with deleted_at before cutoff, so a
// concurrent restore wins.
func (s *TrashService) PurgeExpired(ctx context.Context, item ExpiredItem, cutoff time.Time) (PurgeResult, error) {
	p := s.newPurger()
	var res PurgeResult
	err := s.mutate(ctx, item.OwnerID, func(ctx context.Context, r *repos) error {
		var err error
		res, err = p.purge(ctx, r, item.OwnerID, item.Ref, func(n *node) bool {
			return n.deletedAt != nil && n.deletedAt.Before(cutoff)
		})
		return err
	})
	if err != nil {
		p.rolledBack(ctx)
		return PurgeResult{}, s.finish(ctx, "reap", err, "owner_id", item.OwnerID, "item", item.Ref.String())
	}
	metrics.RecordPurge(TriggerReaper, res.Files, res.Folders, res.BytesReleased)
	return res, s.finish(ctx, "reap", nil)
}

// purger carries the blob keys released during one unit of work so they can
// be reported if the unit rolls back.
type purger struct {
	s        *TrashService
	released []string
}

func (s *TrashService) newPurger() *purger {
	return &purger{s: s}
}

func (p *purger) rolledBack(ctx context.Context) {
	if len(p.released) > 0 {
		p.s.logger.Error(ctx, "purge rolled back after content was released",
			"storage_keys", p.released)
	}
}

// purge removes ref and everything below it. Content of files is released
// before their rows are deleted. Folders are walked depth first with an
// explicit stack, files before subfolders; folder rows are deleted children
// first. eligible, when set, may veto the purge of the loaded item.
func (p *purger) purge(ctx context.Context, r *repos, ownerID string, ref models.ItemRef, eligible func(*node) bool) (PurgeResult, error) {
	n, err := r.getNode(ctx, ownerID, ref, models.IncludeDeleted)
	if errors.Is(err, common.ErrorNotFound) {
		return PurgeResult{}, nil
	}
	if err != nil {
		return PurgeResult{}, err
	}
	if eligible != nil && !eligible(n) {
		return PurgeResult{}, nil
	}

	res := PurgeResult{Found: true}
	if ref.Type == models.ItemFile {
		if err := p.purgeFile(ctx, r, ownerID, n.ref.ID, n.storageKey); err != nil {
			return PurgeResult{}, err
		}
		res.Files, res.BytesReleased = 1, n.sizeBytes
	} else {
		var visited []string
		stack := []string{n.ref.ID}
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			visited = append(visited, id)

			files, err := r.files.ListChildren(ctx, ownerID, &id, models.IncludeDeleted)
			if err != nil {
				return PurgeResult{}, err
			}
			for _, f := range files {
				if err := p.purgeFile(ctx, r, ownerID, f.ID, f.StorageKey); err != nil {
					return PurgeResult{}, err
				}
				res.Files++
				res.BytesReleased += f.SizeBytes
			}

			subs, err := r.folders.ListChildren(ctx, ownerID, &id, models.IncludeDeleted)
			if err != nil {
				return PurgeResult{}, err
			}
			for _, sub := range subs {
				stack = append(stack, sub.ID)
			}
		}
		for i := len(visited) - 1; i >= 0; i-- {
			if err := r.folders.HardDelete(ctx, ownerID, visited[i]); err != nil {
				return PurgeResult{}, err
			}
			res.Folders++
		}
	}

	if err := applyUsage(ctx, r, ownerID, -res.BytesReleased); err != nil {
		return PurgeResult{}, err
	}
	return res, nil
}

func (p *purger) purgeFile(ctx context.Context, r *repos, ownerID, id, key string) error {
	if err := p.releaseBlob(ctx, key); err != nil {
		return err
	}
	p.released = append(p.released, key)
	return r.files.HardDelete(ctx, ownerID, id)
}

// releaseBlob deletes one blob, retrying transient failures. A blob that is
// already gone is not an error.
func (p *purger) releaseBlob(ctx context.Context, key string) error {
	err := retry.Do(ctx, newBlobBackoff(), func(ctx context.Context) error {
		err := p.s.blobs.Delete(ctx, key)
		if err == nil || errors.Is(err, blobstore.ErrNotFound) {
			return err
		}
		return retry.RetryableError(err)
	})
	if errors.Is(err, blobstore.ErrNotFound) {
		p.s.logger.Warn(ctx, "blob already missing", "storage_key", key)
		return nil
	}
	return err
}
