package services

import (
	"context"
	"errors"
	"io"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/dbx"
	"github.com/dmitrijs2005/gophdrive/internal/logging"
	"github.com/dmitrijs2005/gophdrive/internal/server/blobstore"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/repomanager"
)

const (
	DefaultSearchLimit = 50
	MaxSearchLimit     = 200
)

// TreeService creates, renames, moves, lists and reads folders and files.
type TreeService struct {
	base
	blobs blobstore.Store
}

func NewTreeService(tx dbx.Transactor, rm repomanager.RepositoryManager, blobs blobstore.Store, logger logging.Logger) *TreeService {
	return &TreeService{base: newBase(tx, rm, logger, "tree"), blobs: blobs}
}

// Listing holds the active folders and files of one location.
type Listing struct {
	Folders []*models.Folder
	Files   []*models.File
}

// CreateFileInput describes an upload. Size may be -1 when unknown.
type CreateFileInput struct {
	Name     string
	FolderID *string
	MimeType string
	Size     int64
	Body     io.Reader
}

// CreateFolder creates an active folder under parentID, or at the root when
// parentID is nil.
func (s *TreeService) CreateFolder(ctx context.Context, ownerID, name string, parentID *string) (*models.Folder, error) {
	name, err := ValidateName(name)
	if err != nil {
		return nil, s.finish(ctx, "create_folder", err)
	}

	var created *models.Folder
	err = s.mutate(ctx, ownerID, func(ctx context.Context, r *repos) error {
		if err := r.checkCreate(ctx, ownerID, models.ItemFolder, parentID, name); err != nil {
			return err
		}
		f, err := r.folders.Create(ctx, &models.Folder{OwnerID: ownerID, Name: name, ParentID: parentID})
		created = f
		return err
	})
	if err != nil {
		return nil, s.finish(ctx, "create_folder", err, "owner_id", ownerID, "name", name)
	}
	return created, s.finish(ctx, "create_folder", nil)
}

func (r *repos) checkCreate(ctx context.Context, ownerID string, t models.ItemType, parentID *string, name string) error {
	if err := r.activeFolder(ctx, ownerID, parentID, common.ErrParentNotFound); err != nil {
		return err
	}
	taken, err := r.nameTaken(ctx, ownerID, t, parentID, name, "")
	if err != nil {
		return err
	}
	if taken {
		return common.ErrNameConflict
	}
	return nil
}

// CreateFile stores the content first and then records the file. If the
// record cannot be written the content is deleted again.
func (s *TreeService) CreateFile(ctx context.Context, ownerID string, in CreateFileInput) (*models.File, error) {
	name, err := ValidateName(in.Name)
	if err != nil {
		return nil, s.finish(ctx, "create_file", err)
	}
	if in.Body == nil {
		return nil, s.finish(ctx, "create_file", common.ErrInvalidArgument)
	}
	// Fail fast before the upload; the check is repeated under the lock.
	if err := s.read().checkCreate(ctx, ownerID, models.ItemFile, in.FolderID, name); err != nil {
		return nil, s.finish(ctx, "create_file", err, "owner_id", ownerID, "name", name)
	}

	key := blobstore.NewStorageKey(ownerID, s.now())
	body := &countingReader{r: in.Body}
	if err := s.blobs.Put(ctx, key, body, in.Size); err != nil {
		return nil, s.finish(ctx, "create_file", err, "owner_id", ownerID, "storage_key", key)
	}

	file := &models.File{
		OwnerID:    ownerID,
		Name:       name,
		FolderID:   in.FolderID,
		StorageKey: key,
		MimeType:   in.MimeType,
		SizeBytes:  body.n,
	}
	if file.MimeType == "" {
		file.MimeType = "application/octet-stream"
	}

	var created *models.File
	err = s.mutate(ctx, ownerID, func(ctx context.Context, r *repos) error {
		if err := r.checkCreate(ctx, ownerID, models.ItemFile, in.FolderID, name); err != nil {
			return err
		}
		f, err := r.files.Create(ctx, file)
		if err != nil {
			return err
		}
		created = f
		return applyUsage(ctx, r, ownerID, f.SizeBytes)
	})
	if err != nil {
		if derr := s.blobs.Delete(context.WithoutCancel(ctx), key); derr != nil {
			s.logger.Error(ctx, "orphaned blob after failed upload", "storage_key", key, "error", derr)
		}
		return nil, s.finish(ctx, "create_file", err, "owner_id", ownerID, "name", name)
	}
	return created, s.finish(ctx, "create_file", nil)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Rename changes the name of an active item. Renaming to the current name
// succeeds without a write.
func (s *TreeService) Rename(ctx context.Context, ownerID string, ref models.ItemRef, name string) error {
	if err := ref.Validate(); err != nil {
		return s.finish(ctx, "rename", err)
	}
	name, err := ValidateName(name)
	if err != nil {
		return s.finish(ctx, "rename", err)
	}

	err = s.mutate(ctx, ownerID, func(ctx context.Context, r *repos) error {
		n, err := r.getNode(ctx, ownerID, ref, models.ActiveOnly)
		if err != nil {
			return err
		}
		if n.name == name {
			return nil
		}
		taken, err := r.nameTaken(ctx, ownerID, ref.Type, n.parentID, name, ref.ID)
		if err != nil {
			return err
		}
		if taken {
			return common.ErrNameConflict
		}
		return r.rename(ctx, ownerID, n, name)
	})
	return s.finish(ctx, "rename", err, "owner_id", ownerID, "item", ref.String())
}

// Move reparents an active item under dest, or to the root when dest is nil.
func (s *TreeService) Move(ctx context.Context, ownerID string, ref models.ItemRef, dest *string) error {
	if err := ref.Validate(); err != nil {
		return s.finish(ctx, "move", err)
	}

	err := s.mutate(ctx, ownerID, func(ctx context.Context, r *repos) error {
		n, err := r.getNode(ctx, ownerID, ref, models.ActiveOnly)
		if err != nil {
			return err
		}
		if err := r.activeFolder(ctx, ownerID, dest, common.ErrDestinationNotFound); err != nil {
			return err
		}
		return r.moveNode(ctx, ownerID, n, dest)
	})
	return s.finish(ctx, "move", err, "owner_id", ownerID, "item", ref.String())
}

// moveNode applies a move to an already resolved destination. Checks run in
// this order: self move, cycle, no-op, name conflict.
func (r *repos) moveNode(ctx context.Context, ownerID string, n *node, dest *string) error {
	if n.ref.Type == models.ItemFolder && dest != nil {
		if *dest == n.ref.ID {
			return common.ErrSelfMove
		}
		within, err := r.isWithin(ctx, ownerID, *dest, n.ref.ID)
		if err != nil {
			return err
		}
		if within {
			return common.ErrCyclicMove
		}
	}
	if sameParent(n.parentID, dest) {
		return nil
	}
	taken, err := r.nameTaken(ctx, ownerID, n.ref.Type, dest, n.name, n.ref.ID)
	if err != nil {
		return err
	}
	if taken {
		return common.ErrNameConflict
	}
	return r.setParent(ctx, ownerID, n, dest)
}

// ListChildren returns the active folders and files directly under parentID.
// A trashed parent can still be listed, which is how the contents of a
// trashed folder are browsed.
func (s *TreeService) ListChildren(ctx context.Context, ownerID string, parentID *string) (*Listing, error) {
	r := s.read()
	if parentID != nil {
		if _, err := r.folders.Get(ctx, ownerID, *parentID, models.IncludeDeleted); err != nil {
			return nil, s.finish(ctx, "list", err, "owner_id", ownerID, "parent_id", *parentID)
		}
	}

	folders, err := r.folders.ListChildren(ctx, ownerID, parentID, models.ActiveOnly)
	if err != nil {
		return nil, s.finish(ctx, "list", err, "owner_id", ownerID)
	}
	files, err := r.files.ListChildren(ctx, ownerID, parentID, models.ActiveOnly)
	if err != nil {
		return nil, s.finish(ctx, "list", err, "owner_id", ownerID)
	}
	return &Listing{Folders: folders, Files: files}, s.finish(ctx, "list", nil)
}

// Search matches query case-insensitively against the names of active items
// that are not hidden inside a trashed folder.
func (s *TreeService) Search(ctx context.Context, ownerID, query string, limit int) (*Listing, error) {
	if query == "" {
		return nil, s.finish(ctx, "search", common.ErrInvalidArgument)
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	limit = min(limit, MaxSearchLimit)

	out, err := s.search(ctx, ownerID, query, limit)
	if err != nil {
		return nil, s.finish(ctx, "search", err, "owner_id", ownerID)
	}
	return out, s.finish(ctx, "search", nil)
}

func (s *TreeService) search(ctx context.Context, ownerID, query string, limit int) (*Listing, error) {
	r := s.read()
	vis := newVisibility(r, ownerID)
	out := &Listing{}

	folders, err := r.folders.Search(ctx, ownerID, query, limit)
	if err != nil {
		return nil, err
	}
	for _, f := range folders {
		ok, err := vis.under(ctx, f.ParentID)
		if err != nil {
			return nil, err
		}
		if ok {
			out.Folders = append(out.Folders, f)
		}
	}

	files, err := r.files.Search(ctx, ownerID, query, limit)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		ok, err := vis.under(ctx, f.FolderID)
		if err != nil {
			return nil, err
		}
		if ok {
			out.Files = append(out.Files, f)
		}
	}
	return out, nil
}

// OpenFile returns the metadata and content of an active file. The caller
// closes the reader.
func (s *TreeService) OpenFile(ctx context.Context, ownerID, fileID string) (*models.File, io.ReadCloser, error) {
	f, err := s.read().files.Get(ctx, ownerID, fileID, models.ActiveOnly)
	if err != nil {
		return nil, nil, s.finish(ctx, "open", err, "owner_id", ownerID, "file_id", fileID)
	}
	rc, _, err := s.blobs.Get(ctx, f.StorageKey)
	if errors.Is(err, blobstore.ErrNotFound) {
		err = errors.New("content missing for active file")
	}
	if err != nil {
		return nil, nil, s.finish(ctx, "open", err, "owner_id", ownerID, "file_id", fileID, "storage_key", f.StorageKey)
	}
	return f, rc, s.finish(ctx, "open", nil)
}
