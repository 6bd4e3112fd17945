package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
)

type fileRepo struct{ base }

func copyFile(f models.File) *models.File {
	f.FolderID = cloneString(f.FolderID)
	f.DeletedAt = cloneTime(f.DeletedAt)
	return &f
}

func (s *state) fileNameTaken(ownerID string, folderID *string, name, exceptID string) bool {
	for _, f := range s.files {
		if f.ID != exceptID && f.OwnerID == ownerID && f.DeletedAt == nil && f.Name == name && sameParent(f.FolderID, folderID) {
			return true
		}
	}
	return false
}

func sortFiles(list []*models.File, less func(a, b *models.File) bool) {
	sort.Slice(list, func(i, j int) bool {
		if less(list[i], list[j]) {
			return true
		}
		if less(list[j], list[i]) {
			return false
		}
		return list[i].ID < list[j].ID
	})
}

func fileByName(a, b *models.File) bool { return a.Name < b.Name }

func (r *fileRepo) Create(_ context.Context, f *models.File) (*models.File, error) {
	err := r.run(func(st *state, now time.Time) error {
		if !st.folderRefOK(f.OwnerID, f.FolderID) {
			return fmt.Errorf("%w: folder reference", common.ErrConstraintViolation)
		}
		if st.fileNameTaken(f.OwnerID, f.FolderID, f.Name, "") {
			return fmt.Errorf("%w: files_active_name_uq", common.ErrConstraintViolation)
		}
		for _, other := range st.files {
			if other.StorageKey == f.StorageKey {
				return fmt.Errorf("%w: files_storage_key_key", common.ErrConstraintViolation)
			}
		}
		f.ID = newID()
		f.CreatedAt, f.UpdatedAt, f.DeletedAt = now, now, nil
		st.files[f.ID] = *copyFile(*f)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (r *fileRepo) Get(_ context.Context, ownerID, id string, scope models.Scope) (*models.File, error) {
	var out *models.File
	err := r.run(func(st *state, _ time.Time) error {
		f, ok := st.files[id]
		if !ok || f.OwnerID != ownerID || (scope == models.ActiveOnly && f.DeletedAt != nil) {
			return common.ErrorNotFound
		}
		out = copyFile(f)
		return nil
	})
	return out, err
}

func (r *fileRepo) FindByName(_ context.Context, ownerID string, folderID *string, name string) (*models.File, error) {
	var out *models.File
	err := r.run(func(st *state, _ time.Time) error {
		for _, f := range st.files {
			if f.OwnerID == ownerID && f.DeletedAt == nil && f.Name == name && sameParent(f.FolderID, folderID) {
				out = copyFile(f)
				return nil
			}
		}
		return common.ErrorNotFound
	})
	return out, err
}

func (r *fileRepo) collect(match func(f models.File) bool) []*models.File {
	var out []*models.File
	_ = r.run(func(st *state, _ time.Time) error {
		for _, f := range st.files {
			if match(f) {
				out = append(out, copyFile(f))
			}
		}
		return nil
	})
	return out
}

func (r *fileRepo) ListChildren(_ context.Context, ownerID string, folderID *string, scope models.Scope) ([]*models.File, error) {
	out := r.collect(func(f models.File) bool {
		return f.OwnerID == ownerID && sameParent(f.FolderID, folderID) && (scope == models.IncludeDeleted || f.DeletedAt == nil)
	})
	sortFiles(out, fileByName)
	return out, nil
}

func (r *fileRepo) update(ownerID, id string, trashed bool, fn func(st *state, f *models.File, now time.Time) error) error {
	return r.run(func(st *state, now time.Time) error {
		f, ok := st.files[id]
		if !ok || f.OwnerID != ownerID || (f.DeletedAt != nil) != trashed {
			return common.ErrorNotFound
		}
		if err := fn(st, &f, now); err != nil {
			return err
		}
		st.files[id] = f
		return nil
	})
}

func (r *fileRepo) UpdateName(_ context.Context, ownerID, id, name string) error {
	return r.update(ownerID, id, false, func(st *state, f *models.File, now time.Time) error {
		if st.fileNameTaken(ownerID, f.FolderID, name, id) {
			return fmt.Errorf("%w: files_active_name_uq", common.ErrConstraintViolation)
		}
		f.Name, f.UpdatedAt = name, now
		return nil
	})
}

func (r *fileRepo) UpdateFolder(_ context.Context, ownerID, id string, folderID *string) error {
	return r.update(ownerID, id, false, func(st *state, f *models.File, now time.Time) error {
		if !st.folderRefOK(ownerID, folderID) {
			return fmt.Errorf("%w: folder reference", common.ErrConstraintViolation)
		}
		if st.fileNameTaken(ownerID, folderID, f.Name, id) {
			return fmt.Errorf("%w: files_active_name_uq", common.ErrConstraintViolation)
		}
		f.FolderID, f.UpdatedAt = cloneString(folderID), now
		return nil
	})
}

func (r *fileRepo) SoftDelete(_ context.Context, ownerID, id string, at time.Time) error {
	return r.update(ownerID, id, false, func(_ *state, f *models.File, _ time.Time) error {
		f.DeletedAt = &at
		return nil
	})
}

func (r *fileRepo) Restore(_ context.Context, ownerID, id string) error {
	return r.update(ownerID, id, true, func(st *state, f *models.File, now time.Time) error {
		if st.fileNameTaken(ownerID, f.FolderID, f.Name, id) {
			return fmt.Errorf("%w: files_active_name_uq", common.ErrConstraintViolation)
		}
		f.DeletedAt, f.UpdatedAt = nil, now
		return nil
	})
}

func (r *fileRepo) HardDelete(_ context.Context, ownerID, id string) error {
	return r.run(func(st *state, _ time.Time) error {
		f, ok := st.files[id]
		if !ok || f.OwnerID != ownerID {
			return common.ErrorNotFound
		}
		delete(st.files, id)
		for k, fav := range st.favorites {
			if fav.FileID != nil && *fav.FileID == id {
				delete(st.favorites, k)
			}
		}
		return nil
	})
}

func (r *fileRepo) ListTrashed(_ context.Context, ownerID string) ([]*models.File, error) {
	out := r.collect(func(f models.File) bool { return f.OwnerID == ownerID && f.DeletedAt != nil })
	sortFiles(out, func(a, b *models.File) bool { return a.DeletedAt.After(*b.DeletedAt) })
	return out, nil
}

func (r *fileRepo) ListExpired(_ context.Context, cutoff time.Time, limit int) ([]*models.File, error) {
	if limit < 0 {
		return nil, errNegativeLimit
	}
	out := r.collect(func(f models.File) bool { return f.DeletedAt != nil && f.DeletedAt.Before(cutoff) })
	sortFiles(out, func(a, b *models.File) bool { return a.DeletedAt.Before(*b.DeletedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fileRepo) Search(_ context.Context, ownerID, query string, limit int) ([]*models.File, error) {
	q := strings.ToLower(query)
	out := r.collect(func(f models.File) bool {
		return f.OwnerID == ownerID && f.DeletedAt == nil && strings.Contains(strings.ToLower(f.Name), q)
	})
	sortFiles(out, fileByName)
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
