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

type folderRepo struct{ base }

func copyFolder(f models.Folder) *models.Folder {
	f.ParentID = cloneString(f.ParentID)
	f.DeletedAt = cloneTime(f.DeletedAt)
	return &f
}

func (s *state) folderNameTaken(ownerID string, parentID *string, name, exceptID string) bool {
	for _, f := range s.folders {
		if f.ID != exceptID && f.OwnerID == ownerID && f.DeletedAt == nil && f.Name == name && sameParent(f.ParentID, parentID) {
			return true
		}
	}
	return false
}

func (s *state) folderRefOK(ownerID string, id *string) bool {
	if id == nil {
		return true
	}
	f, ok := s.folders[*id]
	return ok && f.OwnerID == ownerID
}

func sortFolders(list []*models.Folder, less func(a, b *models.Folder) bool) {
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

func byName(a, b *models.Folder) bool { return a.Name < b.Name }

func (r *folderRepo) Create(_ context.Context, f *models.Folder) (*models.Folder, error) {
	err := r.run(func(st *state, now time.Time) error {
		if !st.folderRefOK(f.OwnerID, f.ParentID) {
			return fmt.Errorf("%w: parent folder reference", common.ErrConstraintViolation)
		}
		if st.folderNameTaken(f.OwnerID, f.ParentID, f.Name, "") {
			return fmt.Errorf("%w: folders_active_name_uq", common.ErrConstraintViolation)
		}
		f.ID = newID()
		f.CreatedAt, f.UpdatedAt, f.DeletedAt = now, now, nil
		st.folders[f.ID] = *copyFolder(*f)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (r *folderRepo) Get(_ context.Context, ownerID, id string, scope models.Scope) (*models.Folder, error) {
	var out *models.Folder
	err := r.run(func(st *state, _ time.Time) error {
		f, ok := st.folders[id]
		if !ok || f.OwnerID != ownerID || (scope == models.ActiveOnly && f.DeletedAt != nil) {
			return common.ErrorNotFound
		}
		out = copyFolder(f)
		return nil
	})
	return out, err
}

func (r *folderRepo) FindByName(_ context.Context, ownerID string, parentID *string, name string) (*models.Folder, error) {
	var out *models.Folder
	err := r.run(func(st *state, _ time.Time) error {
		for _, f := range st.folders {
			if f.OwnerID == ownerID && f.DeletedAt == nil && f.Name == name && sameParent(f.ParentID, parentID) {
				out = copyFolder(f)
				return nil
			}
		}
		return common.ErrorNotFound
	})
	return out, err
}

func (r *folderRepo) collect(match func(f models.Folder) bool) []*models.Folder {
	var out []*models.Folder
	_ = r.run(func(st *state, _ time.Time) error {
		for _, f := range st.folders {
			if match(f) {
				out = append(out, copyFolder(f))
			}
		}
		return nil
	})
	return out
}

func (r *folderRepo) ListChildren(_ context.Context, ownerID string, parentID *string, scope models.Scope) ([]*models.Folder, error) {
	out := r.collect(func(f models.Folder) bool {
		return f.OwnerID == ownerID && sameParent(f.ParentID, parentID) && (scope == models.IncludeDeleted || f.DeletedAt == nil)
	})
	sortFolders(out, byName)
	return out, nil
}

// update applies fn to an owned folder matching the trashed filter.
func (r *folderRepo) update(ownerID, id string, trashed bool, fn func(st *state, f *models.Folder, now time.Time) error) error {
	return r.run(func(st *state, now time.Time) error {
		f, ok := st.folders[id]
		if !ok || f.OwnerID != ownerID || (f.DeletedAt != nil) != trashed {
			return common.ErrorNotFound
		}
		if err := fn(st, &f, now); err != nil {
			return err
		}
		st.folders[id] = f
		return nil
	})
}

func (r *folderRepo) UpdateName(_ context.Context, ownerID, id, name string) error {
	return r.update(ownerID, id, false, func(st *state, f *models.Folder, now time.Time) error {
		if st.folderNameTaken(ownerID, f.ParentID, name, id) {
			return fmt.Errorf("%w: folders_active_name_uq", common.ErrConstraintViolation)
		}
		f.Name, f.UpdatedAt = name, now
		return nil
	})
}

func (r *folderRepo) UpdateParent(_ context.Context, ownerID, id string, parentID *string) error {
	return r.update(ownerID, id, false, func(st *state, f *models.Folder, now time.Time) error {
		if !st.folderRefOK(ownerID, parentID) || (parentID != nil && *parentID == id) {
			return fmt.Errorf("%w: parent folder reference", common.ErrConstraintViolation)
		}
		if st.folderNameTaken(ownerID, parentID, f.Name, id) {
			return fmt.Errorf("%w: folders_active_name_uq", common.ErrConstraintViolation)
		}
		f.ParentID, f.UpdatedAt = cloneString(parentID), now
		return nil
	})
}

func (r *folderRepo) SoftDelete(_ context.Context, ownerID, id string, at time.Time) error {
	return r.update(ownerID, id, false, func(_ *state, f *models.Folder, _ time.Time) error {
		f.DeletedAt = &at
		return nil
	})
}

func (r *folderRepo) Restore(_ context.Context, ownerID, id string) error {
	return r.update(ownerID, id, true, func(st *state, f *models.Folder, now time.Time) error {
		if st.folderNameTaken(ownerID, f.ParentID, f.Name, id) {
			return fmt.Errorf("%w: folders_active_name_uq", common.ErrConstraintViolation)
		}
		f.DeletedAt, f.UpdatedAt = nil, now
		return nil
	})
}

func (r *folderRepo) HardDelete(_ context.Context, ownerID, id string) error {
	return r.run(func(st *state, _ time.Time) error {
		f, ok := st.folders[id]
		if !ok || f.OwnerID != ownerID {
			return common.ErrorNotFound
		}
		for _, c := range st.folders {
			if c.ParentID != nil && *c.ParentID == id {
				return fmt.Errorf("%w: folder %s still has subfolders", common.ErrConstraintViolation, id)
			}
		}
		for _, c := range st.files {
			if c.FolderID != nil && *c.FolderID == id {
				return fmt.Errorf("%w: folder %s still has files", common.ErrConstraintViolation, id)
			}
		}
		delete(st.folders, id)
		for k, fav := range st.favorites {
			if fav.FolderID != nil && *fav.FolderID == id {
				delete(st.favorites, k)
			}
		}
		return nil
	})
}

func (r *folderRepo) ListTrashed(_ context.Context, ownerID string) ([]*models.Folder, error) {
	out := r.collect(func(f models.Folder) bool { return f.OwnerID == ownerID && f.DeletedAt != nil })
	sortFolders(out, func(a, b *models.Folder) bool { return a.DeletedAt.After(*b.DeletedAt) })
	return out, nil
}

func (r *folderRepo) ListExpired(_ context.Context, cutoff time.Time, limit int) ([]*models.Folder, error) {
	if limit < 0 {
		return nil, errNegativeLimit
	}
	out := r.collect(func(f models.Folder) bool { return f.DeletedAt != nil && f.DeletedAt.Before(cutoff) })
	sortFolders(out, func(a, b *models.Folder) bool { return a.DeletedAt.Before(*b.DeletedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *folderRepo) Search(_ context.Context, ownerID, query string, limit int) ([]*models.Folder, error) {
	q := strings.ToLower(query)
	out := r.collect(func(f models.Folder) bool {
		return f.OwnerID == ownerID && f.DeletedAt == nil && strings.Contains(strings.ToLower(f.Name), q)
	})
	sortFolders(out, byName)
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
