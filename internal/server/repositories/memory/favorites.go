package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
)

type favoriteRepo struct{ base }

func (r *favoriteRepo) Add(_ context.Context, f *models.Favorite) (*models.Favorite, error) {
	if !f.Valid() {
		return nil, common.ErrInvalidItemType
	}
	err := r.run(func(st *state, now time.Time) error {
		ref := f.Ref()
		if ref.Type == models.ItemFile {
			if t, ok := st.files[ref.ID]; !ok || t.OwnerID != f.OwnerID {
				return fmt.Errorf("%w: favorite file reference", common.ErrConstraintViolation)
			}
		} else if t, ok := st.folders[ref.ID]; !ok || t.OwnerID != f.OwnerID {
			return fmt.Errorf("%w: favorite folder reference", common.ErrConstraintViolation)
		}
		for _, existing := range st.favorites {
			if existing.OwnerID == f.OwnerID && existing.Ref() == ref {
				return fmt.Errorf("%w: favorites_owner_%s_uq", common.ErrConstraintViolation, ref.Type)
			}
		}
		st.seq++
		f.ID = newID()
		f.CreatedAt = now
		row := favoriteRow{Favorite: *f, seq: st.seq}
		row.FileID, row.FolderID = cloneString(f.FileID), cloneString(f.FolderID)
		st.favorites[f.ID] = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (r *favoriteRepo) Remove(_ context.Context, ownerID string, ref models.ItemRef) error {
	return r.run(func(st *state, _ time.Time) error {
		for k, fav := range st.favorites {
			if fav.OwnerID == ownerID && fav.Ref() == ref {
				delete(st.favorites, k)
				return nil
			}
		}
		return common.ErrorNotFound
	})
}

func (r *favoriteRepo) List(_ context.Context, ownerID string) ([]*models.Favorite, error) {
	var rows []favoriteRow
	_ = r.run(func(st *state, _ time.Time) error {
		for _, fav := range st.favorites {
			if fav.OwnerID != ownerID {
				continue
			}
			ref := fav.Ref()
			if ref.Type == models.ItemFile {
				if t, ok := st.files[ref.ID]; !ok || t.DeletedAt != nil {
					continue
				}
			} else if t, ok := st.folders[ref.ID]; !ok || t.DeletedAt != nil {
				continue
			}
			rows = append(rows, fav)
		}
		return nil
	})

	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })

	out := make([]*models.Favorite, 0, len(rows))
	for _, row := range rows {
		fav := row.Favorite
		fav.FileID, fav.FolderID = cloneString(fav.FileID), cloneString(fav.FolderID)
		out = append(out, &fav)
	}
	return out, nil
}
