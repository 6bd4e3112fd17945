package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
)

// visibility answers whether an active item is reachable from the root,
// that is, none of its ancestors sits in the trash. Results are cached per
// folder for the lifetime of one call.
type visibility struct {
	r       *repos
	ownerID string
	cache   map[string]bool
}

func newVisibility(r *repos, ownerID string) *visibility {
	return &visibility{r: r, ownerID: ownerID, cache: map[string]bool{}}
}

// under reports whether a child of parentID is visible.
func (v *visibility) under(ctx context.Context, parentID *string) (bool, error) {
	var path []string
	seen := map[string]bool{}
	result := true

	for cur := parentID; cur != nil; {
		if ok, hit := v.cache[*cur]; hit {
			result = ok
			break
		}
		if seen[*cur] {
			result = false
			break
		}
		seen[*cur] = true
		path = append(path, *cur)

		f, err := v.r.folders.Get(ctx, v.ownerID, *cur, models.IncludeDeleted)
		if errors.Is(err, common.ErrorNotFound) {
			result = false
			break
		}
		if err != nil {
			return false, err
		}
		if f.InTrash() {
			result = false
			break
		}
		cur = f.ParentID
	}

	for _, id := range path {
		v.cache[id] = result
	}
	return result, nil
}
