package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/dbx"
	"github.com/dmitrijs2005/gophdrive/internal/logging"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/repomanager"
)

// FavoriteService manages favorite marks on active items.
type FavoriteService struct {
	base
}

func NewFavoriteService(tx dbx.Transactor, rm repomanager.RepositoryManager, logger logging.Logger) *FavoriteService {
	return &FavoriteService{base: newBase(tx, rm, logger, "favorites")}
}

// Add marks an active item. Marking it twice yields common.ErrAlreadyExists.
func (s *FavoriteService) Add(ctx context.Context, ownerID string, ref models.ItemRef) (*models.Favorite, error) {
	fav, err := models.NewFavorite(ownerID, ref)
	if err != nil {
		return nil, s.finish(ctx, "favorite_add", err)
	}

	var out *models.Favorite
	err = s.mutate(ctx, ownerID, func(ctx context.Context, r *repos) error {
		if _, err := r.getNode(ctx, ownerID, ref, models.ActiveOnly); err != nil {
			return err
		}
		var err error
		out, err = r.favorites.Add(ctx, fav)
		return err
	})
	if errors.Is(err, common.ErrConstraintViolation) {
		err = common.ErrAlreadyExists
	}
	return out, s.finish(ctx, "favorite_add", err, "owner_id", ownerID, "item", ref.String())
}

func (s *FavoriteService) Remove(ctx context.Context, ownerID string, ref models.ItemRef) error {
	if err := ref.Validate(); err != nil {
		return s.finish(ctx, "favorite_remove", err)
	}
	err := s.read().favorites.Remove(ctx, ownerID, ref)
	return s.finish(ctx, "favorite_remove", err, "owner_id", ownerID, "item", ref.String())
}

// List returns favorites whose target is active and not inside a trashed
// folder, newest first.
func (s *FavoriteService) List(ctx context.Context, ownerID string) ([]*models.Favorite, error) {
	out, err := s.list(ctx, ownerID)
	return out, s.finish(ctx, "favorite_list", err, "owner_id", ownerID)
}

func (s *FavoriteService) list(ctx context.Context, ownerID string) ([]*models.Favorite, error) {
	r := s.read()
	favs, err := r.favorites.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	vis := newVisibility(r, ownerID)
	out := make([]*models.Favorite, 0, len(favs))
	for _, f := range favs {
		n, err := r.getNode(ctx, ownerID, f.Ref(), models.ActiveOnly)
		if errors.Is(err, common.ErrorNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		ok, err := vis.under(ctx, n.parentID)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, f)
		}
	}
	return out, nil
}
