package services

import (
	"context"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/dbx"
	"github.com/dmitrijs2005/gophdrive/internal/logging"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/repomanager"
)

// BulkService applies one operation to many items in a single unit of work.
// Validation failures of single items are reported and skipped; any other
// failure rolls back the whole batch.
type BulkService struct {
	base
}

func NewBulkService(tx dbx.Transactor, rm repomanager.RepositoryManager, logger logging.Logger) *BulkService {
	return &BulkService{base: newBase(tx, rm, logger, "bulk")}
}

// BulkItemError is the failure of one item of a batch.
type BulkItemError struct {
	Ref models.ItemRef
	Err error
}

// BulkResult reports a committed batch. Requested counts distinct items.
type BulkResult struct {
	Requested int
	Succeeded int
	Errors    []BulkItemError
}

// Partial reports whether at least one item failed.
func (b *BulkResult) Partial() bool {
	return len(b.Errors) > 0
}

// each runs fn for every distinct ref in order, collecting validation
// failures into b.
func (b *BulkResult) each(refs []models.ItemRef, fn func(ref models.ItemRef) error) error {
	seen := make(map[models.ItemRef]bool, len(refs))
	for _, ref := range refs {
		if seen[ref] {
			continue
		}
		seen[ref] = true
		b.Requested++

		err := ref.Validate()
		if err == nil {
			err = fn(ref)
		}
		switch {
		case err == nil:
			b.Succeeded++
		case common.IsValidation(err):
			b.Errors = append(b.Errors, BulkItemError{Ref: ref, Err: err})
		default:
			return err
		}
	}
	return nil
}

// BulkMoveToTrash soft-deletes every listed item that is active.
func (s *BulkService) BulkMoveToTrash(ctx context.Context, ownerID string, refs []models.ItemRef) (*BulkResult, error) {
	var res *BulkResult
	err := s.mutate(ctx, ownerID, func(ctx context.Context, r *repos) error {
		res = &BulkResult{}
		now := s.now()
		return res.each(refs, func(ref models.ItemRef) error {
			n, err := r.getNode(ctx, ownerID, ref, models.ActiveOnly)
			if err != nil {
				return err
			}
			return r.softDelete(ctx, ownerID, n, now)
		})
	})
	if err != nil {
		return nil, s.finish(ctx, "bulk_trash", err, "owner_id", ownerID, "items", len(refs))
	}
	return res, s.finish(ctx, "bulk_trash", nil)
}

// BulkMove moves every listed item under dest, or to the root when dest is
// nil. An invalid destination fails the whole batch.
func (s *BulkService) BulkMove(ctx context.Context, ownerID string, refs []models.ItemRef, dest *string) (*BulkResult, error) {
	var res *BulkResult
	err := s.mutate(ctx, ownerID, func(ctx context.Context, r *repos) error {
		res = &BulkResult{}
		if err := r.activeFolder(ctx, ownerID, dest, common.ErrDestinationNotFound); err != nil {
			return err
		}
		return res.each(refs, func(ref models.ItemRef) error {
			n, err := r.getNode(ctx, ownerID, ref, models.ActiveOnly)
			if err != nil {
				return err
			}
			return r.moveNode(ctx, ownerID, n, dest)
		})
	})
	if err != nil {
		return nil, s.finish(ctx, "bulk_move", err, "owner_id", ownerID, "items", len(refs))
	}
	return res, s.finish(ctx, "bulk_move", nil)
}
