// Package services contains server-side business logic: the tree engine,
// the trash lifecycle, bulk operations, favorites and user accounts.
//
// Every mutation runs as one unit of work through a dbx.Transactor and
// starts by taking the owner's lock, so validation reads and the final write
// cannot interleave with another mutation of the same tree.
package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/dbx"
	"github.com/dmitrijs2005/gophdrive/internal/logging"
	"github.com/dmitrijs2005/gophdrive/internal/server/metrics"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/favorites"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/files"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/folders"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/users"
)

// repos bundles the repositories bound to one handle.
type repos struct {
	users     users.Repository
	folders   folders.Repository
	files     files.Repository
	favorites favorites.Repository
}

func bind(m repomanager.RepositoryManager, db dbx.DBTX) *repos {
	return &repos{
		users:     m.Users(db),
		folders:   m.Folders(db),
		files:     m.Files(db),
		favorites: m.Favorites(db),
	}
}

type base struct {
	tx     dbx.Transactor
	rm     repomanager.RepositoryManager
	logger logging.Logger
	now    func() time.Time
}

func newBase(tx dbx.Transactor, rm repomanager.RepositoryManager, logger logging.Logger, module string) base {
	if logger == nil {
		logger = logging.Nop()
	}
	return base{tx: tx, rm: rm, logger: logger.With("module", module), now: time.Now}
}

// read returns repositories bound to the non-transactional handle.
func (b *base) read() *repos {
	return bind(b.rm, b.tx.Conn())
}

// mutate runs fn as one unit of work holding ownerID's lock.
func (b *base) mutate(ctx context.Context, ownerID string, fn func(ctx context.Context, r *repos) error) error {
	return b.tx.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		r := bind(b.rm, tx)
		if err := r.users.LockOwner(ctx, ownerID); err != nil {
			return err
		}
		return fn(ctx, r)
	})
}

// finish records the outcome of op and hides internal failures from the
// caller: typed validation errors pass through, anything else is logged with
// kv and replaced by common.ErrorInternal.
func (b *base) finish(ctx context.Context, op string, err error, kv ...any) error {
	metrics.RecordTreeOperation(op, err)
	if err == nil || common.IsValidation(err) {
		return err
	}
	b.logger.Error(ctx, op+" failed", append(kv, "error", err)...)
	return common.ErrorInternal
}
