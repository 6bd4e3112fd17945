// Package memory is an in-process entity store. It implements both
// repomanager.RepositoryManager and dbx.Transactor and is used for the
// "memory" database DSN and by service tests.
//
// Transactions are serialised by a single mutex; a rollback restores the
// snapshot taken when the transaction began.
package memory

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/dbx"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/favorites"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/files"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/folders"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/users"
	"github.com/google/uuid"
)

var (
	errNoSQL         = errors.New("memory store does not execute SQL")
	errNegativeLimit = errors.New("limit must not be negative")
)

type state struct {
	users     map[string]models.User
	folders   map[string]models.Folder
	files     map[string]models.File
	favorites map[string]favoriteRow
	seq       int64
}

type favoriteRow struct {
	models.Favorite
	seq int64
}

func newState() *state {
	return &state{
		users:     map[string]models.User{},
		folders:   map[string]models.Folder{},
		files:     map[string]models.File{},
		favorites: map[string]favoriteRow{},
	}
}

// clone copies the maps. Stored values are replaced, never mutated in place,
// so copying the values is enough.
func (s *state) clone() *state {
	c := &state{
		users:     make(map[string]models.User, len(s.users)),
		folders:   make(map[string]models.Folder, len(s.folders)),
		files:     make(map[string]models.File, len(s.files)),
		favorites: make(map[string]favoriteRow, len(s.favorites)),
		seq:       s.seq,
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.folders {
		c.folders[k] = v
	}
	for k, v := range s.files {
		c.files[k] = v
	}
	for k, v := range s.favorites {
		c.favorites[k] = v
	}
	return c
}

// Manager owns the in-memory state.
type Manager struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

// New returns an empty store.
func New() *Manager {
	return &Manager{st: newState(), now: time.Now}
}

// SetClock replaces the time source used for created/updated timestamps.
func (m *Manager) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// handle is the DBTX given to repositories. It carries no SQL capability;
// it only tells the repositories whether the manager lock is already held.
type handle struct {
	m      *Manager
	active bool
}

func (h *handle) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, errNoSQL
}

func (h *handle) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errNoSQL
}

func (h *handle) QueryRowContext(context.Context, string, ...any) *sql.Row {
	return nil
}

// WithinTx implements dbx.Transactor.
func (m *Manager) WithinTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	h := &handle{m: m, active: true}

	defer func() {
		h.active = false
		if p := recover(); p != nil {
			m.st = snapshot
			panic(p)
		}
		if err != nil {
			m.st = snapshot
		}
	}()

	return fn(ctx, h)
}

// Conn implements dbx.Transactor.
func (m *Manager) Conn() dbx.DBTX {
	return &handle{m: m}
}

// RunMigrations is a no-op; the schema is implicit.
func (m *Manager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *Manager) Users(db dbx.DBTX) users.Repository         { return &userRepo{base{m: m, db: db}} }
func (m *Manager) Folders(db dbx.DBTX) folders.Repository     { return &folderRepo{base{m: m, db: db}} }
func (m *Manager) Files(db dbx.DBTX) files.Repository         { return &fileRepo{base{m: m, db: db}} }
func (m *Manager) Favorites(db dbx.DBTX) favorites.Repository { return &favoriteRepo{base{m: m, db: db}} }

type base struct {
	m  *Manager
	db dbx.DBTX
}

// run executes fn against the state, taking the manager lock unless the
// repository is bound to a live transaction of this manager.
func (b base) run(fn func(st *state, now time.Time) error) error {
	if h, ok := b.db.(*handle); !ok || h.m != b.m || !h.active {
		b.m.mu.Lock()
		defer b.m.mu.Unlock()
	}
	return fn(b.m.st, b.m.now())
}

func newID() string { return uuid.NewString() }

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
