package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/dbx"
	"github.com/dmitrijs2005/gophdrive/internal/server/blobstore"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/files"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/folders"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/memory"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/repomanager"
	"github.com/sethvargo/go-retry"
	"github.com/stretchr/testify/require"
)

var errInjected = errors.New("injected failure")

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	m     *memory.Manager
	rm    repomanager.RepositoryManager
	blobs *blobstore.MemoryStore
	clock *clock
	owner string

	tree  *TreeService
	trash *TrashService
	bulk  *BulkService
	favs  *FavoriteService
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, nil)
}

// newFixtureWith builds the services over the in-memory store. wrap, when
// set, decorates the repository manager used by the services.
func newFixtureWith(t *testing.T, wrap func(*memory.Manager) repomanager.RepositoryManager) *fixture {
	t.Helper()

	m := memory.New()
	c := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	m.SetClock(c.now)

	var rm repomanager.RepositoryManager = m
	if wrap != nil {
		rm = wrap(m)
	}

	f := &fixture{m: m, rm: rm, blobs: blobstore.NewMemoryStore(), clock: c}
	f.owner = f.newOwner(t, "alice")

	f.tree = NewTreeService(m, rm, f.blobs, nil)
	f.trash = NewTrashService(m, rm, f.blobs, nil)
	f.bulk = NewBulkService(m, rm, nil)
	f.favs = NewFavoriteService(m, rm, nil)
	for _, b := range []*base{&f.tree.base, &f.trash.base, &f.bulk.base, &f.favs.base} {
		b.now = c.now
	}
	return f
}

func (f *fixture) newOwner(t *testing.T, name string) string {
	t.Helper()
	u, err := f.m.Users(f.m.Conn()).Create(context.Background(), &models.User{
		UserName: name, Email: name + "@example.com", Role: models.RoleUser,
	})
	require.NoError(t, err)
	return u.ID
}

func (f *fixture) mkdir(t *testing.T, name string, parent *string) *models.Folder {
	t.Helper()
	folder, err := f.tree.CreateFolder(context.Background(), f.owner, name, parent)
	require.NoError(t, err)
	return folder
}

func (f *fixture) upload(t *testing.T, name string, parent *string, content string) *models.File {
	t.Helper()
	file, err := f.tree.CreateFile(context.Background(), f.owner, CreateFileInput{
		Name: name, FolderID: parent, MimeType: "text/plain",
		Size: int64(len(content)), Body: strings.NewReader(content),
	})
	require.NoError(t, err)
	return file
}

func (f *fixture) folder(t *testing.T, id string) *models.Folder {
	t.Helper()
	folder, err := f.m.Folders(f.m.Conn()).Get(context.Background(), f.owner, id, models.IncludeDeleted)
	require.NoError(t, err)
	return folder
}

func (f *fixture) file(t *testing.T, id string) *models.File {
	t.Helper()
	file, err := f.m.Files(f.m.Conn()).Get(context.Background(), f.owner, id, models.IncludeDeleted)
	require.NoError(t, err)
	return file
}

func (f *fixture) used(t *testing.T) int64 {
	t.Helper()
	u, err := f.m.Users(f.m.Conn()).GetByID(context.Background(), f.owner)
	require.NoError(t, err)
	return u.StorageUsedBytes
}

func (f *fixture) folderGone(id string) bool {
	_, err := f.m.Folders(f.m.Conn()).Get(context.Background(), f.owner, id, models.IncludeDeleted)
	return err != nil
}

func (f *fixture) fileGone(id string) bool {
	_, err := f.m.Files(f.m.Conn()).Get(context.Background(), f.owner, id, models.IncludeDeleted)
	return err != nil
}

func folderRef(f *models.Folder) models.ItemRef { return f.Ref() }
func fileRef(f *models.File) models.ItemRef     { return f.Ref() }

func strp(s string) *string { return &s }

// faultyManager wraps the in-memory store and fails selected writes.
type faultyManager struct {
	*memory.Manager
	failFileSoftDelete string
	failFileCreate     bool
	failFolderHardDel  bool
}

func (f *faultyManager) Files(db dbx.DBTX) files.Repository {
	return &faultyFiles{Repository: f.Manager.Files(db), m: f}
}

func (f *faultyManager) Folders(db dbx.DBTX) folders.Repository {
	return &faultyFolders{Repository: f.Manager.Folders(db), m: f}
}

type faultyFiles struct {
	files.Repository
	m *faultyManager
}

func (f *faultyFiles) SoftDelete(ctx context.Context, ownerID, id string, at time.Time) error {
	if id == f.m.failFileSoftDelete {
		return errInjected
	}
	return f.Repository.SoftDelete(ctx, ownerID, id, at)
}

func (f *faultyFiles) Create(ctx context.Context, file *models.File) (*models.File, error) {
	if f.m.failFileCreate {
		return nil, errInjected
	}
	return f.Repository.Create(ctx, file)
}

type faultyFolders struct {
	folders.Repository
	m *faultyManager
}

func (f *faultyFolders) HardDelete(ctx context.Context, ownerID, id string) error {
	if f.m.failFolderHardDel {
		return errInjected
	}
	return f.Repository.HardDelete(ctx, ownerID, id)
}

// flakyStore fails deletes of chosen keys a number of times.
type flakyStore struct {
	*blobstore.MemoryStore
	mu       sync.Mutex
	failures map[string]int
	calls    int
}

func (s *flakyStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	s.calls++
	if s.failures[key] > 0 {
		s.failures[key]--
		s.mu.Unlock()
		return errInjected
	}
	s.mu.Unlock()
	return s.MemoryStore.Delete(ctx, key)
}

func fastBlobBackoff(t *testing.T) {
	t.Helper()
	prev := newBlobBackoff
	newBlobBackoff = func() retry.Backoff {
		return retry.WithMaxRetries(2, retry.NewConstant(time.Millisecond))
	}
	t.Cleanup(func() { newBlobBackoff = prev })
}
