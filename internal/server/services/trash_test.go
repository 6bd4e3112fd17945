package services

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/server/blobstore"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/memory"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrash_RoundTripKeepsAttributes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	docs := f.mkdir(t, "Docs", nil)
	file := f.upload(t, "a.txt", &docs.ID, "abc")

	require.NoError(t, f.trash.MoveToTrash(ctx, f.owner, fileRef(file)))
	trashed := f.file(t, file.ID)
	require.NotNil(t, trashed.DeletedAt)
	assert.Equal(t, f.clock.now(), *trashed.DeletedAt)

	require.NoError(t, f.trash.Restore(ctx, f.owner, fileRef(file)))
	restored := f.file(t, file.ID)
	assert.Nil(t, restored.DeletedAt)
	assert.Equal(t, file.Name, restored.Name)
	assert.Equal(t, file.FolderID, restored.FolderID)
}

func TestTrash_MoveToTrashIsShallow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	docs := f.mkdir(t, "Docs", nil)
	sub := f.mkdir(t, "Sub", &docs.ID)
	file := f.upload(t, "a.txt", &sub.ID, "abc")

	require.NoError(t, f.trash.MoveToTrash(ctx, f.owner, folderRef(docs)))
	assert.Nil(t, f.folder(t, sub.ID).DeletedAt)
	assert.Nil(t, f.file(t, file.ID).DeletedAt)

	items, err := f.trash.ListTrash(ctx, f.owner)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, docs.ID, items[0].ID)

	assert.ErrorIs(t, f.trash.MoveToTrash(ctx, f.owner, folderRef(docs)), common.ErrorNotFound)
}

func TestTrash_RestoreErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob := f.newOwner(t, "bob")

	docs := f.mkdir(t, "Docs", nil)
	active := f.upload(t, "active.txt", nil, "x")
	assert.ErrorIs(t, f.trash.Restore(ctx, f.owner, fileRef(active)), common.ErrNotInTrash)
	assert.ErrorIs(t, f.trash.Restore(ctx, bob, fileRef(active)), common.ErrorNotFound)
	assert.ErrorIs(t, f.trash.Restore(ctx, f.owner, models.ItemRef{Type: models.ItemFolder, ID: "missing"}), common.ErrorNotFound)

	t.Run("parent gone", func(t *testing.T) {
		child := f.upload(t, "child.txt", &docs.ID, "y")
		require.NoError(t, f.trash.MoveToTrash(ctx, f.owner, fileRef(child)))
		require.NoError(t, f.trash.MoveToTrash(ctx, f.owner, folderRef(docs)))

		assert.ErrorIs(t, f.trash.Restore(ctx, f.owner, fileRef(child)), common.ErrParentGone)
		assert.NotNil(t, f.file(t, child.ID).DeletedAt)

		require.NoError(t, f.trash.Restore(ctx, f.owner, folderRef(docs)))
		require.NoError(t, f.trash.Restore(ctx, f.owner, fileRef(child)))
	})

	t.Run("conflict", func(t *testing.T) {
		old := f.upload(t, "report.pdf", nil, "old")
		require.NoError(t, f.trash.MoveToTrash(ctx, f.owner, fileRef(old)))
		f.upload(t, "report.pdf", nil, "new")

		assert.ErrorIs(t, f.trash.Restore(ctx, f.owner, fileRef(old)), common.ErrRestoreConflict)
		assert.NotNil(t, f.file(t, old.ID).DeletedAt)
	})
}

func TestTrash_PurgeFolderReleasesWholeSubtree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	top := f.mkdir(t, "Top", nil)
	f.upload(t, "1.txt", &top.ID, "aa")
	f.upload(t, "2.txt", &top.ID, "bb")
	sub1 := f.mkdir(t, "Sub1", &top.ID)
	f.upload(t, "3.txt", &sub1.ID, "ccc")
	deep := f.mkdir(t, "Deep", &sub1.ID)
	trashed := f.upload(t, "4.txt", &deep.ID, "d")
	require.NoError(t, f.trash.MoveToTrash(ctx, f.owner, fileRef(trashed)))
	sub2 := f.mkdir(t, "Sub2", &top.ID)
	require.NoError(t, f.trash.MoveToTrash(ctx, f.owner, folderRef(sub2)))
	outside := f.upload(t, "keep.txt", nil, "keep")

	_, err := f.favs.Add(ctx, f.owner, folderRef(sub1))
	require.NoError(t, err)
	require.NoError(t, f.trash.MoveToTrash(ctx, f.owner, folderRef(top)))
	require.Equal(t, int64(12), f.used(t))

	res, err := f.trash.Purge(ctx, f.owner, folderRef(top))
	require.NoError(t, err)
	assert.Equal(t, PurgeResult{Found: true, Files: 4, Folders: 4, BytesReleased: 8}, res)

	for _, id := range []string{top.ID, sub1.ID, sub2.ID, deep.ID} {
		assert.True(t, f.folderGone(id), "folder %s", id)
	}
	assert.Equal(t, []string{outside.StorageKey}, f.blobs.Keys())
	assert.Equal(t, int64(4), f.used(t))

	favs, err := f.m.Favorites(f.m.Conn()).List(ctx, f.owner)
	require.NoError(t, err)
	assert.Empty(t, favs)
}

func TestTrash_PurgeMissingItemIsSkip(t *testing.T) {
	f := newFixture(t)

	res, err := f.trash.Purge(context.Background(), f.owner, models.ItemRef{Type: models.ItemFile, ID: "missing"})
	require.NoError(t, err)
	assert.False(t, res.Found)
}

func TestTrash_PurgeToleratesMissingBlob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	file := f.upload(t, "a.txt", nil, "abc")
	require.NoError(t, f.blobs.Delete(ctx, file.StorageKey))

	res, err := f.trash.Purge(ctx, f.owner, fileRef(file))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Files)
	assert.True(t, f.fileGone(file.ID))
}

func TestTrash_PurgeRetriesTransientBlobFailures(t *testing.T) {
	fastBlobBackoff(t)
	f := newFixture(t)
	ctx := context.Background()
	file := f.upload(t, "a.txt", nil, "abc")

	flaky := &flakyStore{MemoryStore: f.blobs, failures: map[string]int{file.StorageKey: 2}}
	trash := NewTrashService(f.m, f.rm, flaky, nil)

	_, err := trash.Purge(ctx, f.owner, fileRef(file))
	require.NoError(t, err)
	assert.Equal(t, 3, flaky.calls)
	assert.True(t, f.fileGone(file.ID))
	assert.Empty(t, f.blobs.Keys())
}

func TestTrash_PurgeBlobFailureRollsBack(t *testing.T) {
	fastBlobBackoff(t)
	f := newFixture(t)
	ctx := context.Background()
	docs := f.mkdir(t, "Docs", nil)
	a := f.upload(t, "a.txt", &docs.ID, "abc")
	b := f.upload(t, "b.txt", &docs.ID, "de")

	flaky := &flakyStore{MemoryStore: f.blobs, failures: map[string]int{b.StorageKey: 100}}
	trash := NewTrashService(f.m, f.rm, flaky, nil)

	_, err := trash.Purge(ctx, f.owner, folderRef(docs))
	assert.ErrorIs(t, err, common.ErrorInternal)

	assert.False(t, f.folderGone(docs.ID))
	assert.False(t, f.fileGone(a.ID))
	assert.False(t, f.fileGone(b.ID))
	assert.Equal(t, int64(5), f.used(t))

	// Retrying once the store recovers succeeds although a's blob is gone.
	flaky.failures[b.StorageKey] = 0
	res, err := trash.Purge(ctx, f.owner, folderRef(docs))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Files)
	assert.Empty(t, f.blobs.Keys())
	assert.Zero(t, f.used(t))
}

func TestTrash_EmptyTrash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.trash.EmptyTrash(ctx, f.owner)
	require.NoError(t, err)
	assert.True(t, res.AlreadyEmpty)

	docs := f.mkdir(t, "Docs", nil)
	inner := f.upload(t, "inner.txt", &docs.ID, "12")
	require.NoError(t, f.trash.MoveToTrash(ctx, f.owner, fileRef(inner)))
	loose := f.upload(t, "loose.txt", nil, "345")
	keep := f.upload(t, "keep.txt", nil, "6")
	require.NoError(t, f.trash.MoveToTrash(ctx, f.owner, folderRef(docs)))
	require.NoError(t, f.trash.MoveToTrash(ctx, f.owner, fileRef(loose)))

	res, err = f.trash.EmptyTrash(ctx, f.owner)
	require.NoError(t, err)
	assert.False(t, res.AlreadyEmpty)
	assert.Equal(t, 2, res.Files)
	assert.Equal(t, 1, res.Folders)
	assert.Equal(t, int64(5), res.BytesReleased)

	items, err := f.trash.ListTrash(ctx, f.owner)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, []string{keep.StorageKey}, f.blobs.Keys())
}

func TestTrash_EmptyTrashIsAllOrNothing(t *testing.T) {
	fm := &faultyManager{}
	f := newFixtureWith(t, func(m *memory.Manager) repomanager.RepositoryManager {
		fm.Manager = m
		return fm
	})
	ctx := context.Background()
	docs := f.mkdir(t, "Docs", nil)
	loose := f.upload(t, "loose.txt", nil, "x")
	require.NoError(t, f.trash.MoveToTrash(ctx, f.owner, fileRef(loose)))
	require.NoError(t, f.trash.MoveToTrash(ctx, f.owner, folderRef(docs)))

	fm.failFolderHardDel = true
	_, err := f.trash.EmptyTrash(ctx, f.owner)
	assert.ErrorIs(t, err, common.ErrorInternal)

	items, err := f.trash.ListTrash(ctx, f.owner)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestTrash_ListTrashNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.upload(t, "a.txt", nil, "x")
	b := f.mkdir(t, "B", nil)

	require.NoError(t, f.trash.MoveToTrash(ctx, f.owner, fileRef(a)))
	f.clock.advance(time.Minute)
	require.NoError(t, f.trash.MoveToTrash(ctx, f.owner, folderRef(b)))

	items, err := f.trash.ListTrash(ctx, f.owner)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, models.ItemFolder, items[0].Type)
	assert.Equal(t, models.ItemFile, items[1].Type)
	assert.Equal(t, int64(1), items[1].SizeBytes)
}

func TestTrash_ExpiredSelectionAndGuard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob := f.newOwner(t, "bob")

	old := f.upload(t, "old.txt", nil, "x")
	require.NoError(t, f.trash.MoveToTrash(ctx, f.owner, fileRef(old)))
	bobs, err := f.tree.CreateFolder(ctx, bob, "Bobs", nil)
	require.NoError(t, err)
	require.NoError(t, f.trash.MoveToTrash(ctx, bob, folderRef(bobs)))

	f.clock.advance(48 * time.Hour)
	fresh := f.upload(t, "fresh.txt", nil, "y")
	require.NoError(t, f.trash.MoveToTrash(ctx, f.owner, fileRef(fresh)))

	cutoff := f.clock.now().Add(-24 * time.Hour)
	items, err := f.trash.ListExpired(ctx, cutoff, 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, models.ItemFolder, items[0].Ref.Type)
	assert.Equal(t, bob, items[0].OwnerID)

	limited, err := f.trash.ListExpired(ctx, cutoff, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	for _, bad := range []int{0, -1} {
		_, err = f.trash.ListExpired(ctx, cutoff, bad)
		assert.ErrorIs(t, err, common.ErrInvalidArgument, "limit %d", bad)
	}

	// A restore between selection and purge wins.
	require.NoError(t, f.trash.Restore(ctx, f.owner, fileRef(old)))
	res, err := f.trash.PurgeExpired(ctx, items[1], cutoff)
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.False(t, f.fileGone(old.ID))

	res, err = f.trash.PurgeExpired(ctx, items[0], cutoff)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Folders)

	res, err = f.trash.PurgeExpired(ctx, ExpiredItem{OwnerID: f.owner, Ref: fileRef(fresh)}, cutoff)
	require.NoError(t, err)
	assert.False(t, res.Found, "item trashed after the cutoff is kept")
}

var _ blobstore.Store = (*flakyStore)(nil)
