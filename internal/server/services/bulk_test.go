package services

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/memory"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkMove_PartialConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dest := f.mkdir(t, "Dest", nil)
	f.upload(t, "report.pdf", &dest.ID, "x")
	folder := f.mkdir(t, "Photos", nil)
	file := f.upload(t, "report.pdf", nil, "y")

	res, err := f.bulk.BulkMove(ctx, f.owner, []models.ItemRef{folderRef(folder), fileRef(file)}, &dest.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Requested)
	assert.Equal(t, 1, res.Succeeded)
	assert.True(t, res.Partial())
	require.Len(t, res.Errors, 1)
	assert.Equal(t, fileRef(file), res.Errors[0].Ref)
	assert.ErrorIs(t, res.Errors[0].Err, common.ErrNameConflict)

	assert.Equal(t, dest.ID, *f.folder(t, folder.ID).ParentID)
	assert.Nil(t, f.file(t, file.ID).FolderID)
}

func TestBulkMove_PerItemChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dest := f.mkdir(t, "Dest", nil)
	child := f.mkdir(t, "Child", &dest.ID)
	already := f.upload(t, "here.txt", &child.ID, "x")
	loose := f.upload(t, "loose.txt", nil, "y")

	refs := []models.ItemRef{
		folderRef(child),
		folderRef(dest),
		fileRef(already),
		{Type: models.ItemFile, ID: "missing"},
		{Type: "link", ID: "x"},
		fileRef(loose),
		fileRef(loose),
	}
	res, err := f.bulk.BulkMove(ctx, f.owner, refs, &child.ID)
	require.NoError(t, err)

	assert.Equal(t, 6, res.Requested)
	assert.Equal(t, 2, res.Succeeded, "already there and loose")
	require.Len(t, res.Errors, 4)
	assert.ErrorIs(t, res.Errors[0].Err, common.ErrSelfMove)
	assert.ErrorIs(t, res.Errors[1].Err, common.ErrCyclicMove)
	assert.ErrorIs(t, res.Errors[2].Err, common.ErrorNotFound)
	assert.ErrorIs(t, res.Errors[3].Err, common.ErrInvalidItemType)
	assert.Equal(t, child.ID, *f.file(t, loose.ID).FolderID)
}

func TestBulkMove_InvalidDestinationAbortsBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	file := f.upload(t, "a.txt", nil, "x")

	_, err := f.bulk.BulkMove(ctx, f.owner, []models.ItemRef{fileRef(file)}, strp("missing"))
	assert.ErrorIs(t, err, common.ErrDestinationNotFound)
}

func TestBulkMove_ToRoot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	docs := f.mkdir(t, "Docs", nil)
	a := f.upload(t, "a.txt", &docs.ID, "x")
	sub := f.mkdir(t, "Sub", &docs.ID)

	res, err := f.bulk.BulkMove(ctx, f.owner, []models.ItemRef{fileRef(a), folderRef(sub)}, nil)
	require.NoError(t, err)
	assert.False(t, res.Partial())
	assert.Nil(t, f.file(t, a.ID).FolderID)
	assert.Nil(t, f.folder(t, sub.ID).ParentID)
}

func TestBulkMoveToTrash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob := f.newOwner(t, "bob")
	theirs, err := f.tree.CreateFolder(ctx, bob, "Theirs", nil)
	require.NoError(t, err)
	docs := f.mkdir(t, "Docs", nil)
	a := f.upload(t, "a.txt", nil, "x")

	res, err := f.bulk.BulkMoveToTrash(ctx, f.owner, []models.ItemRef{
		folderRef(docs), fileRef(a), folderRef(theirs), fileRef(a),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Requested)
	assert.Equal(t, 2, res.Succeeded)
	require.Len(t, res.Errors, 1)
	assert.ErrorIs(t, res.Errors[0].Err, common.ErrorNotFound)

	assert.NotNil(t, f.folder(t, docs.ID).DeletedAt)
	assert.NotNil(t, f.file(t, a.ID).DeletedAt)
}

func TestBulkMoveToTrash_InternalErrorRollsBackBatch(t *testing.T) {
	fm := &faultyManager{}
	f := newFixtureWith(t, func(m *memory.Manager) repomanager.RepositoryManager {
		fm.Manager = m
		return fm
	})
	ctx := context.Background()
	docs := f.mkdir(t, "Docs", nil)
	a := f.upload(t, "a.txt", nil, "x")
	fm.failFileSoftDelete = a.ID

	res, err := f.bulk.BulkMoveToTrash(ctx, f.owner, []models.ItemRef{folderRef(docs), fileRef(a)})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, common.ErrorInternal)
	assert.Nil(t, f.folder(t, docs.ID).DeletedAt, "earlier items are rolled back")
}
