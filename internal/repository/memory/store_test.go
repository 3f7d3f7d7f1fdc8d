package memory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"cabinet/internal/domain"
	models "cabinet/internal/domain/models/namespace"
	nsRepo "cabinet/internal/domain/repositories/namespace"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type repos struct {
	store    *Store
	tx       *TransactionManager
	folders  nsRepo.FolderRepository
	files    nsRepo.FileRepository
	versions nsRepo.VersionRepository
}

func newRepos(t *testing.T) repos {
	t.Helper()
	store := NewStore(slog.New(slog.NewTextHandler(io.Discard, nil)))
	err := NewPartitionRepository(store).EnsureAll(context.Background(), []models.Partition{
		{ID: models.GeneralPartitionID, Type: models.PartitionGeneral, Name: "General"},
		{ID: models.PrivatePartitionID, Type: models.PartitionPrivate, Name: "My Folders"},
		{ID: models.SharedPartitionID, Type: models.PartitionShared, Name: "Shared With Me"},
	})
	require.NoError(t, err)
	return repos{
		store:    store,
		tx:       NewTransactionManager(store).(*TransactionManager),
		folders:  NewFolderRepository(store),
		files:    NewFileRepository(store),
		versions: NewVersionRepository(store),
	}
}

func (r repos) folder(t *testing.T, owner, name string, partitionID int, parentID *string) *models.Folder {
	t.Helper()
	f := &models.Folder{Name: name, Path: name, OwnerID: owner, PartitionID: partitionID, ParentID: parentID, PermissionBits: "755"}
	require.NoError(t, r.folders.Create(context.Background(), f))
	return f
}

func (r repos) file(t *testing.T, owner, name, folderID string, size int64) *models.File {
	t.Helper()
	f := &models.File{Name: name, OwnerID: owner, FolderID: &folderID, Size: size, CurrentVersion: 1, PermissionBits: "644"}
	require.NoError(t, r.files.Create(context.Background(), f))
	require.NoError(t, r.versions.Create(context.Background(), &models.FileVersion{
		FileID: f.ID, Version: 1, StorageKey: "k/" + f.ID, Size: size, UploadedBy: owner,
	}))
	return f
}

func TestPartitionRepository_EnsureAllIsIdempotent(t *testing.T) {
	r := newRepos(t)
	partitions := NewPartitionRepository(r.store)

	require.NoError(t, partitions.EnsureAll(context.Background(), []models.Partition{
		{ID: models.GeneralPartitionID, Type: models.PartitionGeneral, Name: "Renamed"},
	}))

	list, err := partitions.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "General", list[0].Name)
	assert.Equal(t, models.SharedPartitionID, list[2].ID)
}

func TestFolderRepository_Create(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()

	f := r.folder(t, "u1", "Docs", models.PrivatePartitionID, nil)
	assert.NotEmpty(t, f.ID)
	assert.False(t, f.CreatedAt.IsZero())
	assert.Equal(t, f.CreatedAt, f.UpdatedAt)

	// Private names are scoped per owner
	r.folder(t, "u2", "Docs", models.PrivatePartitionID, nil)
	err := r.folders.Create(ctx, &models.Folder{Name: "Docs", OwnerID: "u1", PartitionID: models.PrivatePartitionID})
	assert.ErrorIs(t, err, domain.ErrConflict)

	// General names are shared by every owner
	r.folder(t, "a1", "Public", models.GeneralPartitionID, nil)
	err = r.folders.Create(ctx, &models.Folder{Name: "Public", OwnerID: "a2", PartitionID: models.GeneralPartitionID})
	assert.ErrorIs(t, err, domain.ErrConflict)

	// Same name under a different parent is fine
	r.folder(t, "u1", "Docs", models.PrivatePartitionID, &f.ID)

	missing := "missing"
	err = r.folders.Create(ctx, &models.Folder{Name: "x", OwnerID: "u1", PartitionID: models.PrivatePartitionID, ParentID: &missing})
	assert.Error(t, err)
	err = r.folders.Create(ctx, &models.Folder{Name: "x", OwnerID: "u1", PartitionID: 99})
	assert.Error(t, err)
}

func TestFolderRepository_UpdateAndLookups(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()

	a := r.folder(t, "u1", "A", models.PrivatePartitionID, nil)
	b := r.folder(t, "u1", "B", models.PrivatePartitionID, nil)
	r.folder(t, "u2", "C", models.PrivatePartitionID, nil)

	b.Name = "A"
	assert.ErrorIs(t, r.folders.Update(ctx, b), domain.ErrConflict)

	b.Name = "Beta"
	b.ParentID = &a.ID
	b.Path = "A/Beta"
	require.NoError(t, r.folders.Update(ctx, b))

	got, err := r.folders.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "A/Beta", got.Path)
	require.NotNil(t, got.ParentID)
	assert.Equal(t, a.ID, *got.ParentID)

	children, err := r.folders.ListChildren(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, b.ID, children[0].ID)

	owner := "u1"
	mine, err := r.folders.ListPartitionLevel(ctx, models.PrivatePartitionID, &owner)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	all, err := r.folders.ListPartitionLevel(ctx, models.PrivatePartitionID, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	sibling, err := r.folders.FindSibling(ctx, nsRepo.SiblingScope{
		PartitionID: models.PrivatePartitionID, ParentID: &a.ID, OwnerID: &owner, Name: "Beta",
	})
	require.NoError(t, err)
	require.NotNil(t, sibling)
	assert.Equal(t, b.ID, sibling.ID)

	none, err := r.folders.FindSibling(ctx, nsRepo.SiblingScope{PartitionID: models.PrivatePartitionID, Name: "Beta"})
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = r.folders.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFolderRepository_ReturnsCopies(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()
	parent := r.folder(t, "u1", "P", models.PrivatePartitionID, nil)
	child := r.folder(t, "u1", "C", models.PrivatePartitionID, &parent.ID)

	got, err := r.folders.GetByID(ctx, child.ID)
	require.NoError(t, err)
	*got.ParentID = "mutated"
	got.Name = "mutated"

	again, err := r.folders.GetByID(ctx, child.ID)
	require.NoError(t, err)
	assert.Equal(t, "C", again.Name)
	assert.Equal(t, parent.ID, *again.ParentID)
}

func TestFolderRepository_DeleteCascades(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()

	root := r.folder(t, "u1", "Root", models.PrivatePartitionID, nil)
	mid := r.folder(t, "u1", "Mid", models.PrivatePartitionID, &root.ID)
	leaf := r.folder(t, "u1", "Leaf", models.PrivatePartitionID, &mid.ID)
	keep := r.folder(t, "u1", "Keep", models.PrivatePartitionID, nil)
	f1 := r.file(t, "u1", "a.txt", mid.ID, 3)
	f2 := r.file(t, "u1", "b.txt", leaf.ID, 4)
	kept := r.file(t, "u1", "c.txt", keep.ID, 5)

	require.NoError(t, r.folders.Delete(ctx, root.ID))

	for _, id := range []string{root.ID, mid.ID, leaf.ID} {
		_, err := r.folders.GetByID(ctx, id)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	}
	for _, id := range []string{f1.ID, f2.ID} {
		_, err := r.files.GetByID(ctx, id)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		chain, err := r.versions.ListByFile(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, chain)
	}

	_, err := r.files.GetByID(ctx, kept.ID)
	assert.NoError(t, err)
	assert.ErrorIs(t, r.folders.Delete(ctx, root.ID), domain.ErrNotFound)
}

func TestFileRepository(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()
	dir := r.folder(t, "u1", "Dir", models.PrivatePartitionID, nil)

	first := &models.File{Name: "same.txt", OwnerID: "a1", FolderID: &dir.ID, Size: 10, CreatedAt: time.Now().Add(-time.Hour)}
	require.NoError(t, r.files.Create(ctx, first))
	second := r.file(t, "a2", "same.txt", dir.ID, 20)
	r.file(t, "a1", "other.txt", dir.ID, 1)

	err := r.files.Create(ctx, &models.File{Name: "same.txt", OwnerID: "a1", FolderID: &dir.ID})
	assert.ErrorIs(t, err, domain.ErrConflict)

	anyOwner, err := r.files.FindByName(ctx, nsRepo.FileScope{FolderID: dir.ID, Name: "same.txt"})
	require.NoError(t, err)
	require.NotNil(t, anyOwner)
	assert.Equal(t, first.ID, anyOwner.ID, "oldest file wins")

	a2 := "a2"
	scoped, err := r.files.FindByName(ctx, nsRepo.FileScope{FolderID: dir.ID, OwnerID: &a2, Name: "same.txt"})
	require.NoError(t, err)
	require.NotNil(t, scoped)
	assert.Equal(t, second.ID, scoped.ID)

	none, err := r.files.FindByName(ctx, nsRepo.FileScope{FolderID: dir.ID, Name: "nope"})
	require.NoError(t, err)
	assert.Nil(t, none)

	listed, err := r.files.ListByFolder(ctx, dir.ID)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.Equal(t, "other.txt", listed[0].Name)

	total, err := r.files.SumSizeByFolder(ctx, dir.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 31, total)

	second.Name = "other.txt"
	second.OwnerID = "a1"
	assert.ErrorIs(t, r.files.Update(ctx, second), domain.ErrConflict)

	require.NoError(t, r.files.Delete(ctx, first.ID))
	chain, err := r.versions.ListByFile(ctx, first.ID)
	require.NoError(t, err)
	assert.Empty(t, chain)
	assert.ErrorIs(t, r.files.Delete(ctx, first.ID), domain.ErrNotFound)
}

func TestFileRepository_GeneralNamesAcrossOwners(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()
	dir := r.folder(t, "admin-1", "Public", models.GeneralPartitionID, nil)
	elsewhere := r.folder(t, "admin-1", "Archive", models.GeneralPartitionID, nil)

	first := r.file(t, "admin-1", "x.txt", dir.ID, 1)

	err := r.files.Create(ctx, &models.File{Name: "x.txt", OwnerID: "admin-2", FolderID: &dir.ID})
	assert.ErrorIs(t, err, domain.ErrConflict)

	listed, err := r.files.ListByFolder(ctx, dir.ID)
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	// Another General folder is a different scope
	r.file(t, "admin-2", "x.txt", elsewhere.ID, 1)

	moved := r.file(t, "admin-2", "y.txt", dir.ID, 1)
	moved.Name = "x.txt"
	assert.ErrorIs(t, r.files.Update(ctx, moved), domain.ErrConflict)

	first.Name = "renamed.txt"
	require.NoError(t, r.files.Update(ctx, first))
	moved.Name = "x.txt"
	assert.NoError(t, r.files.Update(ctx, moved))
}

func TestVersionRepository(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()
	dir := r.folder(t, "u1", "Dir", models.PrivatePartitionID, nil)
	f := r.file(t, "u1", "a.txt", dir.ID, 1)

	require.NoError(t, r.versions.Create(ctx, &models.FileVersion{FileID: f.ID, Version: 3, StorageKey: "v3"}))
	require.NoError(t, r.versions.Create(ctx, &models.FileVersion{FileID: f.ID, Version: 2, StorageKey: "v2"}))

	err := r.versions.Create(ctx, &models.FileVersion{FileID: f.ID, Version: 2})
	assert.True(t, errors.Is(err, nsRepo.ErrVersionExists))

	err = r.versions.Create(ctx, &models.FileVersion{FileID: "missing", Version: 1})
	assert.Error(t, err)

	chain, err := r.versions.ListByFile(ctx, f.ID)
	require.NoError(t, err)
	require.Len(t, chain, 3)
	for i, v := range chain {
		assert.Equal(t, i+1, v.Version)
	}

	v2, err := r.versions.Get(ctx, f.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, "v2", v2.StorageKey)

	_, err = r.versions.Get(ctx, f.ID, 4)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, r.versions.DeleteByFile(ctx, f.ID))
	chain, err = r.versions.ListByFile(ctx, f.ID)
	require.NoError(t, err)
	assert.Empty(t, chain)
}

func TestTransactionManager_RollsBackOnError(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()
	keep := r.folder(t, "u1", "Keep", models.PrivatePartitionID, nil)

	boom := errors.New("boom")
	var createdID string
	err := r.tx.ExecTx(ctx, func(ctx context.Context) error {
		f := &models.Folder{Name: "Temp", Path: "Temp", OwnerID: "u1", PartitionID: models.PrivatePartitionID}
		if err := r.folders.Create(ctx, f); err != nil {
			return err
		}
		createdID = f.ID
		if err := r.folders.Delete(ctx, keep.ID); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = r.folders.GetByID(ctx, createdID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = r.folders.GetByID(ctx, keep.ID)
	assert.NoError(t, err)
}

func TestTransactionManager_CommitsAndNests(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()

	var ids []string
	err := r.tx.ExecTx(ctx, func(ctx context.Context) error {
		return r.tx.ExecTx(ctx, func(ctx context.Context) error {
			for _, name := range []string{"A", "B"} {
				f := &models.Folder{Name: name, Path: name, OwnerID: "u1", PartitionID: models.PrivatePartitionID}
				if err := r.folders.Create(ctx, f); err != nil {
					return err
				}
				ids = append(ids, f.ID)
			}
			return nil
		})
	})
	require.NoError(t, err)

	for _, id := range ids {
		_, err := r.folders.GetByID(ctx, id)
		assert.NoError(t, err)
	}
}
