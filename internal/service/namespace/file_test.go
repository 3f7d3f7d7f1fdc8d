package namespace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"cabinet/internal/config"
	"cabinet/internal/domain"
	models "cabinet/internal/domain/models/namespace"
	"cabinet/internal/domain/repositories"
	nsRepo "cabinet/internal/domain/repositories/namespace"
	"cabinet/internal/domain/services"
	nsSvc "cabinet/internal/domain/services/namespace"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readContent(t *testing.T, c *nsSvc.FileContent) string {
	t.Helper()
	defer c.Body.Close()
	data, err := io.ReadAll(c.Body)
	require.NoError(t, err)
	return string(data)
}

func TestUploadFile_CreatesThenVersions(t *testing.T) {
	f := newFixture(t)
	reports := f.mkdir(t, owner, "Reports", nil)
	year := f.mkdir(t, owner, "2024", &reports.ID)

	first := f.upload(t, owner, year.ID, "q1.txt", "0123456789")
	assert.Equal(t, 1, first.CurrentVersion)
	assert.EqualValues(t, 10, first.Size)
	assert.Equal(t, "644", first.PermissionBits)

	size, err := f.trees.CalculateFolderSize(f.ctx, reports.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 10, size)

	second := f.upload(t, owner, year.ID, "q1.txt", "012345678901234")
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.CurrentVersion)
	assert.EqualValues(t, 15, second.Size)

	versions, err := f.files.ListVersions(f.ctx, owner, first.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 1, versions[0].Version)
	assert.Equal(t, 2, versions[1].Version)
	assert.EqualValues(t, 10, versions[0].Size)
	assert.Equal(t, owner, versions[1].UploadedBy)
	assert.Equal(t, fmt.Sprintf("files/%s/%s/v2", owner, first.ID), versions[1].StorageKey)

	contents, err := f.folders.GetFolderChildren(f.ctx, owner, year.ID)
	require.NoError(t, err)
	assert.Len(t, contents.Files, 1)

	assert.Equal(t, []services.EventKind{
		services.EventFolderCreated,
		services.EventFolderCreated,
		services.EventFileCreated,
		services.EventFileVersionAdded,
	}, f.notifier.kinds())
	last := f.notifier.last()
	assert.Equal(t, 2, last.Version)
	assert.Equal(t, models.PrivatePartitionID, last.PartitionID)
}

func TestUploadFile_Placement(t *testing.T) {
	f := newFixture(t)
	mine := f.mkdir(t, owner, "Mine", nil)
	general := f.mkGeneral(t, "Public", nil)

	t.Run("no folder", func(t *testing.T) {
		req := uploadReq(owner, "", "a.txt", "a")
		req.FolderID = nil
		_, err := f.files.UploadFile(f.ctx, req)
		assert.ErrorIs(t, err, domain.ErrInvalidPlacement)
	})

	t.Run("missing folder", func(t *testing.T) {
		_, err := f.files.UploadFile(f.ctx, uploadReq(owner, "missing", "a.txt", "a"))
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("another owner's private folder", func(t *testing.T) {
		_, err := f.files.UploadFile(f.ctx, uploadReq(other, mine.ID, "a.txt", "a"))
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("general without elevated role", func(t *testing.T) {
		_, err := f.files.UploadFile(f.ctx, uploadReq(owner, general.ID, "a.txt", "a"))
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("general as admin", func(t *testing.T) {
		file, err := f.files.UploadFile(f.ctx, uploadReq(adminID, general.ID, "a.txt", "a"))
		require.NoError(t, err)
		assert.Equal(t, 1, file.CurrentVersion)
	})

	t.Run("validation", func(t *testing.T) {
		_, err := f.files.UploadFile(f.ctx, uploadReq(owner, mine.ID, "a/b.txt", "a"))
		assert.ErrorIs(t, err, domain.ErrValidation)

		req := uploadReq(owner, mine.ID, "a.txt", "a")
		req.Content = nil
		_, err = f.files.UploadFile(f.ctx, req)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	assert.Equal(t, 1, f.blobs.Len())
}

func TestUploadFile_GeneralVersionsAreShared(t *testing.T) {
	f := newFixture(t)
	general := f.mkGeneral(t, "Public", nil)

	first := f.upload(t, adminID, general.ID, "handbook.pdf", "v1")
	second := f.upload(t, admin2ID, general.ID, "handbook.pdf", "v2!")

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.CurrentVersion)
	assert.Equal(t, adminID, second.OwnerID)

	versions, err := f.files.ListVersions(f.ctx, owner, first.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, admin2ID, versions[1].UploadedBy)
}

// staleNames misses existing files on the first lookups, like an uploader
// whose read happened before a concurrent upload committed
type staleNames struct {
	nsRepo.FileRepository
	mu     sync.Mutex
	misses int
}

func (r *staleNames) FindByName(ctx context.Context, scope nsRepo.FileScope) (*models.File, error) {
	r.mu.Lock()
	miss := r.misses > 0
	if miss {
		r.misses--
	}
	r.mu.Unlock()
	if miss {
		return nil, nil
	}
	return r.FileRepository.FindByName(ctx, scope)
}

func TestUploadFile_GeneralNameRaceBecomesVersion(t *testing.T) {
	f := newFixture(t)
	general := f.mkGeneral(t, "Public", nil)
	first := f.upload(t, adminID, general.ID, "x.txt", "one")

	deps := *f.deps
	deps.Files = &staleNames{FileRepository: f.deps.Files, misses: 1}
	files := NewFileService(&deps)

	second, err := files.UploadFile(f.ctx, uploadReq(admin2ID, general.ID, "x.txt", "two"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.CurrentVersion)

	contents, err := f.folders.GetFolderChildren(f.ctx, admin2ID, general.ID)
	require.NoError(t, err)
	assert.Len(t, contents.Files, 1)
}

// flakyVersions claims the next version number is taken for the first
// failures calls, like a concurrent uploader winning the race
type flakyVersions struct {
	nsRepo.VersionRepository
	mu       sync.Mutex
	failures int
	calls    int
}

func (r *flakyVersions) Create(ctx context.Context, v *models.FileVersion) error {
	r.mu.Lock()
	r.calls++
	fail := r.calls <= r.failures
	r.mu.Unlock()
	if fail {
		return fmt.Errorf("file %s version %d: %w", v.FileID, v.Version, nsRepo.ErrVersionExists)
	}
	return r.VersionRepository.Create(ctx, v)
}

func TestUploadFile_RetriesLostVersionRace(t *testing.T) {
	f := newFixture(t)
	mine := f.mkdir(t, owner, "Mine", nil)

	flaky := &flakyVersions{VersionRepository: f.deps.Versions, failures: config.MaxVersionRetries - 1}
	deps := *f.deps
	deps.Versions = flaky
	files := NewFileService(&deps)

	file, err := files.UploadFile(f.ctx, uploadReq(owner, mine.ID, "race.txt", "payload"))
	require.NoError(t, err)
	assert.Equal(t, 1, file.CurrentVersion)
	assert.Equal(t, config.MaxVersionRetries, flaky.calls)

	content, err := files.GetFileContent(f.ctx, owner, file.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "payload", readContent(t, content))

	// Failed attempts were rolled back: one file, one version
	contents, err := f.folders.GetFolderChildren(f.ctx, owner, mine.ID)
	require.NoError(t, err)
	assert.Len(t, contents.Files, 1)
	versions, err := files.ListVersions(f.ctx, owner, file.ID)
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestUploadFile_GivesUpAfterMaxRetries(t *testing.T) {
	f := newFixture(t)
	mine := f.mkdir(t, owner, "Mine", nil)

	flaky := &flakyVersions{VersionRepository: f.deps.Versions, failures: config.MaxVersionRetries}
	deps := *f.deps
	deps.Versions = flaky
	files := NewFileService(&deps)

	_, err := files.UploadFile(f.ctx, uploadReq(owner, mine.ID, "race.txt", "payload"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, nsRepo.ErrVersionExists))
	assert.Equal(t, 0, f.blobs.Len())
}

func TestUploadFile_ConcurrentSameName(t *testing.T) {
	f := newFixture(t)
	mine := f.mkdir(t, owner, "Mine", nil)

	const uploads = 10
	var wg sync.WaitGroup
	errs := make(chan error, uploads)
	for i := 0; i < uploads; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.files.UploadFile(f.ctx, uploadReq(owner, mine.ID, "shared.txt", strings.Repeat("x", i+1)))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	contents, err := f.folders.GetFolderChildren(f.ctx, owner, mine.ID)
	require.NoError(t, err)
	require.Len(t, contents.Files, 1)
	file := contents.Files[0]
	assert.Equal(t, uploads, file.CurrentVersion)

	versions, err := f.files.ListVersions(f.ctx, owner, file.ID)
	require.NoError(t, err)
	require.Len(t, versions, uploads)
	for i, v := range versions {
		assert.Equal(t, i+1, v.Version)
	}
}

func TestUploadFile_MeasuresUnknownSize(t *testing.T) {
	f := newFixture(t)
	mine := f.mkdir(t, owner, "Mine", nil)

	tests := []struct {
		name    string
		content io.Reader
	}{
		{"seekable", strings.NewReader("hello")},
		{"stream", io.MultiReader(strings.NewReader("hel"), strings.NewReader("lo"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file, err := f.files.UploadFile(f.ctx, &nsSvc.UploadFileRequest{
				Name:     tt.name + ".txt",
				FolderID: &mine.ID,
				OwnerID:  owner,
				Content:  tt.content,
			})
			require.NoError(t, err)
			assert.EqualValues(t, 5, file.Size)

			content, err := f.files.GetFileContent(f.ctx, owner, file.ID, nil)
			require.NoError(t, err)
			assert.Equal(t, "hello", readContent(t, content))
		})
	}
}

// failingCommit runs fn and then fails the way a lost connection during
// COMMIT would, so the memory store rolls the attempt back
type failingCommit struct {
	repositories.TransactionManager
}

func (m failingCommit) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	return m.TransactionManager.ExecTx(ctx, func(txCtx context.Context) error {
		if err := fn(txCtx); err != nil {
			return err
		}
		return errors.New("commit failed")
	})
}

func TestUploadFile_FailedCommitRemovesContent(t *testing.T) {
	f := newFixture(t)
	mine := f.mkdir(t, owner, "Mine", nil)

	deps := *f.deps
	deps.TxManager = failingCommit{TransactionManager: f.deps.TxManager}
	files := NewFileService(&deps)

	_, err := files.UploadFile(f.ctx, uploadReq(owner, mine.ID, "lost.txt", "payload"))
	require.Error(t, err)
	assert.Equal(t, 0, f.blobs.Len())

	contents, err := f.folders.GetFolderChildren(f.ctx, owner, mine.ID)
	require.NoError(t, err)
	assert.Empty(t, contents.Files)
}

func TestUploadFiles_PartialSuccess(t *testing.T) {
	f := newFixture(t)
	mine := f.mkdir(t, owner, "Mine", nil)

	uploaded, err := f.files.UploadFiles(f.ctx, &nsSvc.BatchUploadRequest{
		FolderID: &mine.ID,
		OwnerID:  owner,
		Items: []nsSvc.UploadedItem{
			{Name: "a.txt", Content: strings.NewReader("aa"), Size: 2},
			{Name: "bad/name.txt", Content: strings.NewReader("bb"), Size: 2},
			{Name: "c.txt", Content: strings.NewReader("ccc"), Size: 3},
		},
	})
	require.NoError(t, err)
	require.Len(t, uploaded, 2)
	assert.Equal(t, "a.txt", uploaded[0].Name)
	assert.Equal(t, "c.txt", uploaded[1].Name)

	size, err := f.trees.CalculateFolderSize(f.ctx, mine.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 5, size)

	_, err = f.files.UploadFiles(f.ctx, &nsSvc.BatchUploadRequest{FolderID: &mine.ID, OwnerID: owner})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestUploadNewVersion(t *testing.T) {
	f := newFixture(t)
	mine := f.mkdir(t, owner, "Mine", nil)
	file := f.upload(t, owner, mine.ID, "notes.md", "one")

	updated, err := f.files.UploadNewVersion(f.ctx, owner, file.ID, &nsSvc.NewVersionRequest{
		Content:  strings.NewReader("second"),
		MimeType: "text/markdown",
		Size:     6,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.CurrentVersion)
	assert.Equal(t, "text/markdown", updated.MimeType)
	assert.EqualValues(t, 6, updated.Size)

	_, err = f.files.UploadNewVersion(f.ctx, other, file.ID, &nsSvc.NewVersionRequest{Content: strings.NewReader("x"), Size: 1})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.files.UploadNewVersion(f.ctx, owner, "missing", &nsSvc.NewVersionRequest{Content: strings.NewReader("x"), Size: 1})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Non-seekable content is buffered
	updated, err = f.files.UploadNewVersion(f.ctx, owner, file.ID, &nsSvc.NewVersionRequest{
		Content: io.MultiReader(strings.NewReader("thi"), strings.NewReader("rd")),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.CurrentVersion)
	assert.EqualValues(t, 5, updated.Size)
}

func TestGetFileContent(t *testing.T) {
	f := newFixture(t)
	mine := f.mkdir(t, owner, "Mine", nil)
	file := f.upload(t, owner, mine.ID, "doc.txt", "first")
	f.upload(t, owner, mine.ID, "doc.txt", "second")

	current, err := f.files.GetFileContent(f.ctx, owner, file.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, current.Version.Version)
	assert.Equal(t, "second", readContent(t, current))

	v1 := 1
	old, err := f.files.GetFileContent(f.ctx, owner, file.ID, &v1)
	require.NoError(t, err)
	assert.Equal(t, "first", readContent(t, old))

	v9 := 9
	_, err = f.files.GetFileContent(f.ctx, owner, file.ID, &v9)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, "file version not found", err.Error())

	_, err = f.files.GetFileContent(f.ctx, other, file.ID, nil)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.files.GetFileContent(f.ctx, owner, "missing", nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetFile_GeneralIsReadableByEveryone(t *testing.T) {
	f := newFixture(t)
	general := f.mkGeneral(t, "Public", nil)
	file := f.upload(t, adminID, general.ID, "rules.txt", "be nice")

	got, err := f.files.GetFile(f.ctx, other, file.ID)
	require.NoError(t, err)
	assert.Equal(t, "rules.txt", got.Name)

	content, err := f.files.GetFileContent(f.ctx, other, file.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "be nice", readContent(t, content))
}

func TestUpdateFile(t *testing.T) {
	f := newFixture(t)
	a := f.mkdir(t, owner, "A", nil)
	b := f.mkdir(t, owner, "B", nil)
	theirs := f.mkdir(t, other, "Theirs", nil)
	general := f.mkGeneral(t, "Public", nil)
	file := f.upload(t, owner, a.ID, "report.txt", "data")
	f.upload(t, owner, b.ID, "taken.txt", "x")

	t.Run("rename", func(t *testing.T) {
		updated, err := f.files.UpdateFile(f.ctx, owner, file.ID, &nsSvc.UpdateFileRequest{Name: strPtr("final.txt")})
		require.NoError(t, err)
		assert.Equal(t, "final.txt", updated.Name)
		assert.Equal(t, services.EventFileUpdated, f.notifier.last().Kind)
	})

	t.Run("move", func(t *testing.T) {
		updated, err := f.files.UpdateFile(f.ctx, owner, file.ID, &nsSvc.UpdateFileRequest{FolderID: &b.ID})
		require.NoError(t, err)
		assert.Equal(t, b.ID, *updated.FolderID)
	})

	t.Run("conflict in destination", func(t *testing.T) {
		_, err := f.files.UpdateFile(f.ctx, owner, file.ID, &nsSvc.UpdateFileRequest{Name: strPtr("taken.txt")})
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("into another owner's folder", func(t *testing.T) {
		_, err := f.files.UpdateFile(f.ctx, owner, file.ID, &nsSvc.UpdateFileRequest{FolderID: &theirs.ID})
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("into general without elevated role", func(t *testing.T) {
		_, err := f.files.UpdateFile(f.ctx, owner, file.ID, &nsSvc.UpdateFileRequest{FolderID: &general.ID})
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("missing destination", func(t *testing.T) {
		_, err := f.files.UpdateFile(f.ctx, owner, file.ID, &nsSvc.UpdateFileRequest{FolderID: strPtr("missing")})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("not the owner", func(t *testing.T) {
		_, err := f.files.UpdateFile(f.ctx, other, file.ID, &nsSvc.UpdateFileRequest{Name: strPtr("mine.txt")})
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("permission bits", func(t *testing.T) {
		updated, err := f.files.UpdateFile(f.ctx, owner, file.ID, &nsSvc.UpdateFileRequest{PermissionBits: strPtr("600")})
		require.NoError(t, err)
		assert.Equal(t, "600", updated.PermissionBits)

		_, err = f.files.UpdateFile(f.ctx, owner, file.ID, &nsSvc.UpdateFileRequest{PermissionBits: strPtr("rw")})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	got, err := f.files.GetFile(f.ctx, owner, file.ID)
	require.NoError(t, err)
	assert.Equal(t, "final.txt", got.Name)
	assert.Equal(t, b.ID, *got.FolderID)
}

func TestUpdateFile_GeneralWritableByAnyAdmin(t *testing.T) {
	f := newFixture(t)
	general := f.mkGeneral(t, "Public", nil)
	archive := f.mkGeneral(t, "Archive", nil)
	file := f.upload(t, adminID, general.ID, "rules.txt", "be nice")

	renamed, err := f.files.UpdateFile(f.ctx, admin2ID, file.ID, &nsSvc.UpdateFileRequest{Name: strPtr("policy.txt")})
	require.NoError(t, err)
	assert.Equal(t, "policy.txt", renamed.Name)
	assert.Equal(t, adminID, renamed.OwnerID)

	moved, err := f.files.UpdateFile(f.ctx, admin2ID, file.ID, &nsSvc.UpdateFileRequest{FolderID: &archive.ID})
	require.NoError(t, err)
	assert.Equal(t, archive.ID, *moved.FolderID)

	_, err = f.files.UpdateFile(f.ctx, owner, file.ID, &nsSvc.UpdateFileRequest{Name: strPtr("mine.txt")})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	private := f.mkdir(t, admin2ID, "Mine", nil)
	_, err = f.files.UpdateFile(f.ctx, admin2ID, file.ID, &nsSvc.UpdateFileRequest{FolderID: &private.ID})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestDeleteFile(t *testing.T) {
	f := newFixture(t)
	mine := f.mkdir(t, owner, "Mine", nil)
	file := f.upload(t, owner, mine.ID, "doc.txt", "one")
	f.upload(t, owner, mine.ID, "doc.txt", "two")
	require.Equal(t, 2, f.blobs.Len())

	assert.ErrorIs(t, f.files.DeleteFile(f.ctx, other, file.ID), domain.ErrForbidden)
	assert.ErrorIs(t, f.files.DeleteFile(f.ctx, owner, "missing"), domain.ErrNotFound)

	require.NoError(t, f.files.DeleteFile(f.ctx, owner, file.ID))
	_, err := f.files.GetFile(f.ctx, owner, file.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 0, f.blobs.Len())

	versions, err := f.deps.Versions.ListByFile(f.ctx, file.ID)
	require.NoError(t, err)
	assert.Empty(t, versions)
	assert.Equal(t, services.EventFileDeleted, f.notifier.last().Kind)
}
