package namespace

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"cabinet/internal/blob"
	models "cabinet/internal/domain/models/namespace"
	"cabinet/internal/domain/services"
	nsSvc "cabinet/internal/domain/services/namespace"
	"cabinet/internal/identity"
	"cabinet/internal/repository/memory"
	"cabinet/internal/service/policy"

	"github.com/stretchr/testify/require"
)

const (
	owner    = "user-7"
	other    = "user-8"
	adminID  = "admin-1"
	admin2ID = "admin-2"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []services.Event
}

func (n *recordingNotifier) Publish(ctx context.Context, event services.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) kinds() []services.EventKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]services.EventKind, len(n.events))
	for i, e := range n.events {
		out[i] = e.Kind
	}
	return out
}

func (n *recordingNotifier) last() services.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.events[len(n.events)-1]
}

type fixture struct {
	ctx      context.Context
	store    *memory.Store
	deps     *Dependencies
	blobs    *blob.MemoryStore
	notifier *recordingNotifier
	folders  nsSvc.FolderService
	trees    nsSvc.TreeService
	files    nsSvc.FileService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore(logger)

	folderRepo := memory.NewFolderRepository(store)
	registry, err := NewRegistry(memory.NewPartitionRepository(store), folderRepo, logger)
	require.NoError(t, err)

	evaluator, err := policy.NewEvaluator()
	require.NoError(t, err)

	blobs := blob.NewMemoryStore()
	notifier := &recordingNotifier{}
	deps := &Dependencies{
		TxManager:  memory.NewTransactionManager(store),
		Partitions: registry,
		Folders:    folderRepo,
		Files:      memory.NewFileRepository(store),
		Versions:   memory.NewVersionRepository(store),
		Policy:     evaluator,
		Roles:      identity.NewStaticRoleProvider([]string{adminID, admin2ID}),
		Blobs:      blobs,
		Notifier:   notifier,
		Logger:     logger,
	}

	ctx := context.Background()
	require.NoError(t, registry.Bootstrap(ctx))

	return &fixture{
		ctx:      ctx,
		store:    store,
		deps:     deps,
		blobs:    blobs,
		notifier: notifier,
		folders:  NewFolderService(deps),
		trees:    NewTreeService(deps),
		files:    NewFileService(deps),
	}
}

func partitionPtr(p models.PartitionType) *models.PartitionType { return &p }

func strPtr(s string) *string { return &s }

func (f *fixture) mkdir(t *testing.T, ownerID, name string, parentID *string) *models.Folder {
	t.Helper()
	folder, err := f.folders.CreateFolder(f.ctx, &nsSvc.CreateFolderRequest{
		Name:     name,
		ParentID: parentID,
		OwnerID:  ownerID,
	})
	require.NoError(t, err)
	return folder
}

func (f *fixture) mkGeneral(t *testing.T, name string, parentID *string) *models.Folder {
	t.Helper()
	folder, err := f.folders.CreateFolder(f.ctx, &nsSvc.CreateFolderRequest{
		Name:      name,
		ParentID:  parentID,
		OwnerID:   adminID,
		Partition: partitionPtr(models.PartitionGeneral),
	})
	require.NoError(t, err)
	return folder
}

func (f *fixture) upload(t *testing.T, ownerID, folderID, name, content string) *models.File {
	t.Helper()
	file, err := f.files.UploadFile(f.ctx, uploadReq(ownerID, folderID, name, content))
	require.NoError(t, err)
	return file
}

func uploadReq(ownerID, folderID, name, content string) *nsSvc.UploadFileRequest {
	return &nsSvc.UploadFileRequest{
		Name:     name,
		FolderID: &folderID,
		OwnerID:  ownerID,
		Content:  strings.NewReader(content),
		MimeType: "text/plain",
		Size:     int64(len(content)),
	}
}
