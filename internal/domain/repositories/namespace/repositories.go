package namespace

import (
	"context"
	"errors"

	models "cabinet/internal/domain/models/namespace"
)

// ErrVersionExists is returned when a (file_id, version) pair is already
// taken. Uploaders treat it as a lost race and retry with a fresh read.
var ErrVersionExists = errors.New("file version already exists")

// SiblingScope identifies the uniqueness scope of a folder name.
// OwnerID nil means "any owner" (General partition).
type SiblingScope struct {
	PartitionID int
	ParentID    *string
	OwnerID     *string
	Name        string
}

// FileScope identifies the uniqueness scope of a file name inside a folder.
// OwnerID nil means "any owner" (General partition).
type FileScope struct {
	FolderID string
	OwnerID  *string
	Name     string
}

// PartitionRepository persists the three system partitions
type PartitionRepository interface {
	// EnsureAll inserts the given partitions if absent (idempotent)
	EnsureAll(ctx context.Context, partitions []models.Partition) error

	// List returns all partitions ordered by ID
	List(ctx context.Context) ([]models.Partition, error)
}

// FolderRepository defines data access operations for folders
type FolderRepository interface {
	// Create creates a new folder, filling ID and timestamps
	Create(ctx context.Context, folder *models.Folder) error

	// GetByID retrieves a folder by ID
	GetByID(ctx context.Context, id string) (*models.Folder, error)

	// GetForUpdate retrieves a folder and locks its row until the
	// surrounding transaction ends
	GetForUpdate(ctx context.Context, id string) (*models.Folder, error)

	// Update persists name, path, parent and permission bits
	Update(ctx context.Context, folder *models.Folder) error

	// Delete deletes a single folder row
	Delete(ctx context.Context, id string) error

	// ListChildren lists immediate child folders of a real folder (all owners)
	ListChildren(ctx context.Context, parentID string) ([]models.Folder, error)

	// ListPartitionLevel lists folders without a parent in a partition.
	// A nil ownerID lists every owner's folders.
	ListPartitionLevel(ctx context.Context, partitionID int, ownerID *string) ([]models.Folder, error)

	// FindSibling returns the folder occupying a name in a scope, or nil
	FindSibling(ctx context.Context, scope SiblingScope) (*models.Folder, error)
}

// FileRepository defines data access operations for file metadata
type FileRepository interface {
	Create(ctx context.Context, file *models.File) error
	GetByID(ctx context.Context, id string) (*models.File, error)
	GetForUpdate(ctx context.Context, id string) (*models.File, error)
	Update(ctx context.Context, file *models.File) error
	Delete(ctx context.Context, id string) error

	// FindByName returns the file occupying a name in a folder scope, or nil
	FindByName(ctx context.Context, scope FileScope) (*models.File, error)

	// ListByFolder lists files directly inside a folder
	ListByFolder(ctx context.Context, folderID string) ([]models.File, error)

	// SumSizeByFolder sums the size of files directly inside a folder
	SumSizeByFolder(ctx context.Context, folderID string) (int64, error)
}

// VersionRepository defines data access operations for the version chain
type VersionRepository interface {
	// Create appends a version; returns ErrVersionExists on a duplicate number
	Create(ctx context.Context, version *models.FileVersion) error

	// Get retrieves one version of a file
	Get(ctx context.Context, fileID string, version int) (*models.FileVersion, error)

	// ListByFile returns the chain ordered by version ascending
	ListByFile(ctx context.Context, fileID string) ([]models.FileVersion, error)

	// DeleteByFile removes the whole chain of a file
	DeleteByFile(ctx context.Context, fileID string) error
}
