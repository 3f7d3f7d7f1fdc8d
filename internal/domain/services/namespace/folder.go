package namespace

import (
	"context"

	models "cabinet/internal/domain/models/namespace"
)

// FolderService handles folder business logic (the namespace manager)
type FolderService interface {
	// CreateFolder creates a folder in the resolved partition
	CreateFolder(ctx context.Context, req *CreateFolderRequest) (*models.Folder, error)

	// GetFolder retrieves a folder visible to the actor
	GetFolder(ctx context.Context, actorID, folderID string) (*models.Folder, error)

	// UpdateFolder renames, moves or changes permission bits of a folder
	UpdateFolder(ctx context.Context, actorID, folderID string, req *UpdateFolderRequest) (*models.Folder, error)

	// DeleteFolder deletes a folder and everything beneath it
	DeleteFolder(ctx context.Context, actorID, folderID string) error

	// GetFolderChildren lists one level below a partition or a real folder
	GetFolderChildren(ctx context.Context, actorID, ref string) (*models.FolderContents, error)

	// IsAncestor reports whether candidateID appears on startID's parent chain
	// (startID itself included)
	IsAncestor(ctx context.Context, candidateID, startID string) (bool, error)
}

// TreeService assembles the partitioned folder tree
type TreeService interface {
	// GetFolderTree returns one virtual root per partition
	GetFolderTree(ctx context.Context, ownerID string) ([]*models.TreeNode, error)

	// CalculateFolderSize sums file sizes in a folder's subtree
	CalculateFolderSize(ctx context.Context, folderID string) (int64, error)
}

// CreateFolderRequest represents a folder creation request
type CreateFolderRequest struct {
	Name           string                `json:"name"`
	ParentID       *string               `json:"parent_id,omitempty"` // nil = partition level
	OwnerID        string                `json:"owner_id"`
	Partition      *models.PartitionType `json:"partition,omitempty"` // used only without a parent
	PermissionBits string                `json:"permission_bits,omitempty"`
}

// UpdateFolderRequest represents a folder update request.
// At least one field must be provided.
type UpdateFolderRequest struct {
	Name           *string    `json:"name,omitempty"`
	ParentID       OptionalID `json:"parent_id"`
	PermissionBits *string    `json:"permission_bits,omitempty"`
}
