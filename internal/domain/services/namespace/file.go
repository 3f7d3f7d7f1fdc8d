package namespace

import (
	"context"
	"io"

	models "cabinet/internal/domain/models/namespace"
)

// FileService handles file metadata and the version chain
type FileService interface {
	// UploadFile creates a file or appends a version to the existing one
	UploadFile(ctx context.Context, req *UploadFileRequest) (*models.File, error)

	// UploadFiles uploads a batch; failed items are logged and skipped
	UploadFiles(ctx context.Context, req *BatchUploadRequest) ([]*models.File, error)

	// UploadNewVersion appends a version to an existing file
	UploadNewVersion(ctx context.Context, actorID, fileID string, req *NewVersionRequest) (*models.File, error)

	// GetFile retrieves file metadata visible to the actor
	GetFile(ctx context.Context, actorID, fileID string) (*models.File, error)

	// ListVersions returns the version chain of a file
	ListVersions(ctx context.Context, actorID, fileID string) ([]models.FileVersion, error)

	// GetFileContent opens the bytes of a version (current when version is nil)
	GetFileContent(ctx context.Context, actorID, fileID string, version *int) (*FileContent, error)

	// UpdateFile renames, moves or changes permission bits of a file
	UpdateFile(ctx context.Context, actorID, fileID string, req *UpdateFileRequest) (*models.File, error)

	// DeleteFile deletes a file, its versions and their bytes
	DeleteFile(ctx context.Context, actorID, fileID string) error
}

// UploadFileRequest represents a single upload
type UploadFileRequest struct {
	Name           string    `json:"name"`
	FolderID       *string   `json:"folder_id"`
	OwnerID        string    `json:"owner_id"`
	Content        io.Reader `json:"-"`
	MimeType       string    `json:"mime_type"`
	Size           int64     `json:"size"`
	PermissionBits string    `json:"permission_bits,omitempty"`
}

// BatchUploadRequest uploads several files into one folder
type BatchUploadRequest struct {
	FolderID *string        `json:"folder_id"`
	OwnerID  string         `json:"owner_id"`
	Items    []UploadedItem `json:"items"`
}

// UploadedItem is one entry of a batch upload
type UploadedItem struct {
	Name           string    `json:"name"`
	Content        io.Reader `json:"-"`
	MimeType       string    `json:"mime_type"`
	Size           int64     `json:"size"`
	PermissionBits string    `json:"permission_bits,omitempty"`
}

// NewVersionRequest carries the bytes of a new version
type NewVersionRequest struct {
	Content  io.Reader `json:"-"`
	MimeType string    `json:"mime_type"`
	Size     int64     `json:"size"`
}

// UpdateFileRequest represents a file update request.
// At least one field must be provided.
type UpdateFileRequest struct {
	Name           *string `json:"name,omitempty"`
	FolderID       *string `json:"folder_id,omitempty"` // move
	PermissionBits *string `json:"permission_bits,omitempty"`
}

// FileContent is an open version of a file. The caller closes Body.
type FileContent struct {
	File    *models.File        `json:"file"`
	Version *models.FileVersion `json:"version"`
	Body    io.ReadCloser       `json:"-"`
}
