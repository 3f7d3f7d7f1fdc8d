package namespace

import "time"

type File struct {
	ID             string    `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	FolderID       *string   `json:"folder_id" db:"folder_id"`
	OwnerID        string    `json:"owner_id" db:"owner_id"`
	Size           int64     `json:"size" db:"size"`
	MimeType       string    `json:"mime_type" db:"mime_type"`
	CurrentVersion int       `json:"current_version" db:"current_version"` // Highest version among its FileVersions
	PermissionBits string    `json:"permission_bits" db:"permission_bits"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// FileVersion is append-only: rows are never updated or renumbered
type FileVersion struct {
	ID         string    `json:"id" db:"id"`
	FileID     string    `json:"file_id" db:"file_id"`
	Version    int       `json:"version" db:"version"`
	StorageKey string    `json:"storage_key" db:"storage_key"`
	Size       int64     `json:"size" db:"size"`
	MimeType   string    `json:"mime_type" db:"mime_type"`
	UploadedBy string    `json:"uploaded_by" db:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
