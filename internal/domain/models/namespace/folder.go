package namespace

import (
	"time"
)

type Folder struct {
	ID             string    `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	Path           string    `json:"path" db:"path"`           // Slash-joined ancestor names, stored and kept in sync
	ParentID       *string   `json:"parent_id" db:"parent_id"` // NULL = partition-level folder
	OwnerID        string    `json:"owner_id" db:"owner_id"`
	PartitionID    int       `json:"partition_id" db:"partition_id"` // Fixed at creation
	PermissionBits string    `json:"permission_bits" db:"permission_bits"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// IsPartitionLevel reports whether the folder sits directly under its partition
func (f *Folder) IsPartitionLevel() bool {
	return f.ParentID == nil
}

// JoinPath derives a child path from its parent's path
func JoinPath(parentPath, name string) string {
	if parentPath == "" {
		return name
	}
	return parentPath + "/" + name
}
