package namespace

import "time"

// TreeNode is either a virtual partition root or a real folder.
// Virtual roots have a nil FolderID and carry partition information; they
// are synthesized per request and never persisted.
type TreeNode struct {
	FolderID      *string       `json:"folder_id"`
	Name          string        `json:"name"`
	Path          string        `json:"path,omitempty"`
	PartitionID   int           `json:"partition_id"`
	PartitionType PartitionType `json:"partition_type"`
	Virtual       bool          `json:"virtual"`
	OwnerID       string        `json:"owner_id,omitempty"`
	Size          int64         `json:"size"`
	UpdatedAt     *time.Time    `json:"updated_at,omitempty"`
	Children      []*TreeNode   `json:"children"`
}

// NewVirtualRoot builds the synthetic node for a partition
func NewVirtualRoot(p Partition) *TreeNode {
	return &TreeNode{
		Name:          p.Name,
		PartitionID:   p.ID,
		PartitionType: p.Type,
		Virtual:       true,
		Children:      []*TreeNode{},
	}
}

// NewFolderNode builds a tree node for a real folder (children filled by caller)
func NewFolderNode(f *Folder, p Partition) *TreeNode {
	id := f.ID
	updated := f.UpdatedAt
	return &TreeNode{
		FolderID:      &id,
		Name:          f.Name,
		Path:          f.Path,
		PartitionID:   p.ID,
		PartitionType: p.Type,
		OwnerID:       f.OwnerID,
		UpdatedAt:     &updated,
		Children:      []*TreeNode{},
	}
}

// FolderContents is one level of the namespace: either the contents of a
// partition (Partition set, Folder nil) or of a real folder.
type FolderContents struct {
	Partition *Partition `json:"partition,omitempty"`
	Folder    *Folder    `json:"folder,omitempty"`
	Folders   []Folder   `json:"folders"`
	Files     []File     `json:"files"`
}
