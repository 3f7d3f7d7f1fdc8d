package memory

import (
	"context"
	"fmt"
	"sort"

	"cabinet/internal/domain"
	models "cabinet/internal/domain/models/namespace"
	nsRepo "cabinet/internal/domain/repositories/namespace"

	"github.com/google/uuid"
)

// FolderRepository implements nsRepo.FolderRepository in memory
type FolderRepository struct {
	store *Store
}

// NewFolderRepository creates a folder repository backed by store
func NewFolderRepository(store *Store) nsRepo.FolderRepository {
	return &FolderRepository{store: store}
}

// Create creates a new folder
func (r *FolderRepository) Create(ctx context.Context, folder *models.Folder) error {
	return r.store.write(ctx, func() error {
		if _, ok := r.store.partitions[folder.PartitionID]; !ok {
			return fmt.Errorf("create folder: unknown partition %d", folder.PartitionID)
		}
		if folder.ParentID != nil {
			if _, ok := r.store.folders[*folder.ParentID]; !ok {
				return fmt.Errorf("create folder: parent %s does not exist", *folder.ParentID)
			}
		}
		if r.collides(*folder, "") {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("a folder named %q already exists in this location", folder.Name),
				ResourceType: "folder",
			}
		}

		folder.ID = uuid.NewString()
		stamp(&folder.CreatedAt, &folder.UpdatedAt)
		r.store.folders[folder.ID] = cloneFolder(*folder)
		return nil
	})
}

// collides applies the same uniqueness rule as the Postgres indexes.
// Caller holds the write lock.
func (r *FolderRepository) collides(f models.Folder, selfID string) bool {
	for id, other := range r.store.folders {
		if id == selfID || other.PartitionID != f.PartitionID || other.Name != f.Name {
			continue
		}
		if !sameParent(other.ParentID, f.ParentID) {
			continue
		}
		if f.PartitionID == models.GeneralPartitionID || other.OwnerID == f.OwnerID {
			return true
		}
	}
	return false
}

// GetByID retrieves a folder by ID
func (r *FolderRepository) GetByID(ctx context.Context, id string) (*models.Folder, error) {
	var folder models.Folder
	var ok bool
	r.store.read(func() {
		folder, ok = r.store.folders[id]
		folder = cloneFolder(folder)
	})
	if !ok {
		return nil, domain.NewNotFound("folder", id)
	}
	return &folder, nil
}

// GetForUpdate is GetByID: writers are already serialized by the store
func (r *FolderRepository) GetForUpdate(ctx context.Context, id string) (*models.Folder, error) {
	return r.GetByID(ctx, id)
}

// Update updates a folder
func (r *FolderRepository) Update(ctx context.Context, folder *models.Folder) error {
	return r.store.write(ctx, func() error {
		existing, ok := r.store.folders[folder.ID]
		if !ok {
			return domain.NewNotFound("folder", folder.ID)
		}
		if r.collides(*folder, folder.ID) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("a folder named %q already exists in this location", folder.Name),
				ResourceType: "folder",
			}
		}

		existing.Name = folder.Name
		existing.Path = folder.Path
		existing.ParentID = folder.ParentID
		existing.PermissionBits = folder.PermissionBits
		existing.UpdatedAt = folder.UpdatedAt
		r.store.folders[folder.ID] = cloneFolder(existing)
		return nil
	})
}

// Delete deletes a folder; like the ON DELETE CASCADE constraints, its
// subfolders, files and versions go with it.
func (r *FolderRepository) Delete(ctx context.Context, id string) error {
	return r.store.write(ctx, func() error {
		if _, ok := r.store.folders[id]; !ok {
			return domain.NewNotFound("folder", id)
		}
		r.cascade(id)
		return nil
	})
}

func (r *FolderRepository) cascade(id string) {
	for childID, child := range r.store.folders {
		if child.ParentID != nil && *child.ParentID == id {
			r.cascade(childID)
		}
	}
	for fileID, file := range r.store.files {
		if file.FolderID != nil && *file.FolderID == id {
			delete(r.store.versions, fileID)
			delete(r.store.files, fileID)
		}
	}
	delete(r.store.folders, id)
}

// ListChildren lists immediate child folders
func (r *FolderRepository) ListChildren(ctx context.Context, parentID string) ([]models.Folder, error) {
	return r.filter(func(f models.Folder) bool {
		return f.ParentID != nil && *f.ParentID == parentID
	}), nil
}

// ListPartitionLevel lists folders without a parent in a partition
func (r *FolderRepository) ListPartitionLevel(ctx context.Context, partitionID int, ownerID *string) ([]models.Folder, error) {
	return r.filter(func(f models.Folder) bool {
		if f.ParentID != nil || f.PartitionID != partitionID {
			return false
		}
		return ownerID == nil || f.OwnerID == *ownerID
	}), nil
}

// FindSibling returns the folder occupying a name within a scope
func (r *FolderRepository) FindSibling(ctx context.Context, scope nsRepo.SiblingScope) (*models.Folder, error) {
	matches := r.filter(func(f models.Folder) bool {
		if f.PartitionID != scope.PartitionID || f.Name != scope.Name || !sameParent(f.ParentID, scope.ParentID) {
			return false
		}
		return scope.OwnerID == nil || f.OwnerID == *scope.OwnerID
	})
	if len(matches) == 0 {
		return nil, nil
	}
	return &matches[0], nil
}

func (r *FolderRepository) filter(keep func(models.Folder) bool) []models.Folder {
	out := []models.Folder{}
	r.store.read(func() {
		for _, f := range r.store.folders {
			if keep(f) {
				out = append(out, cloneFolder(f))
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}
