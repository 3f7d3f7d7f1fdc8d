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

// FileRepository implements nsRepo.FileRepository in memory
type FileRepository struct {
	store *Store
}

// NewFileRepository creates a file repository backed by store
func NewFileRepository(store *Store) nsRepo.FileRepository {
	return &FileRepository{store: store}
}

// Create creates a new file row
func (r *FileRepository) Create(ctx context.Context, file *models.File) error {
	return r.store.write(ctx, func() error {
		if file.FolderID != nil {
			if _, ok := r.store.folders[*file.FolderID]; !ok {
				return fmt.Errorf("create file: folder %s does not exist", *file.FolderID)
			}
		}
		if r.collides(*file, "") {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("a file named %q already exists in this folder", file.Name),
				ResourceType: "file",
			}
		}

		file.ID = uuid.NewString()
		stamp(&file.CreatedAt, &file.UpdatedAt)
		r.store.files[file.ID] = cloneFile(*file)
		return nil
	})
}

// collides mirrors UNIQUE (folder_id, owner_id, name) and, inside General,
// files_general_name_key across owners. Caller holds the lock.
func (r *FileRepository) collides(f models.File, selfID string) bool {
	general := false
	if f.FolderID != nil {
		general = r.store.folders[*f.FolderID].PartitionID == models.GeneralPartitionID
	}
	for id, other := range r.store.files {
		if id == selfID || other.Name != f.Name || !sameParent(other.FolderID, f.FolderID) {
			continue
		}
		if general || other.OwnerID == f.OwnerID {
			return true
		}
	}
	return false
}

// GetByID retrieves a file by ID
func (r *FileRepository) GetByID(ctx context.Context, id string) (*models.File, error) {
	var file models.File
	var ok bool
	r.store.read(func() {
		file, ok = r.store.files[id]
		file = cloneFile(file)
	})
	if !ok {
		return nil, domain.NewNotFound("file", id)
	}
	return &file, nil
}

// GetForUpdate is GetByID: writers are already serialized by the store
func (r *FileRepository) GetForUpdate(ctx context.Context, id string) (*models.File, error) {
	return r.GetByID(ctx, id)
}

// Update updates mutable file metadata
func (r *FileRepository) Update(ctx context.Context, file *models.File) error {
	return r.store.write(ctx, func() error {
		existing, ok := r.store.files[file.ID]
		if !ok {
			return domain.NewNotFound("file", file.ID)
		}
		if r.collides(*file, file.ID) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("a file named %q already exists in this folder", file.Name),
				ResourceType: "file",
			}
		}

		existing.Name = file.Name
		existing.FolderID = file.FolderID
		existing.Size = file.Size
		existing.MimeType = file.MimeType
		existing.CurrentVersion = file.CurrentVersion
		existing.PermissionBits = file.PermissionBits
		existing.UpdatedAt = file.UpdatedAt
		r.store.files[file.ID] = cloneFile(existing)
		return nil
	})
}

// Delete deletes a file row and, like the cascade constraint, its versions
func (r *FileRepository) Delete(ctx context.Context, id string) error {
	return r.store.write(ctx, func() error {
		if _, ok := r.store.files[id]; !ok {
			return domain.NewNotFound("file", id)
		}
		delete(r.store.files, id)
		delete(r.store.versions, id)
		return nil
	})
}

// FindByName returns the file occupying a name in a folder scope
func (r *FileRepository) FindByName(ctx context.Context, scope nsRepo.FileScope) (*models.File, error) {
	var match *models.File
	r.store.read(func() {
		for _, f := range r.store.files {
			if f.FolderID == nil || *f.FolderID != scope.FolderID || f.Name != scope.Name {
				continue
			}
			if scope.OwnerID != nil && f.OwnerID != *scope.OwnerID {
				continue
			}
			// Oldest wins, matching ORDER BY created_at
			if match == nil || f.CreatedAt.Before(match.CreatedAt) {
				c := cloneFile(f)
				match = &c
			}
		}
	})
	return match, nil
}

// ListByFolder lists files directly inside a folder
func (r *FileRepository) ListByFolder(ctx context.Context, folderID string) ([]models.File, error) {
	out := []models.File{}
	r.store.read(func() {
		for _, f := range r.store.files {
			if f.FolderID != nil && *f.FolderID == folderID {
				out = append(out, cloneFile(f))
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// SumSizeByFolder sums sizes of files directly inside a folder
func (r *FileRepository) SumSizeByFolder(ctx context.Context, folderID string) (int64, error) {
	var total int64
	r.store.read(func() {
		for _, f := range r.store.files {
			if f.FolderID != nil && *f.FolderID == folderID {
				total += f.Size
			}
		}
	})
	return total, nil
}
