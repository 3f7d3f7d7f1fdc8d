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

// VersionRepository implements nsRepo.VersionRepository in memory
type VersionRepository struct {
	store *Store
}

// NewVersionRepository creates a version repository backed by store
func NewVersionRepository(store *Store) nsRepo.VersionRepository {
	return &VersionRepository{store: store}
}

// Create appends a version; numbers must be unique per file
func (r *VersionRepository) Create(ctx context.Context, v *models.FileVersion) error {
	return r.store.write(ctx, func() error {
		if _, ok := r.store.files[v.FileID]; !ok {
			return fmt.Errorf("create file version: file %s does not exist", v.FileID)
		}
		for _, existing := range r.store.versions[v.FileID] {
			if existing.Version == v.Version {
				return fmt.Errorf("file %s version %d: %w", v.FileID, v.Version, nsRepo.ErrVersionExists)
			}
		}

		v.ID = uuid.NewString()
		stamp(&v.CreatedAt, nil)
		chain := append(r.store.versions[v.FileID], *v)
		sortChain(chain)
		r.store.versions[v.FileID] = chain
		return nil
	})
}

// Get retrieves one version of a file
func (r *VersionRepository) Get(ctx context.Context, fileID string, version int) (*models.FileVersion, error) {
	var found *models.FileVersion
	r.store.read(func() {
		for _, v := range r.store.versions[fileID] {
			if v.Version == version {
				c := v
				found = &c
				return
			}
		}
	})
	if found == nil {
		return nil, &domain.NotFoundError{
			Message:      "file version not found",
			ResourceType: "file_version",
			ResourceID:   fmt.Sprintf("%s@%d", fileID, version),
		}
	}
	return found, nil
}

// ListByFile returns the version chain ordered ascending
func (r *VersionRepository) ListByFile(ctx context.Context, fileID string) ([]models.FileVersion, error) {
	out := []models.FileVersion{}
	r.store.read(func() {
		out = append(out, r.store.versions[fileID]...)
	})
	return out, nil
}

// DeleteByFile removes every version of a file
func (r *VersionRepository) DeleteByFile(ctx context.Context, fileID string) error {
	return r.store.write(ctx, func() error {
		delete(r.store.versions, fileID)
		return nil
	})
}

func sortChain(chain []models.FileVersion) {
	sort.Slice(chain, func(i, j int) bool {
		return chain[i].Version < chain[j].Version
	})
}
